//go:build linux || darwin || freebsd || netbsd || openbsd

package debugger

import (
	"os"

	"github.com/pkg/term/termios"
	"golang.org/x/sys/unix"
)

// IsTerminal reports whether f is attached to a terminal. The prompt is
// only worth printing when it is.
func IsTerminal(f *os.File) bool {
	var attr unix.Termios
	return termios.Tcgetattr(f.Fd(), &attr) == nil
}
