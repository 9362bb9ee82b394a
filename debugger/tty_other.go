//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package debugger

import "os"

// IsTerminal always reports false where terminal attributes are not
// available.
func IsTerminal(_ *os.File) bool {
	return false
}
