// Package loader provides flat program image loading for R32 programs.
//
// An image is a headerless sequence of 32-bit big-endian instruction words
// loaded at address 0 of the program store.
package loader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/sarchlab/r32sim/emu"
)

// WordSize is the size in bytes of one image word.
const WordSize = 4

// ErrEmptyImage is returned for an image with no instructions.
var ErrEmptyImage = errors.New("program image is empty")

// Program represents a loaded program image ready for execution.
type Program struct {
	// Path is the file the image was read from, if any.
	Path string
	// Words contains the instruction words in address order.
	Words []uint32
}

// Size returns the image size in bytes.
func (p *Program) Size() uint32 {
	return uint32(len(p.Words)) * WordSize
}

// Load reads a program image from path.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program image: %w", err)
	}

	words, err := ParseImage(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &Program{Path: path, Words: words}, nil
}

// ParseImage splits raw image bytes into big-endian words.
func ParseImage(data []byte) ([]uint32, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	if len(data)%WordSize != 0 {
		return nil, fmt.Errorf("program image length %d is not a multiple of %d", len(data), WordSize)
	}

	words := make([]uint32, len(data)/WordSize)
	for i := range words {
		words[i] = binary.BigEndian.Uint32(data[i*WordSize:])
	}
	return words, nil
}

// EncodeImage renders words as raw image bytes.
func EncodeImage(words []uint32) []byte {
	data := make([]byte, len(words)*WordSize)
	for i, w := range words {
		binary.BigEndian.PutUint32(data[i*WordSize:], w)
	}
	return data
}

// WriteImage writes words to path as a program image.
func WriteImage(path string, words []uint32) error {
	if err := os.WriteFile(path, EncodeImage(words), 0644); err != nil {
		return fmt.Errorf("failed to write program image: %w", err)
	}
	return nil
}

// NewProgramStore creates the program store for p. A size of zero fits the
// store to the image; a non-zero size smaller than the image is an error.
func (p *Program) NewProgramStore(size uint32) (*emu.Memory, error) {
	if size != 0 && size < p.Size() {
		return nil, fmt.Errorf("program image (%d bytes) does not fit in program store of %d bytes",
			p.Size(), size)
	}
	return emu.NewMemoryFromWords(emu.ProgramStore, p.Words, size), nil
}
