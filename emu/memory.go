package emu

import (
	"encoding/binary"
	"fmt"
)

// Store names used in diagnostics.
const (
	ProgramStore = "program"
	DataStore    = "data"
)

// AddressOutOfBoundsError reports an access that touches a byte outside the
// store.
type AddressOutOfBoundsError struct {
	Store   string
	Address uint32
	Access  int // bytes requested
	Size    uint32
}

func (e *AddressOutOfBoundsError) Error() string {
	return fmt.Sprintf("%d-byte access at 0x%08X is out of bounds of %s store with size 0x%X",
		e.Access, e.Address, e.Store, e.Size)
}

// Memory is a byte-addressable, big-endian store of fixed size.
type Memory struct {
	name string
	data []byte
}

// NewMemory creates a zero-filled store of size bytes.
func NewMemory(name string, size uint32) *Memory {
	return &Memory{
		name: name,
		data: make([]byte, size),
	}
}

// NewMemoryFromWords creates a store holding words, in big-endian order,
// starting at address 0. The store is padded with zeros up to size bytes;
// a size smaller than the image is raised to fit it.
func NewMemoryFromWords(name string, words []uint32, size uint32) *Memory {
	need := uint32(len(words)) * 4
	if size < need {
		size = need
	}

	m := NewMemory(name, size)
	for i, w := range words {
		binary.BigEndian.PutUint32(m.data[i*4:], w)
	}
	return m
}

// Name returns the store name used in diagnostics.
func (m *Memory) Name() string {
	return m.name
}

// Size returns the number of addressable bytes.
func (m *Memory) Size() uint32 {
	return uint32(len(m.data))
}

// Bytes returns a copy of the store contents.
func (m *Memory) Bytes() []byte {
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out
}

// LoadImage copies data into the store starting at addr.
func (m *Memory) LoadImage(addr uint32, data []byte) error {
	if err := m.check(addr, len(data)); err != nil {
		return err
	}
	copy(m.data[addr:], data)
	return nil
}

// Clear zero-fills the store.
func (m *Memory) Clear() {
	for i := range m.data {
		m.data[i] = 0
	}
}

// check validates that [addr, addr+n) lies inside the store. The sum is
// computed in 64 bits so addresses near 2^32 never wrap back into range.
func (m *Memory) check(addr uint32, n int) error {
	if uint64(addr)+uint64(n) > uint64(len(m.data)) {
		return &AddressOutOfBoundsError{
			Store:   m.name,
			Address: addr,
			Access:  n,
			Size:    m.Size(),
		}
	}
	return nil
}

// Read8 reads one byte.
func (m *Memory) Read8(addr uint32) (uint8, error) {
	if err := m.check(addr, 1); err != nil {
		return 0, err
	}
	return m.data[addr], nil
}

// Read16 reads a big-endian half-word.
func (m *Memory) Read16(addr uint32) (uint16, error) {
	if err := m.check(addr, 2); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(m.data[addr:]), nil
}

// Read32 reads a big-endian word.
func (m *Memory) Read32(addr uint32) (uint32, error) {
	if err := m.check(addr, 4); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(m.data[addr:]), nil
}

// Write8 writes one byte.
func (m *Memory) Write8(addr uint32, value uint8) error {
	if err := m.check(addr, 1); err != nil {
		return err
	}
	m.data[addr] = value
	return nil
}

// Write16 writes a big-endian half-word. Nothing is written if any byte is
// out of range.
func (m *Memory) Write16(addr uint32, value uint16) error {
	if err := m.check(addr, 2); err != nil {
		return err
	}
	binary.BigEndian.PutUint16(m.data[addr:], value)
	return nil
}

// Write32 writes a big-endian word. Nothing is written if any byte is out of
// range.
func (m *Memory) Write32(addr uint32, value uint32) error {
	if err := m.check(addr, 4); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(m.data[addr:], value)
	return nil
}
