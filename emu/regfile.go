// Package emu provides the architectural state of the R32 machine: the
// register file, the program and data stores, and the functional units that
// operate on them.
package emu

import (
	"fmt"

	"github.com/sarchlab/r32sim/insts"
)

// InvalidRegisterWriteError reports a write to a protected register.
type InvalidRegisterWriteError struct {
	Register uint8
	Value    uint32
}

func (e *InvalidRegisterWriteError) Error() string {
	return fmt.Sprintf("attempted to write 0x%08X to protected register %s",
		e.Value, insts.RegisterName(e.Register))
}

// RegFile represents the R32 register file.
// It contains 32 general-purpose 32-bit registers. Register 0 is hard-wired
// to zero; further registers may be reserved as constants.
type RegFile struct {
	// X holds the register values. X[0] is never read.
	X [insts.NumRegisters]uint32

	// reserved marks registers that reject writes.
	reserved [insts.NumRegisters]bool
}

// RegFileOption is a functional option for configuring the RegFile.
type RegFileOption func(*RegFile)

// WithReservedRegister pins a register to a constant value and protects it
// from writes.
func WithReservedRegister(id uint8, value uint32) RegFileOption {
	return func(r *RegFile) {
		r.X[id] = value
		r.reserved[id] = true
	}
}

// WithInitialValue sets the power-on value of a writable register.
func WithInitialValue(id uint8, value uint32) RegFileOption {
	return func(r *RegFile) {
		r.X[id] = value
	}
}

// NewRegFile creates a register file with every register cleared and only
// the zero register protected.
func NewRegFile(opts ...RegFileOption) *RegFile {
	r := &RegFile{}
	for _, opt := range opts {
		opt(r)
	}

	r.X[insts.RegZero] = 0
	r.reserved[insts.RegZero] = true

	return r
}

// ReadReg reads a register value. Register 0 always returns 0.
func (r *RegFile) ReadReg(id uint8) uint32 {
	if id == insts.RegZero || int(id) >= insts.NumRegisters {
		return 0
	}
	return r.X[id]
}

// WriteReg writes a value to a register. Writes to protected registers fail
// and leave the register file unchanged.
func (r *RegFile) WriteReg(id uint8, value uint32) error {
	if int(id) >= insts.NumRegisters || r.reserved[id] || id == insts.RegZero {
		return &InvalidRegisterWriteError{Register: id, Value: value}
	}
	r.X[id] = value
	return nil
}

// IsReserved reports whether writes to id are rejected.
func (r *RegFile) IsReserved(id uint8) bool {
	return int(id) < insts.NumRegisters && (id == insts.RegZero || r.reserved[id])
}

// Snapshot returns the architecturally visible value of every register.
func (r *RegFile) Snapshot() [insts.NumRegisters]uint32 {
	var out [insts.NumRegisters]uint32
	for i := range out {
		out[i] = r.ReadReg(uint8(i))
	}
	return out
}

// RegisterProfile names a reserved-register configuration.
type RegisterProfile string

// Register profiles.
const (
	// ProfileBaseline protects only the zero register.
	ProfileBaseline RegisterProfile = "baseline"

	// ProfileExtended additionally pins $1 to the constant one and starts
	// $sp at the top of the data store.
	ProfileExtended RegisterProfile = "extended"
)

// Options returns the register file options implementing the profile for a
// data store of dataSize bytes.
func (p RegisterProfile) Options(dataSize uint32) ([]RegFileOption, error) {
	switch p {
	case ProfileBaseline, "":
		return nil, nil
	case ProfileExtended:
		return []RegFileOption{
			WithReservedRegister(insts.RegOne, 1),
			WithInitialValue(insts.RegStackPtr, dataSize),
		}, nil
	}
	return nil, fmt.Errorf("unknown register profile %q", string(p))
}
