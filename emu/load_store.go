package emu

import (
	"fmt"

	"github.com/sarchlab/r32sim/insts"
)

// LoadStoreUnit implements R32 load and store operations over one store.
type LoadStoreUnit struct {
	memory *Memory
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// memory.
func NewLoadStoreUnit(memory *Memory) *LoadStoreUnit {
	return &LoadStoreUnit{
		memory: memory,
	}
}

// Load performs the load selected by op at addr and returns the value
// extended to 32 bits.
func (lsu *LoadStoreUnit) Load(op insts.Op, addr uint32) (uint32, error) {
	switch op {
	case insts.OpLoad:
		return lsu.memory.Read32(addr)
	case insts.OpLoadHalf:
		v, err := lsu.memory.Read16(addr)
		// Sign extend from 16 to 32 bits
		return uint32(int32(int16(v))), err
	case insts.OpLoadHalfUnsigned:
		v, err := lsu.memory.Read16(addr)
		return uint32(v), err
	case insts.OpLoadByte:
		v, err := lsu.memory.Read8(addr)
		// Sign extend from 8 to 32 bits
		return uint32(int32(int8(v))), err
	case insts.OpLoadByteUnsigned:
		v, err := lsu.memory.Read8(addr)
		return uint32(v), err
	}
	return 0, fmt.Errorf("%v is not a load", op)
}

// Store performs the store selected by op, truncating value to the access
// width.
func (lsu *LoadStoreUnit) Store(op insts.Op, addr, value uint32) error {
	switch op {
	case insts.OpStore:
		return lsu.memory.Write32(addr, value)
	case insts.OpStoreHalf:
		return lsu.memory.Write16(addr, uint16(value))
	case insts.OpStoreByte:
		return lsu.memory.Write8(addr, uint8(value))
	}
	return fmt.Errorf("%v is not a store", op)
}
