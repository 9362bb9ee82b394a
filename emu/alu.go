package emu

import "github.com/sarchlab/r32sim/insts"

// shiftMask keeps the low five bits of a shift count.
const shiftMask = 0x1F

// ALU implements R32 arithmetic and logic operations.
// All results are 32-bit and wrap silently.
type ALU struct{}

// NewALU creates a new ALU.
func NewALU() *ALU {
	return &ALU{}
}

// Compute applies fn to vs (the rs value) and vt (the rt value).
// Undefined function codes never reach the ALU because the decoder rejects
// them, so they yield 0.
func (a *ALU) Compute(fn insts.Function, vs, vt uint32) uint32 {
	shift := vt & shiftMask

	switch fn {
	case insts.FuncAdd:
		return vs + vt
	case insts.FuncSub:
		return vs - vt
	case insts.FuncAnd:
		return vs & vt
	case insts.FuncOr:
		return vs | vt
	case insts.FuncXor:
		return vs ^ vt
	case insts.FuncShl:
		return vs << shift
	case insts.FuncSal:
		return uint32(int32(vs) << shift)
	case insts.FuncShr:
		return vs >> shift
	case insts.FuncSar:
		return uint32(int32(vs) >> shift)
	case insts.FuncNot:
		return ^vs
	case insts.FuncLts:
		return boolToWord(int32(vs) < int32(vt))
	case insts.FuncGts:
		return boolToWord(int32(vs) > int32(vt))
	case insts.FuncLtu:
		return boolToWord(vs < vt)
	case insts.FuncGtu:
		return boolToWord(vs > vt)
	case insts.FuncEq:
		return boolToWord(vs == vt)
	case insts.FuncNe:
		return boolToWord(vs != vt)
	}
	return 0
}

// PatchHigh replaces the high half-word of current with imm.
func (a *ALU) PatchHigh(current uint32, imm uint16) uint32 {
	return current&0x0000FFFF | uint32(imm)<<16
}

// PatchLow replaces the low half-word of current with imm.
func (a *ALU) PatchLow(current uint32, imm uint16) uint32 {
	return current&0xFFFF0000 | uint32(imm)
}

// EffectiveAddress computes base + sign-extended offset with wrap-around.
func (a *ALU) EffectiveAddress(base uint32, offset int32) uint32 {
	return base + uint32(offset)
}

func boolToWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
