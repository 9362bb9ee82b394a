package insts

// EncodeR builds an R-format word.
func EncodeR(op Op, rs, rt, rd, shamt uint8, funct Function) uint32 {
	return uint32(op&0x3F)<<26 |
		uint32(rs&0x1F)<<21 |
		uint32(rt&0x1F)<<16 |
		uint32(rd&0x1F)<<11 |
		uint32(shamt&0x1F)<<6 |
		uint32(funct&0x1F)
}

// EncodeI builds an I-format word.
func EncodeI(op Op, rs, rt uint8, imm uint16) uint32 {
	return uint32(op&0x3F)<<26 |
		uint32(rs&0x1F)<<21 |
		uint32(rt&0x1F)<<16 |
		uint32(imm)
}

// EncodeJ builds a J-format word. Only the low 26 bits of imm are kept.
func EncodeJ(op Op, imm uint32) uint32 {
	return uint32(op&0x3F)<<26 | imm&0x3FFFFFF
}

// Encode re-encodes a decoded instruction. Fields that the instruction's
// format does not use are emitted as zero.
func Encode(inst *Instruction) uint32 {
	switch inst.Format {
	case FormatR:
		return EncodeR(inst.Op, inst.Rs, inst.Rt, inst.Rd, inst.Shamt, inst.Func)
	case FormatI:
		return EncodeI(inst.Op, inst.Rs, inst.Rt, uint16(inst.Imm))
	case FormatJ:
		return EncodeJ(inst.Op, inst.Imm)
	}
	return EncodeJ(inst.Op, 0)
}

// EncodeALU encodes rd = rs <fn> rt.
func EncodeALU(fn Function, rd, rs, rt uint8) uint32 {
	return EncodeR(OpArithmetic, rs, rt, rd, 0, fn)
}

// EncodeSetHigh encodes a patch of the high half-word of rt.
func EncodeSetHigh(rt uint8, imm uint16) uint32 {
	return EncodeI(OpSetHigh, 0, rt, imm)
}

// EncodeSetLow encodes a patch of the low half-word of rt.
func EncodeSetLow(rt uint8, imm uint16) uint32 {
	return EncodeI(OpSetLow, 0, rt, imm)
}

// EncodeLoad encodes rt = mem[base + offset] for one of the load opcodes.
func EncodeLoad(op Op, rt, base uint8, offset int16) uint32 {
	return EncodeI(op, base, rt, uint16(offset))
}

// EncodeStore encodes mem[base + offset] = value for one of the store
// opcodes. The value register travels in rs and the base register in rt.
func EncodeStore(op Op, value, base uint8, offset int16) uint32 {
	return EncodeI(op, value, base, uint16(offset))
}

// EncodeBranch encodes a branch taken when cond is non-zero. offset is in
// bytes, relative to the address after the branch.
func EncodeBranch(cond uint8, offset int16) uint32 {
	return EncodeI(OpBranch, cond, 0, uint16(offset))
}

// EncodeJumpRegister encodes an indirect jump to the address held in rs.
func EncodeJumpRegister(rs uint8) uint32 {
	return EncodeI(OpJumpRegister, rs, 0, 0)
}

// EncodeJump encodes a relative jump. offset is in bytes, relative to the
// address after the jump.
func EncodeJump(offset int32) uint32 {
	return EncodeJ(OpJump, uint32(offset))
}

// EncodeHalt encodes the halt instruction.
func EncodeHalt() uint32 {
	return EncodeJ(OpHalt, 0)
}

// EncodeNoOp encodes the no-op instruction.
func EncodeNoOp() uint32 {
	return EncodeJ(OpNoOp, 0)
}
