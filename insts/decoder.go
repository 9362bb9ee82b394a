// Package insts provides R32 instruction definitions and decoding.
package insts

import "fmt"

// Op represents an R32 opcode.
type Op uint8

// R32 opcodes.
const (
	OpArithmetic       Op = 0x00
	OpSetHigh          Op = 0x01
	OpSetLow           Op = 0x02
	OpLoadByte         Op = 0x03 // load: signed byte
	OpStoreByte        Op = 0x04 // store: low byte
	OpBranch           Op = 0x05
	OpJumpRegister     Op = 0x06
	OpJump             Op = 0x07
	OpLoad             Op = 0x08 // word
	OpLoadByteUnsigned Op = 0x09
	OpLoadHalf         Op = 0x0A
	OpLoadHalfUnsigned Op = 0x0B
	OpStore            Op = 0x0C // word
	OpStoreHalf        Op = 0x0D
	OpHalt             Op = 0x3E
	OpNoOp             Op = 0x3F
)

// Valid reports whether op is part of the instruction set.
func (op Op) Valid() bool {
	switch op {
	case OpArithmetic, OpSetHigh, OpSetLow, OpLoad, OpStore, OpBranch,
		OpJumpRegister, OpJump, OpLoadByte, OpLoadByteUnsigned, OpLoadHalf,
		OpLoadHalfUnsigned, OpStoreByte, OpStoreHalf, OpHalt, OpNoOp:
		return true
	}
	return false
}

// IsLoad reports whether op reads the data store.
func (op Op) IsLoad() bool {
	switch op {
	case OpLoad, OpLoadByte, OpLoadByteUnsigned, OpLoadHalf, OpLoadHalfUnsigned:
		return true
	}
	return false
}

// IsStore reports whether op writes the data store.
func (op Op) IsStore() bool {
	return op == OpStore || op == OpStoreByte || op == OpStoreHalf
}

// AccessSize returns the number of bytes a load or store touches, or 0 for
// opcodes that do not access the data store.
func (op Op) AccessSize() int {
	switch op {
	case OpLoad, OpStore:
		return 4
	case OpLoadHalf, OpLoadHalfUnsigned, OpStoreHalf:
		return 2
	case OpLoadByte, OpLoadByteUnsigned, OpStoreByte:
		return 1
	}
	return 0
}

func (op Op) String() string {
	switch op {
	case OpArithmetic:
		return "arith"
	case OpSetHigh:
		return "shi"
	case OpSetLow:
		return "slo"
	case OpLoad:
		return "ld"
	case OpStore:
		return "str"
	case OpBranch:
		return "br"
	case OpJumpRegister:
		return "jr"
	case OpJump:
		return "jmp"
	case OpLoadByte:
		return "lb"
	case OpLoadByteUnsigned:
		return "lbu"
	case OpLoadHalf:
		return "lh"
	case OpLoadHalfUnsigned:
		return "lhu"
	case OpStoreByte:
		return "sb"
	case OpStoreHalf:
		return "sh"
	case OpHalt:
		return "halt"
	case OpNoOp:
		return "nop"
	}
	return fmt.Sprintf("op(0x%02X)", uint8(op))
}

// Function selects the ALU operation of an arithmetic instruction.
type Function uint8

// ALU function codes.
const (
	FuncAdd Function = iota
	FuncSub
	FuncAnd
	FuncOr
	FuncXor
	FuncShl // logical shift left
	FuncSal // arithmetic shift left
	FuncShr // logical shift right
	FuncSar // arithmetic shift right
	FuncNot
	FuncLts // signed less than
	FuncGts // signed greater than
	FuncLtu // unsigned less than
	FuncGtu // unsigned greater than
	FuncEq
	FuncNe

	numFunctions
)

var functionNames = [numFunctions]string{
	"add", "sub", "and", "or", "xor", "shl", "sal", "shr", "sar", "not",
	"lts", "gts", "ltu", "gtu", "eq", "ne",
}

// Valid reports whether fn is a defined function code.
func (fn Function) Valid() bool {
	return fn < numFunctions
}

func (fn Function) String() string {
	if !fn.Valid() {
		return fmt.Sprintf("funct(%d)", uint8(fn))
	}
	return functionNames[fn]
}

// FunctionByName looks up a function code by its mnemonic.
func FunctionByName(name string) (Function, bool) {
	for i, n := range functionNames {
		if n == name {
			return Function(i), true
		}
	}
	return 0, false
}

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatNone Format = iota // opcode only (halt, no-op)
	FormatR                  // rs, rt, rd, shamt, funct
	FormatI                  // rs, rt, imm16
	FormatJ                  // imm26
)

func (f Format) String() string {
	switch f {
	case FormatR:
		return "R"
	case FormatI:
		return "I"
	case FormatJ:
		return "J"
	}
	return "-"
}

// InvalidOpcodeError reports an opcode outside the instruction set.
type InvalidOpcodeError struct {
	Word   uint32
	Opcode uint8
}

func (e *InvalidOpcodeError) Error() string {
	return fmt.Sprintf("invalid opcode 0x%02X in word 0x%08X", e.Opcode, e.Word)
}

// InvalidFunctionError reports an arithmetic instruction whose function code
// is not defined.
type InvalidFunctionError struct {
	Word  uint32
	Funct uint8
}

func (e *InvalidFunctionError) Error() string {
	return fmt.Sprintf("invalid function code %d in word 0x%08X", e.Funct, e.Word)
}

// Fields holds the raw bit fields of an instruction word. Extraction never
// fails; whether the fields are meaningful depends on the opcode.
type Fields struct {
	Opcode uint8
	Rs     uint8
	Rt     uint8
	Rd     uint8
	Shamt  uint8
	Funct  uint8
	Imm16  uint16
	Imm26  uint32
}

// ExtractFields splits a word into its bit fields.
func ExtractFields(word uint32) Fields {
	return Fields{
		Opcode: uint8((word >> 26) & 0x3F), // bits [31:26]
		Rs:     uint8((word >> 21) & 0x1F), // bits [25:21]
		Rt:     uint8((word >> 16) & 0x1F), // bits [20:16]
		Rd:     uint8((word >> 11) & 0x1F), // bits [15:11]
		Shamt:  uint8((word >> 6) & 0x1F),  // bits [10:6]
		Funct:  uint8(word & 0x1F),         // bits [4:0]
		Imm16:  uint16(word & 0xFFFF),      // bits [15:0]
		Imm26:  word & 0x3FFFFFF,           // bits [25:0]
	}
}

// SignExtend16 sign-extends a 16-bit immediate from bit 15.
func SignExtend16(imm uint16) int32 {
	return int32(uint32(imm)<<16) >> 16
}

// SignExtend26 sign-extends a 26-bit immediate from bit 25.
func SignExtend26(imm uint32) int32 {
	return int32(imm<<6) >> 6
}

// Classify returns the encoding format used by op.
func Classify(op Op) (Format, error) {
	switch op {
	case OpArithmetic:
		return FormatR, nil
	case OpSetHigh, OpSetLow, OpLoad, OpStore, OpBranch, OpJumpRegister,
		OpLoadByte, OpLoadByteUnsigned, OpLoadHalf, OpLoadHalfUnsigned,
		OpStoreByte, OpStoreHalf:
		return FormatI, nil
	case OpJump:
		return FormatJ, nil
	case OpHalt, OpNoOp:
		return FormatNone, nil
	}
	return FormatNone, &InvalidOpcodeError{Opcode: uint8(op)}
}

// Instruction represents a decoded R32 instruction.
type Instruction struct {
	Word   uint32 // Raw instruction word
	Op     Op     // Operation code
	Format Format // Encoding format

	// Register fields. Only those used by Format are meaningful.
	Rs    uint8
	Rt    uint8
	Rd    uint8
	Shamt uint8

	// Func is the ALU operation for FormatR; FuncAdd otherwise.
	Func Function

	// Imm holds the raw immediate: imm16 for FormatI, imm26 for FormatJ.
	Imm uint32

	// Offset is the sign-extended immediate for FormatI and FormatJ.
	Offset int32
}

// Decoder decodes R32 machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new R32 instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit instruction word. It fails only when the opcode,
// or the function code of an arithmetic instruction, is undefined.
func (d *Decoder) Decode(word uint32) (*Instruction, error) {
	f := ExtractFields(word)
	op := Op(f.Opcode)

	format, err := Classify(op)
	if err != nil {
		return nil, &InvalidOpcodeError{Word: word, Opcode: f.Opcode}
	}

	inst := &Instruction{
		Word:   word,
		Op:     op,
		Format: format,
		Func:   FuncAdd,
	}

	switch format {
	case FormatR:
		fn := Function(f.Funct)
		if !fn.Valid() {
			return nil, &InvalidFunctionError{Word: word, Funct: f.Funct}
		}
		inst.Rs = f.Rs
		inst.Rt = f.Rt
		inst.Rd = f.Rd
		inst.Shamt = f.Shamt
		inst.Func = fn
	case FormatI:
		inst.Rs = f.Rs
		inst.Rt = f.Rt
		inst.Imm = uint32(f.Imm16)
		inst.Offset = SignExtend16(f.Imm16)
	case FormatJ:
		inst.Imm = f.Imm26
		inst.Offset = SignExtend26(f.Imm26)
	}

	return inst, nil
}
