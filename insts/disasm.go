package insts

import (
	"fmt"
	"strconv"
	"strings"
)

// Well-known register numbers.
const (
	RegZero        uint8 = 0
	RegOne         uint8 = 1
	RegBasePointer uint8 = 30
	RegStackPtr    uint8 = 31

	NumRegisters = 32
)

// RegisterName returns the assembler name of a register.
func RegisterName(id uint8) string {
	switch id {
	case RegZero:
		return "$z"
	case RegBasePointer:
		return "$bp"
	case RegStackPtr:
		return "$sp"
	}
	return "$" + strconv.Itoa(int(id))
}

// RegisterByName parses an assembler register name. Both symbolic names and
// numeric forms ($0..$31) are accepted; "$one" aliases $1.
func RegisterByName(name string) (uint8, bool) {
	switch name {
	case "$z", "$zero":
		return RegZero, true
	case "$one":
		return RegOne, true
	case "$bp":
		return RegBasePointer, true
	case "$sp":
		return RegStackPtr, true
	}

	if !strings.HasPrefix(name, "$") {
		return 0, false
	}

	n, err := strconv.Atoi(name[1:])
	if err != nil || n < 0 || n >= NumRegisters {
		return 0, false
	}
	return uint8(n), true
}

// String renders the instruction in assembler syntax.
func (i *Instruction) String() string {
	r := RegisterName

	switch i.Op {
	case OpArithmetic:
		if i.Func == FuncNot {
			return fmt.Sprintf("not %s, %s", r(i.Rd), r(i.Rs))
		}
		return fmt.Sprintf("%s %s, %s, %s", i.Func, r(i.Rd), r(i.Rs), r(i.Rt))
	case OpSetHigh, OpSetLow:
		return fmt.Sprintf("%s %s, %d", i.Op, r(i.Rt), i.Imm)
	case OpLoad, OpLoadByte, OpLoadByteUnsigned, OpLoadHalf, OpLoadHalfUnsigned:
		return fmt.Sprintf("%s %s, %d(%s)", i.Op, r(i.Rt), i.Offset, r(i.Rs))
	case OpStore, OpStoreByte, OpStoreHalf:
		return fmt.Sprintf("%s %d(%s), %s", i.Op, i.Offset, r(i.Rt), r(i.Rs))
	case OpBranch:
		return fmt.Sprintf("br %s, %d", r(i.Rs), i.Offset)
	case OpJumpRegister:
		return fmt.Sprintf("jr %s", r(i.Rs))
	case OpJump:
		return fmt.Sprintf("jmp %d", i.Offset)
	case OpHalt, OpNoOp:
		return i.Op.String()
	}
	return fmt.Sprintf(".word 0x%08X", i.Word)
}

// Disassemble decodes and renders a word, falling back to a raw .word
// directive for undefined encodings.
func Disassemble(word uint32) string {
	inst, err := NewDecoder().Decode(word)
	if err != nil {
		return fmt.Sprintf(".word 0x%08X", word)
	}
	return inst.String()
}
