// Package asm assembles R32 source text into program image words.
//
// Each non-blank line holds an optional label ("name:") followed by one
// instruction or a ".word" directive. Everything after '#' is a comment.
// Operand syntax matches the disassembler:
//
//	add $3, $1, $2
//	not $3, $1
//	slo $1, 0xFF
//	ld $1, -4($2)
//	sb 0($z), $1
//	br $7, loop
//	jr $sp
//	jmp done
//	halt
//
// Branch and jump targets are labels or signed byte offsets relative to
// the following instruction.
package asm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sarchlab/r32sim/insts"
)

// Error reports a problem on one source line.
type Error struct {
	Line int
	Text string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %v (%q)", e.Line, e.Err, e.Text)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// aliases maps mnemonics accepted for compatibility to their canonical form.
var aliases = map[string]string{
	"clts":  "lts",
	"cgts":  "gts",
	"cltu":  "ltu",
	"cgtu":  "gtu",
	"ceq":   "eq",
	"cne":   "ne",
	"load":  "lb",
	"store": "sb",
	"jump":  "jmp",
}

var memoryOps = map[string]insts.Op{
	"ld":  insts.OpLoad,
	"lb":  insts.OpLoadByte,
	"lbu": insts.OpLoadByteUnsigned,
	"lh":  insts.OpLoadHalf,
	"lhu": insts.OpLoadHalfUnsigned,
	"str": insts.OpStore,
	"sb":  insts.OpStoreByte,
	"sh":  insts.OpStoreHalf,
}

type statement struct {
	line     int
	text     string
	addr     uint32
	mnemonic string
	operands []string
}

// Assembler turns source lines into instruction words.
type Assembler struct {
	labels     map[string]uint32
	statements []statement
}

// NewAssembler creates an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{labels: make(map[string]uint32)}
}

// Assemble reads all of src and returns the encoded program.
func Assemble(src io.Reader) ([]uint32, error) {
	return NewAssembler().Assemble(src)
}

// Assemble reads all of src and returns the encoded program. Labels from
// any earlier call are discarded.
func (a *Assembler) Assemble(src io.Reader) ([]uint32, error) {
	a.labels = make(map[string]uint32)
	a.statements = nil

	if err := a.scan(src); err != nil {
		return nil, err
	}
	return a.encode()
}

// AssembleString assembles src.
func AssembleString(src string) ([]uint32, error) {
	return Assemble(strings.NewReader(src))
}

// Labels returns the label table built by the last Assemble call.
func (a *Assembler) Labels() map[string]uint32 {
	out := make(map[string]uint32, len(a.labels))
	for k, v := range a.labels {
		out[k] = v
	}
	return out
}

// scan records labels and statements with their addresses.
func (a *Assembler) scan(src io.Reader) error {
	scanner := bufio.NewScanner(src)
	lineNo := 0
	addr := uint32(0)

	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		text := raw
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)

		for {
			i := strings.IndexByte(text, ':')
			if i < 0 {
				break
			}
			label := strings.TrimSpace(text[:i])
			if !validLabel(label) {
				return &Error{Line: lineNo, Text: raw, Err: fmt.Errorf("invalid label %q", label)}
			}
			if _, dup := a.labels[label]; dup {
				return &Error{Line: lineNo, Text: raw, Err: fmt.Errorf("duplicate label %q", label)}
			}
			a.labels[label] = addr
			text = strings.TrimSpace(text[i+1:])
		}

		if text == "" {
			continue
		}

		mnemonic, rest := text, ""
		if i := strings.IndexAny(text, " \t"); i >= 0 {
			mnemonic, rest = text[:i], text[i+1:]
		}
		mnemonic = strings.ToLower(mnemonic)
		if canonical, ok := aliases[mnemonic]; ok {
			mnemonic = canonical
		}

		var operands []string
		if rest = strings.TrimSpace(rest); rest != "" {
			for _, op := range strings.Split(rest, ",") {
				operands = append(operands, strings.TrimSpace(op))
			}
		}

		a.statements = append(a.statements, statement{
			line:     lineNo,
			text:     raw,
			addr:     addr,
			mnemonic: mnemonic,
			operands: operands,
		})
		addr += 4
	}

	return scanner.Err()
}

func (a *Assembler) encode() ([]uint32, error) {
	words := make([]uint32, 0, len(a.statements))
	for _, s := range a.statements {
		word, err := a.encodeStatement(s)
		if err != nil {
			return nil, &Error{Line: s.line, Text: s.text, Err: err}
		}
		words = append(words, word)
	}
	return words, nil
}

func (a *Assembler) encodeStatement(s statement) (uint32, error) {
	ops := s.operands

	if fn, ok := insts.FunctionByName(s.mnemonic); ok {
		if fn == insts.FuncNot {
			if err := arity(ops, 2); err != nil {
				return 0, err
			}
			regs, err := registers(ops...)
			if err != nil {
				return 0, err
			}
			return insts.EncodeALU(fn, regs[0], regs[1], insts.RegZero), nil
		}

		if err := arity(ops, 3); err != nil {
			return 0, err
		}
		regs, err := registers(ops...)
		if err != nil {
			return 0, err
		}
		return insts.EncodeALU(fn, regs[0], regs[1], regs[2]), nil
	}

	if op, ok := memoryOps[s.mnemonic]; ok {
		if err := arity(ops, 2); err != nil {
			return 0, err
		}
		if op.IsLoad() {
			rt, err := register(ops[0])
			if err != nil {
				return 0, err
			}
			offset, base, err := memoryOperand(ops[1])
			if err != nil {
				return 0, err
			}
			return insts.EncodeLoad(op, rt, base, offset), nil
		}

		offset, base, err := memoryOperand(ops[0])
		if err != nil {
			return 0, err
		}
		value, err := register(ops[1])
		if err != nil {
			return 0, err
		}
		return insts.EncodeStore(op, value, base, offset), nil
	}

	switch s.mnemonic {
	case "shi", "slo":
		if err := arity(ops, 2); err != nil {
			return 0, err
		}
		rt, err := register(ops[0])
		if err != nil {
			return 0, err
		}
		imm, err := immediate16(ops[1])
		if err != nil {
			return 0, err
		}
		if s.mnemonic == "shi" {
			return insts.EncodeSetHigh(rt, imm), nil
		}
		return insts.EncodeSetLow(rt, imm), nil

	case "br":
		if err := arity(ops, 2); err != nil {
			return 0, err
		}
		cond, err := register(ops[0])
		if err != nil {
			return 0, err
		}
		offset, err := a.target(ops[1], s.addr, 16)
		if err != nil {
			return 0, err
		}
		return insts.EncodeBranch(cond, int16(offset)), nil

	case "jr":
		if err := arity(ops, 1); err != nil {
			return 0, err
		}
		rs, err := register(ops[0])
		if err != nil {
			return 0, err
		}
		return insts.EncodeJumpRegister(rs), nil

	case "jmp":
		if err := arity(ops, 1); err != nil {
			return 0, err
		}
		offset, err := a.target(ops[0], s.addr, 26)
		if err != nil {
			return 0, err
		}
		return insts.EncodeJump(int32(offset)), nil

	case "halt":
		return insts.EncodeHalt(), arity(ops, 0)

	case "nop":
		return insts.EncodeNoOp(), arity(ops, 0)

	case ".word":
		if err := arity(ops, 1); err != nil {
			return 0, err
		}
		v, err := strconv.ParseUint(ops[0], 0, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid word %q", ops[0])
		}
		return uint32(v), nil
	}

	return 0, fmt.Errorf("unknown mnemonic %q", s.mnemonic)
}

// target resolves a label or literal offset into a displacement relative
// to the instruction after addr, checked against a signed field of bits.
func (a *Assembler) target(operand string, addr uint32, bits uint) (int64, error) {
	var offset int64
	if labelAddr, ok := a.labels[operand]; ok {
		offset = int64(labelAddr) - int64(addr+4)
	} else {
		v, err := strconv.ParseInt(operand, 0, 64)
		if err != nil {
			if validLabel(operand) {
				return 0, fmt.Errorf("undefined label %q", operand)
			}
			return 0, fmt.Errorf("invalid target %q", operand)
		}
		offset = v
	}

	limit := int64(1) << (bits - 1)
	if offset < -limit || offset >= limit {
		return 0, fmt.Errorf("offset %d does not fit in %d bits", offset, bits)
	}
	return offset, nil
}

func arity(ops []string, n int) error {
	if len(ops) != n {
		return fmt.Errorf("expected %d operands, got %d", n, len(ops))
	}
	return nil
}

func register(name string) (uint8, error) {
	id, ok := insts.RegisterByName(strings.ToLower(name))
	if !ok {
		return 0, fmt.Errorf("invalid register %q", name)
	}
	return id, nil
}

func registers(names ...string) ([]uint8, error) {
	ids := make([]uint8, len(names))
	for i, name := range names {
		id, err := register(name)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// immediate16 accepts anything that fits in 16 bits either as unsigned or
// as signed.
func immediate16(s string) (uint16, error) {
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid immediate %q", s)
	}
	if v < -0x8000 || v > 0xFFFF {
		return 0, fmt.Errorf("immediate %d does not fit in 16 bits", v)
	}
	return uint16(v), nil
}

// memoryOperand parses "offset(base)". The offset may be omitted.
func memoryOperand(s string) (int16, uint8, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return 0, 0, fmt.Errorf("invalid memory operand %q", s)
	}

	base, err := register(strings.TrimSpace(s[open+1 : len(s)-1]))
	if err != nil {
		return 0, 0, err
	}

	offsetText := strings.TrimSpace(s[:open])
	if offsetText == "" {
		return 0, base, nil
	}
	offset, err := strconv.ParseInt(offsetText, 0, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid offset %q", offsetText)
	}
	return int16(offset), base, nil
}

func validLabel(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '.':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
