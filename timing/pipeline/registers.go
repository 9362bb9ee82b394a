// Package pipeline provides the 5-stage pipeline implementation for timing simulation.
package pipeline

import "github.com/sarchlab/r32sim/insts"

// IFIDRegister holds state between Fetch and Decode stages.
type IFIDRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the program counter of the fetched instruction.
	PC uint32

	// NextPC is the address following the fetched instruction.
	NextPC uint32

	// InstructionWord is the raw 32-bit instruction word.
	InstructionWord uint32
}

// Clear resets the IF/ID register to empty state.
func (r *IFIDRegister) Clear() {
	*r = IFIDRegister{}
}

// IDEXRegister holds state between Decode and Execute stages.
type IDEXRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the program counter of the instruction.
	PC uint32

	// NextPC is carried unchanged for branch and jump targets.
	NextPC uint32

	// Inst is the decoded instruction.
	Inst *insts.Instruction

	// Register values read from the register file during Decode.
	RsValue uint32
	RtValue uint32

	// Dest is the register the instruction writes, if RegWrite is set.
	Dest uint8

	// Control signals.
	RegWrite bool // True if instruction writes to register
	MemRead  bool // True for load instructions
	MemWrite bool // True for store instructions
}

// Clear resets the ID/EX register to empty state.
func (r *IDEXRegister) Clear() {
	*r = IDEXRegister{}
}

// EXMEMRegister holds state between Execute and Memory stages.
type EXMEMRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the program counter of the instruction.
	PC uint32

	// NextPC is the base for branch and jump targets.
	NextPC uint32

	// Op selects the Memory stage behavior.
	Op insts.Op

	// ALUResult is the computed value, or the effective address for
	// loads and stores.
	ALUResult uint32

	// StoreValue is the value to store (for store instructions).
	StoreValue uint32

	// Cond is the branch condition, or the jump-register target.
	Cond uint32

	// Offset is the raw branch or jump displacement.
	Offset int32

	// Dest is the destination register.
	Dest uint8

	// Control signals.
	RegWrite bool
	MemRead  bool
	MemWrite bool
}

// Clear resets the EX/MEM register to empty state.
func (r *EXMEMRegister) Clear() {
	*r = EXMEMRegister{}
}

// MEMWBRegister holds state between Memory and Writeback stages.
type MEMWBRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the program counter of the instruction.
	PC uint32

	// NextPC is the address following the instruction.
	NextPC uint32

	// Dest is the register to write.
	Dest uint8

	// Value is the ALU result or loaded value.
	Value uint32
}

// Clear resets the MEM/WB register to empty state.
func (r *MEMWBRegister) Clear() {
	*r = MEMWBRegister{}
}
