package pipeline

import (
	"fmt"

	"github.com/sarchlab/r32sim/emu"
	"github.com/sarchlab/r32sim/insts"
)

// instructionBytes is the size of one instruction word.
const instructionBytes = 4

// FetchStage handles instruction fetch from the program store.
type FetchStage struct {
	memory *emu.Memory
}

// NewFetchStage creates a new fetch stage.
func NewFetchStage(memory *emu.Memory) *FetchStage {
	return &FetchStage{memory: memory}
}

// Fetch reads the instruction at the given PC.
func (s *FetchStage) Fetch(pc uint32) (IFIDRegister, error) {
	word, err := s.memory.Read32(pc)
	if err != nil {
		return IFIDRegister{}, err
	}

	return IFIDRegister{
		Valid:           true,
		PC:              pc,
		NextPC:          pc + instructionBytes,
		InstructionWord: word,
	}, nil
}

// DecodeStage handles instruction decode and register read.
type DecodeStage struct {
	regFile *emu.RegFile
	decoder *insts.Decoder
}

// NewDecodeStage creates a new decode stage.
func NewDecodeStage(regFile *emu.RegFile) *DecodeStage {
	return &DecodeStage{
		regFile: regFile,
		decoder: insts.NewDecoder(),
	}
}

// Decode decodes the fetched word and reads its source registers. Registers
// are read here, not in Execute, so results still in flight are not seen.
func (s *DecodeStage) Decode(ifid *IFIDRegister) (IDEXRegister, error) {
	inst, err := s.decoder.Decode(ifid.InstructionWord)
	if err != nil {
		return IDEXRegister{}, err
	}

	idex := IDEXRegister{
		Valid:  true,
		PC:     ifid.PC,
		NextPC: ifid.NextPC,
		Inst:   inst,
	}

	switch inst.Format {
	case insts.FormatR, insts.FormatI:
		idex.RsValue = s.regFile.ReadReg(inst.Rs)
		idex.RtValue = s.regFile.ReadReg(inst.Rt)
	}

	switch {
	case inst.Op == insts.OpArithmetic:
		idex.Dest = inst.Rd
		idex.RegWrite = true
	case inst.Op == insts.OpSetHigh, inst.Op == insts.OpSetLow:
		idex.Dest = inst.Rt
		idex.RegWrite = true
	case inst.Op.IsLoad():
		idex.Dest = inst.Rt
		idex.RegWrite = true
		idex.MemRead = true
	case inst.Op.IsStore():
		idex.MemWrite = true
	}

	return idex, nil
}

// ExecuteStage handles ALU operations and address computation.
type ExecuteStage struct {
	alu *emu.ALU
}

// NewExecuteStage creates a new execute stage.
func NewExecuteStage() *ExecuteStage {
	return &ExecuteStage{alu: emu.NewALU()}
}

// Execute computes the result of the instruction in idex. A no-op leaves
// nothing for later stages, so the returned register is invalid.
func (s *ExecuteStage) Execute(idex *IDEXRegister) EXMEMRegister {
	inst := idex.Inst
	if !idex.Valid || inst == nil || inst.Op == insts.OpNoOp {
		return EXMEMRegister{}
	}

	exmem := EXMEMRegister{
		Valid:    true,
		PC:       idex.PC,
		NextPC:   idex.NextPC,
		Op:       inst.Op,
		Dest:     idex.Dest,
		Offset:   inst.Offset,
		RegWrite: idex.RegWrite,
		MemRead:  idex.MemRead,
		MemWrite: idex.MemWrite,
	}

	switch {
	case inst.Op == insts.OpArithmetic:
		exmem.ALUResult = s.alu.Compute(inst.Func, idex.RsValue, idex.RtValue)
	case inst.Op == insts.OpSetHigh:
		exmem.ALUResult = s.alu.PatchHigh(idex.RtValue, uint16(inst.Imm))
	case inst.Op == insts.OpSetLow:
		exmem.ALUResult = s.alu.PatchLow(idex.RtValue, uint16(inst.Imm))
	case inst.Op.IsLoad():
		exmem.ALUResult = s.alu.EffectiveAddress(idex.RsValue, inst.Offset)
	case inst.Op.IsStore():
		exmem.ALUResult = s.alu.EffectiveAddress(idex.RtValue, inst.Offset)
		exmem.StoreValue = idex.RsValue
	case inst.Op == insts.OpBranch, inst.Op == insts.OpJumpRegister:
		exmem.Cond = idex.RsValue
	}

	return exmem
}

// MemoryStage handles data memory access and control-flow resolution.
type MemoryStage struct {
	lsu    *emu.LoadStoreUnit
	branch *emu.BranchUnit
}

// NewMemoryStage creates a new memory stage.
func NewMemoryStage(memory *emu.Memory) *MemoryStage {
	return &MemoryStage{
		lsu:    emu.NewLoadStoreUnit(memory),
		branch: emu.NewBranchUnit(),
	}
}

// MemoryResult holds the result of the memory stage.
type MemoryResult struct {
	// MEMWB is the latch handed to Write-back. It is invalid for stores,
	// control transfers and halt.
	MEMWB MEMWBRegister

	// Redirect is set when the next fetch must come from Target.
	Redirect bool
	Target   uint32

	// Halt is set when a halt instruction completes.
	Halt bool
}

// Access performs the memory operation for exmem and resolves control flow.
func (s *MemoryStage) Access(exmem *EXMEMRegister) (MemoryResult, error) {
	var result MemoryResult
	if !exmem.Valid {
		return result, nil
	}

	writeback := MEMWBRegister{
		Valid:  true,
		PC:     exmem.PC,
		NextPC: exmem.NextPC,
		Dest:   exmem.Dest,
		Value:  exmem.ALUResult,
	}

	switch {
	case exmem.MemRead:
		value, err := s.lsu.Load(exmem.Op, exmem.ALUResult)
		if err != nil {
			return result, err
		}
		writeback.Value = value
		result.MEMWB = writeback

	case exmem.MemWrite:
		if err := s.lsu.Store(exmem.Op, exmem.ALUResult, exmem.StoreValue); err != nil {
			return result, err
		}

	case exmem.Op == insts.OpBranch:
		if s.branch.Taken(exmem.Cond) {
			result.Redirect = true
			result.Target = s.branch.Target(exmem.NextPC, exmem.Offset)
		}

	case exmem.Op == insts.OpJump:
		result.Redirect = true
		result.Target = s.branch.Target(exmem.NextPC, exmem.Offset)

	case exmem.Op == insts.OpJumpRegister:
		result.Redirect = true
		result.Target = exmem.Cond

	case exmem.Op == insts.OpHalt:
		result.Halt = true

	case exmem.RegWrite:
		result.MEMWB = writeback

	default:
		return result, fmt.Errorf("no memory-stage behavior for %v", exmem.Op)
	}

	return result, nil
}

// WritebackStage handles register writeback.
type WritebackStage struct {
	regFile *emu.RegFile
}

// NewWritebackStage creates a new writeback stage.
func NewWritebackStage(regFile *emu.RegFile) *WritebackStage {
	return &WritebackStage{regFile: regFile}
}

// Writeback writes the result to the register file.
func (s *WritebackStage) Writeback(memwb *MEMWBRegister) error {
	if !memwb.Valid {
		return nil
	}
	return s.regFile.WriteReg(memwb.Dest, memwb.Value)
}
