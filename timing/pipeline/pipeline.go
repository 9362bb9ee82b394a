package pipeline

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/r32sim/emu"
	"github.com/sarchlab/r32sim/insts"
	"github.com/sarchlab/r32sim/timing/cache"
)

// Stage names a pipeline stage in fault reports and traces.
type Stage string

// Pipeline stages, in evaluation order.
const (
	StageFetch     Stage = "fetch"
	StageDecode    Stage = "decode"
	StageExecute   Stage = "execute"
	StageMemory    Stage = "memory"
	StageWriteback Stage = "writeback"
)

// StageError reports a fault raised by one stage during a tick. The
// underlying error is one of insts.InvalidOpcodeError,
// insts.InvalidFunctionError, emu.AddressOutOfBoundsError or
// emu.InvalidRegisterWriteError.
type StageError struct {
	Stage Stage
	PC    uint32 // address of the faulting instruction
	Cycle uint64
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage fault at pc 0x%08X (cycle %d): %v", e.Stage, e.PC, e.Cycle, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// EntryOutOfBoundsError reports an entry point outside the program store.
type EntryOutOfBoundsError struct {
	Entry uint32
	Size  uint32
}

func (e *EntryOutOfBoundsError) Error() string {
	return fmt.Sprintf("entry point 0x%08X is outside the program store (size 0x%X)", e.Entry, e.Size)
}

// Statistics holds pipeline performance statistics.
type Statistics struct {
	// Cycles is the total number of completed ticks.
	Cycles uint64
	// Fetched is the number of instruction words fetched.
	Fetched uint64
	// Retired is the number of instructions that left the pipeline.
	Retired uint64
	// Bubbles is the number of ticks in which nothing retired.
	Bubbles uint64
	// Loads is the number of data-store reads.
	Loads uint64
	// Stores is the number of data-store writes.
	Stores uint64
	// BranchesTaken is the number of conditional branches that redirected fetch.
	BranchesTaken uint64
	// Jumps is the number of jump and jump-register instructions completed.
	Jumps uint64
}

// CPI returns the cycles per instruction.
func (s Statistics) CPI() float64 {
	if s.Retired == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Retired)
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the logger used for per-tick and per-stage traces.
func WithLogger(log logrus.FieldLogger) PipelineOption {
	return func(p *Pipeline) {
		p.log = log
	}
}

// WithDCache enables data cache profiling with the given configuration.
// The cache observes loads and stores but never alters their values.
func WithDCache(config cache.Config) PipelineOption {
	return func(p *Pipeline) {
		p.dcache = cache.New(config)
	}
}

// Pipeline implements the 5-stage unforwarded R32 pipeline.
// Stages: Fetch (IF) -> Decode (ID) -> Execute (EX) -> Memory (MEM) -> Writeback (WB)
type Pipeline struct {
	// Pipeline stages
	fetchStage     *FetchStage
	decodeStage    *DecodeStage
	executeStage   *ExecuteStage
	memoryStage    *MemoryStage
	writebackStage *WritebackStage

	// Pipeline registers
	ifid  IFIDRegister
	idex  IDEXRegister
	exmem EXMEMRegister
	memwb MEMWBRegister

	// Shared resources
	regFile *emu.RegFile
	program *emu.Memory
	data    *emu.Memory
	dcache  *cache.Cache

	log       logrus.FieldLogger
	tracing   bool
	debugging bool

	// Program counter
	entry uint32
	pc    uint32

	// Halted flag
	halted bool

	// Statistics
	stats Statistics
}

// New creates a pipeline that fetches from program, accesses data and
// starts at entry.
func New(
	program, data *emu.Memory,
	regFile *emu.RegFile,
	entry uint32,
	opts ...PipelineOption,
) (*Pipeline, error) {
	if entry >= program.Size() {
		return nil, &EntryOutOfBoundsError{Entry: entry, Size: program.Size()}
	}

	p := &Pipeline{
		fetchStage:     NewFetchStage(program),
		decodeStage:    NewDecodeStage(regFile),
		executeStage:   NewExecuteStage(),
		memoryStage:    NewMemoryStage(data),
		writebackStage: NewWritebackStage(regFile),
		regFile:        regFile,
		program:        program,
		data:           data,
		entry:          entry,
		pc:             entry,
	}

	// Apply options
	for _, opt := range opts {
		opt(p)
	}

	if p.log == nil {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		p.log = logger
	}
	p.tracing = levelEnabled(p.log, logrus.TraceLevel)
	p.debugging = levelEnabled(p.log, logrus.DebugLevel)

	return p, nil
}

// PC returns the address of the next fetch.
func (p *Pipeline) PC() uint32 {
	return p.pc
}

// Entry returns the entry point the pipeline was created with.
func (p *Pipeline) Entry() uint32 {
	return p.entry
}

// GetIFID returns the IF/ID pipeline register.
func (p *Pipeline) GetIFID() *IFIDRegister {
	return &p.ifid
}

// GetIDEX returns the ID/EX pipeline register.
func (p *Pipeline) GetIDEX() *IDEXRegister {
	return &p.idex
}

// GetEXMEM returns the EX/MEM pipeline register.
func (p *Pipeline) GetEXMEM() *EXMEMRegister {
	return &p.exmem
}

// GetMEMWB returns the MEM/WB pipeline register.
func (p *Pipeline) GetMEMWB() *MEMWBRegister {
	return &p.memwb
}

// RegFile returns the register file.
func (p *Pipeline) RegFile() *emu.RegFile {
	return p.regFile
}

// Program returns the program store.
func (p *Pipeline) Program() *emu.Memory {
	return p.program
}

// Data returns the data store.
func (p *Pipeline) Data() *emu.Memory {
	return p.data
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Statistics {
	return p.stats
}

// DCacheStats returns data cache statistics, or false if no data cache is
// attached.
func (p *Pipeline) DCacheStats() (cache.Statistics, bool) {
	if p.dcache == nil {
		return cache.Statistics{}, false
	}
	return p.dcache.Stats(), true
}

// Halted returns true once a halt instruction has completed the Memory stage.
func (p *Pipeline) Halted() bool {
	return p.halted
}

// Reset empties every latch, clears the halted flag and statistics and
// moves the PC back to the entry point. Registers and stores are left as
// they are.
func (p *Pipeline) Reset() {
	p.ifid.Clear()
	p.idex.Clear()
	p.exmem.Clear()
	p.memwb.Clear()
	p.pc = p.entry
	p.halted = false
	p.stats = Statistics{}
	if p.dcache != nil {
		p.dcache.Reset()
	}
}

// Run ticks until the pipeline halts or a stage faults.
func (p *Pipeline) Run() error {
	for !p.halted {
		if err := p.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// RunCycles executes the pipeline for the specified number of cycles.
// Returns true if still running, false if halted.
func (p *Pipeline) RunCycles(cycles uint64) (bool, error) {
	for i := uint64(0); i < cycles && !p.halted; i++ {
		if err := p.Tick(); err != nil {
			return !p.halted, err
		}
	}
	return !p.halted, nil
}

// Tick executes one pipeline cycle.
//
// Every stage consumes the latch produced by the previous tick, in the fixed
// order Fetch, Decode, Execute, Memory, Writeback. There is no forwarding
// and no squashing: a register written back in this tick is only seen by
// instructions decoded in later ticks, and the three instructions fetched
// behind a branch or jump always complete.
//
// The first fault aborts the remaining stages and is returned as a
// *StageError. Latches, the PC, the halted flag, statistics and data cache
// accounting are only committed when all five stages succeed. A data-store
// write made by the Memory stage stays applied even if Writeback then faults.
func (p *Pipeline) Tick() error {
	cycle := p.stats.Cycles + 1
	stats := p.stats
	stats.Cycles = cycle
	retired := uint64(0)

	// Fetch
	nextPC := p.pc
	var ifid IFIDRegister
	if !p.halted {
		fetched, err := p.fetchStage.Fetch(p.pc)
		if err != nil {
			return p.fault(StageFetch, p.pc, cycle, err)
		}
		ifid = fetched
		nextPC = fetched.NextPC
		stats.Fetched++
		if p.tracing {
			p.trace(StageFetch, cycle, fetched.PC).
				WithField("word", fmt.Sprintf("0x%08X", fetched.InstructionWord)).
				Trace("fetched")
		}
	}

	// Decode
	var idex IDEXRegister
	if p.ifid.Valid {
		decoded, err := p.decodeStage.Decode(&p.ifid)
		if err != nil {
			return p.fault(StageDecode, p.ifid.PC, cycle, err)
		}
		idex = decoded
		if p.tracing {
			p.trace(StageDecode, cycle, decoded.PC).
				WithField("inst", decoded.Inst.String()).
				Trace("decoded")
		}
	}

	// Execute
	exmem := p.executeStage.Execute(&p.idex)
	if p.idex.Valid && !exmem.Valid {
		// no-op ends here
		retired++
	}
	if exmem.Valid && p.tracing {
		p.trace(StageExecute, cycle, exmem.PC).
			WithField("result", fmt.Sprintf("0x%08X", exmem.ALUResult)).
			Trace("executed")
	}

	// Memory
	memResult, err := p.memoryStage.Access(&p.exmem)
	if err != nil {
		return p.fault(StageMemory, p.exmem.PC, cycle, err)
	}
	if p.exmem.Valid {
		p.countMemory(&stats, &p.exmem, memResult)
		if !memResult.MEMWB.Valid {
			retired++
		}
	}
	if memResult.Redirect {
		nextPC = memResult.Target
		if p.tracing {
			p.trace(StageMemory, cycle, p.exmem.PC).
				WithField("target", fmt.Sprintf("0x%08X", memResult.Target)).
				Trace("redirect")
		}
	}
	halted := p.halted || memResult.Halt

	// Writeback
	if err := p.writebackStage.Writeback(&p.memwb); err != nil {
		return p.fault(StageWriteback, p.memwb.PC, cycle, err)
	}
	if p.memwb.Valid {
		retired++
		if p.tracing {
			p.trace(StageWriteback, cycle, p.memwb.PC).
				WithField("reg", insts.RegisterName(p.memwb.Dest)).
				WithField("value", fmt.Sprintf("0x%08X", p.memwb.Value)).
				Trace("wrote")
		}
	}

	// Commit
	stats.Retired += retired
	if retired == 0 {
		stats.Bubbles++
	}
	p.profileAccess(&p.exmem)

	p.ifid = ifid
	p.idex = idex
	p.exmem = exmem
	p.memwb = memResult.MEMWB
	p.pc = nextPC
	p.halted = halted
	p.stats = stats

	if !p.debugging {
		return nil
	}
	p.log.WithFields(logrus.Fields{
		"cycle":   cycle,
		"pc":      fmt.Sprintf("0x%08X", nextPC),
		"retired": stats.Retired,
		"halted":  halted,
	}).Debug("tick")

	return nil
}

func (p *Pipeline) countMemory(stats *Statistics, exmem *EXMEMRegister, r MemoryResult) {
	switch {
	case exmem.MemRead:
		stats.Loads++
	case exmem.MemWrite:
		stats.Stores++
	case exmem.Op == insts.OpBranch && r.Redirect:
		stats.BranchesTaken++
	case exmem.Op == insts.OpJump, exmem.Op == insts.OpJumpRegister:
		stats.Jumps++
	}
}

// profileAccess replays the committed memory access of exmem through the
// data cache model.
func (p *Pipeline) profileAccess(exmem *EXMEMRegister) {
	if p.dcache == nil || !exmem.Valid {
		return
	}
	switch {
	case exmem.MemRead:
		p.dcache.Read(exmem.ALUResult, exmem.Op.AccessSize())
	case exmem.MemWrite:
		p.dcache.Write(exmem.ALUResult, exmem.Op.AccessSize())
	}
}

func (p *Pipeline) fault(stage Stage, pc uint32, cycle uint64, err error) error {
	p.log.WithFields(logrus.Fields{
		"cycle": cycle,
		"stage": stage,
		"pc":    fmt.Sprintf("0x%08X", pc),
	}).WithError(err).Debug("stage fault")

	return &StageError{Stage: stage, PC: pc, Cycle: cycle, Err: err}
}

func (p *Pipeline) trace(stage Stage, cycle uint64, pc uint32) *logrus.Entry {
	return p.log.WithFields(logrus.Fields{
		"cycle": cycle,
		"stage": stage,
		"pc":    fmt.Sprintf("0x%08X", pc),
	})
}

// levelEnabled reports whether log would emit at level. Loggers other than
// logrus' own types are assumed to want everything.
func levelEnabled(log logrus.FieldLogger, level logrus.Level) bool {
	switch l := log.(type) {
	case *logrus.Logger:
		return l.IsLevelEnabled(level)
	case *logrus.Entry:
		return l.Logger.IsLevelEnabled(level)
	}
	return true
}
