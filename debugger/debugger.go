// Package debugger provides the interactive command loop over a debug core.
//
// Commands:
//
//	step [n]        advance n cycles (default 1)
//	run             run until halt or breakpoint
//	continue        step off the current breakpoint, then run
//	addbp <hex>     add a breakpoint
//	rmbp <hex>      remove a breakpoint
//	bps             list breakpoints
//	dump            print all registers
//	pipe            print the pipeline latches
//	mem <hex> [n]   print n bytes of the data store (default 16)
//	stats           print pipeline statistics
//	graph <file>    write the pipeline state as a graphviz file
//	reset           rewind to the entry point
//	help            list commands
//	quit            leave the loop
package debugger

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/bradleyjkemp/memviz"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/r32sim/insts"
	"github.com/sarchlab/r32sim/loader"
	"github.com/sarchlab/r32sim/timing/core"
	"github.com/sarchlab/r32sim/timing/pipeline"
)

// Prompt is printed before each command when prompting is enabled.
const Prompt = "(r32) "

// ErrUnknownCommand is returned for a command the dispatcher does not know.
var ErrUnknownCommand = errors.New("unknown command")

// Option configures a Debugger.
type Option func(*Debugger)

// WithPrompt enables or disables the prompt.
func WithPrompt(enabled bool) Option {
	return func(d *Debugger) {
		d.prompt = enabled
	}
}

// WithLogger sets the logger used to report command failures.
func WithLogger(log logrus.FieldLogger) Option {
	return func(d *Debugger) {
		d.log = log
	}
}

// Debugger dispatches text commands to a core.
type Debugger struct {
	core   *core.Core
	in     io.Reader
	out    io.Writer
	prompt bool
	log    logrus.FieldLogger

	commands map[string]command
}

type command struct {
	usage string
	run   func(args []string) error
}

// New creates a Debugger reading commands from in and writing to out.
func New(c *core.Core, in io.Reader, out io.Writer, opts ...Option) *Debugger {
	d := &Debugger{
		core: c,
		in:   in,
		out:  out,
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.log == nil {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		d.log = logger
	}

	d.commands = map[string]command{
		"step":     {"step [n]", d.step},
		"run":      {"run", d.run},
		"continue": {"continue", d.cont},
		"addbp":    {"addbp <hex-addr>", d.addBreakpoint},
		"rmbp":     {"rmbp <hex-addr>", d.removeBreakpoint},
		"bps":      {"bps", d.listBreakpoints},
		"dump":     {"dump", d.dump},
		"pipe":     {"pipe", d.pipe},
		"mem":      {"mem <hex-addr> [n]", d.mem},
		"stats":    {"stats", d.stats},
		"graph":    {"graph <file>", d.graph},
		"reset":    {"reset", d.reset},
		"help":     {"help", d.help},
	}

	return d
}

// Loop reads and executes commands until quit or end of input. Command
// failures, including pipeline faults, are reported and the loop goes on.
func (d *Debugger) Loop() error {
	scanner := bufio.NewScanner(d.in)
	for {
		if d.prompt {
			fmt.Fprint(d.out, Prompt)
		}
		if !scanner.Scan() {
			return scanner.Err()
		}

		quit, err := d.Execute(scanner.Text())
		if err != nil {
			d.log.WithError(err).Debug("command failed")
			fmt.Fprintf(d.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// Execute runs one command line. It reports whether the line asked to quit.
func (d *Debugger) Execute(line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	name := strings.ToLower(fields[0])
	switch name {
	case "quit", "exit", "q":
		return true, nil
	case "s":
		name = "step"
	case "c":
		name = "continue"
	}

	cmd, ok := d.commands[name]
	if !ok {
		return false, fmt.Errorf("%w %q (try help)", ErrUnknownCommand, fields[0])
	}
	return false, cmd.run(fields[1:])
}

func (d *Debugger) step(args []string) error {
	n := uint64(1)
	if len(args) > 0 {
		v, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil || v == 0 {
			return fmt.Errorf("invalid step count %q", args[0])
		}
		n = v
	}

	for i := uint64(0); i < n; i++ {
		if err := d.core.Step(); err != nil {
			return err
		}
	}

	d.status()
	return nil
}

func (d *Debugger) run(_ []string) error {
	err := d.core.RunUntilHaltOrBreakpoint()
	d.status()
	return err
}

func (d *Debugger) cont(_ []string) error {
	err := d.core.Continue()
	d.status()
	return err
}

func (d *Debugger) addBreakpoint(args []string) error {
	addr, err := addressArg(args)
	if err != nil {
		return err
	}
	d.core.AddBreakpoint(addr)
	return nil
}

func (d *Debugger) removeBreakpoint(args []string) error {
	addr, err := addressArg(args)
	if err != nil {
		return err
	}
	d.core.RemoveBreakpoint(addr)
	return nil
}

func (d *Debugger) listBreakpoints(_ []string) error {
	bps := d.core.Breakpoints()
	if len(bps) == 0 {
		fmt.Fprintln(d.out, "no breakpoints")
		return nil
	}
	for _, addr := range bps {
		fmt.Fprintf(d.out, "0x%08X\n", addr)
	}
	return nil
}

func (d *Debugger) dump(_ []string) error {
	regs := d.core.Pipeline.RegFile().Snapshot()
	for i, v := range regs {
		fmt.Fprintf(d.out, "%-4s 0x%08X %d\n", insts.RegisterName(uint8(i)), v, v)
	}
	return nil
}

func (d *Debugger) pipe(_ []string) error {
	p := d.core.Pipeline

	fmt.Fprintf(d.out, "pc    0x%08X\n", p.PC())

	if ifid := p.GetIFID(); ifid.Valid {
		fmt.Fprintf(d.out, "IF/ID  0x%08X  %s\n", ifid.PC, insts.Disassemble(ifid.InstructionWord))
	} else {
		fmt.Fprintln(d.out, "IF/ID  -")
	}

	if idex := p.GetIDEX(); idex.Valid {
		fmt.Fprintf(d.out, "ID/EX  0x%08X  %s  rs=0x%08X rt=0x%08X\n",
			idex.PC, idex.Inst, idex.RsValue, idex.RtValue)
	} else {
		fmt.Fprintln(d.out, "ID/EX  -")
	}

	if exmem := p.GetEXMEM(); exmem.Valid {
		fmt.Fprintf(d.out, "EX/MEM 0x%08X  %s  result=0x%08X\n", exmem.PC, exmem.Op, exmem.ALUResult)
	} else {
		fmt.Fprintln(d.out, "EX/MEM -")
	}

	if memwb := p.GetMEMWB(); memwb.Valid {
		fmt.Fprintf(d.out, "MEM/WB 0x%08X  %s <- 0x%08X\n",
			memwb.PC, insts.RegisterName(memwb.Dest), memwb.Value)
	} else {
		fmt.Fprintln(d.out, "MEM/WB -")
	}

	return nil
}

func (d *Debugger) mem(args []string) error {
	addr, err := addressArg(args)
	if err != nil {
		return err
	}

	n := uint64(16)
	if len(args) > 1 {
		n, err = strconv.ParseUint(args[1], 0, 32)
		if err != nil {
			return fmt.Errorf("invalid byte count %q", args[1])
		}
	}

	data := d.core.Pipeline.Data().Bytes()
	if uint64(addr) >= uint64(len(data)) {
		return fmt.Errorf("address 0x%08X is outside the data store (size 0x%X)", addr, len(data))
	}
	end := uint64(addr) + n
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}

	return loader.FormatMemory(d.out, addr, data[addr:end])
}

func (d *Debugger) stats(_ []string) error {
	stats := d.core.Pipeline.Stats()
	fmt.Fprintf(d.out, "cycles          %d\n", stats.Cycles)
	fmt.Fprintf(d.out, "fetched         %d\n", stats.Fetched)
	fmt.Fprintf(d.out, "retired         %d\n", stats.Retired)
	fmt.Fprintf(d.out, "bubbles         %d\n", stats.Bubbles)
	fmt.Fprintf(d.out, "loads           %d\n", stats.Loads)
	fmt.Fprintf(d.out, "stores          %d\n", stats.Stores)
	fmt.Fprintf(d.out, "branches taken  %d\n", stats.BranchesTaken)
	fmt.Fprintf(d.out, "jumps           %d\n", stats.Jumps)
	fmt.Fprintf(d.out, "cpi             %.3f\n", stats.CPI())

	if dc, ok := d.core.Pipeline.DCacheStats(); ok {
		fmt.Fprintf(d.out, "dcache          %d hits, %d misses (%.1f%%)\n",
			dc.Hits, dc.Misses, dc.HitRate()*100)
	}
	return nil
}

// snapshot is the object graph written by the graph command.
type snapshot struct {
	PC        uint32
	Halted    bool
	IFID      *pipeline.IFIDRegister
	IDEX      *pipeline.IDEXRegister
	EXMEM     *pipeline.EXMEMRegister
	MEMWB     *pipeline.MEMWBRegister
	Registers [insts.NumRegisters]uint32
	Stats     pipeline.Statistics
}

func (d *Debugger) graph(args []string) (err error) {
	if len(args) != 1 {
		return errors.New("usage: graph <file>")
	}

	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("failed to create graph file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	p := d.core.Pipeline
	memviz.Map(f, &snapshot{
		PC:        p.PC(),
		Halted:    p.Halted(),
		IFID:      p.GetIFID(),
		IDEX:      p.GetIDEX(),
		EXMEM:     p.GetEXMEM(),
		MEMWB:     p.GetMEMWB(),
		Registers: p.RegFile().Snapshot(),
		Stats:     p.Stats(),
	})

	fmt.Fprintf(d.out, "wrote %s\n", args[0])
	return nil
}

func (d *Debugger) reset(_ []string) error {
	d.core.Reset()
	d.status()
	return nil
}

func (d *Debugger) help(_ []string) error {
	for _, name := range []string{
		"step", "run", "continue", "addbp", "rmbp", "bps", "dump",
		"pipe", "mem", "stats", "graph", "reset", "help",
	} {
		fmt.Fprintf(d.out, "  %s\n", d.commands[name].usage)
	}
	fmt.Fprintln(d.out, "  quit")
	return nil
}

// status prints where the core stopped.
func (d *Debugger) status() {
	p := d.core.Pipeline
	switch {
	case p.Halted():
		fmt.Fprintf(d.out, "halted at cycle %d\n", p.Stats().Cycles)
	case d.core.AtBreakpoint():
		fmt.Fprintf(d.out, "breakpoint at 0x%08X (cycle %d)\n", p.GetIFID().PC, p.Stats().Cycles)
	default:
		fmt.Fprintf(d.out, "cycle %d, pc 0x%08X\n", p.Stats().Cycles, p.PC())
	}
}

func addressArg(args []string) (uint32, error) {
	if len(args) == 0 {
		return 0, errors.New("missing address")
	}
	s := strings.TrimPrefix(strings.ToLower(args[0]), "0x")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid hex address %q", args[0])
	}
	return uint32(v), nil
}
