// Command r32sim runs an R32 program image on the five-stage pipeline.
//
// Usage:
//
//	r32sim [flags] <program.img>
//
// Without -debug the program runs to halt and the final statistics are
// printed. With -debug an interactive debugger reads commands from stdin,
// or from -script when given.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/pprof"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/r32sim/config"
	"github.com/sarchlab/r32sim/debugger"
	"github.com/sarchlab/r32sim/emu"
	"github.com/sarchlab/r32sim/loader"
	"github.com/sarchlab/r32sim/timing/cache"
	"github.com/sarchlab/r32sim/timing/core"
	"github.com/sarchlab/r32sim/timing/pipeline"
)

// Exit codes.
const (
	exitOK    = 0
	exitFault = 1
	exitUsage = 2
)

type options struct {
	configPath string
	dataSize   uint
	entry      uint
	profile    string
	maxCycles  uint64
	dcache     bool

	verbose     bool
	veryVerbose bool

	debug      bool
	script     string
	regsDump   string
	memDump    string
	cpuProfile string
	statsview  bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("r32sim", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.configPath, "config", "", "Path to simulator configuration JSON file")
	fs.UintVar(&opts.dataSize, "data-size", 256, "Data store size in bytes")
	fs.UintVar(&opts.entry, "entry", 0, "Entry point address")
	fs.StringVar(&opts.profile, "profile", string(emu.ProfileBaseline), "Register profile (baseline or extended)")
	fs.Uint64Var(&opts.maxCycles, "max-cycles", 0, "Stop after this many cycles (0 = unlimited)")
	fs.BoolVar(&opts.dcache, "dcache", false, "Profile data accesses with the default data cache")
	fs.BoolVar(&opts.verbose, "v", false, "Verbose output")
	fs.BoolVar(&opts.veryVerbose, "vv", false, "Trace every pipeline stage")
	fs.BoolVar(&opts.debug, "debug", false, "Start the interactive debugger")
	fs.StringVar(&opts.script, "script", "", "Read debugger commands from this file")
	fs.StringVar(&opts.regsDump, "regs", "", "Write final register values to this file")
	fs.StringVar(&opts.memDump, "mem", "", "Write final data store contents to this file")
	fs.StringVar(&opts.cpuProfile, "cpuprofile", "", "Write a CPU profile to this file")
	fs.BoolVar(&opts.statsview, "statsview", false, "Serve runtime statistics at "+statsviewURL)

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: r32sim [options] <program.img>\n")
		fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}

	log := newLogger(stderr, opts)

	cfg, err := buildConfig(fs, opts)
	if err != nil {
		log.WithError(err).Error("invalid configuration")
		return exitUsage
	}

	if opts.cpuProfile != "" {
		f, err := os.Create(opts.cpuProfile)
		if err != nil {
			log.WithError(err).Error("failed to create CPU profile")
			return exitUsage
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			log.WithError(err).Error("failed to start CPU profile")
			return exitUsage
		}
		defer pprof.StopCPUProfile()
	}

	if opts.statsview {
		launchStatsview(log)
	}

	c, err := buildCore(fs.Arg(0), cfg, log)
	if err != nil {
		log.WithError(err).Error("failed to load program")
		return exitUsage
	}

	if opts.debug {
		err = runDebugger(c, opts, stdin, stdout, log)
	} else {
		err = runToHalt(c, stdout, log)
	}

	if dumpErr := writeDumps(c.Pipeline, opts); dumpErr != nil {
		log.WithError(dumpErr).Error("failed to write dump")
		if err == nil {
			return exitFault
		}
	}

	if err != nil {
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) {
			log.WithFields(logrus.Fields{
				"stage": stageErr.Stage,
				"pc":    fmt.Sprintf("0x%08X", stageErr.PC),
				"cycle": stageErr.Cycle,
			}).Error(stageErr.Err)
		} else {
			log.WithError(err).Error("simulation stopped")
		}
		return exitFault
	}

	return exitOK
}

func newLogger(out io.Writer, opts options) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	switch {
	case opts.veryVerbose:
		log.SetLevel(logrus.TraceLevel)
	case opts.verbose:
		log.SetLevel(logrus.DebugLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
	return log
}

// buildConfig loads the configuration file, if any, and applies the flags
// that were set explicitly on top of it.
func buildConfig(fs *flag.FlagSet, opts options) (*config.SimConfig, error) {
	cfg := config.DefaultSimConfig()
	if opts.configPath != "" {
		loaded, err := config.LoadConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data-size":
			cfg.DataSize = uint32(opts.dataSize)
		case "entry":
			cfg.Entry = uint32(opts.entry)
		case "profile":
			cfg.RegisterProfile = emu.RegisterProfile(opts.profile)
		case "max-cycles":
			cfg.MaxCycles = opts.maxCycles
		case "dcache":
			if opts.dcache && cfg.DCache == nil {
				dc := cache.DefaultConfig()
				cfg.DCache = &dc
			} else if !opts.dcache {
				cfg.DCache = nil
			}
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildCore(path string, cfg *config.SimConfig, log logrus.FieldLogger) (*core.Core, error) {
	prog, err := loader.Load(path)
	if err != nil {
		return nil, err
	}

	program, err := prog.NewProgramStore(cfg.ProgramSize)
	if err != nil {
		return nil, err
	}
	data := emu.NewMemory(emu.DataStore, cfg.DataSize)

	regOpts, err := cfg.RegFileOptions()
	if err != nil {
		return nil, err
	}

	pipeOpts := []pipeline.PipelineOption{pipeline.WithLogger(log)}
	if cfg.DCache != nil {
		pipeOpts = append(pipeOpts, pipeline.WithDCache(*cfg.DCache))
	}

	pipe, err := pipeline.New(program, data, emu.NewRegFile(regOpts...), cfg.Entry, pipeOpts...)
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"path":    path,
		"words":   len(prog.Words),
		"entry":   fmt.Sprintf("0x%08X", cfg.Entry),
		"profile": cfg.RegisterProfile,
	}).Debug("program loaded")

	return core.NewCore(pipe, core.WithMaxCycles(cfg.MaxCycles), core.WithLogger(log)), nil
}

func runToHalt(c *core.Core, stdout io.Writer, log logrus.FieldLogger) error {
	err := c.RunUntilHaltOrBreakpoint()

	stats := c.Pipeline.Stats()
	log.WithFields(logrus.Fields{
		"cycles":  stats.Cycles,
		"retired": stats.Retired,
		"halted":  c.Halted(),
	}).Debug("run finished")

	fmt.Fprintf(stdout, "cycles: %d\n", stats.Cycles)
	fmt.Fprintf(stdout, "instructions: %d\n", stats.Retired)
	fmt.Fprintf(stdout, "bubbles: %d\n", stats.Bubbles)
	fmt.Fprintf(stdout, "cpi: %.3f\n", stats.CPI())
	if dc, ok := c.Pipeline.DCacheStats(); ok {
		fmt.Fprintf(stdout, "dcache: %d hits, %d misses\n", dc.Hits, dc.Misses)
	}

	return err
}

func runDebugger(c *core.Core, opts options, stdin io.Reader, stdout io.Writer, log logrus.FieldLogger) error {
	in := stdin
	prompt := false
	if opts.script != "" {
		f, err := os.Open(opts.script)
		if err != nil {
			return fmt.Errorf("failed to open script: %w", err)
		}
		defer func() { _ = f.Close() }()
		in = f
	} else if f, ok := stdin.(*os.File); ok {
		prompt = debugger.IsTerminal(f)
	}

	dbg := debugger.New(c, in, stdout, debugger.WithPrompt(prompt), debugger.WithLogger(log))
	return dbg.Loop()
}

func writeDumps(p *pipeline.Pipeline, opts options) error {
	if opts.regsDump != "" {
		regs := p.RegFile().Snapshot()
		err := loader.DumpToFile(opts.regsDump, func(w io.Writer) error {
			return loader.WriteRegisters(w, regs[:])
		})
		if err != nil {
			return err
		}
	}

	if opts.memDump != "" {
		err := loader.DumpToFile(opts.memDump, func(w io.Writer) error {
			return loader.WriteMemory(w, p.Data().Bytes())
		})
		if err != nil {
			return err
		}
	}

	return nil
}
