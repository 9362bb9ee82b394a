// Package benchmarks provides the timing benchmark harness and a small set of
// R32 workloads used to compare pipeline cycle counts.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/r32sim/asm"
	"github.com/sarchlab/r32sim/emu"
	"github.com/sarchlab/r32sim/insts"
	"github.com/sarchlab/r32sim/timing/cache"
	"github.com/sarchlab/r32sim/timing/core"
	"github.com/sarchlab/r32sim/timing/pipeline"
)

// tailPadding is the number of no-ops appended after every program so the
// words fetched behind halt are always in bounds.
const tailPadding = 8

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// SimulatedCycles is the total cycle count from the timing simulator
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// InstructionsRetired is the number of completed instructions
	InstructionsRetired uint64 `json:"instructions_retired"`

	// CPI is cycles per instruction
	CPI float64 `json:"cpi"`

	// Bubbles counts cycles in which nothing retired
	Bubbles uint64 `json:"bubbles"`

	Loads         uint64 `json:"loads"`
	Stores        uint64 `json:"stores"`
	BranchesTaken uint64 `json:"branches_taken"`
	Jumps         uint64 `json:"jumps"`

	// DCacheHits/Misses (if cache enabled)
	DCacheHits   uint64 `json:"dcache_hits,omitempty"`
	DCacheMisses uint64 `json:"dcache_misses,omitempty"`

	// Verified is true when the run halted and the final state matched.
	Verified bool `json:"verified"`

	// Error describes why the run or its verification failed.
	Error string `json:"error,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Source is the program in assembler syntax.
	Source string

	// Profile selects the reserved-register configuration.
	Profile emu.RegisterProfile

	// DataSize is the data store size in bytes.
	DataSize uint32

	// Setup prepares the data store before the run.
	Setup func(data *emu.Memory) error

	// Verify checks the final architectural state.
	Verify func(regs *emu.RegFile, data *emu.Memory) error
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// DCache attaches a data-cache profiler when non-nil.
	DCache *cache.Config

	// MaxCycles bounds every run; 0 means unbounded.
	MaxCycles uint64

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Logger receives pipeline trace output.
	Logger logrus.FieldLogger
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		MaxCycles: 1_000_000,
		Output:    os.Stdout,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		results = append(results, h.runBenchmark(bench))
	}

	return results
}

// runBenchmark executes a single benchmark on a fresh pipeline.
func (h *Harness) runBenchmark(bench Benchmark) BenchmarkResult {
	result := BenchmarkResult{
		Name:        bench.Name,
		Description: bench.Description,
	}

	c, err := h.build(bench)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	start := time.Now()
	err = c.RunUntilHaltOrBreakpoint()
	result.WallTime = time.Since(start)

	pipe := c.Pipeline
	stats := pipe.Stats()
	result.SimulatedCycles = stats.Cycles
	result.InstructionsRetired = stats.Retired
	result.CPI = stats.CPI()
	result.Bubbles = stats.Bubbles
	result.Loads = stats.Loads
	result.Stores = stats.Stores
	result.BranchesTaken = stats.BranchesTaken
	result.Jumps = stats.Jumps

	if dc, ok := pipe.DCacheStats(); ok {
		result.DCacheHits = dc.Hits
		result.DCacheMisses = dc.Misses
	}

	switch {
	case err != nil:
		result.Error = err.Error()
	case !pipe.Halted():
		result.Error = "did not halt"
	case bench.Verify != nil:
		if err := bench.Verify(pipe.RegFile(), pipe.Data()); err != nil {
			result.Error = err.Error()
		} else {
			result.Verified = true
		}
	default:
		result.Verified = true
	}

	return result
}

func (h *Harness) build(bench Benchmark) (*core.Core, error) {
	words, err := asm.AssembleString(bench.Source)
	if err != nil {
		return nil, fmt.Errorf("assemble %s: %w", bench.Name, err)
	}
	for i := 0; i < tailPadding; i++ {
		words = append(words, insts.EncodeNoOp())
	}

	program := emu.NewMemoryFromWords(emu.ProgramStore, words, 0)
	data := emu.NewMemory(emu.DataStore, bench.DataSize)
	if bench.Setup != nil {
		if err := bench.Setup(data); err != nil {
			return nil, fmt.Errorf("setup %s: %w", bench.Name, err)
		}
	}

	regOpts, err := bench.Profile.Options(bench.DataSize)
	if err != nil {
		return nil, err
	}

	var opts []pipeline.PipelineOption
	if h.config.DCache != nil {
		opts = append(opts, pipeline.WithDCache(*h.config.DCache))
	}
	if h.config.Logger != nil {
		opts = append(opts, pipeline.WithLogger(h.config.Logger))
	}

	pipe, err := pipeline.New(program, data, emu.NewRegFile(regOpts...), 0, opts...)
	if err != nil {
		return nil, err
	}

	return core.NewCore(pipe, core.WithMaxCycles(h.config.MaxCycles)), nil
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== R32 Timing Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		if r.Error != "" {
			_, _ = fmt.Fprintf(h.config.Output, "  Error: %s\n", r.Error)
		}
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(h.config.Output, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(h.config.Output, "  Bubbles:              %d\n", r.Bubbles)
		_, _ = fmt.Fprintf(h.config.Output, "  Loads/Stores:         %d/%d\n", r.Loads, r.Stores)
		_, _ = fmt.Fprintf(h.config.Output, "  Branches Taken:       %d\n", r.BranchesTaken)

		if r.DCacheHits > 0 || r.DCacheMisses > 0 {
			_, _ = fmt.Fprintln(h.config.Output, "  --- D-Cache ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Hits:   %d\n", r.DCacheHits)
			_, _ = fmt.Fprintf(h.config.Output, "  Misses: %d\n", r.DCacheMisses)
		}

		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,cycles,instructions,cpi,bubbles,loads,stores,branches_taken,dcache_hits,dcache_misses,verified")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%.3f,%d,%d,%d,%d,%d,%d,%t\n",
			r.Name,
			r.SimulatedCycles,
			r.InstructionsRetired,
			r.CPI,
			r.Bubbles,
			r.Loads,
			r.Stores,
			r.BranchesTaken,
			r.DCacheHits,
			r.DCacheMisses,
			r.Verified,
		)
	}
}

// PrintJSON outputs benchmark results as an indented JSON array.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	enc := json.NewEncoder(h.config.Output)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
