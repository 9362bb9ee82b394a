// Package core provides the debug controller for the R32 pipeline.
// It wraps the pipeline implementation with breakpoints and run control.
package core

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/sarchlab/r32sim/timing/pipeline"
)

// ErrCycleLimit is returned when a run exceeds the configured cycle budget.
var ErrCycleLimit = errors.New("cycle limit reached")

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Bubbles is the number of cycles in which nothing retired.
	Bubbles uint64
}

// Option configures a Core.
type Option func(*Core)

// WithMaxCycles bounds RunUntilHaltOrBreakpoint and Continue. Zero means
// no limit.
func WithMaxCycles(n uint64) Option {
	return func(c *Core) {
		c.maxCycles = n
	}
}

// WithLogger sets the logger used to report breakpoint and halt events.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Core) {
		c.log = log
	}
}

// Core represents a debuggable R32 core.
// It wraps a 5-stage pipeline and provides a simple interface for simulation.
type Core struct {
	// Pipeline is the underlying 5-stage pipeline.
	Pipeline *pipeline.Pipeline

	breakpoints map[uint32]struct{}
	maxCycles   uint64
	log         logrus.FieldLogger
}

// NewCore creates a new Core around pipe.
func NewCore(pipe *pipeline.Pipeline, opts ...Option) *Core {
	c := &Core{
		Pipeline:    pipe,
		breakpoints: make(map[uint32]struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.log == nil {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		c.log = logger
	}

	return c
}

// AddBreakpoint adds addr to the breakpoint set. Adding an address twice
// has no further effect.
func (c *Core) AddBreakpoint(addr uint32) {
	c.breakpoints[addr] = struct{}{}
}

// RemoveBreakpoint removes addr from the breakpoint set, if present.
func (c *Core) RemoveBreakpoint(addr uint32) {
	delete(c.breakpoints, addr)
}

// HasBreakpoint reports whether addr is in the breakpoint set.
func (c *Core) HasBreakpoint(addr uint32) bool {
	_, ok := c.breakpoints[addr]
	return ok
}

// Breakpoints returns the breakpoint set in ascending address order.
func (c *Core) Breakpoints() []uint32 {
	addrs := make([]uint32, 0, len(c.breakpoints))
	for addr := range c.breakpoints {
		addrs = append(addrs, addr)
	}
	slices.Sort(addrs)
	return addrs
}

// AtBreakpoint reports whether the instruction held in the IF/ID latch was
// fetched from a breakpoint address.
func (c *Core) AtBreakpoint() bool {
	ifid := c.Pipeline.GetIFID()
	return ifid.Valid && c.HasBreakpoint(ifid.PC)
}

// Step executes exactly one pipeline cycle.
func (c *Core) Step() error {
	return c.Pipeline.Tick()
}

// RunUntilHaltOrBreakpoint ticks while the core is neither halted nor at a
// breakpoint. It does nothing if either already holds.
func (c *Core) RunUntilHaltOrBreakpoint() error {
	for !c.Pipeline.Halted() && !c.AtBreakpoint() {
		if c.maxCycles > 0 && c.Pipeline.Stats().Cycles >= c.maxCycles {
			return fmt.Errorf("%w: %d cycles", ErrCycleLimit, c.maxCycles)
		}

		if err := c.Pipeline.Tick(); err != nil {
			return err
		}
	}

	c.reportStop()
	return nil
}

// Continue moves off the current breakpoint with one tick, then runs until
// the next halt or breakpoint.
func (c *Core) Continue() error {
	if c.Pipeline.Halted() {
		return nil
	}

	if err := c.Step(); err != nil {
		return err
	}

	return c.RunUntilHaltOrBreakpoint()
}

func (c *Core) reportStop() {
	entry := c.log.WithField("cycle", c.Pipeline.Stats().Cycles)

	switch {
	case c.Pipeline.Halted():
		entry.Debug("halted")
	case c.AtBreakpoint():
		entry.WithField("pc", fmt.Sprintf("0x%08X", c.Pipeline.GetIFID().PC)).
			Debug("breakpoint hit")
	}
}

// Halted returns true if the core has halted.
func (c *Core) Halted() bool {
	return c.Pipeline.Halted()
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	pipeStats := c.Pipeline.Stats()
	return Stats{
		Cycles:       pipeStats.Cycles,
		Instructions: pipeStats.Retired,
		Bubbles:      pipeStats.Bubbles,
	}
}

// RunCycles executes the core for the specified number of cycles, ignoring
// breakpoints. Returns true if still running, false if halted.
func (c *Core) RunCycles(cycles uint64) (bool, error) {
	return c.Pipeline.RunCycles(cycles)
}

// Reset rewinds the pipeline to its entry point. Breakpoints are kept.
func (c *Core) Reset() {
	c.Pipeline.Reset()
}
