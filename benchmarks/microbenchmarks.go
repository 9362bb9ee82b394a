package benchmarks

import (
	"fmt"

	"github.com/sarchlab/r32sim/emu"
	"github.com/sarchlab/r32sim/insts"
)

// GetMicrobenchmarks returns the standard set of microbenchmarks. Programs
// carry their own fillers: three instructions between a producer and its
// consumer, and three delay slots after every branch or jump.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		independentALU(),
		fibonacci(),
		memoryCopy(),
		branchLoop(),
	}
}

// GetCoreBenchmarks returns the loop-based subset for quick validation.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		fibonacci(),
		memoryCopy(),
		branchLoop(),
	}
}

func expectReg(regs *emu.RegFile, id uint8, want uint32) error {
	if got := regs.ReadReg(id); got != want {
		return fmt.Errorf("%s = %d, want %d", insts.RegisterName(id), got, want)
	}
	return nil
}

// 1. Independent ALU - no operand dependencies, so CPI approaches one
func independentALU() Benchmark {
	return Benchmark{
		Name:        "independent_alu",
		Description: "12 independent set-low operations - measures peak throughput",
		DataSize:    64,
		Source: `
	slo $2, 2
	slo $3, 3
	slo $4, 4
	slo $5, 5
	slo $6, 6
	slo $7, 7
	slo $8, 8
	slo $9, 9
	slo $10, 10
	slo $11, 11
	slo $12, 12
	slo $13, 13
	halt
`,
		Verify: func(regs *emu.RegFile, _ *emu.Memory) error {
			for id := uint8(2); id <= 13; id++ {
				if err := expectReg(regs, id, uint32(id)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// 2. Fibonacci - loop-carried dependencies through $one
func fibonacci() Benchmark {
	return Benchmark{
		Name:        "fibonacci",
		Description: "fib(10) in a counted loop, result stored to data[0]",
		Profile:     emu.ProfileExtended,
		DataSize:    256,
		Source: `
	slo $2, 0          # a
	slo $3, 1          # b
	slo $5, 10         # n
	nop
	nop
	nop
loop:
	add $4, $2, $3     # t = a + b
	sub $5, $5, $one
	add $2, $3, $z     # a = b
	nop
	add $3, $4, $z     # b = t
	br $5, loop
	nop
	nop
	nop
	str 0($z), $2
	halt
`,
		Verify: func(regs *emu.RegFile, data *emu.Memory) error {
			if err := expectReg(regs, 2, 55); err != nil {
				return err
			}
			if err := expectReg(regs, 3, 89); err != nil {
				return err
			}
			v, err := data.Read32(0)
			if err != nil {
				return err
			}
			if v != 55 {
				return fmt.Errorf("data[0] = %d, want 55", v)
			}
			return nil
		},
	}
}

const copyWords = 8

// 3. Memory copy - word loads and stores through a loop
func memoryCopy() Benchmark {
	return Benchmark{
		Name:        "memory_copy",
		Description: "copies 8 words from data[0] to data[64]",
		DataSize:    128,
		Setup: func(data *emu.Memory) error {
			for i := uint32(0); i < copyWords; i++ {
				if err := data.Write32(i*4, 0xA0000000|i); err != nil {
					return err
				}
			}
			return nil
		},
		Source: `
	slo $2, 0          # src
	slo $3, 64         # dst
	slo $4, 8          # count
	slo $6, 4          # stride
	slo $7, 1
	nop
	nop
	nop
loop:
	ld $5, 0($2)
	add $2, $2, $6
	sub $4, $4, $7
	nop
	str 0($3), $5
	add $3, $3, $6
	br $4, loop
	nop
	nop
	nop
	halt
`,
		Verify: func(regs *emu.RegFile, data *emu.Memory) error {
			for i := uint32(0); i < copyWords; i++ {
				v, err := data.Read32(64 + i*4)
				if err != nil {
					return err
				}
				if v != 0xA0000000|i {
					return fmt.Errorf("data[%d] = 0x%08X, want 0x%08X", 64+i*4, v, 0xA0000000|i)
				}
			}
			return expectReg(regs, 4, 0)
		},
	}
}

// 4. Branch loop - a tight countdown with work in the delay slot
func branchLoop() Benchmark {
	return Benchmark{
		Name:        "branch_loop",
		Description: "100-iteration countdown, accumulating in a delay slot",
		DataSize:    64,
		Source: `
	slo $2, 100        # counter
	slo $3, 1
	slo $4, 0          # sum
	nop
	nop
	nop
loop:
	sub $2, $2, $3
	nop
	nop
	nop
	br $2, loop
	add $4, $4, $3     # delay slot, runs every iteration
	nop
	nop
	halt
`,
		Verify: func(regs *emu.RegFile, _ *emu.Memory) error {
			if err := expectReg(regs, 2, 0); err != nil {
				return err
			}
			return expectReg(regs, 4, 100)
		},
	}
}
