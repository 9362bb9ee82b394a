// Measures decode throughput and allocation rate of the R32 decode stage.
package main

import (
	"fmt"
	"runtime"
	"time"

	"github.com/sarchlab/r32sim/emu"
	"github.com/sarchlab/r32sim/insts"
	"github.com/sarchlab/r32sim/timing/pipeline"
)

func main() {
	regFile := emu.NewRegFile()
	decodeStage := pipeline.NewDecodeStage(regFile)

	latches := []pipeline.IFIDRegister{
		{Valid: true, PC: 0x0, NextPC: 0x4, InstructionWord: insts.EncodeALU(insts.FuncAdd, 3, 1, 2)},
		{Valid: true, PC: 0x4, NextPC: 0x8, InstructionWord: insts.EncodeSetLow(4, 42)},
		{Valid: true, PC: 0x8, NextPC: 0xC, InstructionWord: insts.EncodeLoad(insts.OpLoad, 5, 6, 8)},
		{Valid: true, PC: 0xC, NextPC: 0x10, InstructionWord: insts.EncodeBranch(5, -16)},
	}

	// Warm up
	for i := 0; i < 1000; i++ {
		_, _ = decodeStage.Decode(&latches[0])
	}

	runtime.GC()
	var m1, m2 runtime.MemStats
	runtime.ReadMemStats(&m1)

	start := time.Now()
	iterations := 100000

	for i := 0; i < iterations; i++ {
		for j := range latches {
			if _, err := decodeStage.Decode(&latches[j]); err != nil {
				fmt.Printf("decode failed at 0x%08X: %v\n", latches[j].PC, err)
				return
			}
		}
	}

	elapsed := time.Since(start)
	runtime.ReadMemStats(&m2)

	totalDecodes := iterations * len(latches)
	allocations := m2.Mallocs - m1.Mallocs
	allocatedBytes := m2.TotalAlloc - m1.TotalAlloc

	fmt.Printf("Decode Stage Validation Results:\n")
	fmt.Printf("================================\n")
	fmt.Printf("Total decode operations: %d\n", totalDecodes)
	fmt.Printf("Time elapsed: %v\n", elapsed)
	fmt.Printf("Decodes per second: %.0f\n", float64(totalDecodes)/elapsed.Seconds())
	fmt.Printf("Allocations: %d\n", allocations)
	fmt.Printf("Allocated bytes: %d\n", allocatedBytes)
	fmt.Printf("Allocations per decode: %.3f\n", float64(allocations)/float64(totalDecodes))
	fmt.Printf("Bytes per decode: %.1f\n", float64(allocatedBytes)/float64(totalDecodes))
}
