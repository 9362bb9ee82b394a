// Package main provides the entry point for r32sim.
// r32sim is a cycle-level simulator for the R32 instruction set.
//
// For the full CLI, use: go run ./cmd/r32sim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("r32sim - R32 Pipeline Simulator")
	fmt.Println("")
	fmt.Println("Usage: r32sim [options] <program.img>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  go run ./cmd/r32sim     Run or debug a program image")
	fmt.Println("  go run ./cmd/r32asm     Assemble source into a program image")
	fmt.Println("  go run ./cmd/benchmark  Run the timing benchmarks")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/r32sim' instead.")
	}
}
