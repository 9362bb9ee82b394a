// Command benchmark runs the R32 timing benchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv     Output results in CSV format (default: human-readable)
//	-json    Output results as JSON
//	-dcache  Profile data accesses with the default data cache
//	-core    Run only the loop-based core benchmarks
//
// Example:
//
//	# Output CSV for spreadsheet comparison
//	go run ./cmd/benchmark -csv > results.csv
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/r32sim/benchmarks"
	"github.com/sarchlab/r32sim/timing/cache"
)

func main() {
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results as JSON")
	dcache := flag.Bool("dcache", false, "Profile data accesses with the default data cache")
	coreOnly := flag.Bool("core", false, "Run only the loop-based core benchmarks")
	flag.Parse()

	config := benchmarks.DefaultConfig()
	config.Output = os.Stdout
	if *dcache {
		dc := cache.DefaultConfig()
		config.DCache = &dc
	}

	harness := benchmarks.NewHarness(config)
	if *coreOnly {
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
	} else {
		harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
	}

	results := harness.RunAll()

	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing JSON: %v\n", err)
			os.Exit(1)
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		fmt.Println("R32 Timing Benchmark Harness")
		fmt.Println("============================")
		fmt.Printf("D-Cache: %v\n", *dcache)
		fmt.Println("")
		harness.PrintResults(results)
	}

	for _, r := range results {
		if !r.Verified {
			os.Exit(1)
		}
	}
}
