// Validate a synthesised decoder - probes every instruction and measures
// lookup throughput and allocations.
package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/sarchlab/armspecgen/benchmarks"
	"github.com/sarchlab/armspecgen/decoder"
)

func main() {
	var w benchmarks.Workload
	for _, candidate := range benchmarks.GetWorkloads() {
		if candidate.Name == "mixed" {
			w = candidate
		}
	}

	tree, err := decoder.Synthesize(w.Instructions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := tree.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	mismatches := benchmarks.Probe(tree)

	opcodes := make([]uint32, 0, 2*len(w.Instructions))
	for _, inst := range w.Instructions {
		opcodes = append(opcodes, inst.FixedValue(), inst.FixedValue()|^inst.FixedMask())
	}

	// Warm up
	for i := 0; i < 1000; i++ {
		tree.Lookup(opcodes[i%len(opcodes)])
	}

	runtime.GC()
	var m1, m2 runtime.MemStats
	runtime.ReadMemStats(&m1)

	start := time.Now()
	iterations := 100000
	for i := 0; i < iterations; i++ {
		for _, op := range opcodes {
			tree.Lookup(op)
		}
	}

	elapsed := time.Since(start)
	runtime.ReadMemStats(&m2)

	totalLookups := iterations * len(opcodes)
	allocations := m2.Mallocs - m1.Mallocs
	allocatedBytes := m2.TotalAlloc - m1.TotalAlloc

	fmt.Printf("Decoder Validation Results:\n")
	fmt.Printf("===========================\n")
	fmt.Printf("Instructions: %d\n", len(w.Instructions))
	fmt.Printf("Probe mismatches: %d\n", mismatches)
	fmt.Printf("Total lookups: %d\n", totalLookups)
	fmt.Printf("Time elapsed: %v\n", elapsed)
	fmt.Printf("Lookups per second: %.0f\n", float64(totalLookups)/elapsed.Seconds())
	fmt.Printf("Allocations: %d\n", allocations)
	fmt.Printf("Allocated bytes: %d\n", allocatedBytes)
	fmt.Printf("Allocations per lookup: %.3f\n", float64(allocations)/float64(totalLookups))

	if mismatches > 0 {
		fmt.Printf("\nFAIL: %d probe opcodes decode wrongly\n", mismatches)
		os.Exit(1)
	}
	if allocations == 0 {
		fmt.Printf("\nSUCCESS: Zero allocations detected.\n")
	} else {
		fmt.Printf("\nWARNING: Lookup allocates\n")
	}
}
