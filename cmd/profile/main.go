// Package main provides a profiling wrapper for the decoder synthesiser.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/sarchlab/armspecgen/benchmarks"
	"github.com/sarchlab/armspecgen/config"
	"github.com/sarchlab/armspecgen/decoder"
	"github.com/sarchlab/armspecgen/insts"
	"github.com/sarchlab/armspecgen/loader"
	"github.com/sarchlab/armspecgen/spec"
)

var (
	specDir    = flag.String("spec-dir", "", "release directory to profile (default: the mixed benchmark workload)")
	configPath = flag.String("config", "", "path to a JSON or YAML tunables file")
	cpuProfile = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile = flag.String("memprofile", "", "write memory profile to file")
	duration   = flag.Duration("duration", 5*time.Minute, "max duration to run (for profiling)")
	iterations = flag.Int("n", 1, "number of synthesis runs")
)

func main() {
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	list, source, err := instructions(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading instructions: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded: %s\n", source)
	fmt.Printf("Instructions: %d\n", len(list))

	// Start CPU profiling if requested
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	// Set timeout
	go func() {
		time.Sleep(*duration)
		fmt.Printf("\nTimeout reached after %v - stopping synthesis\n", *duration)
		os.Exit(2)
	}()

	synth := decoder.New(decoder.WithParams(cfg.DecoderParams()))
	start := time.Now()
	var tree *decoder.Tree
	for i := 0; i < *iterations; i++ {
		if tree, err = synth.Synthesize(list); err != nil {
			fmt.Fprintf(os.Stderr, "Error synthesising decoder: %v\n", err)
			os.Exit(1)
		}
	}
	elapsed := time.Since(start)

	// Write memory profile if requested
	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		}
	}

	st := tree.Stats()
	fmt.Printf("\nProfiling Results:\n")
	fmt.Printf("Runs: %d\n", *iterations)
	fmt.Printf("Nodes: %d (%d tables, %d leaves, %d leaf checks)\n", st.Nodes, st.Tables, st.Leaves, st.LeafChecks)
	fmt.Printf("Cost: %d\n", st.Cost)
	fmt.Printf("Memo: %d hits, %d misses, %d evictions\n", tree.Memo.Hits, tree.Memo.Misses, tree.Memo.Evictions)
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if *iterations > 0 {
		fmt.Printf("Time per run: %v\n", elapsed/time.Duration(*iterations))
	}
}

func instructions(cfg *config.Config) ([]*insts.Instruction, string, error) {
	if *specDir == "" {
		for _, w := range benchmarks.GetWorkloads() {
			if w.Name == "mixed" {
				return w.Instructions, "mixed benchmark workload", nil
			}
		}
	}
	docs, err := loader.FromDir(context.Background(), *specDir, loader.DefaultPaths())
	if err != nil {
		return nil, "", err
	}
	s, err := spec.Load(docs, spec.WithMaxFuseWidth(cfg.MaxFuseWidth))
	if err != nil {
		return nil, "", err
	}
	return s.InstructionsInSet("A64"), *specDir, nil
}
