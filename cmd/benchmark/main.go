// Command benchmark runs the decoder synthesis benchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv        Output results in CSV format (default: human-readable)
//	-json       Output results as a JSON report
//	-core       Run only the core workloads
//	-variant    Run only the named variant (default: all)
//	-spec-dir   Also benchmark the A64 set of a specification release
//
// Example:
//
//	# Run every workload under every variant
//	go run ./cmd/benchmark
//
//	# Compare the variants on a real release
//	go run ./cmd/benchmark -spec-dir ./AARCHMRS -csv > results.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/armspecgen/benchmarks"
	"github.com/sarchlab/armspecgen/loader"
	"github.com/sarchlab/armspecgen/spec"
)

func main() {
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results as a JSON report")
	core := flag.Bool("core", false, "Run only the core workloads")
	variant := flag.String("variant", "", "Run only the named variant")
	specDir := flag.String("spec-dir", "", "Also benchmark the A64 set of the release in this directory")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if !*verbose {
		log.SetLevel(logrus.WarnLevel)
	}

	config := benchmarks.DefaultConfig()
	config.Output = os.Stdout
	config.Logger = log
	config.Verbose = *verbose

	harness := benchmarks.NewHarness(config)
	if *core {
		harness.AddWorkloads(benchmarks.GetCoreWorkloads())
	} else {
		harness.AddWorkloads(benchmarks.GetWorkloads())
	}

	if *specDir != "" {
		w, err := specWorkload(*specDir, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		harness.AddWorkload(w)
	}

	if *variant != "" {
		v, ok := benchmarks.VariantByName(*variant)
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: unknown variant %q\n", *variant)
			os.Exit(2)
		}
		harness.AddVariant(v)
	} else {
		harness.AddVariants(benchmarks.GetVariants())
	}

	if !*csvOutput && !*jsonOutput {
		fmt.Println("Decoder Synthesis Benchmark Harness")
		fmt.Println("===================================")
		fmt.Println("")
	}

	results, err := harness.RunAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		harness.PrintResults(results)
	}

	for _, r := range results {
		if r.Mismatches > 0 {
			os.Exit(1)
		}
	}
}

func specWorkload(dir string, log logrus.FieldLogger) (benchmarks.Workload, error) {
	docs, err := loader.FromDir(context.Background(), dir, loader.DefaultPaths(), loader.WithLogger(log))
	if err != nil {
		return benchmarks.Workload{}, err
	}
	s, err := spec.Load(docs, spec.WithLogger(log))
	if err != nil {
		return benchmarks.Workload{}, err
	}
	list := s.InstructionsInSet("A64")
	if len(list) == 0 {
		return benchmarks.Workload{}, fmt.Errorf("no A64 instructions in %s", dir)
	}
	return benchmarks.Workload{
		Name:         "a64",
		Description:  "A64 set of " + s.InstructionsVersion.String(),
		Instructions: list,
	}, nil
}
