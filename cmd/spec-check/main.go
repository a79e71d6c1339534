// Package main provides a CLI tool to check a specification release.
//
// It prints the number of A64 instructions to stdout, 0 when the release
// cannot be loaded, and the details to stderr.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/armspecgen/loader"
	"github.com/sarchlab/armspecgen/spec"
)

func main() {
	tarFile := flag.String("tar", "", "Specification tarball")
	specDir := flag.String("spec-dir", ".", "Specification directory")
	flag.Parse()

	ctx := context.Background()
	var (
		docs *spec.Documents
		err  error
	)
	if *tarFile != "" {
		docs, err = loader.FromTar(ctx, *tarFile, loader.DefaultPaths())
	} else {
		docs, err = loader.FromDir(ctx, *specDir, loader.DefaultPaths())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Specification not available: %v\n", err)
		fmt.Println("0")
		os.Exit(0)
	}

	s, err := spec.Load(docs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Specification invalid: %v\n", err)
		fmt.Println("0")
		os.Exit(0)
	}

	a64 := s.InstructionsInSet("A64")
	fmt.Printf("%d\n", len(a64))

	fmt.Fprintf(os.Stderr, "\nVersions:\n")
	fmt.Fprintf(os.Stderr, "  Instructions: %s\n", s.InstructionsVersion)
	fmt.Fprintf(os.Stderr, "  Features:     %s\n", s.FeaturesVersion)
	fmt.Fprintf(os.Stderr, "  Registers:    %s\n", s.RegistersVersion)

	fmt.Fprintf(os.Stderr, "\nContents:\n")
	for _, set := range s.Sets {
		fmt.Fprintf(os.Stderr, "  Set %s: %d instructions\n", set.Name, len(set.AllInstructions()))
	}
	fmt.Fprintf(os.Stderr, "  Groups: %d\n", len(s.Groups))
	fmt.Fprintf(os.Stderr, "  Features: %d\n", len(s.Features))
	fmt.Fprintf(os.Stderr, "  Registers: %d in %d states\n", len(s.Registers), len(s.States()))
}
