// Package main provides the entry point for armspecgen.
// armspecgen synthesises an AArch64 decoder from the ARM machine-readable
// specification.
//
// For the full CLI, use: go run ./cmd/armspecgen
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("armspecgen - AArch64 decoder generator")
	fmt.Println("Reads the ARM BSD JSON specification")
	fmt.Println("")
	fmt.Println("Usage: armspecgen [options]")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -tar           Specification tarball")
	fmt.Println("  -spec-dir      Directory holding Instructions.json, Features.json and Registers.json")
	fmt.Println("  -out-decoder   Output file for the decoder, - for stdout")
	fmt.Println("  -fmt           Output format: go or text")
	fmt.Println("  -config        Path to a JSON or YAML tunables file")
	fmt.Println("  -v             Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/armspecgen' for the full CLI,")
	fmt.Println("or 'go run ./cmd/benchmark' to compare search tunables.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/armspecgen' instead.")
	}
}
