// Package main provides the armspecgen command. It loads the ARM
// machine-readable specification and writes a synthesised A64 decoder.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/armspecgen/config"
	"github.com/sarchlab/armspecgen/decoder"
	"github.com/sarchlab/armspecgen/emit"
	"github.com/sarchlab/armspecgen/loader"
	"github.com/sarchlab/armspecgen/spec"
)

// Exit codes.
const (
	exitOK       = 0
	exitFailure  = 1
	exitBadUsage = 2
)

type options struct {
	tar        string
	specDir    string
	paths      loader.Paths
	outDecoder string
	format     string
	configPath string
	set        string
	print      spec.PrintOptions
	features   bool
	dump       string
	cpuProfile string
	verbose    bool

	outDecoderSet bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("armspecgen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: armspecgen [options]\n")
		fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
	}

	fs.StringVar(&o.tar, "tar", "", "Specification tarball to read the documents from")
	fs.StringVar(&o.specDir, "spec-dir", "", "Directory to prefix the document paths with")
	fs.StringVar(&o.paths.Instructions, "instructions", loader.DefaultInstructions, "Path of the instructions document")
	fs.StringVar(&o.paths.Features, "features", loader.DefaultFeatures, "Path of the features document")
	fs.StringVar(&o.paths.Registers, "registers", loader.DefaultRegisters, "Path of the registers document")
	fs.StringVar(&o.outDecoder, "out-decoder", "-", "Output file for the decoder, - for stdout")
	fs.StringVar(&o.format, "fmt", "go", "Output format: go or text")
	fs.StringVar(&o.configPath, "config", "", "Path to a JSON or YAML tunables file")
	fs.StringVar(&o.set, "set", "A64", "Instruction set to build the decoder for")
	fs.BoolVar(&o.print.Instructions, "print-instructions", false, "List the instructions")
	fs.BoolVar(&o.print.InstructionsWithEncoding, "print-instructions-with-encoding", false,
		"List the instructions with their encoding fields")
	fs.BoolVar(&o.print.InstructionsWithCondition, "print-instructions-with-conditions", false,
		"List the instructions with their remaining conditions")
	fs.BoolVar(&o.print.FixedMaskStats, "print-fixed-mask-stats", false, "Print how many bits instructions fix")
	fs.BoolVar(&o.print.FixedMaskTop, "print-fixed-mask-top-10", false, "Print the most common fixed masks")
	fs.BoolVar(&o.print.SysRegs, "print-sysregs", false, "List the AArch64 system registers")
	fs.BoolVar(&o.features, "print-features", false, "List the features and how to detect them")
	fs.StringVar(&o.dump, "dump", "", "Dump instructions: all, or a comma separated list of names")
	fs.StringVar(&o.cpuProfile, "cpuprofile", "", "Write a CPU profile to this file")
	fs.BoolVar(&o.verbose, "v", false, "Verbose output")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if o.format != "go" && o.format != "text" {
		return nil, fmt.Errorf("unknown output format %q", o.format)
	}
	if o.tar != "" && o.specDir != "" {
		return nil, fmt.Errorf("--tar and --spec-dir are mutually exclusive")
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "out-decoder" {
			o.outDecoderSet = true
		}
	})
	return o, nil
}

// generates reports whether a decoder is to be written. Listings replace
// the decoder on stdout unless an output file was asked for.
func (o *options) generates() bool {
	if o.outDecoderSet {
		return true
	}
	return !o.print.Any() && !o.features && o.dump == ""
}

func newLogger(stderr io.Writer, verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func loadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	o, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitBadUsage
	}
	cfg, err := loadConfig(o.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitBadUsage
	}
	log := newLogger(stderr, o.verbose)

	if o.cpuProfile != "" {
		f, err := os.Create(o.cpuProfile)
		if err != nil {
			log.WithError(err).Error("failed to create CPU profile")
			return exitFailure
		}
		defer func() { _ = f.Close() }()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.WithError(err).Error("failed to start CPU profile")
			return exitFailure
		}
		defer pprof.StopCPUProfile()
	}

	if err := generate(context.Background(), o, cfg, log, stdout); err != nil {
		log.WithError(err).Error("generation failed")
		return exitFailure
	}
	return exitOK
}

func loadDocuments(ctx context.Context, o *options, log logrus.FieldLogger) (*spec.Documents, error) {
	switch {
	case o.tar != "":
		return loader.FromTar(ctx, o.tar, o.paths, loader.WithLogger(log))
	case o.specDir != "":
		return loader.FromDir(ctx, o.specDir, o.paths, loader.WithLogger(log))
	}
	return loader.FromFiles(ctx, o.paths, loader.WithLogger(log))
}

func generate(ctx context.Context, o *options, cfg *config.Config, log *logrus.Logger, stdout io.Writer) error {
	docs, err := loadDocuments(ctx, o, log)
	if err != nil {
		return err
	}
	s, err := spec.Load(docs, spec.WithLogger(log), spec.WithMaxFuseWidth(cfg.MaxFuseWidth))
	if err != nil {
		return err
	}

	s.Print(stdout, o.print)
	if o.features {
		s.PrintFeatures(stdout)
	}
	if o.dump != "" {
		var names []string
		if o.dump != "all" {
			names = strings.Split(o.dump, ",")
		}
		if err := s.Dump(stdout, names...); err != nil {
			return err
		}
	}
	if !o.generates() {
		return nil
	}

	set := s.Set(o.set)
	if set == nil {
		return fmt.Errorf("no instruction set named %s", o.set)
	}
	start := time.Now()
	tree, err := decoder.Synthesize(set.AllInstructions(),
		decoder.WithParams(cfg.DecoderParams()),
		decoder.WithLogger(log))
	if err != nil {
		return fmt.Errorf("failed to synthesise decoder: %w", err)
	}
	if err := tree.Validate(); err != nil {
		return err
	}
	st := tree.Stats()
	log.WithFields(logrus.Fields{
		"instructions": len(tree.Instructions),
		"tables":       st.Tables,
		"leaves":       st.Leaves,
		"leaf_checks":  st.LeafChecks,
		"check_lists":  st.CheckLists,
		"depth":        st.MaxDepth,
		"cost":         st.Cost,
		"elapsed":      time.Since(start),
	}).Info("synthesised decoder")

	return writeDecoder(o, cfg, s, tree, stdout)
}

func writeDecoder(o *options, cfg *config.Config, s *spec.Spec, tree *decoder.Tree, stdout io.Writer) (err error) {
	w := stdout
	if o.outDecoder != "-" {
		f, cerr := os.Create(o.outDecoder)
		if cerr != nil {
			return fmt.Errorf("failed to open %s for writing: %w", o.outDecoder, cerr)
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}

	if o.format == "text" {
		return emit.Text(w, tree)
	}
	opts := cfg.EmitOptions()
	opts.Comments = []string{
		"Instruction set: " + o.set,
		"Instructions: " + s.InstructionsVersion.String(),
		"Features: " + s.FeaturesVersion.String(),
	}
	return emit.Go(w, tree, opts)
}
