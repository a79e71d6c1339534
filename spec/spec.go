// Package spec loads the ARM machine-readable architecture specification
// into memory: the features, the system registers and the A64 instruction
// hierarchy.
//
// Loading happens in three stages that always run in the same order:
// registers, features and then instructions. Instructions come out with
// their inherited fields and conditions applied and with their condition
// tests lifted into the encoding.
//
// Usage:
//
//	docs, err := loader.FromTar(ctx, "AARCHMRS_BSD_A_profile.tar.gz")
//	s, err := spec.Load(docs, spec.WithLogger(log))
//	for _, inst := range s.Instructions {
//		fmt.Println(inst.CName(), inst.AsmDisplay)
//	}
package spec

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/sarchlab/armspecgen/ast"
	"github.com/sarchlab/armspecgen/insts"
)

// Documents holds the three decoded JSON documents of a specification
// release.
type Documents struct {
	Instructions map[string]any
	Features     map[string]any
	Registers    []any
}

// Version is the `_meta.version` object of a document.
type Version map[string]any

func (v Version) String() string {
	if len(v) == 0 {
		return "<unknown>"
	}
	keys := sortedKeys(v)
	s := ""
	for i, k := range keys {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%s=%v", k, v[k])
	}
	return s
}

// Option configures Load.
type Option func(*Spec)

// WithLogger sets the logger for progress messages and warnings.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Spec) {
		s.log = log
	}
}

// WithMaxFuseWidth limits the fields whose `!=` tests the lifter fuses.
func WithMaxFuseWidth(width int) Option {
	return func(s *Spec) {
		s.maxFuseWidth = width
	}
}

// Spec is a loaded specification. It owns every object created while
// loading.
type Spec struct {
	InstructionsVersion Version
	FeaturesVersion     Version
	RegistersVersion    Version

	Features       []*Feature
	featuresByName map[string]*Feature

	Registers          []*Register
	registersByState   map[string][]*Register
	registersByStateNm map[string]map[string]*Register

	Sets         []*insts.Set
	Groups       []*insts.Group
	groupsByName map[string]*insts.Group

	Instructions       []*insts.Instruction
	instructionsByName map[string]*insts.Instruction

	asmRules   map[string]any
	asmDisplay map[string]string

	log          logrus.FieldLogger
	maxFuseWidth int
	lifter       *insts.Lifter
}

func newSpec(opts ...Option) *Spec {
	s := &Spec{
		featuresByName:     make(map[string]*Feature),
		registersByState:   make(map[string][]*Register),
		registersByStateNm: make(map[string]map[string]*Register),
		groupsByName:       make(map[string]*insts.Group),
		instructionsByName: make(map[string]*insts.Instruction),
		asmDisplay:         make(map[string]string),
		maxFuseWidth:       insts.DefaultMaxFuseWidth,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		s.log = discard
	}
	s.lifter = insts.NewLifter(insts.WithLogger(s.log), insts.WithMaxFuseWidth(s.maxFuseWidth))
	return s
}

// Load parses the documents: registers, then features, then instructions.
func Load(docs *Documents, opts ...Option) (*Spec, error) {
	s := newSpec(opts...)

	start := time.Now()
	if len(docs.Registers) > 0 {
		if first, ok := docs.Registers[0].(map[string]any); ok {
			s.RegistersVersion = metaVersion(first)
		}
	}
	if err := s.parseRegisters(docs.Registers); err != nil {
		return nil, fmt.Errorf("failed to parse registers: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"registers": len(s.Registers),
		"states":    len(s.registersByState),
		"elapsed":   time.Since(start),
	}).Info("parsed registers")

	start = time.Now()
	s.FeaturesVersion = metaVersion(docs.Features)
	params, _ := docs.Features["parameters"].([]any)
	if err := s.parseFeatures(params); err != nil {
		return nil, fmt.Errorf("failed to parse features: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"features": len(s.Features),
		"elapsed":  time.Since(start),
	}).Info("parsed features")

	start = time.Now()
	s.InstructionsVersion = metaVersion(docs.Instructions)
	s.asmRules, _ = docs.Instructions["assembly_rules"].(map[string]any)
	list, ok := docs.Instructions["instructions"].([]any)
	if !ok {
		return nil, fmt.Errorf("failed to parse instructions: %w: no instructions list", ast.ErrSchema)
	}
	if err := s.parseInstructions(nil, nil, list); err != nil {
		return nil, fmt.Errorf("failed to parse instructions: %w", err)
	}
	slices.SortFunc(s.Instructions, func(a, b *insts.Instruction) int {
		if a.Name != b.Name {
			return compareStrings(a.Name, b.Name)
		}
		return compareStrings(a.AsmDisplay, b.AsmDisplay)
	})
	s.log.WithFields(logrus.Fields{
		"instructions": len(s.Instructions),
		"sets":         len(s.Sets),
		"groups":       len(s.Groups),
		"elapsed":      time.Since(start),
	}).Info("parsed instructions")

	return s, nil
}

func metaVersion(doc map[string]any) Version {
	meta, _ := doc["_meta"].(map[string]any)
	v, _ := meta["version"].(map[string]any)
	return v
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Feature returns the named feature, or nil.
func (s *Spec) Feature(name string) *Feature {
	return s.featuresByName[name]
}

// Register returns the register of the given state, or nil.
func (s *Spec) Register(state, name string) *Register {
	return s.registersByStateNm[state][name]
}

// RegistersInState returns the registers of one state, sorted by name.
func (s *Spec) RegistersInState(state string) []*Register {
	return s.registersByState[state]
}

// States returns the register states in sorted order.
func (s *Spec) States() []string {
	return sortedKeys(s.registersByState)
}

// Instruction returns the named instruction, or nil.
func (s *Spec) Instruction(name string) *insts.Instruction {
	return s.instructionsByName[name]
}

// Group returns the named instruction group, or nil.
func (s *Spec) Group(name string) *insts.Group {
	return s.groupsByName[name]
}

// Set returns the named instruction set, or nil.
func (s *Spec) Set(name string) *insts.Set {
	for _, set := range s.Sets {
		if set.Name == name {
			return set
		}
	}
	return nil
}

// InstructionsInSet returns the instructions of the named set in load
// order.
func (s *Spec) InstructionsInSet(name string) []*insts.Instruction {
	if set := s.Set(name); set != nil {
		return set.AllInstructions()
	}
	return nil
}
