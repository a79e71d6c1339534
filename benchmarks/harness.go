// Package benchmarks measures the decoder synthesiser on fixed instruction
// workloads under several sets of search tunables.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/armspecgen/decoder"
	"github.com/sarchlab/armspecgen/insts"
)

// Result holds the outcome of one workload under one variant.
type Result struct {
	// Workload and Variant identify the run
	Workload string `json:"workload"`
	Variant  string `json:"variant"`

	// Instructions is the number of instructions decoded by the tree
	Instructions int `json:"instructions"`

	Nodes        int `json:"nodes"`
	Tables       int `json:"tables"`
	TableEntries int `json:"table_entries"`
	EmptyEntries int `json:"empty_entries"`
	Leaves       int `json:"leaves"`
	LeafChecks   int `json:"leaf_checks"`
	CheckLists   int `json:"check_lists"`
	MaxDepth     int `json:"max_depth"`
	Cost         int `json:"cost"`

	MemoHits      uint64 `json:"memo_hits"`
	MemoMisses    uint64 `json:"memo_misses"`
	MemoEvictions uint64 `json:"memo_evictions"`

	// Mismatches counts probe opcodes the tree decodes to no instruction or
	// to one that does not match them
	Mismatches int `json:"mismatches"`

	// WallTime is the time spent in the synthesiser
	WallTime time.Duration `json:"wall_time_ns"`
}

// Workload is a named list of instructions.
type Workload struct {
	Name         string
	Description  string
	Instructions []*insts.Instruction
}

// Variant is a named set of search tunables.
type Variant struct {
	Name        string
	Description string
	Params      decoder.Params
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Logger receives the synthesiser messages (default: discarded)
	Logger logrus.FieldLogger

	// Verbose logs every run as it finishes
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Output:  os.Stdout,
		Verbose: false,
	}
}

// Harness runs every workload under every variant.
type Harness struct {
	config    HarnessConfig
	workloads []Workload
	variants  []Variant
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		config.Logger = discard
	}
	return &Harness{config: config}
}

// AddWorkload adds a workload to the harness.
func (h *Harness) AddWorkload(w Workload) {
	h.workloads = append(h.workloads, w)
}

// AddWorkloads adds multiple workloads to the harness.
func (h *Harness) AddWorkloads(workloads []Workload) {
	h.workloads = append(h.workloads, workloads...)
}

// AddVariant adds a variant to the harness.
func (h *Harness) AddVariant(v Variant) {
	h.variants = append(h.variants, v)
}

// AddVariants adds multiple variants to the harness.
func (h *Harness) AddVariants(variants []Variant) {
	h.variants = append(h.variants, variants...)
}

// RunAll synthesises every workload under every variant, workload-major.
// A harness without variants uses DefaultVariant.
func (h *Harness) RunAll() ([]Result, error) {
	variants := h.variants
	if len(variants) == 0 {
		variants = []Variant{DefaultVariant()}
	}

	results := make([]Result, 0, len(h.workloads)*len(variants))
	for _, w := range h.workloads {
		for _, v := range variants {
			r, err := h.run(w, v)
			if err != nil {
				return results, fmt.Errorf("%s/%s: %w", w.Name, v.Name, err)
			}
			if h.config.Verbose {
				h.config.Logger.WithFields(logrus.Fields{
					"workload": w.Name,
					"variant":  v.Name,
					"cost":     r.Cost,
					"elapsed":  r.WallTime,
				}).Info("benchmark finished")
			}
			results = append(results, r)
		}
	}
	return results, nil
}

func (h *Harness) run(w Workload, v Variant) (Result, error) {
	start := time.Now()
	tree, err := decoder.Synthesize(w.Instructions,
		decoder.WithParams(v.Params),
		decoder.WithLogger(h.config.Logger))
	wallTime := time.Since(start)
	if err != nil {
		return Result{}, err
	}
	if err := tree.Validate(); err != nil {
		return Result{}, err
	}

	st := tree.Stats()
	return Result{
		Workload:      w.Name,
		Variant:       v.Name,
		Instructions:  len(tree.Instructions),
		Nodes:         st.Nodes,
		Tables:        st.Tables,
		TableEntries:  st.TableEntries,
		EmptyEntries:  st.EmptyEntries,
		Leaves:        st.Leaves,
		LeafChecks:    st.LeafChecks,
		CheckLists:    st.CheckLists,
		MaxDepth:      st.MaxDepth,
		Cost:          st.Cost,
		MemoHits:      tree.Memo.Hits,
		MemoMisses:    tree.Memo.Misses,
		MemoEvictions: tree.Memo.Evictions,
		Mismatches:    Probe(tree),
		WallTime:      wallTime,
	}, nil
}

// Probe decodes two opcodes per instruction, with its free bits all clear
// and all set, and counts those that do not decode to a matching
// instruction.
func Probe(tree *decoder.Tree) int {
	mismatches := 0
	for _, inst := range tree.Instructions {
		for _, opcode := range []uint32{inst.FixedValue(), inst.FixedValue() | ^inst.FixedMask()} {
			got := tree.Lookup(opcode)
			if got == nil || !got.Matches(opcode) {
				mismatches++
			}
		}
	}
	return mismatches
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []Result) {
	out := h.config.Output
	_, _ = fmt.Fprintln(out, "=== Decoder Synthesis Benchmark Results ===")
	_, _ = fmt.Fprintln(out, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(out, "Workload: %s  Variant: %s\n", r.Workload, r.Variant)
		_, _ = fmt.Fprintf(out, "  Instructions:  %d\n", r.Instructions)
		_, _ = fmt.Fprintln(out, "  --- Tree ---")
		_, _ = fmt.Fprintf(out, "  Nodes:         %d\n", r.Nodes)
		_, _ = fmt.Fprintf(out, "  Tables:        %d (%d entries, %d empty)\n", r.Tables, r.TableEntries, r.EmptyEntries)
		_, _ = fmt.Fprintf(out, "  Leaves:        %d\n", r.Leaves)
		_, _ = fmt.Fprintf(out, "  Leaf Checks:   %d\n", r.LeafChecks)
		if r.CheckLists > 0 {
			_, _ = fmt.Fprintf(out, "  Check Lists:   %d\n", r.CheckLists)
		}
		_, _ = fmt.Fprintf(out, "  Max Depth:     %d\n", r.MaxDepth)
		_, _ = fmt.Fprintf(out, "  Cost:          %d\n", r.Cost)

		if r.MemoHits > 0 || r.MemoMisses > 0 {
			_, _ = fmt.Fprintln(out, "  --- Memo ---")
			_, _ = fmt.Fprintf(out, "  Hits:      %d\n", r.MemoHits)
			_, _ = fmt.Fprintf(out, "  Misses:    %d\n", r.MemoMisses)
			_, _ = fmt.Fprintf(out, "  Evictions: %d\n", r.MemoEvictions)
		}

		if r.Mismatches > 0 {
			_, _ = fmt.Fprintf(out, "  MISMATCHES:    %d\n", r.Mismatches)
		}
		_, _ = fmt.Fprintf(out, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(out, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []Result) {
	_, _ = fmt.Fprintln(h.config.Output,
		"workload,variant,instructions,nodes,tables,table_entries,empty_entries,leaves,leaf_checks,check_lists,max_depth,cost,memo_hits,memo_misses,memo_evictions,mismatches,wall_time_ns")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%s,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d\n",
			r.Workload,
			r.Variant,
			r.Instructions,
			r.Nodes,
			r.Tables,
			r.TableEntries,
			r.EmptyEntries,
			r.Leaves,
			r.LeafChecks,
			r.CheckLists,
			r.MaxDepth,
			r.Cost,
			r.MemoHits,
			r.MemoMisses,
			r.MemoEvictions,
			r.Mismatches,
			r.WallTime.Nanoseconds(),
		)
	}
}

// Report is the complete JSON output of a run.
type Report struct {
	Metadata ReportMetadata `json:"metadata"`
	Results  []Result       `json:"results"`
	Summary  ReportSummary  `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Variants lists the tunables of every variant, by name
	Variants map[string]decoder.Params `json:"variants"`
}

// ReportSummary contains aggregate statistics across all runs.
type ReportSummary struct {
	TotalRuns       int           `json:"total_runs"`
	TotalCost       int           `json:"total_cost"`
	TotalLeafChecks int           `json:"total_leaf_checks"`
	TotalMismatches int           `json:"total_mismatches"`
	TotalWallTime   time.Duration `json:"total_wall_time_ns"`
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []Result) error {
	variants := make(map[string]decoder.Params, len(h.variants))
	for _, v := range h.variants {
		variants[v.Name] = v.Params
	}
	if len(variants) == 0 {
		d := DefaultVariant()
		variants[d.Name] = d.Params
	}

	var summary ReportSummary
	for _, r := range results {
		summary.TotalRuns++
		summary.TotalCost += r.Cost
		summary.TotalLeafChecks += r.LeafChecks
		summary.TotalMismatches += r.Mismatches
		summary.TotalWallTime += r.WallTime
	}

	report := Report{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Variants:  variants,
		},
		Results: results,
		Summary: summary,
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
