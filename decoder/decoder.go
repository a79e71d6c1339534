// Package decoder synthesises a tree of dispatch tables that partitions the
// 32-bit opcode space among a set of instructions.
//
// Every node of the tree selects a few opcode bits, compacts them into a dense
// index and hands each table entry to a child. The mask of each node is picked
// by a brute-force search over candidates derived from the fixed bits of the
// instructions that reach the node, scored by the number of leaf checks the
// resulting subtree needs.
//
//	tree, err := decoder.Synthesize(set.AllInstructions(),
//		decoder.WithParams(cfg.DecoderParams()),
//		decoder.WithLogger(log))
package decoder

import (
	"errors"
	"fmt"
)

var (
	// ErrInvariant reports an instruction that disagrees with the bits
	// already checked on the way to a node, or an inconsistent encoding.
	ErrInvariant = errors.New("decoder invariant violated")

	// ErrTooManyRuns reports a mask that cannot be compacted.
	ErrTooManyRuns = errors.New("mask has too many runs")
)

// TableSizesInBits caps the table size of a candidate mask. It is indexed by
// ceil(log2(n)) where n is the number of instructions sharing the seed mask.
var TableSizesInBits = []int{2, 4, 5, 6, 7, 7, 8, 9, 10, 11, 12, 13, 14, 14, 15}

// Params are the tunables of the search.
type Params struct {
	// MaxSeedMasks is the number of most common unchecked fixed masks tried
	// as seeds at every node.
	MaxSeedMasks int `json:"max_seed_masks" yaml:"max_seed_masks"`

	// MaxMaskRuns limits the runs of a dispatch mask.
	MaxMaskRuns int `json:"max_mask_runs" yaml:"max_mask_runs"`

	// MaxCandidatesPerSeed bounds the sub-masks tried per seed.
	MaxCandidatesPerSeed int `json:"max_candidates_per_seed" yaml:"max_candidates_per_seed"`

	// LeafCheckCost is charged for every leaf that re-checks its encoding.
	LeafCheckCost int `json:"leaf_check_cost" yaml:"leaf_check_cost"`

	// DepthWeight is charged per table node times its depth.
	DepthWeight int `json:"depth_weight" yaml:"depth_weight"`

	// TableSizeWeight is charged per table node times its index width.
	TableSizeWeight int `json:"table_size_weight" yaml:"table_size_weight"`

	// MemoSets and MemoWays shape the memo of solved sub-problems.
	MemoSets int `json:"memo_sets" yaml:"memo_sets"`
	MemoWays int `json:"memo_ways" yaml:"memo_ways"`
}

// DefaultParams returns the tunables that reproduce the plain leaf-check cost
// model.
func DefaultParams() Params {
	return Params{
		MaxSeedMasks:         8,
		MaxMaskRuns:          DefaultMaxMaskRuns,
		MaxCandidatesPerSeed: 64,
		LeafCheckCost:        16,
		DepthWeight:          0,
		TableSizeWeight:      0,
		MemoSets:             1024,
		MemoWays:             8,
	}
}

// Validate checks that the parameters are usable.
func (p Params) Validate() error {
	if p.MaxSeedMasks <= 0 {
		return fmt.Errorf("max_seed_masks must be positive, got %d", p.MaxSeedMasks)
	}
	if p.MaxMaskRuns <= 0 {
		return fmt.Errorf("max_mask_runs must be positive, got %d", p.MaxMaskRuns)
	}
	if p.MaxCandidatesPerSeed <= 0 {
		return fmt.Errorf("max_candidates_per_seed must be positive, got %d", p.MaxCandidatesPerSeed)
	}
	if p.LeafCheckCost < 0 || p.DepthWeight < 0 || p.TableSizeWeight < 0 {
		return fmt.Errorf("cost weights must not be negative")
	}
	if p.MemoSets <= 0 || p.MemoWays <= 0 {
		return fmt.Errorf("memo_sets and memo_ways must be positive, got %d and %d", p.MemoSets, p.MemoWays)
	}
	return nil
}

// maxTableBits looks up TableSizesInBits for a seed shared by n instructions.
func maxTableBits(n int) int {
	shift := 1
	for 1<<shift < n {
		shift++
	}
	if shift >= len(TableSizesInBits) {
		shift = len(TableSizesInBits) - 1
	}
	return TableSizesInBits[shift]
}
