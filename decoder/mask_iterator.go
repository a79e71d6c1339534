package decoder

import (
	"math/bits"

	"golang.org/x/exp/slices"
)

type seedMask struct {
	mask  uint32
	count int
}

// MaskIterator yields the candidate dispatch masks of one node.
//
// Seeds are the most common unchecked fixed masks of the node's
// instructions. Each seed is offered whole when it is small enough, then its
// sub-masks are offered from the widest down. A mask is offered at most once
// per node, and only if it compacts.
type MaskIterator struct {
	params Params
	seeds  []seedMask
	done   map[uint32]bool

	seed      int
	positions []int
	comb      []int
	offered   int
	visited   int
}

// NewMaskIterator creates an iterator over the unchecked fixed masks of a
// node's instructions, given in instruction order.
func NewMaskIterator(unchecked []uint32, params Params) *MaskIterator {
	counts := make(map[uint32]int)
	var order []uint32
	for _, m := range unchecked {
		if m == 0 {
			continue
		}
		if counts[m] == 0 {
			order = append(order, m)
		}
		counts[m]++
	}

	var seeds, singles []seedMask
	for _, m := range order {
		if counts[m] >= 2 {
			seeds = append(seeds, seedMask{mask: m, count: counts[m]})
		} else {
			singles = append(singles, seedMask{mask: m, count: 1})
		}
	}
	if len(seeds) == 0 {
		seeds = singles
	}
	slices.SortStableFunc(seeds, func(a, b seedMask) int { return b.count - a.count })
	if len(seeds) > params.MaxSeedMasks {
		seeds = seeds[:params.MaxSeedMasks]
	}

	return &MaskIterator{
		params: params,
		seeds:  seeds,
		done:   make(map[uint32]bool),
		seed:   -1,
	}
}

// Seeds returns the seed masks in the order they are tried.
func (it *MaskIterator) Seeds() []uint32 {
	out := make([]uint32, len(it.seeds))
	for i, s := range it.seeds {
		out[i] = s.mask
	}
	return out
}

// Next returns the next candidate mask and its compaction.
func (it *MaskIterator) Next() (uint32, Algo, bool) {
	for {
		if it.comb == nil && !it.nextSeed() {
			return 0, Algo{}, false
		}

		for it.comb != nil && it.offered < it.params.MaxCandidatesPerSeed {
			if it.visited >= it.visitLimit() {
				it.shrink()
				continue
			}
			mask := it.current()
			it.advance()
			it.visited++

			if it.done[mask] {
				continue
			}
			it.done[mask] = true

			algo, err := CompactMask(mask, it.params.MaxMaskRuns)
			if err != nil {
				continue
			}
			it.offered++
			return mask, algo, true
		}
		it.comb = nil
	}
}

// visitLimit bounds the subsets looked at per subset size, so that seeds
// with many runs still reach the narrower masks.
func (it *MaskIterator) visitLimit() int {
	return it.params.MaxCandidatesPerSeed * 16
}

func (it *MaskIterator) nextSeed() bool {
	it.seed++
	if it.seed >= len(it.seeds) {
		return false
	}
	s := it.seeds[it.seed]

	it.positions = it.positions[:0]
	for m := s.mask; m != 0; {
		top := 31 - bits.LeadingZeros32(m)
		it.positions = append(it.positions, top)
		m &^= 1 << top
	}

	k := min(maxTableBits(s.count), len(it.positions))
	it.comb = firstCombination(k)
	it.offered = 0
	it.visited = 0
	return true
}

func (it *MaskIterator) current() uint32 {
	var m uint32
	for _, i := range it.comb {
		m |= 1 << it.positions[i]
	}
	return m
}

// advance steps through the k-subsets of the seed positions in lexicographic
// order, then moves on to k-1.
func (it *MaskIterator) advance() {
	n, k := len(it.positions), len(it.comb)
	for i := k - 1; i >= 0; i-- {
		if it.comb[i] < n-k+i {
			it.comb[i]++
			for j := i + 1; j < k; j++ {
				it.comb[j] = it.comb[j-1] + 1
			}
			return
		}
	}
	it.shrink()
}

func (it *MaskIterator) shrink() {
	it.comb = firstCombination(len(it.comb) - 1)
	it.visited = 0
}

func firstCombination(k int) []int {
	if k <= 0 {
		return nil
	}
	comb := make([]int, k)
	for i := range comb {
		comb[i] = i
	}
	return comb
}
