package decoder

import (
	"fmt"
	"math/bits"
	"strings"
)

// DefaultMaxMaskRuns is the number of contiguous bit runs a dispatch mask may
// have before its compaction gets too expensive to emit.
const DefaultMaxMaskRuns = 3

// Chunk moves one contiguous run of opcode bits into the table index.
type Chunk struct {
	SrcBit int    // lowest opcode bit of the run
	DstBit int    // lowest index bit the run lands on
	Mask   uint32 // run mask, right aligned
}

// Algo turns the bits selected by Mask into a dense table index.
type Algo struct {
	Mask   uint32
	Chunks []Chunk
}

// Runs counts the contiguous runs of 1-bits in mask.
func Runs(mask uint32) int {
	// A run starts at every set bit whose lower neighbour is clear.
	return bits.OnesCount32(mask &^ (mask << 1))
}

// CompactMask builds the compaction of mask. Masks with more than maxRuns
// runs are rejected with ErrTooManyRuns; maxRuns <= 0 selects
// DefaultMaxMaskRuns.
func CompactMask(mask uint32, maxRuns int) (Algo, error) {
	if maxRuns <= 0 {
		maxRuns = DefaultMaxMaskRuns
	}
	if n := Runs(mask); n > maxRuns {
		return Algo{}, fmt.Errorf("%w: mask %#08x has %d runs, at most %d allowed",
			ErrTooManyRuns, mask, n, maxRuns)
	}

	algo := Algo{Mask: mask}
	dst := 0
	for rest := mask; rest != 0; {
		src := bits.TrailingZeros32(rest)
		count := bits.TrailingZeros32(^(rest >> src))
		run := uint32(1)<<count - 1
		algo.Chunks = append(algo.Chunks, Chunk{SrcBit: src, DstBit: dst, Mask: run})
		rest &^= run << src
		dst += count
	}
	return algo, nil
}

// Index extracts the mask bits of v as a dense index.
func (a Algo) Index(v uint32) uint32 {
	var idx uint32
	for _, c := range a.Chunks {
		idx |= ((v >> c.SrcBit) & c.Mask) << c.DstBit
	}
	return idx
}

// Expand is the inverse of Index: it places the bits of idx back at their
// opcode positions.
func (a Algo) Expand(idx uint32) uint32 {
	var v uint32
	for _, c := range a.Chunks {
		v |= ((idx >> c.DstBit) & c.Mask) << c.SrcBit
	}
	return v
}

// Bits returns the width of the index.
func (a Algo) Bits() int {
	return bits.OnesCount32(a.Mask)
}

// Size returns the number of table entries.
func (a Algo) Size() int {
	return 1 << a.Bits()
}

// Expr renders Index as a Go expression over the variable named v.
func (a Algo) Expr(v string) string {
	if len(a.Chunks) == 0 {
		return "0"
	}
	parts := make([]string, len(a.Chunks))
	for i, c := range a.Chunks {
		s := v
		if c.SrcBit != 0 {
			s = fmt.Sprintf("(%s >> %d)", s, c.SrcBit)
		}
		s = fmt.Sprintf("%s & %#x", s, c.Mask)
		if c.DstBit != 0 {
			s = fmt.Sprintf("((%s) << %d)", s, c.DstBit)
		} else if len(a.Chunks) > 1 {
			s = "(" + s + ")"
		}
		parts[i] = s
	}
	return strings.Join(parts, " | ")
}

func (a Algo) String() string {
	parts := make([]string, len(a.Chunks))
	for i, c := range a.Chunks {
		parts[i] = fmt.Sprintf("[%d->%d %#x]", c.SrcBit, c.DstBit, c.Mask)
	}
	return strings.Join(parts, " ")
}
