package decoder

import (
	"fmt"
	"math/bits"

	"github.com/sarchlab/armspecgen/insts"
)

// MemoStats counts memo activity during one synthesis.
type MemoStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Tree is a synthesised decoder.
type Tree struct {
	Root         *Node
	Instructions []*insts.Instruction
	Params       Params
	Memo         MemoStats
}

// Stats summarises the shape of a tree.
type Stats struct {
	Nodes        int
	Tables       int
	TableEntries int
	EmptyEntries int
	Leaves       int
	LeafChecks   int
	CheckLists   int
	MaxDepth     int
	Cost         int
}

// Walk calls fn for every node, parents before children and table entries
// in index order.
func (t *Tree) Walk(fn func(n *Node)) {
	if t.Root != nil {
		walk(t.Root, fn)
	}
}

func walk(n *Node, fn func(n *Node)) {
	fn(n)
	for _, c := range n.Children {
		if c != nil {
			walk(c, fn)
		}
	}
}

// Stats computes the summary of t.
func (t *Tree) Stats() Stats {
	var st Stats
	if t.Root != nil {
		st.Cost = t.Root.Cost
	}
	t.Walk(func(n *Node) {
		st.Nodes++
		st.MaxDepth = max(st.MaxDepth, n.Depth)
		switch {
		case n.IsTable():
			st.Tables++
			st.TableEntries += len(n.Children)
			for _, c := range n.Children {
				if c == nil {
					st.EmptyEntries++
				}
			}
		case n.IsLeaf():
			st.Leaves++
			if n.LeafCheckNeeded {
				st.LeafChecks++
			}
		default:
			st.CheckLists++
		}
	})
	return st
}

// Lookup decodes opcode by walking the tree the way the generated decoder
// does. It returns nil for an invalid opcode.
func (t *Tree) Lookup(opcode uint32) *insts.Instruction {
	n := t.Root
	for n != nil {
		if n.IsTable() {
			n = n.Children[n.Algo.Index(opcode)]
			continue
		}
		for _, inst := range n.Instructions {
			if !n.LeafCheckNeeded || inst.Matches(opcode) {
				return inst
			}
		}
		return nil
	}
	return nil
}

// Validate re-checks the structure of the tree: the node invariant, the
// checked bits handed to every child, the leaf check flags and the costs of
// leaves.
func (t *Tree) Validate() error {
	if t.Root == nil {
		if len(t.Instructions) != 0 {
			return fmt.Errorf("%w: %d instructions but no root", ErrInvariant, len(t.Instructions))
		}
		return nil
	}
	return t.validate(t.Root)
}

func (t *Tree) validate(n *Node) error {
	if err := CheckInvariant(n.Instructions, n.CheckedMask, n.CheckedValue); err != nil {
		return fmt.Errorf("node at depth %d: %w", n.Depth, err)
	}
	if n.CheckedValue&^n.CheckedMask != 0 {
		return fmt.Errorf("%w: node at depth %d checks value %#08x outside mask %#08x",
			ErrInvariant, n.Depth, n.CheckedValue, n.CheckedMask)
	}

	switch {
	case n.IsLeaf():
		want := n.Instructions[0].FixedMask()&^n.CheckedMask != 0
		if n.LeafCheckNeeded != want {
			return fmt.Errorf("%w: leaf %s has LeafCheckNeeded=%t, want %t",
				ErrInvariant, n.Instructions[0].Name, n.LeafCheckNeeded, want)
		}
		return nil
	case n.IsCheckList():
		if !n.LeafCheckNeeded {
			return fmt.Errorf("%w: check list at depth %d without checks", ErrInvariant, n.Depth)
		}
		return nil
	case len(n.Instructions) == 0:
		return fmt.Errorf("%w: empty node at depth %d", ErrInvariant, n.Depth)
	}

	if n.Mask&n.CheckedMask != 0 {
		return fmt.Errorf("%w: node at depth %d dispatches on checked bits %#08x",
			ErrInvariant, n.Depth, n.Mask&n.CheckedMask)
	}
	if len(n.Children) != 1<<bits.OnesCount32(n.Mask) {
		return fmt.Errorf("%w: node at depth %d has %d children for mask %#08x",
			ErrInvariant, n.Depth, len(n.Children), n.Mask)
	}
	for idx, c := range n.Children {
		if c == nil {
			continue
		}
		if c.CheckedMask != n.CheckedMask|n.Mask || c.CheckedValue != n.CheckedValue|n.Algo.Expand(uint32(idx)) {
			return fmt.Errorf("%w: child %d at depth %d checks %#08x/%#08x",
				ErrInvariant, idx, c.Depth, c.CheckedValue, c.CheckedMask)
		}
		if err := t.validate(c); err != nil {
			return err
		}
	}
	return nil
}
