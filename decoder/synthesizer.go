package decoder

import (
	"fmt"
	"io"
	"math/bits"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/sarchlab/armspecgen/insts"
)

// Node is one node of the decoder tree.
//
// A node with a non-zero Mask is a dispatch table: the opcode bits selected
// by Mask are compacted by Algo and index Children, whose nil entries are
// invalid opcodes. A node with a zero Mask is either a leaf holding one
// instruction or, when the remaining instructions cannot be told apart by
// their fixed bits, a check list tried in order.
type Node struct {
	Instructions []*insts.Instruction
	CheckedMask  uint32
	CheckedValue uint32
	Depth        int

	Mask     uint32
	Algo     Algo
	Children []*Node

	// LeafCheckNeeded is set when the instruction fixes bits that were not
	// checked on the way down, or for every check list.
	LeafCheckNeeded bool
	Cost            int
}

// IsTable reports whether n dispatches on opcode bits.
func (n *Node) IsTable() bool {
	return n.Mask != 0
}

// IsLeaf reports whether n decodes to exactly one instruction.
func (n *Node) IsLeaf() bool {
	return n.Mask == 0 && len(n.Instructions) == 1
}

// IsCheckList reports whether n tries several instructions in order.
func (n *Node) IsCheckList() bool {
	return n.Mask == 0 && len(n.Instructions) > 1
}

// Instruction returns the instruction of a leaf, or nil.
func (n *Node) Instruction() *insts.Instruction {
	if !n.IsLeaf() {
		return nil
	}
	return n.Instructions[0]
}

// item caches the encoding of an input instruction during the search.
type item struct {
	inst  *insts.Instruction
	id    int
	mask  uint32
	value uint32
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithLogger sets the logger for per-node debug messages.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Synthesizer) {
		s.log = log
	}
}

// WithParams replaces the default search parameters.
func WithParams(p Params) Option {
	return func(s *Synthesizer) {
		s.params = p
	}
}

// Synthesizer builds decoder trees.
type Synthesizer struct {
	params Params
	log    logrus.FieldLogger
	memo   *memo
}

// New creates a Synthesizer.
func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{params: DefaultParams()}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		s.log = discard
	}
	return s
}

// Synthesize builds a decoder tree with a new Synthesizer.
func Synthesize(instrs []*insts.Instruction, opts ...Option) (*Tree, error) {
	return New(opts...).Synthesize(instrs)
}

// Synthesize builds the decoder tree for instrs. An empty list gives a tree
// without a root.
func (s *Synthesizer) Synthesize(instrs []*insts.Instruction) (*Tree, error) {
	if err := s.params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid decoder parameters: %w", err)
	}
	if s.memo == nil {
		s.memo = newMemo(s.params.MemoSets, s.params.MemoWays)
	} else {
		s.memo.reset()
	}

	tree := &Tree{Instructions: instrs, Params: s.params}
	if len(instrs) == 0 {
		return tree, nil
	}

	items := make([]item, len(instrs))
	for i, inst := range instrs {
		items[i] = item{inst: inst, id: i, mask: inst.FixedMask(), value: inst.FixedValue()}
		if items[i].value&^items[i].mask != 0 {
			return nil, fmt.Errorf("%w: %s: fixed value %#08x has bits outside fixed mask %#08x",
				ErrInvariant, inst.Name, items[i].value, items[i].mask)
		}
	}

	root, err := s.build(items, 0, 0, 0)
	if err != nil {
		return nil, err
	}
	tree.Root = root
	tree.Memo = MemoStats{Hits: s.memo.hits, Misses: s.memo.misses, Evictions: s.memo.evictions}
	return tree, nil
}

// CheckInvariant verifies that every instruction agrees with checkedValue on
// the bits that both checkedMask and the instruction fix.
func CheckInvariant(instrs []*insts.Instruction, checkedMask, checkedValue uint32) error {
	for _, inst := range instrs {
		mask, value := inst.FixedMask(), inst.FixedValue()
		if value&^mask != 0 {
			return fmt.Errorf("%w: %s: fixed value %#08x has bits outside fixed mask %#08x",
				ErrInvariant, inst.Name, value, mask)
		}
		if (value^checkedValue)&checkedMask&mask != 0 {
			return fmt.Errorf("%w: %s: %#08x/%#08x disagrees with checked %#08x/%#08x",
				ErrInvariant, inst.Name, value, mask, checkedValue, checkedMask)
		}
	}
	return nil
}

func checkItems(items []item, checkedMask, checkedValue uint32) error {
	for _, it := range items {
		if (it.value^checkedValue)&checkedMask&it.mask != 0 {
			return fmt.Errorf("%w: %s: %#08x/%#08x disagrees with checked %#08x/%#08x",
				ErrInvariant, it.inst.Name, it.value, it.mask, checkedValue, checkedMask)
		}
	}
	return nil
}

func (s *Synthesizer) build(items []item, checkedMask, checkedValue uint32, depth int) (*Node, error) {
	if err := checkItems(items, checkedMask, checkedValue); err != nil {
		return nil, err
	}

	node := &Node{
		Instructions: make([]*insts.Instruction, len(items)),
		CheckedMask:  checkedMask,
		CheckedValue: checkedValue,
		Depth:        depth,
	}
	for i, it := range items {
		node.Instructions[i] = it.inst
	}

	if len(items) == 1 {
		node.LeafCheckNeeded = items[0].mask&^checkedMask != 0
		node.Cost = s.leafCost(items[0], checkedMask)
		return node, nil
	}

	d := s.decide(items, checkedMask, depth)
	if d.mask == 0 {
		s.makeCheckList(node, items)
		return node, nil
	}

	algo, err := CompactMask(d.mask, s.params.MaxMaskRuns)
	if err != nil {
		return nil, err
	}
	node.Mask = d.mask
	node.Algo = algo
	node.Cost = d.cost
	node.Children = make([]*Node, algo.Size())

	s.log.WithFields(logrus.Fields{
		"depth":        depth,
		"instructions": len(items),
		"checked":      fmt.Sprintf("%#08x", checkedMask),
	}).Debugf("dispatch on %#08x (%d entries, cost %d)", d.mask, algo.Size(), d.cost)

	for idx, bucket := range partition(items, algo) {
		if len(bucket) == 0 {
			continue
		}
		child, err := s.build(bucket, checkedMask|d.mask, checkedValue|algo.Expand(uint32(idx)), depth+1)
		if err != nil {
			return nil, err
		}
		node.Children[idx] = child
	}
	return node, nil
}

func (s *Synthesizer) makeCheckList(node *Node, items []item) {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b item) int {
		return bits.OnesCount32(b.mask) - bits.OnesCount32(a.mask)
	})
	for i, it := range sorted {
		node.Instructions[i] = it.inst
	}
	node.LeafCheckNeeded = true
	node.Cost = s.params.LeafCheckCost * len(items)

	names := make([]string, len(sorted))
	for i, it := range sorted {
		names[i] = it.inst.Name
	}
	s.log.WithField("depth", node.Depth).Warnf("cannot tell %v apart by fixed bits", names)
}

func (s *Synthesizer) leafCost(it item, checkedMask uint32) int {
	if it.mask&^checkedMask != 0 {
		return s.params.LeafCheckCost
	}
	return 0
}

// cost returns the cost of the subtree for items without building it.
func (s *Synthesizer) cost(items []item, checkedMask uint32, depth int) int {
	switch len(items) {
	case 0:
		return 0
	case 1:
		return s.leafCost(items[0], checkedMask)
	}
	return s.decide(items, checkedMask, depth).cost
}

// decide searches the dispatch mask for a node. A zero mask means no
// candidate splits the items and the node becomes a check list.
func (s *Synthesizer) decide(items []item, checkedMask uint32, depth int) decision {
	ids := make([]int, len(items))
	unchecked := make([]uint32, len(items))
	for i, it := range items {
		ids[i] = it.id
		unchecked[i] = it.mask &^ checkedMask
	}
	key := memoKey(checkedMask, depth, ids)
	if d, ok := s.memo.get(key); ok {
		return d
	}

	best := decision{cost: s.params.LeafCheckCost * len(items)}
	found := false
	iter := NewMaskIterator(unchecked, s.params)
	for {
		mask, algo, ok := iter.Next()
		if !ok {
			break
		}

		buckets := partition(items, algo)
		if !splits(buckets, len(items)) {
			continue
		}

		base := s.params.DepthWeight*depth + s.params.TableSizeWeight*algo.Bits()
		limit := -1
		if found {
			limit = best.cost
		}
		cost, complete := s.evaluate(buckets, checkedMask|algo.Mask, depth, base, limit)
		if !complete {
			continue
		}
		if !found || cost < best.cost {
			best = decision{mask: mask, cost: cost}
			found = true
		}
		if best.cost == 0 {
			break
		}
	}

	s.memo.put(key, best)
	return best
}

// splits reports whether every entry holds fewer than n items. An entry
// that keeps all of them would repeat the search one level deeper.
func splits(buckets [][]item, n int) bool {
	for _, b := range buckets {
		if len(b) >= n {
			return false
		}
	}
	return true
}

// evaluate sums the cost of the buckets one level below depth. With
// limit >= 0 it gives up as soon as the sum reaches limit.
func (s *Synthesizer) evaluate(buckets [][]item, checkedMask uint32, depth int, base, limit int) (int, bool) {
	total := base
	for _, bucket := range buckets {
		if limit >= 0 && total >= limit {
			return total, false
		}
		total += s.cost(bucket, checkedMask, depth+1)
	}
	if limit >= 0 && total >= limit {
		return total, false
	}
	return total, true
}

// partition places every item into each table entry compatible with its
// fixed bits. Items keep their relative order within an entry. Bucketing
// by value alone would leave opcodes matching a wildcard unreachable.
func partition(items []item, algo Algo) [][]item {
	buckets := make([][]item, algo.Size())
	for _, it := range items {
		fixed := algo.Index(it.mask)
		value := algo.Index(it.value)
		free := uint32(algo.Size()-1) &^ fixed
		for sub := free; ; sub = (sub - 1) & free {
			buckets[value|sub] = append(buckets[value|sub], it)
			if sub == 0 {
				break
			}
		}
	}
	return buckets
}
