package decoder_test

import (
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/armspecgen/decoder"
	"github.com/sarchlab/armspecgen/insts"
)

func mkInst(name string, mask, value uint32) *insts.Instruction {
	inst, err := insts.NewInstruction(name, name, name, []*insts.Field{
		{FirstBit: 0, Width: 32, Fixed: mask, Value: value},
	}, nil, nil, nil)
	Expect(err).NotTo(HaveOccurred())
	return inst
}

func expectComplete(tree *decoder.Tree) {
	Expect(tree.Validate()).To(Succeed())
	for _, inst := range tree.Instructions {
		Expect(tree.Lookup(inst.FixedValue())).To(BeIdenticalTo(inst), inst.Name)
	}
}

var _ = Describe("Synthesize", func() {
	It("should produce no nodes for an empty list", func() {
		tree, err := decoder.Synthesize(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(tree.Root).To(BeNil())
		Expect(tree.Stats()).To(Equal(decoder.Stats{}))
		Expect(tree.Lookup(0xD503201F)).To(BeNil())
		Expect(tree.Validate()).To(Succeed())
	})

	It("should make a single instruction a checked leaf", func() {
		nop := mkInst("nop", 0xFFFFFFFF, 0xD503201F)
		tree, err := decoder.Synthesize([]*insts.Instruction{nop})
		Expect(err).NotTo(HaveOccurred())

		Expect(tree.Root.IsLeaf()).To(BeTrue())
		Expect(tree.Root.Instruction()).To(BeIdenticalTo(nop))
		Expect(tree.Root.LeafCheckNeeded).To(BeTrue())
		Expect(tree.Root.Cost).To(Equal(16))
		Expect(tree.Lookup(0xD503201F)).To(BeIdenticalTo(nop))
		Expect(tree.Lookup(0xD503203F)).To(BeNil())
	})

	It("should split two instructions on the bit they differ in", func() {
		a := mkInst("ia", 0x40000000, 0)
		b := mkInst("ib", 0x40000000, 0x40000000)
		tree, err := decoder.Synthesize([]*insts.Instruction{a, b})
		Expect(err).NotTo(HaveOccurred())

		root := tree.Root
		Expect(root.Mask).To(Equal(uint32(0x40000000)))
		Expect(root.Children).To(HaveLen(2))
		Expect(root.Cost).To(BeZero())
		for i, want := range []*insts.Instruction{a, b} {
			child := root.Children[i]
			Expect(child.Instruction()).To(BeIdenticalTo(want))
			Expect(child.LeafCheckNeeded).To(BeFalse())
			Expect(child.Cost).To(BeZero())
			Expect(child.Depth).To(Equal(1))
		}
		expectComplete(tree)
	})

	It("should dispatch four patterns through one four-entry table", func() {
		var instrs []*insts.Instruction
		for i := uint32(0); i < 4; i++ {
			instrs = append(instrs, mkInst(fmt.Sprintf("i%d", i), 0xC0000000, i<<30))
		}
		tree, err := decoder.Synthesize(instrs)
		Expect(err).NotTo(HaveOccurred())

		Expect(tree.Root.Mask).To(Equal(uint32(0xC0000000)))
		Expect(tree.Root.Children).To(HaveLen(4))
		for i, child := range tree.Root.Children {
			Expect(child.Instruction()).To(BeIdenticalTo(instrs[i]))
			Expect(child.LeafCheckNeeded).To(BeFalse())
		}
		Expect(tree.Stats()).To(Equal(decoder.Stats{
			Nodes: 5, Tables: 1, TableEntries: 4, Leaves: 4, MaxDepth: 1,
		}))
		expectComplete(tree)
	})

	It("should place instructions into every entry their wildcards allow", func() {
		a := mkInst("ia", 0x80000000, 0x80000000)
		b := mkInst("ib", 0xC0000000, 0x40000000)
		c := mkInst("ic", 0xC0000000, 0)
		tree, err := decoder.Synthesize([]*insts.Instruction{a, b, c})
		Expect(err).NotTo(HaveOccurred())

		Expect(tree.Root.Mask).To(Equal(uint32(0xC0000000)))
		Expect(tree.Root.Children[2].Instruction()).To(BeIdenticalTo(a))
		Expect(tree.Root.Children[3].Instruction()).To(BeIdenticalTo(a))
		Expect(tree.Lookup(0xC0001234)).To(BeIdenticalTo(a))
		Expect(tree.Lookup(0x40000000)).To(BeIdenticalTo(b))
		Expect(tree.Lookup(0x00000000)).To(BeIdenticalTo(c))
		Expect(tree.Stats().Cost).To(BeZero())
		expectComplete(tree)
	})

	It("should leave empty entries for invalid opcodes", func() {
		a := mkInst("ia", 0x80000001, 0x80000001)
		b := mkInst("ib", 0x80000000, 0)
		tree, err := decoder.Synthesize([]*insts.Instruction{a, b})
		Expect(err).NotTo(HaveOccurred())

		Expect(tree.Root.Mask).To(Equal(uint32(0x80000001)))
		Expect(tree.Root.Children[2]).To(BeNil())
		Expect(tree.Lookup(0x80000000)).To(BeNil())
		Expect(tree.Stats().EmptyEntries).To(Equal(1))
		expectComplete(tree)
	})

	It("should check leaves that still have unchecked fixed bits", func() {
		a := mkInst("ia", 0xFFFF0000, 0x12340000)
		b := mkInst("ib", 0xFFFF0000, 0x56780000)
		tree, err := decoder.Synthesize([]*insts.Instruction{a, b})
		Expect(err).NotTo(HaveOccurred())

		Expect(tree.Root.Mask).To(Equal(uint32(0xF0000000)))
		Expect(tree.Root.Cost).To(Equal(32))
		leaf := tree.Root.Children[1]
		Expect(leaf.Instruction()).To(BeIdenticalTo(a))
		Expect(leaf.LeafCheckNeeded).To(BeTrue())
		Expect(tree.Lookup(0x1234ABCD)).To(BeIdenticalTo(a))
		Expect(tree.Lookup(0x10000000)).To(BeNil())
		Expect(tree.Stats().LeafChecks).To(Equal(2))
		expectComplete(tree)
	})

	It("should fall back to a check list for identical encodings", func() {
		a := mkInst("ia", 0x000000FF, 0x0F)
		b := mkInst("ib", 0x000000FF, 0x0F)
		tree, err := decoder.Synthesize([]*insts.Instruction{a, b})
		Expect(err).NotTo(HaveOccurred())
		Expect(tree.Validate()).To(Succeed())

		st := tree.Stats()
		Expect(st.CheckLists).To(Equal(1))
		Expect(st.Leaves).To(BeZero())
		Expect(st.Cost).To(Equal(32))
		Expect(tree.Lookup(0x0F)).To(BeIdenticalTo(a))
		Expect(tree.Lookup(0x1F)).To(BeNil())
	})

	It("should try the most specific instruction of a check list first", func() {
		general := mkInst("general", 0x0000000F, 0x5)
		special := mkInst("special", 0x000000FF, 0x35)
		tree, err := decoder.Synthesize([]*insts.Instruction{general, special})
		Expect(err).NotTo(HaveOccurred())
		Expect(tree.Validate()).To(Succeed())

		var lists []*decoder.Node
		tree.Walk(func(n *decoder.Node) {
			if n.IsCheckList() {
				lists = append(lists, n)
			}
		})
		for _, n := range lists {
			Expect(n.Instructions[0]).To(BeIdenticalTo(special))
		}
		Expect(tree.Lookup(0x35)).To(BeIdenticalTo(special))
		Expect(tree.Lookup(0x45)).To(BeIdenticalTo(general))
	})

	It("should settle identical wide encodings quickly", func() {
		for _, mask := range []uint32{0xFF, 0xFFFF, 0xFFFFF, 0xFFFFF01F, 0xFFFFFFFF} {
			a := mkInst("ia", mask, 0xD503201F&mask)
			b := mkInst("ib", mask, 0xD503201F&mask)

			start := time.Now()
			tree, err := decoder.Synthesize([]*insts.Instruction{a, b})
			Expect(err).NotTo(HaveOccurred())
			Expect(time.Since(start)).To(BeNumerically("<", 2*time.Second), fmt.Sprintf("%#08x", mask))

			Expect(tree.Root.IsCheckList()).To(BeTrue())
			Expect(tree.Stats().Nodes).To(Equal(1))
			Expect(tree.Validate()).To(Succeed())
			Expect(tree.Lookup(0xD503201F)).To(BeIdenticalTo(a))
		}
	})

	It("should settle a generic hint shadowing specific ones quickly", func() {
		hint := mkInst("hint", 0xFFFFF01F, 0xD503201F)
		nop := mkInst("nop", 0xFFFFFFFF, 0xD503201F)
		yield := mkInst("yield", 0xFFFFFFFF, 0xD503203F)
		wfe := mkInst("wfe", 0xFFFFFFFF, 0xD503205F)

		start := time.Now()
		pair, err := decoder.Synthesize([]*insts.Instruction{hint, nop})
		Expect(err).NotTo(HaveOccurred())
		Expect(pair.Root.IsCheckList()).To(BeTrue())
		Expect(pair.Root.Instructions[0]).To(BeIdenticalTo(nop))
		Expect(pair.Validate()).To(Succeed())

		tree, err := decoder.Synthesize([]*insts.Instruction{hint, nop, yield, wfe})
		Expect(err).NotTo(HaveOccurred())
		Expect(time.Since(start)).To(BeNumerically("<", 2*time.Second))

		Expect(tree.Validate()).To(Succeed())
		Expect(tree.Stats().CheckLists).To(BeNumerically(">", 0))
		Expect(tree.Lookup(0xD503201F)).To(BeIdenticalTo(nop))
		Expect(tree.Lookup(0xD503203F)).To(BeIdenticalTo(yield))
		Expect(tree.Lookup(0xD503205F)).To(BeIdenticalTo(wfe))
		Expect(tree.Lookup(0xD50320FF)).To(BeIdenticalTo(hint))
		Expect(tree.Lookup(0xD503201E)).To(BeNil())
	})

	It("should decode every instruction of a larger set", func() {
		var instrs []*insts.Instruction
		for i := uint32(0); i < 48; i++ {
			mask := uint32(0xFC000000)
			value := (i & 0x3F) << 26
			if i%3 == 0 {
				mask |= 0x001F0000
				value |= (i * 7 & 0x1F) << 16
			}
			if i%5 == 0 {
				mask |= 0x00000C00
				value |= (i & 0x3) << 10
			}
			instrs = append(instrs, mkInst(fmt.Sprintf("op%d", i), mask, value))
		}

		tree, err := decoder.Synthesize(instrs)
		Expect(err).NotTo(HaveOccurred())
		expectComplete(tree)

		p := decoder.DefaultParams()
		p.DepthWeight = 1
		p.TableSizeWeight = 1
		weighted, err := decoder.Synthesize(instrs, decoder.WithParams(p))
		Expect(err).NotTo(HaveOccurred())
		expectComplete(weighted)
		Expect(weighted.Root.Cost).To(BeNumerically(">", 0))
	})

	It("should give the same tree with a tiny memo", func() {
		var instrs []*insts.Instruction
		for i := uint32(0); i < 16; i++ {
			instrs = append(instrs, mkInst(fmt.Sprintf("op%d", i), 0xF0000F00, i<<28|(i^5)<<8))
		}
		big, err := decoder.Synthesize(instrs)
		Expect(err).NotTo(HaveOccurred())

		p := decoder.DefaultParams()
		p.MemoSets, p.MemoWays = 1, 1
		small, err := decoder.Synthesize(instrs, decoder.WithParams(p))
		Expect(err).NotTo(HaveOccurred())

		Expect(small.Stats()).To(Equal(big.Stats()))
		Expect(small.Root.Mask).To(Equal(big.Root.Mask))
	})

	It("should reject invalid parameters", func() {
		p := decoder.DefaultParams()
		p.MaxSeedMasks = 0
		_, err := decoder.Synthesize([]*insts.Instruction{mkInst("ia", 1, 1)}, decoder.WithParams(p))
		Expect(err).To(HaveOccurred())
	})

	It("should reject fixed values outside the fixed mask", func() {
		bad := mkInst("bad", 0x1, 0x3)
		_, err := decoder.Synthesize([]*insts.Instruction{bad, mkInst("ok", 0x1, 0)})
		Expect(errors.Is(err, decoder.ErrInvariant)).To(BeTrue())
	})
})

var _ = Describe("Invariant", func() {
	It("should detect instructions that disagree with the checked bits", func() {
		inst := mkInst("ia", 0xF0000000, 0x10000000)
		Expect(decoder.CheckInvariant([]*insts.Instruction{inst}, 0xF0000000, 0x10000000)).To(Succeed())
		Expect(decoder.CheckInvariant([]*insts.Instruction{inst}, 0x0F000000, 0x0F000000)).To(Succeed())

		err := decoder.CheckInvariant([]*insts.Instruction{inst}, 0xF0000000, 0x20000000)
		Expect(errors.Is(err, decoder.ErrInvariant)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("ia:"))
	})

	It("should catch a tampered tree", func() {
		var instrs []*insts.Instruction
		for i := uint32(0); i < 4; i++ {
			instrs = append(instrs, mkInst(fmt.Sprintf("i%d", i), 0xC0000000, i<<30))
		}
		tree, err := decoder.Synthesize(instrs)
		Expect(err).NotTo(HaveOccurred())

		tree.Root.Children[1].CheckedValue = 0x80000000
		Expect(errors.Is(tree.Validate(), decoder.ErrInvariant)).To(BeTrue())
	})

	It("should catch a wrong leaf check flag", func() {
		tree, err := decoder.Synthesize([]*insts.Instruction{mkInst("nop", 0xFFFFFFFF, 0xD503201F)})
		Expect(err).NotTo(HaveOccurred())

		tree.Root.LeafCheckNeeded = false
		Expect(errors.Is(tree.Validate(), decoder.ErrInvariant)).To(BeTrue())
	})
})
