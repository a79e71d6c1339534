package insts_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/armspecgen/ast"
	"github.com/sarchlab/armspecgen/insts"
)

func jTrue() map[string]any {
	return map[string]any{"_type": "AST.Bool", "value": true}
}

func jSet(name string, width int, enc map[string]any) map[string]any {
	return map[string]any{
		"_type":      "Instruction.InstructionSet",
		"name":       name,
		"read_width": width,
		"encoding":   enc,
		"condition":  jTrue(),
		"children":   []any{},
	}
}

func jGroup(name string, enc map[string]any) map[string]any {
	return map[string]any{
		"_type":     "Instruction.InstructionGroup",
		"name":      name,
		"encoding":  enc,
		"condition": jTrue(),
		"children":  []any{},
	}
}

var _ = Describe("Instruction hierarchy", func() {
	var (
		set   *insts.Set
		group *insts.Group
	)

	BeforeEach(func() {
		var err error
		set, err = insts.SetFromJSON(jSet("A64", 32, jEncodeset(jEncField("", 0, 32, "'xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx'"))))
		Expect(err).NotTo(HaveOccurred())
		group, err = insts.GroupFromJSON(jGroup("sve", jEncodeset(jEncField("", 25, 4, "'0010'"))), &set.Group)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should link groups to their parents", func() {
		Expect(set.IsSet()).To(BeTrue())
		Expect(group.IsSet()).To(BeFalse())
		Expect(set.Groups).To(ConsistOf(group))
		Expect(group.Ancestors()).To(HaveLen(2))
		Expect(group.Covered).To(Equal(uint32(0x1E000000)))
		Expect(group.String()).To(Equal("group-name=sve Fields=#1/0x1e000000 cond=true parent=A64"))
	})

	It("should reject sets that are not 32 bits wide", func() {
		_, err := insts.SetFromJSON(jSet("T32", 16, jEncodeset()))
		Expect(errors.Is(err, insts.ErrEncoding)).To(BeTrue())
	})

	It("should reject the wrong object type", func() {
		_, err := insts.GroupFromJSON(jSet("A64", 32, jEncodeset()), &set.Group)
		Expect(errors.Is(err, ast.ErrSchema)).To(BeTrue())
	})

	It("should index instructions at every level", func() {
		inst, err := insts.NewInstruction("add_z_zz_", "ADD", "ADD <Zd>", nil, nil, group, set)
		Expect(err).NotTo(HaveOccurred())
		Expect(group.AddInstruction(inst)).To(Succeed())

		Expect(group.Instructions).To(ConsistOf(inst))
		Expect(set.Instructions).To(BeEmpty())
		Expect(set.AllInstructions()).To(ConsistOf(inst))
		Expect(set.Lookup("add_z_zz_")).To(BeIdenticalTo(inst))
		Expect(ast.IsBoolAndTrue(inst.Condition)).To(BeTrue())

		dup, err := insts.NewInstruction("add_z_zz_", "ADD", "ADD", nil, nil, &set.Group, set)
		Expect(err).NotTo(HaveOccurred())
		Expect(errors.Is(set.AddInstruction(dup), ast.ErrSchema)).To(BeTrue())
	})

	It("should strip a trailing underscore from the C name unless it clashes", func() {
		a, _ := insts.NewInstruction("mov_", "MOV", "MOV", nil, nil, group, set)
		b, _ := insts.NewInstruction("orr_", "ORR", "ORR", nil, nil, group, set)
		c, _ := insts.NewInstruction("orr", "ORR", "ORR", nil, nil, group, set)
		for _, i := range []*insts.Instruction{a, b, c} {
			Expect(group.AddInstruction(i)).To(Succeed())
		}
		Expect(a.CName()).To(Equal("mov"))
		Expect(b.CName()).To(Equal("orr_"))
		Expect(c.CName()).To(Equal("orr"))
	})

	It("should describe its location", func() {
		inst, _ := insts.NewInstruction("add_z_zz_", "ADD", "ADD", nil, nil, group, set)
		Expect(inst.SetName()).To(Equal("A64"))
		Expect(inst.GroupNames()).To(Equal([]string{"sve", "A64"}))
		Expect(inst.GroupNamesWithLabels()).To(Equal("Instruction Set: A64  Group: sve"))
	})

	It("should reject invalid names", func() {
		_, err := insts.NewInstruction("1bad", "X", "X", nil, nil, group, set)
		Expect(errors.Is(err, ast.ErrSchema)).To(BeTrue())
	})
})

var _ = Describe("Instruction", func() {
	var inst *insts.Instruction

	BeforeEach(func() {
		var err error
		inst, err = insts.NewInstruction("nop", "NOP", "NOP", []*insts.Field{
			{Name: "Rt", FirstBit: 0, Width: 5, Fixed: 0x1f, Value: 0x1f},
			{Name: "op2", FirstBit: 5, Width: 3},
			{Name: "CRm", FirstBit: 8, Width: 4, Fixed: 0b1100, Value: 0b0100},
			{FirstBit: 12, Width: 20, Fixed: 0xfffff, Value: 0xD5032},
		}, nil, nil, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should derive the fixed mask and value", func() {
		Expect(inst.FixedMask()).To(Equal(uint32(0xFFFFFC1F)))
		Expect(inst.FixedValue()).To(Equal(uint32(0xD503241F)))
		Expect(inst.FixedValue() &^ inst.FixedMask()).To(BeZero())
		Expect(inst.Covered()).To(Equal(insts.AllOnes))
	})

	It("should match opcodes against the fixed bits", func() {
		Expect(inst.Matches(0xD503241F)).To(BeTrue())
		Expect(inst.Matches(0xD50327FF)).To(BeTrue())
		Expect(inst.Matches(0xD503201F)).To(BeFalse())
	})

	It("should list the operand fields by position", func() {
		names := []string{}
		for _, f := range inst.NamedNonFixedFields() {
			names = append(names, f.Name)
		}
		Expect(names).To(Equal([]string{"op2", "CRm"}))
	})

	It("should format itself for listings", func() {
		Expect(inst.String()).To(Equal("sName=nop sMnemonic=NOP fFixedValue/Mask=0xd503241f/0xfffffc1f #encoding=4"))
		Expect(inst.Format(0, true)).To(ContainSubstring("encoding=\n    [ 4:0 ] = 0x1f/0x1f/0x1f # Rt,\n"))
	})

	It("should reject overlapping fields", func() {
		_, err := insts.NewInstruction("bad", "BAD", "BAD", []*insts.Field{
			{Name: "a", FirstBit: 0, Width: 4},
			{Name: "b", FirstBit: 2, Width: 4},
		}, nil, nil, nil)
		Expect(errors.Is(err, insts.ErrEncoding)).To(BeTrue())
	})
})
