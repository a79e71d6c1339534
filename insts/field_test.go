package insts_test

import (
	"errors"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/armspecgen/ast"
	"github.com/sarchlab/armspecgen/insts"
)

func jEncField(name string, start, width int, value string) map[string]any {
	obj := map[string]any{
		"_type": "Instruction.Encodeset.Field",
		"name":  name,
		"range": map[string]any{"_type": "Range", "start": start, "width": width},
		"value": map[string]any{"_type": "Values.Value", "value": value, "meaning": nil},
	}
	if name == "" {
		obj["_type"] = "Instruction.Encodeset.Bits"
		delete(obj, "name")
	}
	return obj
}

func jEncodeset(values ...any) map[string]any {
	return map[string]any{"_type": "Instruction.Encodeset.Encodeset", "values": values}
}

var _ = Describe("Field", func() {
	It("should parse a named field", func() {
		f, err := insts.FieldFromJSON(jEncField("size", 22, 2, "'1x'"))
		Expect(err).NotTo(HaveOccurred())
		Expect(f).To(Equal(&insts.Field{Name: "size", FirstBit: 22, Width: 2, Fixed: 0b10, Value: 0b10}))
		Expect(f.ShiftedMask()).To(Equal(uint32(0x00C00000)))
		Expect(f.ShiftedFixed()).To(Equal(uint32(0x00800000)))
		Expect(f.ShiftedValue()).To(Equal(uint32(0x00800000)))
		Expect(f.String()).To(Equal("[23:22] = 0x2/0x2/0x3 # size"))
	})

	It("should parse anonymous bits", func() {
		f, err := insts.FieldFromJSON(jEncField("", 0, 32, "'11010101000000110010000000011111'"))
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Name).To(BeEmpty())
		Expect(f.Mask()).To(Equal(insts.AllOnes))
		Expect(f.ShiftedValue()).To(Equal(uint32(0xD503201F)))
		Expect(f.IsFullyFixed()).To(BeTrue())
	})

	It("should reject a literal of the wrong width", func() {
		_, err := insts.FieldFromJSON(jEncField("Rd", 0, 5, "'101'"))
		Expect(errors.Is(err, ast.ErrSchema)).To(BeTrue())
	})

	It("should reject a range outside the opcode", func() {
		_, err := insts.FieldFromJSON(jEncField("x", 30, 4, "'xxxx'"))
		Expect(errors.Is(err, insts.ErrEncoding)).To(BeTrue())
	})

	It("should clone independently", func() {
		f := &insts.Field{Name: "U", FirstBit: 29, Width: 1}
		c := f.Clone()
		c.Fixed = 1
		Expect(f.Fixed).To(BeZero())
	})
})

var _ = Describe("Encodeset", func() {
	It("should load disjoint fields and report their coverage", func() {
		fields, covered, err := insts.FieldsFromEncodeset(jEncodeset(
			jEncField("", 24, 8, "'00000101'"),
			jEncField("imm26", 0, 24, "'xxxxxxxxxxxxxxxxxxxxxxxx'"),
		))
		Expect(err).NotTo(HaveOccurred())
		Expect(fields).To(HaveLen(2))
		Expect(covered).To(Equal(insts.AllOnes))
	})

	It("should reject overlapping fields", func() {
		_, _, err := insts.FieldsFromEncodeset(jEncodeset(
			jEncField("a", 0, 4, "'xxxx'"),
			jEncField("b", 3, 2, "'xx'"),
		))
		Expect(errors.Is(err, insts.ErrEncoding)).To(BeTrue())
	})

	It("should inherit only uncovered parent fields", func() {
		own := []*insts.Field{{Name: "Rd", FirstBit: 0, Width: 5}}
		parent := []*insts.Field{
			{Name: "Rd", FirstBit: 0, Width: 5, Fixed: 0x1f, Value: 0x1f},
			{FirstBit: 28, Width: 2, Fixed: 0b11, Value: 0b10},
		}
		fields, covered, err := insts.AddParentFields(own, 0x1f, parent)
		Expect(err).NotTo(HaveOccurred())
		Expect(covered).To(Equal(uint32(0x3000001f)))
		Expect(cmp.Diff(fields, []*insts.Field{
			{Name: "Rd", FirstBit: 0, Width: 5},
			{FirstBit: 28, Width: 2, Fixed: 0b11, Value: 0b10},
		})).To(BeEmpty())
		Expect(fields[1]).NotTo(BeIdenticalTo(parent[1]))
	})

	It("should reject a partially overlapping parent field", func() {
		own := []*insts.Field{{Name: "Rd", FirstBit: 0, Width: 5}}
		parent := []*insts.Field{{Name: "op", FirstBit: 4, Width: 2}}
		_, _, err := insts.AddParentFields(own, 0x1f, parent)
		Expect(errors.Is(err, insts.ErrEncoding)).To(BeTrue())
	})
})
