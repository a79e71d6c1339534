package spec_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/armspecgen/ast"
	"github.com/sarchlab/armspecgen/spec"
)

var _ = Describe("Registers", func() {
	load := func(registers ...any) (*spec.Spec, error) {
		return spec.Load(docs([]any{}, nil, nil, registers))
	}
	midr := func() map[string]any {
		return jRegister("MIDR_EL1", "AArch64",
			[]any{jFieldset(64,
				jReserved(32, 32),
				jRegField("Implementer", 24, 8),
				jRegField("Variant", 20, 4),
				jRegField("Revision", 0, 4),
			)},
			jSysAccessor("MIDR_EL1", jEncoding("MIDR_EL1", map[string]string{
				"op2": "'000'", "CRm": "'0000'", "op1": "'000'", "op0": "'11'", "CRn": "'0000'",
			})),
		)
	}

	It("should load fieldsets and system accessors", func() {
		s, err := load(midr())
		Expect(err).NotTo(HaveOccurred())
		Expect(s.RegistersVersion.String()).To(Equal("architecture=2025-03"))

		r := s.Register("AArch64", "MIDR_EL1")
		Expect(r).NotTo(BeNil())
		Expect(r.ConstantName()).To(Equal("ARMV8_AARCH64_SYSREG_MIDR_EL1"))
		Expect(r.Fieldsets).To(HaveLen(1))
		Expect(r.Fieldsets[0].String()).
			To(Equal("64 bits: Revision@0:4, Variant@20:4, Implementer@24:8, @32:32"))
		Expect(r.FieldsByName("Variant")).To(HaveLen(1))

		Expect(r.Accessors).To(HaveLen(1))
		a := r.Accessors[0]
		Expect(a.IsSystem()).To(BeTrue())
		Expect(a.Encoding.Keys).To(Equal([]string{"op0", "op1", "CRn", "CRm", "op2"}))
		Expect(a.Encoding.String()).
			To(Equal("MIDR_EL1={op0='11', op1='000', CRn='0000', CRm='0000', op2='000'}"))

		id, err := a.Encoding.SysRegID()
		Expect(err).NotTo(HaveOccurred())
		Expect(id.String()).To(Equal("S3_0_C0_C0_0"))
		Expect(id.Packed()).To(Equal(uint32(0xc000)))
	})

	It("should pack the operands of MRS", func() {
		e, err := spec.EncodingFromJSON(jEncoding("ID_AA64ZFR0_EL1", map[string]string{
			"op0": "'11'", "op1": "'000'", "CRn": "'0000'", "CRm": "'0100'", "op2": "'100'",
		}))
		Expect(err).NotTo(HaveOccurred())
		id, err := e.SysRegID()
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal(spec.SysRegID{Op0: 3, CRm: 4, Op2: 4}))
		Expect(id.Packed()).To(Equal(uint32(0xc024)))
	})

	It("should refuse wildcard encodings", func() {
		e, err := spec.EncodingFromJSON(jEncoding("DBGBVR<m>_EL1", map[string]string{
			"op0": "'10'", "op1": "'000'", "CRn": "'0000'", "CRm": "'xxxx'", "op2": "'100'",
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(e.HasWildcard).To(BeTrue())
		_, err = e.SysRegID()
		Expect(errors.Is(err, ast.ErrSchema)).To(BeTrue())
	})

	It("should prefix the registers of a block with its name", func() {
		block := map[string]any{
			"_type":  "RegisterBlock",
			"name":   "GICD",
			"blocks": []any{jRegister("CTLR", "ext", nil), jRegister("TYPER", "ext", nil)},
		}
		s, err := load(block, midr())
		Expect(err).NotTo(HaveOccurred())
		Expect(s.States()).To(ContainElements("AArch64", "GICD.ext"))
		Expect(s.RegistersInState("GICD.ext")).To(HaveLen(2))
		Expect(s.Register("GICD.ext", "TYPER")).NotTo(BeNil())
	})

	It("should sort by state and name", func() {
		s, err := load(
			jRegister("TTBR0_EL1", "AArch64", nil),
			jRegister("DBGDIDR", "AArch32", nil),
			jRegister("CTR_EL0", "AArch64", nil),
		)
		Expect(err).NotTo(HaveOccurred())
		var names []string
		for _, r := range s.Registers {
			names = append(names, r.State+"."+r.Name)
		}
		Expect(names).To(Equal([]string{"AArch32.DBGDIDR", "AArch64.CTR_EL0", "AArch64.TTBR0_EL1"}))
	})

	It("should reject registers listed twice", func() {
		_, err := load(jRegister("CTR_EL0", "AArch64", nil), jRegister("CTR_EL0", "AArch64", nil))
		Expect(errors.Is(err, ast.ErrSchema)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("register AArch64.CTR_EL0 is listed twice"))
	})

	It("should reject fields with unexpected attributes", func() {
		f := jRegField("EL0", 0, 4)
		f["surprise"] = true
		_, err := load(jRegister("ID_AA64PFR0_EL1", "AArch64", []any{jFieldset(64, f)}))
		Expect(errors.Is(err, ast.ErrSchema)).To(BeTrue())
	})

	It("should split array fields into entries", func() {
		arr := map[string]any{
			"_type":          "Fields.Array",
			"access":         nil,
			"description":    nil,
			"display":        nil,
			"index_variable": "m",
			"indexes":        []any{jRange(0, 8)},
			"name":           "Attr<m>",
			"rangeset":       []any{jRange(0, 64)},
			"resets":         nil,
			"values":         nil,
			"volatile":       false,
		}
		f, err := spec.RegisterFieldFromJSON(arr)
		Expect(err).NotTo(HaveOccurred())
		Expect(f.IndexVar).To(Equal("m"))
		Expect(f.Entries).To(Equal(8))
		Expect(f.BitsPerEntry).To(Equal(8))
	})

	It("should load conditional fields", func() {
		cond := map[string]any{
			"_type":        "Fields.ConditionalField",
			"description":  nil,
			"display":      nil,
			"name":         "TnSZ",
			"rangeset":     []any{jRange(0, 6)},
			"reservedtype": nil,
			"resets":       nil,
			"volatile":     false,
			"fields": []any{
				map[string]any{
					"condition": jCall("IsFeatureImplemented", jIdent("FEAT_LPA2")),
					"field":     jRegField("T0SZ", 0, 6),
				},
			},
		}
		f, err := spec.RegisterFieldFromJSON(cond)
		Expect(err).NotTo(HaveOccurred())
		Expect(f.CondFields).To(HaveLen(1))
		Expect(f.CondFields[0].Field.Name).To(Equal("T0SZ"))
		Expect(f.CondFields[0].Condition.String()).To(Equal("IsFeatureImplemented(FEAT_LPA2)"))
	})
})
