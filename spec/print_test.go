package spec_test

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/armspecgen/spec"
)

var _ = Describe("Debug listings", func() {
	var (
		s   *spec.Spec
		out *bytes.Buffer
	)

	BeforeEach(func() {
		var err error
		s, err = spec.Load(docs(
			[]any{a64(
				jGroup("ldst", jEncodeset(jEncField("", 28, 2, "'10'")), jTrue(),
					jInst("ldr_imm_", jEncodeset(
						jEncField("", 30, 2, x(2)),
						jEncField("imm", 0, 28, x(28)),
					), jTrue()),
					jInst("str_imm_", jEncodeset(
						jEncField("", 30, 2, x(2)),
						jEncField("imm", 0, 28, x(28)),
					), jCall("IsFeatureImplemented", jIdent("FEAT_LSE"))),
				),
				jInst("nop_hint_", jEncodeset(jEncField("", 0, 32, "'11010101000000110010000000011111'")), jTrue()),
			)},
			nil, nil,
			[]any{jRegister("CTR_EL0", "AArch64",
				[]any{jFieldset(64, jRegField("IminLine", 0, 4), jReserved(4, 60))},
				jSysAccessor("CTR_EL0", jEncoding("CTR_EL0", map[string]string{
					"op0": "'11'", "op1": "'011'", "CRn": "'0000'", "CRm": "'0000'", "op2": "'001'",
				})),
			)},
		))
		Expect(err).NotTo(HaveOccurred())
		out = &bytes.Buffer{}
	})

	It("should list instructions with mask and value", func() {
		s.Print(out, spec.PrintOptions{Instructions: true})
		Expect(strings.Split(strings.TrimSpace(out.String()), "\n")).To(Equal([]string{
			"30000000/20000000 ldr_imm ldr_imm_",
			"ffffffff/d503201f nop_hint nop_hint_",
			"30000000/20000000 str_imm str_imm_",
		}))
	})

	It("should list fields and remaining conditions", func() {
		spec.PrintInstructions(out, s.Instructions[2:], true, true)
		Expect(out.String()).To(Equal("30000000/20000000 str_imm str_imm_\n" +
			"   0 L 28: 0000000000/0000000000 imm\n" +
			"  28 L  2: 0000000003/0000000002\n" +
			"  30 L  2: 0000000000/0000000000\n" +
			"  condition: IsFeatureImplemented(FEAT_LSE)\n"))
	})

	It("should count fixed masks", func() {
		counts := spec.CountFixedMasks(s.Instructions)
		Expect(counts).To(Equal([]spec.MaskCount{
			{Mask: 0x30000000, Count: 2},
			{Mask: 0xffffffff, Count: 1},
		}))

		spec.PrintFixedMaskTop(out, s.Instructions, 1)
		Expect(out.String()).To(ContainSubstring("Top 1 fixed masks:\n  0x30000000: 2 times\n"))
		Expect(out.String()).NotTo(ContainSubstring("0xffffffff"))
	})

	It("should print the fixed bit distribution", func() {
		spec.PrintFixedMaskStats(out, s.Instructions)
		Expect(out.String()).To(ContainSubstring("   2: 2\n"))
		Expect(out.String()).To(ContainSubstring("  32: 1\n"))
	})

	It("should list system registers", func() {
		s.Print(out, spec.PrintOptions{SysRegs: true})
		Expect(out.String()).To(ContainSubstring("   AArch64.CTR_EL0\n"))
		Expect(out.String()).To(ContainSubstring("Fieldsset: 64 bits: IminLine@0:4, @4:60"))
		Expect(out.String()).To(ContainSubstring(
			"Accessors[0]: encoding=CTR_EL0={op0='11', op1='011', CRn='0000', CRm='0000', op2='001'}"))
	})

	It("should list features", func() {
		s.PrintFeatures(out)
		Expect(out.String()).To(MatchRegexp(`boolean  FEAT_VPIPT\s+:= UInt\(AArch64.CTR_EL0.L1Ip\) == 0x2`))
	})

	It("should dump selected instructions", func() {
		Expect(s.Dump(out, "str_imm_")).To(Succeed())
		Expect(out.String()).To(ContainSubstring(`"str_imm_"`))
		Expect(out.String()).To(ContainSubstring(`"0x30000000"`))
		Expect(out.String()).NotTo(ContainSubstring(`"ldr_imm_"`))

		Expect(s.Dump(out, "missing_")).To(MatchError(ContainSubstring("no instruction named missing_")))
	})

	It("should report whether any listing is selected", func() {
		Expect(spec.PrintOptions{}.Any()).To(BeFalse())
		Expect(spec.PrintOptions{FixedMaskTop: true}.Any()).To(BeTrue())
	})
})
