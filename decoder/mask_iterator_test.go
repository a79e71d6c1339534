package decoder_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/armspecgen/decoder"
)

func drain(it *decoder.MaskIterator) []uint32 {
	var out []uint32
	for {
		m, algo, ok := it.Next()
		if !ok {
			return out
		}
		Expect(algo.Mask).To(Equal(m))
		out = append(out, m)
	}
}

var _ = Describe("MaskIterator", func() {
	It("should prefer shared masks as seeds", func() {
		it := decoder.NewMaskIterator([]uint32{0xC0000000, 0x1, 0xC0000000, 0}, decoder.DefaultParams())
		Expect(it.Seeds()).To(Equal([]uint32{0xC0000000}))
		Expect(drain(it)).To(Equal([]uint32{0xC0000000, 0x80000000, 0x40000000}))
	})

	It("should fall back to unshared masks", func() {
		it := decoder.NewMaskIterator([]uint32{0x3, 0x1}, decoder.DefaultParams())
		Expect(it.Seeds()).To(Equal([]uint32{0x3, 0x1}))
		Expect(drain(it)).To(Equal([]uint32{0x3, 0x2, 0x1}))
	})

	It("should order seeds by frequency and keep the most common", func() {
		p := decoder.DefaultParams()
		p.MaxSeedMasks = 2
		it := decoder.NewMaskIterator([]uint32{0x10, 0x20, 0x20, 0x40, 0x40, 0x40, 0x10}, p)
		Expect(it.Seeds()).To(Equal([]uint32{0x40, 0x10}))
	})

	It("should yield nothing when every bit is checked", func() {
		it := decoder.NewMaskIterator([]uint32{0, 0}, decoder.DefaultParams())
		Expect(it.Seeds()).To(BeEmpty())
		Expect(drain(it)).To(BeEmpty())
	})

	It("should cap the table size by the number of instructions", func() {
		it := decoder.NewMaskIterator([]uint32{0xFF00, 0xFF00}, decoder.DefaultParams())
		first, _, ok := it.Next()
		Expect(ok).To(BeTrue())
		Expect(first).To(Equal(uint32(0xF000)))
	})

	It("should skip masks that do not compact", func() {
		masks := drain(decoder.NewMaskIterator([]uint32{0x55, 0x55}, decoder.DefaultParams()))
		Expect(masks).NotTo(ContainElement(uint32(0x55)))
		Expect(masks[0]).To(Equal(uint32(0x54)))
		Expect(masks).To(HaveLen(14))
		for _, m := range masks {
			Expect(decoder.Runs(m)).To(BeNumerically("<=", 3))
		}
	})

	It("should bound the candidates per seed", func() {
		p := decoder.DefaultParams()
		p.MaxCandidatesPerSeed = 2
		Expect(drain(decoder.NewMaskIterator([]uint32{0x55, 0x55}, p))).To(Equal([]uint32{0x54, 0x51}))
	})
})
