package decoder_test

import (
	"errors"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/armspecgen/decoder"
)

var _ = Describe("CompactMask", func() {
	It("should compact a single run", func() {
		algo, err := decoder.CompactMask(0xC0000000, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(algo.Chunks).To(Equal([]decoder.Chunk{{SrcBit: 30, DstBit: 0, Mask: 0x3}}))
		Expect(algo.Bits()).To(Equal(2))
		Expect(algo.Size()).To(Equal(4))
		Expect(algo.Index(0x80000000)).To(Equal(uint32(2)))
		Expect(algo.Expand(1)).To(Equal(uint32(0x40000000)))
		Expect(algo.Expr("op")).To(Equal("(op >> 30) & 0x3"))
	})

	It("should stack three runs into consecutive index bits", func() {
		algo, err := decoder.CompactMask(0xF0F000F0, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(cmp.Diff(algo.Chunks, []decoder.Chunk{
			{SrcBit: 4, DstBit: 0, Mask: 0xf},
			{SrcBit: 20, DstBit: 4, Mask: 0xf},
			{SrcBit: 28, DstBit: 8, Mask: 0xf},
		})).To(BeEmpty())
		Expect(algo.Index(0x12345678)).To(Equal(uint32(0x137)))
	})

	It("should reject masks with too many runs", func() {
		_, err := decoder.CompactMask(0x01010101, 3)
		Expect(errors.Is(err, decoder.ErrTooManyRuns)).To(BeTrue())

		_, err = decoder.CompactMask(0x01010101, 4)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should handle the empty and the full mask", func() {
		empty, err := decoder.CompactMask(0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(empty.Size()).To(Equal(1))
		Expect(empty.Expr("op")).To(Equal("0"))

		full, err := decoder.CompactMask(0xFFFFFFFF, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(full.Chunks).To(HaveLen(1))
		Expect(full.Index(0xDEADBEEF)).To(Equal(uint32(0xDEADBEEF)))
	})

	It("should render multi-chunk expressions", func() {
		algo, err := decoder.CompactMask(0x00F000F0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(algo.Expr("op")).To(Equal("((op >> 4) & 0xf) | (((op >> 20) & 0xf) << 4)"))
	})

	It("should round-trip every value through Index and Expand", func() {
		masks := []uint32{0x1, 0x80000000, 0x00C00000, 0x60000C1F, 0xFFE0FC00, 0x9F000000, 0xE0000007}
		values := []uint32{0, 0xFFFFFFFF, 0xD503201F, 0x12345678, 0x8BADF00D}
		for _, m := range masks {
			algo, err := decoder.CompactMask(m, 3)
			Expect(err).NotTo(HaveOccurred(), "mask %#x", m)
			for _, v := range values {
				Expect(algo.Expand(algo.Index(v))).To(Equal(v&m), "mask %#x value %#x", m, v)
			}
			if algo.Bits() <= 12 {
				for idx := uint32(0); idx < uint32(algo.Size()); idx++ {
					Expect(algo.Index(algo.Expand(idx))).To(Equal(idx))
				}
			}
		}
	})

	It("should count runs", func() {
		Expect(decoder.Runs(0)).To(Equal(0))
		Expect(decoder.Runs(0xFFFFFFFF)).To(Equal(1))
		Expect(decoder.Runs(0x80000001)).To(Equal(2))
		Expect(decoder.Runs(0x55)).To(Equal(4))
	})
})
