package emit_test

import (
	"bytes"
	"go/parser"
	"go/token"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/armspecgen/ast"
	"github.com/sarchlab/armspecgen/decoder"
	"github.com/sarchlab/armspecgen/emit"
	"github.com/sarchlab/armspecgen/insts"
)

func mkInst(name string, fields ...*insts.Field) *insts.Instruction {
	inst, err := insts.NewInstruction(name, name, name+" <operands>", fields, nil, nil, nil)
	Expect(err).NotTo(HaveOccurred())
	return inst
}

func nop() *insts.Instruction {
	return mkInst("nop_", &insts.Field{FirstBit: 0, Width: 32, Fixed: insts.AllOnes, Value: 0xD503201F})
}

func addReg() *insts.Instruction {
	return mkInst("add_reg_",
		&insts.Field{Name: "Rd", FirstBit: 0, Width: 5},
		&insts.Field{Name: "Rn", FirstBit: 5, Width: 5},
		&insts.Field{FirstBit: 10, Width: 14},
		&insts.Field{FirstBit: 24, Width: 8, Fixed: 0xFF, Value: 0x8B},
	)
}

func synth(instrs ...*insts.Instruction) *decoder.Tree {
	tree, err := decoder.Synthesize(instrs)
	Expect(err).NotTo(HaveOccurred())
	return tree
}

func generate(tree *decoder.Tree, opts emit.Options) string {
	var buf bytes.Buffer
	Expect(emit.Go(&buf, tree, opts)).To(Succeed())
	_, err := parser.ParseFile(token.NewFileSet(), "decoder.go", buf.Bytes(), parser.ParseComments)
	Expect(err).NotTo(HaveOccurred())
	return buf.String()
}

var _ = Describe("Go emitter", func() {
	It("should generate a formatted decoder with resolved imports", func() {
		src := generate(synth(nop(), addReg()), emit.Options{
			PackageName: "a64",
			Comments:    []string{"Source: architecture=2025-03"},
		})

		Expect(src).To(HavePrefix(emit.Header + "\n// Source: architecture=2025-03\n"))
		Expect(src).To(ContainSubstring("package a64\n"))
		Expect(src).To(ContainSubstring(`"errors"`))
		Expect(src).To(ContainSubstring(`"fmt"`))
		Expect(src).To(ContainSubstring("func Decode(opcode uint32) error {"))
		Expect(src).To(ContainSubstring("func Lookup(opcode uint32) (Instruction, error) {"))
		Expect(src).To(ContainSubstring("OpNop"))
		Expect(src).To(ContainSubstring("OpAddReg"))
		Expect(src).To(ContainSubstring(`OpAddReg: "add_reg_"`))
		Expect(src).To(ContainSubstring(`{Name: "Rd", Value: opcode & 0x1f}`))
		Expect(src).To(ContainSubstring(`{Name: "Rn", Value: (opcode >> 5) & 0x1f}`))
		Expect(src).To(MatchRegexp(`var table0 = \[\d+\]decodeFunc\{`))
	})

	It("should check leaves that fix unchecked bits", func() {
		src := generate(synth(nop()), emit.DefaultOptions())
		Expect(src).To(ContainSubstring("package armdecode\n"))
		Expect(src).To(ContainSubstring("return decodeNopChecked(opcode)"))
		Expect(src).To(ContainSubstring("if opcode&0xffffffff != 0xd503201f {"))
	})

	It("should reject every opcode without instructions", func() {
		src := generate(synth(), emit.DefaultOptions())
		Expect(src).To(ContainSubstring("return undefined(opcode)"))
		Expect(src).NotTo(ContainSubstring("table0"))
	})

	It("should try ambiguous instructions in order", func() {
		a := mkInst("hint_a_", &insts.Field{FirstBit: 0, Width: 32, Fixed: 0xFFFFF01F, Value: 0xD503201F})
		b := mkInst("hint_b_", &insts.Field{FirstBit: 0, Width: 32, Fixed: 0xFFFFF01F, Value: 0xD503201F})
		src := generate(synth(a, b), emit.DefaultOptions())
		Expect(src).To(ContainSubstring("func list0(opcode uint32) (Instruction, error) {"))
		Expect(src).To(ContainSubstring("return decodeHintA(opcode)"))
	})

	It("should document leaves without an assembly template", func() {
		cond := ast.NewBinaryOp(&ast.Identifier{Name: "size"}, "!=", &ast.Value{Value: "'00'"})
		inst, err := insts.NewInstruction("sdot_z_zzz_", "SDOT", "",
			[]*insts.Field{{FirstBit: 0, Width: 32, Fixed: insts.AllOnes, Value: 0x44800000}}, cond, nil, nil)
		Expect(err).NotTo(HaveOccurred())

		src := generate(synth(inst), emit.DefaultOptions())
		Expect(src).To(ContainSubstring("// decodeSdotZZzz decodes sdot_z_zzz_.\n//\n// Condition: size != '00'\n"))
		Expect(src).NotTo(ContainSubstring("\n\n//\n// Condition"))
	})

	It("should keep generated identifiers apart", func() {
		a := mkInst("ld_r", &insts.Field{FirstBit: 0, Width: 32, Fixed: insts.AllOnes, Value: 1})
		b := mkInst("ldR", &insts.Field{FirstBit: 0, Width: 32, Fixed: insts.AllOnes, Value: 2})
		src := generate(synth(a, b), emit.DefaultOptions())
		Expect(src).To(ContainSubstring("OpLdR_2"))
		Expect(src).To(ContainSubstring("decodeLdR_2"))
	})

	It("should wrap table entries at the line width", func() {
		var instrs []*insts.Instruction
		for i := uint32(0); i < 16; i++ {
			name := "op_" + string(rune('a'+i)) + "x"
			instrs = append(instrs, mkInst(name, &insts.Field{FirstBit: 0, Width: 32, Fixed: 0xF, Value: i}))
		}
		src := generate(synth(instrs...), emit.Options{LineWidth: 60})
		for _, line := range bytes.Split([]byte(src), []byte("\n")) {
			if bytes.HasPrefix(line, []byte("\tdecodeOp")) {
				Expect(len(line) + 7).To(BeNumerically("<=", 60))
			}
		}
	})
})

var _ = Describe("Text emitter", func() {
	It("should dump leaves with their checks", func() {
		var buf bytes.Buffer
		Expect(emit.Text(&buf, synth(nop()))).To(Succeed())
		Expect(buf.String()).To(HavePrefix(
			"decoder: 1 instructions, 1 nodes, 0 tables, 1 leaves, 1 leaf checks, 0 check lists, depth 0, cost 16\n"))
		Expect(buf.String()).To(ContainSubstring("leaf nop check 0xffffffff/0xd503201f cost=16\n"))
	})

	It("should indent table entries", func() {
		var buf bytes.Buffer
		Expect(emit.Text(&buf, synth(nop(), addReg()))).To(Succeed())
		Expect(buf.String()).To(MatchRegexp(`(?m)^table mask=0x[0-9a-f]{8} `))
		Expect(buf.String()).To(MatchRegexp(`(?m)^  \[[0-9a-f]+\] leaf add_reg `))
	})

	It("should mark an empty tree", func() {
		var buf bytes.Buffer
		Expect(emit.Text(&buf, synth())).To(Succeed())
		Expect(buf.String()).To(HaveSuffix("<empty>\n"))
	})
})
