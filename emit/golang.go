// Package emit renders a synthesised decoder tree, either as a Go source
// file or as an indented text dump.
package emit

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode"

	"golang.org/x/tools/imports"

	"github.com/sarchlab/armspecgen/ast"
	"github.com/sarchlab/armspecgen/decoder"
	"github.com/sarchlab/armspecgen/insts"
)

// Header is the first line of every generated Go file.
const Header = "// Code generated by armspecgen; DO NOT EDIT."

// Options control the generated Go source.
type Options struct {
	PackageName string
	// LineWidth is where table entries wrap.
	LineWidth int
	// Comments are added below the header, one per line.
	Comments []string
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{PackageName: "armdecode", LineWidth: 100}
}

// Go writes the tree as a Go decoder. The output is formatted and has its
// imports resolved.
func Go(w io.Writer, tree *decoder.Tree, opts Options) error {
	if opts.PackageName == "" {
		opts.PackageName = DefaultOptions().PackageName
	}
	if opts.LineWidth <= 0 {
		opts.LineWidth = DefaultOptions().LineWidth
	}

	g := newGoGen(tree, opts)
	src := g.generate()
	out, err := imports.Process(opts.PackageName+"_decoder.go", src, &imports.Options{
		Comments:  true,
		TabIndent: true,
		TabWidth:  8,
	})
	if err != nil {
		return fmt.Errorf("failed to format generated decoder: %w", err)
	}
	_, err = w.Write(out)
	return err
}

type goGen struct {
	tree *decoder.Tree
	opts Options
	buf  bytes.Buffer

	opNames     map[*insts.Instruction]string
	leafNames   map[*insts.Instruction]string
	checked     map[*insts.Instruction]bool
	nodeNames   map[*decoder.Node]string
	nodes       []*decoder.Node
	identsTaken map[string]bool
}

func newGoGen(tree *decoder.Tree, opts Options) *goGen {
	g := &goGen{
		tree:        tree,
		opts:        opts,
		opNames:     make(map[*insts.Instruction]string),
		leafNames:   make(map[*insts.Instruction]string),
		checked:     make(map[*insts.Instruction]bool),
		nodeNames:   make(map[*decoder.Node]string),
		identsTaken: map[string]bool{"OpInvalid": true, "decodeFunc": true},
	}
	for _, inst := range tree.Instructions {
		base := goIdent(inst.CName())
		g.opNames[inst] = g.unique("Op" + base)
		g.leafNames[inst] = g.unique("decode" + base)
		g.identsTaken[g.leafNames[inst]+"Checked"] = true
	}
	tree.Walk(func(n *decoder.Node) {
		if _, seen := g.nodeNames[n]; seen {
			return
		}
		switch {
		case n.IsTable():
			g.nodeNames[n] = fmt.Sprintf("node%d", len(g.nodes))
			g.nodes = append(g.nodes, n)
		case n.IsCheckList():
			g.nodeNames[n] = fmt.Sprintf("list%d", len(g.nodes))
			g.nodes = append(g.nodes, n)
		case n.LeafCheckNeeded:
			g.checked[n.Instruction()] = true
		}
	})
	return g
}

// goIdent turns an instruction name into an exported Go identifier, e.g.
// "ldr_imm_gen" becomes "LdrImmGen".
func goIdent(name string) string {
	var sb strings.Builder
	upper := true
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		sb.WriteRune(r)
	}
	if sb.Len() == 0 {
		return "X"
	}
	return sb.String()
}

func (g *goGen) unique(ident string) string {
	name := ident
	for i := 2; g.identsTaken[name]; i++ {
		name = fmt.Sprintf("%s_%d", ident, i)
	}
	g.identsTaken[name] = true
	return name
}

func (g *goGen) printf(format string, args ...any) {
	fmt.Fprintf(&g.buf, format, args...)
}

func (g *goGen) generate() []byte {
	g.printf("%s\n", Header)
	for _, c := range g.opts.Comments {
		g.printf("// %s\n", c)
	}
	g.printf("\npackage %s\n\n", g.opts.PackageName)

	g.preamble()
	g.ops()
	g.entry()
	for _, n := range g.nodes {
		if n.IsTable() {
			g.table(n)
		} else {
			g.checkList(n)
		}
	}
	for _, inst := range g.tree.Instructions {
		g.leaf(inst)
	}
	return g.buf.Bytes()
}

func (g *goGen) preamble() {
	g.printf(`// ErrUndefined is returned for opcodes that no instruction decodes.
var ErrUndefined = errors.New("undefined instruction")

// Operand is a named encoding field of a decoded instruction.
type Operand struct {
	Name  string
	Value uint32
}

// Instruction is a decoded opcode.
type Instruction struct {
	Op       Op
	Opcode   uint32
	Operands []Operand
}

type decodeFunc func(opcode uint32) (Instruction, error)

func undefined(opcode uint32) (Instruction, error) {
	return Instruction{}, fmt.Errorf("%%w: %%#08x", ErrUndefined, opcode)
}

`)
}

func (g *goGen) ops() {
	g.printf("// Op identifies an instruction.\ntype Op uint16\n\n")
	g.printf("const (\n\tOpInvalid Op = iota\n")
	for _, inst := range g.tree.Instructions {
		g.printf("\t%s\n", g.opNames[inst])
	}
	g.printf(")\n\n")

	g.printf("var opNames = [...]string{\n\tOpInvalid: \"invalid\",\n")
	for _, inst := range g.tree.Instructions {
		g.printf("\t%s: %q,\n", g.opNames[inst], inst.Name)
	}
	g.printf("}\n\n")

	g.printf("var opSyntax = [...]string{\n\tOpInvalid: \"\",\n")
	for _, inst := range g.tree.Instructions {
		g.printf("\t%s: %q,\n", g.opNames[inst], inst.AsmDisplay)
	}
	g.printf("}\n\n")

	g.printf(`func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%%d)", uint16(op))
}

// Syntax returns an outline of the assembly syntax.
func (op Op) Syntax() string {
	if int(op) < len(opSyntax) {
		return opSyntax[op]
	}
	return ""
}

`)
}

func (g *goGen) entry() {
	g.printf(`// Decode returns an error wrapping ErrUndefined when opcode is not a valid
// instruction.
func Decode(opcode uint32) error {
	_, err := Lookup(opcode)
	return err
}

// Lookup decodes opcode.
func Lookup(opcode uint32) (Instruction, error) {
	return %s(opcode)
}

`, g.target(g.tree.Root))
}

// target names the function that decodes the subtree rooted at n.
func (g *goGen) target(n *decoder.Node) string {
	switch {
	case n == nil:
		return "undefined"
	case n.IsLeaf():
		if n.LeafCheckNeeded {
			return g.leafNames[n.Instruction()] + "Checked"
		}
		return g.leafNames[n.Instruction()]
	}
	return g.nodeNames[n]
}

func (g *goGen) table(n *decoder.Node) {
	name := g.nodeNames[n]
	table := strings.Replace(name, "node", "table", 1)

	g.printf("// %s dispatches on %#08x, checked %#08x/%#08x.\n", name, n.Mask, n.CheckedValue, n.CheckedMask)
	g.printf("func %s(opcode uint32) (Instruction, error) {\n", name)
	g.printf("\treturn %s[%s](opcode)\n}\n\n", table, n.Algo.Expr("opcode"))

	g.printf("var %s = [%d]decodeFunc{\n", table, len(n.Children))
	entries := make([]string, len(n.Children))
	for i, c := range n.Children {
		entries[i] = g.target(c)
	}
	for _, line := range wrap(entries, g.opts.LineWidth-8) {
		g.printf("\t%s\n", line)
	}
	g.printf("}\n\n")
}

// wrap joins entries with ", " into lines of at most width bytes, each
// ending in a comma.
func wrap(entries []string, width int) []string {
	var lines []string
	var cur strings.Builder
	for _, e := range entries {
		if cur.Len() > 0 && cur.Len()+len(e)+2 > width {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString(" ")
		}
		cur.WriteString(e)
		cur.WriteString(",")
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}

func (g *goGen) checkList(n *decoder.Node) {
	g.printf("// %s tries instructions the fixed bits cannot tell apart.\n", g.nodeNames[n])
	g.printf("func %s(opcode uint32) (Instruction, error) {\n", g.nodeNames[n])
	for _, inst := range n.Instructions {
		g.printf("\tif opcode&%#08x == %#08x {\n", inst.FixedMask(), inst.FixedValue())
		g.printf("\t\treturn %s(opcode)\n\t}\n", g.leafNames[inst])
	}
	g.printf("\treturn undefined(opcode)\n}\n\n")
}

func (g *goGen) leaf(inst *insts.Instruction) {
	name := g.leafNames[inst]
	desc := inst.AsmDisplay
	if desc == "" {
		desc = inst.Name
	}
	g.printf("// %s decodes %s.\n", name, desc)
	if !ast.IsBoolAndTrue(inst.Condition) {
		g.printf("//\n// Condition: %s\n", inst.Condition)
	}
	g.printf("func %s(opcode uint32) (Instruction, error) {\n", name)
	fields := inst.NamedNonFixedFields()
	if len(fields) == 0 {
		g.printf("\treturn Instruction{Op: %s, Opcode: opcode}, nil\n}\n\n", g.opNames[inst])
	} else {
		g.printf("\treturn Instruction{Op: %s, Opcode: opcode, Operands: []Operand{\n", g.opNames[inst])
		for _, f := range fields {
			g.printf("\t\t{Name: %q, Value: %s},\n", f.Name, fieldExpr(f))
		}
		g.printf("\t}}, nil\n}\n\n")
	}

	if g.checked[inst] {
		g.printf("func %sChecked(opcode uint32) (Instruction, error) {\n", name)
		g.printf("\tif opcode&%#08x != %#08x {\n\t\treturn undefined(opcode)\n\t}\n", inst.FixedMask(), inst.FixedValue())
		g.printf("\treturn %s(opcode)\n}\n\n", name)
	}
}

func fieldExpr(f *insts.Field) string {
	if f.FirstBit == 0 {
		return fmt.Sprintf("opcode & %#x", f.Mask())
	}
	return fmt.Sprintf("(opcode >> %d) & %#x", f.FirstBit, f.Mask())
}
