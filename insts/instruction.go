package insts

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/sarchlab/armspecgen/ast"
)

// Group is an Instruction.InstructionGroup, or the top of an instruction set.
// Its encoding fields and condition apply to everything below it.
type Group struct {
	Name      string
	Fields    []*Field
	Covered   uint32
	Condition ast.Node
	Parent    *Group

	Groups       []*Group
	Instructions []*Instruction

	all    []*Instruction
	byName map[string]*Instruction
}

// Set is an Instruction.InstructionSet.
type Set struct {
	Group
	ReadWidth int
}

func newGroup(name string, fields []*Field, covered uint32, cond ast.Node, parent *Group) (*Group, error) {
	if !reValidName.MatchString(name) {
		return nil, fmt.Errorf("%w: invalid group name %q", ast.ErrSchema, name)
	}
	return &Group{
		Name:      name,
		Fields:    fields,
		Covered:   covered,
		Condition: cond,
		Parent:    parent,
		byName:    make(map[string]*Instruction),
	}, nil
}

func organizerFromJSON(obj map[string]any, typ string) (string, []*Field, uint32, ast.Node, error) {
	if obj["_type"] != typ {
		return "", nil, 0, nil, fmt.Errorf("%w: expected %s, got %v", ast.ErrSchema, typ, obj["_type"])
	}
	name, err := ast.StringAttr(obj, "name")
	if err != nil {
		return "", nil, 0, nil, err
	}
	fields, covered, err := FieldsFromEncodeset(obj["encoding"])
	if err != nil {
		return "", nil, 0, nil, fmt.Errorf("%s encoding: %w", name, err)
	}
	cond, err := ast.FromJSON(obj["condition"], ast.ModeCondition)
	if err != nil {
		return "", nil, 0, nil, fmt.Errorf("%s condition: %w", name, err)
	}
	return name, fields, covered, cond, nil
}

// SetFromJSON builds an instruction set from an Instruction.InstructionSet
// object. Children are not loaded.
func SetFromJSON(obj map[string]any) (*Set, error) {
	name, fields, covered, cond, err := organizerFromJSON(obj, "Instruction.InstructionSet")
	if err != nil {
		return nil, err
	}
	width, err := ast.IntAttr(obj, "read_width")
	if err != nil {
		return nil, err
	}
	if width != OpcodeBits {
		return nil, fmt.Errorf("%w: instruction set %s reads %d bits, want %d", ErrEncoding, name, width, OpcodeBits)
	}
	g, err := newGroup(name, fields, covered, cond, nil)
	if err != nil {
		return nil, err
	}
	return &Set{Group: *g, ReadWidth: int(width)}, nil
}

// GroupFromJSON builds a group from an Instruction.InstructionGroup object
// and attaches it to parent. Children are not loaded.
func GroupFromJSON(obj map[string]any, parent *Group) (*Group, error) {
	name, fields, covered, cond, err := organizerFromJSON(obj, "Instruction.InstructionGroup")
	if err != nil {
		return nil, err
	}
	g, err := newGroup(name, fields, covered, cond, parent)
	if err != nil {
		return nil, err
	}
	parent.Groups = append(parent.Groups, g)
	return g, nil
}

// IsSet reports whether g is the top of an instruction set.
func (g *Group) IsSet() bool {
	return g.Parent == nil
}

// Ancestors returns g followed by its parents, nearest first.
func (g *Group) Ancestors() []*Group {
	var up []*Group
	for cur := g; cur != nil; cur = cur.Parent {
		up = append(up, cur)
	}
	return up
}

// AddInstruction adds inst directly below g and to the full lists of g and
// every ancestor.
func (g *Group) AddInstruction(inst *Instruction) error {
	for cur := g; cur != nil; cur = cur.Parent {
		if _, dup := cur.byName[inst.Name]; dup {
			return fmt.Errorf("%w: instruction %s is listed twice in %s", ast.ErrSchema, inst.Name, cur.Name)
		}
	}
	g.Instructions = append(g.Instructions, inst)
	for cur := g; cur != nil; cur = cur.Parent {
		cur.byName[inst.Name] = inst
		cur.all = append(cur.all, inst)
	}
	return nil
}

// AllInstructions returns every instruction at or below g, in load order.
func (g *Group) AllInstructions() []*Instruction {
	return g.all
}

// Lookup finds an instruction at or below g by name.
func (g *Group) Lookup(name string) *Instruction {
	return g.byName[name]
}

func (g *Group) String() string {
	kind := "group"
	parent := "<none>"
	if g.IsSet() {
		kind = "set"
	} else {
		parent = g.Parent.Name
	}
	return fmt.Sprintf("%s-name=%s Fields=#%d/%#08x cond=%s parent=%s",
		kind, g.Name, len(g.Fields), g.Covered, g.Condition, parent)
}

// Instruction is one Instruction.Instruction with its inherited fields and
// conditions already applied.
type Instruction struct {
	Name       string
	Mnemonic   string
	AsmDisplay string
	Fields     []*Field
	Condition  ast.Node
	Parent     *Group
	Set        *Set
}

// NewInstruction creates an instruction. Fields must be disjoint.
func NewInstruction(name, mnemonic, asm string, fields []*Field, cond ast.Node, parent *Group, set *Set) (*Instruction, error) {
	if !reValidName.MatchString(name) {
		return nil, fmt.Errorf("%w: invalid instruction name %q", ast.ErrSchema, name)
	}
	var covered uint32
	for _, f := range fields {
		if f.ShiftedMask()&covered != 0 {
			return nil, fmt.Errorf("%w: %s: field %s overlaps %#08x", ErrEncoding, name, f, covered)
		}
		covered |= f.ShiftedMask()
	}
	if cond == nil {
		cond = ast.True()
	}
	return &Instruction{
		Name:       name,
		Mnemonic:   mnemonic,
		AsmDisplay: asm,
		Fields:     fields,
		Condition:  cond,
		Parent:     parent,
		Set:        set,
	}, nil
}

// FixedMask returns the opcode bits fixed by the encoding.
func (i *Instruction) FixedMask() uint32 {
	var m uint32
	for _, f := range i.Fields {
		m |= f.ShiftedFixed()
	}
	return m
}

// FixedValue returns the required values of the FixedMask bits.
func (i *Instruction) FixedValue() uint32 {
	var v uint32
	for _, f := range i.Fields {
		v |= f.ShiftedValue()
	}
	return v
}

// Covered returns the union of the fields' shifted masks.
func (i *Instruction) Covered() uint32 {
	var m uint32
	for _, f := range i.Fields {
		m |= f.ShiftedMask()
	}
	return m
}

// Matches reports whether opcode agrees with the fixed bits.
func (i *Instruction) Matches(opcode uint32) bool {
	return opcode&i.FixedMask() == i.FixedValue()
}

// FieldByName returns the named field, or nil.
func (i *Instruction) FieldByName(name string) *Field {
	return FieldByName(i.Fields, name)
}

// NamedNonFixedFields returns the named fields that are not entirely fixed,
// ordered by bit position. These become the operands of a leaf function.
func (i *Instruction) NamedNonFixedFields() []*Field {
	var out []*Field
	for _, f := range i.Fields {
		if f.Name != "" && !f.IsFullyFixed() {
			out = append(out, f)
		}
	}
	slices.SortFunc(out, func(a, b *Field) int { return a.FirstBit - b.FirstBit })
	return out
}

// CName returns the name with a trailing underscore removed, unless that
// would clash with another instruction of the set.
func (i *Instruction) CName() string {
	stripped, ok := strings.CutSuffix(i.Name, "_")
	if !ok || stripped == "" {
		return i.Name
	}
	if i.Set != nil && i.Set.Lookup(stripped) != nil {
		return i.Name
	}
	return stripped
}

// SetName returns the name of the instruction set.
func (i *Instruction) SetName() string {
	if i.Set != nil {
		return i.Set.Name
	}
	up := i.Parent.Ancestors()
	return up[len(up)-1].Name
}

// GroupNames returns the names of the enclosing groups and set, nearest
// first.
func (i *Instruction) GroupNames() []string {
	var names []string
	for cur := i.Parent; cur != nil; cur = cur.Parent {
		names = append(names, cur.Name)
	}
	return names
}

// GroupNamesWithLabels describes where the instruction lives, e.g.
// "Instruction Set: A64  Groups: ldst, sve".
func (i *Instruction) GroupNamesWithLabels() string {
	names := i.GroupNames()
	if len(names) == 0 {
		return ""
	}
	set := names[len(names)-1]
	if len(names) == 1 {
		return "Instruction Set: " + set
	}
	plural := ""
	if len(names) > 2 {
		plural = "s"
	}
	return fmt.Sprintf("Instruction Set: %s  Group%s: %s", set, plural, strings.Join(names[:len(names)-1], ", "))
}

// Format renders the instruction for debug listings, padding names to
// nameWidth. With encoding set, the fields follow one per line.
func (i *Instruction) Format(nameWidth int, encoding bool) string {
	var s string
	if i.Name == i.Mnemonic {
		s = fmt.Sprintf("sName=%-*s", nameWidth, i.Name)
	} else {
		s = fmt.Sprintf("sName=%-*s sMnemonic=%-*s", nameWidth, i.Name, nameWidth, i.Mnemonic)
	}
	if !encoding {
		return fmt.Sprintf("%s fFixedValue/Mask=%#x/%#x #encoding=%d", s, i.FixedValue(), i.FixedMask(), len(i.Fields))
	}
	parts := make([]string, len(i.Fields))
	for idx, f := range i.Fields {
		parts[idx] = f.String()
	}
	return fmt.Sprintf("%s fFixedValue/Mask=%#x/%#x encoding=\n    %s",
		s, i.FixedValue(), i.FixedMask(), strings.Join(parts, ",\n    "))
}

func (i *Instruction) String() string {
	return i.Format(0, false)
}
