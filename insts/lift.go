package insts

import (
	"fmt"
	"io"
	"math/bits"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/armspecgen/ast"
)

// DefaultMaxFuseWidth is the widest field whose pending `!=` tests the
// Lifter tries to fold into the encoding.
const DefaultMaxFuseWidth = 8

// Lifter moves field tests from instruction conditions into the encoding.
//
// Only conjuncts are lifted: a test under `||` or `!` stays where it is.
// `field == literal` and single-bit `field != literal` tests are folded
// immediately. Several `!=` tests on one multi-bit field are collected and
// folded together once the whole condition has been visited, provided the
// values they leave allowed form a sub-cube of the field.
type Lifter struct {
	log          logrus.FieldLogger
	maxFuseWidth int
}

// LifterOption configures a Lifter.
type LifterOption func(*Lifter)

// WithLogger sets the logger used for debug and warning messages.
func WithLogger(log logrus.FieldLogger) LifterOption {
	return func(l *Lifter) {
		l.log = log
	}
}

// WithMaxFuseWidth limits the width of fields whose `!=` tests are fused.
func WithMaxFuseWidth(width int) LifterOption {
	return func(l *Lifter) {
		l.maxFuseWidth = width
	}
}

// NewLifter creates a Lifter. Without WithLogger it logs nowhere.
func NewLifter(opts ...LifterOption) *Lifter {
	l := &Lifter{maxFuseWidth: DefaultMaxFuseWidth}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		l.log = discard
	}
	return l
}

type pendingNotEq struct {
	field *Field
	value uint32
	fixed uint32
	leaf  *ast.BinaryOp
}

type liftState struct {
	name    string
	fields  []*Field
	pending map[*Field][]pendingNotEq
	order   []*Field
	changed bool
}

// Lift rewrites inst.Condition and updates the fixed bits of inst.Fields. It
// reports whether anything changed.
func (l *Lifter) Lift(inst *Instruction) (bool, error) {
	cond, changed, err := l.LiftCondition(inst.Name, inst.Condition, inst.Fields)
	if err != nil {
		return false, err
	}
	inst.Condition = cond
	return changed, nil
}

// LiftCondition lifts the conjuncts of cond into fields and returns the
// remaining condition. The fields are updated in place; cond is not
// modified.
func (l *Lifter) LiftCondition(name string, cond ast.Node, fields []*Field) (ast.Node, bool, error) {
	st := &liftState{
		name:    name,
		fields:  fields,
		pending: make(map[*Field][]pendingNotEq),
	}
	out, err := l.transfer(cond, st)
	if err != nil {
		return nil, false, err
	}
	out = l.fusePending(out, st)
	return out, st.changed, nil
}

func (l *Lifter) transfer(n ast.Node, st *liftState) (ast.Node, error) {
	b, ok := n.(*ast.BinaryOp)
	if !ok {
		return n, nil
	}

	switch b.Op {
	case "&&":
		left, err := l.transfer(b.Left, st)
		if err != nil {
			return nil, err
		}
		right, err := l.transfer(b.Right, st)
		if err != nil {
			return nil, err
		}
		return joinAnd(b, left, right), nil
	case "==", "!=":
		return l.liftTest(b, st)
	}
	return n, nil
}

// joinAnd rebuilds `left && right`, dropping true operands and reusing orig
// when nothing changed.
func joinAnd(orig *ast.BinaryOp, left, right ast.Node) ast.Node {
	switch {
	case ast.IsBoolAndTrue(left):
		return right
	case ast.IsBoolAndTrue(right):
		return left
	case left == orig.Left && right == orig.Right:
		return orig
	}
	return &ast.BinaryOp{Left: left, Op: "&&", Right: right}
}

func (l *Lifter) liftTest(b *ast.BinaryOp, st *liftState) (ast.Node, error) {
	name, ok := ast.IdentifierName(b.Left)
	if !ok {
		return b, nil
	}
	f := FieldByName(st.fields, name)
	if f == nil {
		return b, nil
	}

	var value, fixed uint32
	switch lit := b.Right.(type) {
	case *ast.Integer:
		if f.Fixed != 0 {
			return nil, fmt.Errorf("%w: %s: %s tests field %s which fixes %#x/%#x",
				ErrCollision, st.name, b, f.Name, f.Value, f.Fixed)
		}
		if lit.Value < 0 {
			return nil, fmt.Errorf("%w: %s: %s tests field %s against a negative value",
				ErrRange, st.name, b, f.Name)
		}
		if bits.Len64(uint64(lit.Value)) > f.Width {
			return nil, fmt.Errorf("%w: %s: %s does not fit the %d bits of field %s",
				ErrRange, st.name, b, f.Width, f.Name)
		}
		value, fixed = uint32(lit.Value), f.Mask()
		if b.Op == "!=" && f.Width > 1 {
			st.postpone(f, value, fixed, b)
			return b, nil
		}

	case *ast.Value:
		p, err := lit.Pattern(f.Width)
		if err != nil {
			return nil, fmt.Errorf("%s: field %s: %w", st.name, f.Name, err)
		}
		value, fixed = uint32(p.Value), uint32(p.Fixed)
		if b.Op == "!=" {
			if fixed == 0 {
				return b, nil
			}
			if f.Width > 1 && fixed&(fixed-1) != 0 {
				st.postpone(f, value, fixed, b)
				return b, nil
			}
		}
		if fixed&f.Fixed != 0 {
			return nil, fmt.Errorf("%w: %s: %s tests field %s which fixes %#x/%#x",
				ErrCollision, st.name, b, f.Name, f.Value, f.Fixed)
		}

	default:
		return b, nil
	}

	if b.Op == "==" {
		f.Value |= value
	} else {
		f.Value |= ^value & fixed
	}
	f.Fixed |= fixed
	st.changed = true

	l.log.WithFields(logrus.Fields{
		"instruction": st.name,
		"field":       f.Name,
	}).Debugf("lifted %s into encoding %#x/%#x", b, f.Value, f.Fixed)
	return ast.True(), nil
}

func (st *liftState) postpone(f *Field, value, fixed uint32, leaf *ast.BinaryOp) {
	if _, seen := st.pending[f]; !seen {
		st.order = append(st.order, f)
	}
	st.pending[f] = append(st.pending[f], pendingNotEq{field: f, value: value, fixed: fixed, leaf: leaf})
}

func (l *Lifter) fusePending(cond ast.Node, st *liftState) ast.Node {
	for _, f := range st.order {
		entries := st.pending[f]
		log := l.log.WithFields(logrus.Fields{
			"instruction": st.name,
			"field":       f.Name,
			"tests":       len(entries),
		})

		if f.Width > l.maxFuseWidth {
			log.Warnf("field is too wide to fold %d != tests", len(entries))
			continue
		}
		fixed, value, ok := allowedSubCube(f, entries)
		if !ok {
			log.Warn("!= tests do not reduce to a fixed pattern")
			continue
		}

		f.Fixed |= fixed
		f.Value |= value
		st.changed = true

		leaves := make([]ast.Node, len(entries))
		for i, e := range entries {
			leaves[i] = e.leaf
		}
		cond = RemoveLeaves(cond, leaves...)
		log.Debugf("folded != tests into encoding %#x/%#x", f.Value, f.Fixed)
	}
	return cond
}

// allowedSubCube computes the field values that satisfy both the field's
// current encoding and every pending `!=` test. When those values are exactly
// the set selected by some fixed pattern, that pattern is returned.
func allowedSubCube(f *Field, entries []pendingNotEq) (fixed, value uint32, ok bool) {
	ones := f.Mask()
	and, or := ones, uint32(0)
	count := 0
	for v := uint64(0); v <= uint64(ones); v++ {
		x := uint32(v)
		if x&f.Fixed != f.Value || excluded(x, entries) {
			continue
		}
		and &= x
		or |= x
		count++
	}

	if count == 0 {
		return 0, 0, false
	}
	constant := ^(and ^ or) & ones
	if count != 1<<(f.Width-bits.OnesCount32(constant)) {
		return 0, 0, false
	}
	return constant, and & constant, true
}

func excluded(v uint32, entries []pendingNotEq) bool {
	for _, e := range entries {
		if v&e.fixed == e.value {
			return true
		}
	}
	return false
}

// RemoveLeaves replaces each of the given leaves (matched by identity) with
// true wherever it appears as a conjunct of cond, on either side of every
// `&&`, and collapses the conjunctions that become trivial.
func RemoveLeaves(cond ast.Node, leaves ...ast.Node) ast.Node {
	for _, leaf := range leaves {
		if cond == leaf {
			return ast.True()
		}
	}
	b, ok := cond.(*ast.BinaryOp)
	if !ok || b.Op != "&&" {
		return cond
	}
	return joinAnd(b, RemoveLeaves(b.Left, leaves...), RemoveLeaves(b.Right, leaves...))
}
