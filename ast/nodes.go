package ast

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	reIdentifier        = regexp.MustCompile(`^[_A-Za-z][_A-Za-z0-9]*$`)
	reIdentifierRelaxed = regexp.MustCompile(`^[_A-Za-z][_A-Za-z0-9<>]*$`)
	reFunctionName      = regexp.MustCompile(`^[_A-Za-z][_A-Za-z0-9]+$`)
	reSimpleName        = regexp.MustCompile(`^[_A-Za-z][_A-Za-z0-9]+$`)
)

// BinaryOp is `Left Op Right`.
type BinaryOp struct {
	Left  Node
	Op    string
	Right Node
}

// NewBinaryOp builds a binary operation. For `==` and `!=` a literal on the
// left of an identifier is moved to the right.
func NewBinaryOp(left Node, op string, right Node) *BinaryOp {
	if op == "==" || op == "!=" {
		if _, ok := right.(*Identifier); ok {
			switch left.(type) {
			case *Value, *Integer:
				left, right = right, left
			}
		}
	}
	return &BinaryOp{Left: left, Op: op, Right: right}
}

func (n *BinaryOp) Kind() Kind { return KindBinaryOp }

func (n *BinaryOp) Clone() Node {
	return &BinaryOp{Left: n.Left.Clone(), Op: n.Op, Right: n.Right.Clone()}
}

func (n *BinaryOp) IsSame(other Node) bool {
	o, ok := other.(*BinaryOp)
	return ok && n.Op == o.Op && n.Left.IsSame(o.Left) && n.Right.IsSame(o.Right)
}

func (n *BinaryOp) Children() []Node { return []Node{n.Left, n.Right} }

// Class returns the operator class.
func (n *BinaryOp) Class() OpClass { return binaryOps[n.Op] }

func needsParentheses(child Node, op string) bool {
	b, ok := child.(*BinaryOp)
	if !ok {
		return false
	}
	if op != b.Op {
		return true
	}
	switch op {
	case "||", "&&", "+", "-", "*":
		return false
	}
	return true
}

func (n *BinaryOp) String() string {
	left := n.Left.String()
	if needsParentheses(n.Left, n.Op) {
		left = "(" + left + ")"
	}
	right := n.Right.String()
	if needsParentheses(n.Right, n.Op) {
		right = "(" + right + ")"
	}
	return left + " " + n.Op + " " + right
}

// UnaryOp is `Op Expr` with Op one of `!` and `NOT`.
type UnaryOp struct {
	Op   string
	Expr Node
}

func (n *UnaryOp) Kind() Kind { return KindUnaryOp }

func (n *UnaryOp) Clone() Node { return &UnaryOp{Op: n.Op, Expr: n.Expr.Clone()} }

func (n *UnaryOp) IsSame(other Node) bool {
	o, ok := other.(*UnaryOp)
	return ok && n.Op == o.Op && n.Expr.IsSame(o.Expr)
}

func (n *UnaryOp) Children() []Node { return []Node{n.Expr} }

func (n *UnaryOp) String() string {
	if _, ok := n.Expr.(*BinaryOp); ok {
		return n.Op + "(" + n.Expr.String() + ")"
	}
	return n.Op + n.Expr.String()
}

func (n *UnaryOp) StringEx(int) string { return n.String() }

// Slice is a `[From:To]` bit slice.
type Slice struct {
	From Node
	To   Node
}

func (n *Slice) Kind() Kind { return KindSlice }

func (n *Slice) Clone() Node { return &Slice{From: n.From.Clone(), To: n.To.Clone()} }

func (n *Slice) IsSame(other Node) bool {
	o, ok := other.(*Slice)
	return ok && n.From.IsSame(o.From) && n.To.IsSame(o.To)
}

func (n *Slice) Children() []Node { return []Node{n.From, n.To} }

func (n *Slice) String() string { return "[" + n.From.String() + ":" + n.To.String() + "]" }

func (n *Slice) StringEx(int) string { return n.String() }

// SquareOp is `Var[Args...]`.
type SquareOp struct {
	Var  Node
	Args []Node
}

func (n *SquareOp) Kind() Kind { return KindSquareOp }

func (n *SquareOp) Clone() Node { return &SquareOp{Var: n.Var.Clone(), Args: cloneList(n.Args)} }

func (n *SquareOp) IsSame(other Node) bool {
	o, ok := other.(*SquareOp)
	return ok && n.Var.IsSame(o.Var) && sameList(n.Args, o.Args)
}

func (n *SquareOp) Children() []Node { return append([]Node{n.Var}, n.Args...) }

func (n *SquareOp) String() string { return n.Var.String() + "[" + joinNodes(n.Args, ",") + "]" }

func (n *SquareOp) StringEx(int) string { return n.String() }

// Tuple is `(a,b,...)` on the left of an assignment.
type Tuple struct{ Values []Node }

func (n *Tuple) Kind() Kind { return KindTuple }

func (n *Tuple) Clone() Node { return &Tuple{Values: cloneList(n.Values)} }

func (n *Tuple) IsSame(other Node) bool {
	o, ok := other.(*Tuple)
	return ok && sameList(n.Values, o.Values)
}

func (n *Tuple) Children() []Node { return n.Values }

func (n *Tuple) String() string { return "(" + joinNodes(n.Values, ",") + ")" }

func (n *Tuple) StringEx(int) string { return n.String() }

// DotAtom is a dotted name such as `PSTATE.EL`.
type DotAtom struct{ Values []Node }

func (n *DotAtom) Kind() Kind { return KindDotAtom }

func (n *DotAtom) Clone() Node { return &DotAtom{Values: cloneList(n.Values)} }

func (n *DotAtom) IsSame(other Node) bool {
	o, ok := other.(*DotAtom)
	return ok && sameList(n.Values, o.Values)
}

func (n *DotAtom) Children() []Node { return n.Values }

func (n *DotAtom) String() string { return joinNodes(n.Values, ".") }

func (n *DotAtom) StringEx(int) string { return n.String() }

// Concat is the bit concatenation `a:b:...`.
type Concat struct{ Values []Node }

func (n *Concat) Kind() Kind { return KindConcat }

func (n *Concat) Clone() Node { return &Concat{Values: cloneList(n.Values)} }

func (n *Concat) IsSame(other Node) bool {
	o, ok := other.(*Concat)
	return ok && sameList(n.Values, o.Values)
}

func (n *Concat) Children() []Node { return n.Values }

func (n *Concat) String() string {
	parts := make([]string, len(n.Values))
	for i, v := range n.Values {
		if id, ok := v.(*Identifier); ok {
			parts[i] = id.Name
		} else {
			parts[i] = "(" + v.String() + ")"
		}
	}
	return strings.Join(parts, ":")
}

func (n *Concat) StringEx(int) string { return n.String() }

// Function is a call, used both as an expression and as a statement.
type Function struct {
	Name string
	Args []Node
}

func (n *Function) Kind() Kind { return KindFunction }

func (n *Function) Clone() Node { return &Function{Name: n.Name, Args: cloneList(n.Args)} }

func (n *Function) IsSame(other Node) bool {
	o, ok := other.(*Function)
	return ok && n.Name == o.Name && sameList(n.Args, o.Args)
}

func (n *Function) Children() []Node { return n.Args }

func (n *Function) String() string { return n.Name + "(" + joinNodes(n.Args, ",") + ")" }

func (n *Function) StringEx(int) string { return n.String() }

// Identifier is a plain name.
type Identifier struct{ Name string }

func (n *Identifier) Kind() Kind { return KindIdentifier }

func (n *Identifier) Clone() Node { return &Identifier{Name: n.Name} }

func (n *Identifier) IsSame(other Node) bool {
	o, ok := other.(*Identifier)
	return ok && n.Name == o.Name
}

func (n *Identifier) Children() []Node { return nil }

func (n *Identifier) String() string { return n.Name }

func (n *Identifier) StringEx(int) string { return n.Name }

// Bool is a boolean constant.
type Bool struct{ Value bool }

// True returns a new true constant.
func True() *Bool { return &Bool{Value: true} }

// False returns a new false constant.
func False() *Bool { return &Bool{Value: false} }

func (n *Bool) Kind() Kind { return KindBool }

func (n *Bool) Clone() Node { return &Bool{Value: n.Value} }

func (n *Bool) IsSame(other Node) bool {
	o, ok := other.(*Bool)
	return ok && n.Value == o.Value
}

func (n *Bool) Children() []Node { return nil }

func (n *Bool) String() string {
	if n.Value {
		return "true"
	}
	return "false"
}

func (n *Bool) StringEx(int) string { return n.String() }

// Integer is an integer constant.
type Integer struct{ Value int64 }

func (n *Integer) Kind() Kind { return KindInteger }

func (n *Integer) Clone() Node { return &Integer{Value: n.Value} }

func (n *Integer) IsSame(other Node) bool {
	o, ok := other.(*Integer)
	return ok && n.Value == o.Value
}

func (n *Integer) Children() []Node { return nil }

func (n *Integer) String() string { return fmt.Sprintf("%#x", n.Value) }

func (n *Integer) StringEx(int) string { return n.String() }

// Set is `(a, b, ...)` on the right of IN.
type Set struct{ Values []Node }

func (n *Set) Kind() Kind { return KindSet }

func (n *Set) Clone() Node { return &Set{Values: cloneList(n.Values)} }

func (n *Set) IsSame(other Node) bool {
	o, ok := other.(*Set)
	return ok && sameList(n.Values, o.Values)
}

func (n *Set) Children() []Node { return n.Values }

func (n *Set) String() string { return "(" + joinNodes(n.Values, ", ") + ")" }

func (n *Set) StringEx(int) string { return n.String() }

// Value is a quoted bit pattern literal such as `'10x1'`.
type Value struct{ Value string }

func (n *Value) Kind() Kind { return KindValue }

func (n *Value) Clone() Node { return &Value{Value: n.Value} }

func (n *Value) IsSame(other Node) bool {
	o, ok := other.(*Value)
	return ok && n.Value == o.Value
}

func (n *Value) Children() []Node { return nil }

func (n *Value) String() string { return n.Value }

func (n *Value) StringEx(int) string { return n.Value }

// Pattern parses the literal; width 0 accepts any width.
func (n *Value) Pattern(width int) (BitPattern, error) { return ParseValue(n.Value, width) }

// EquationValue is a slice `Name[FirstBit:FirstBit+Width-1]` of a named value.
type EquationValue struct {
	Name     string
	FirstBit int
	Width    int
}

func (n *EquationValue) Kind() Kind { return KindEquationValue }

func (n *EquationValue) Clone() Node {
	return &EquationValue{Name: n.Name, FirstBit: n.FirstBit, Width: n.Width}
}

func (n *EquationValue) IsSame(other Node) bool {
	o, ok := other.(*EquationValue)
	return ok && *n == *o
}

func (n *EquationValue) Children() []Node { return nil }

func (n *EquationValue) String() string {
	if reSimpleName.MatchString(n.Name) {
		return fmt.Sprintf("%s[%d:%d]", n.Name, n.FirstBit, n.FirstBit+n.Width-1)
	}
	return fmt.Sprintf("(%s)[%d:%d]", n.Name, n.FirstBit, n.FirstBit+n.Width-1)
}

func (n *EquationValue) StringEx(int) string { return n.String() }

// ValuesGroup is a colon separated list of values and equation values.
type ValuesGroup struct {
	Value string
	Parts []Node
}

func (n *ValuesGroup) Kind() Kind { return KindValuesGroup }

func (n *ValuesGroup) Clone() Node { return &ValuesGroup{Value: n.Value, Parts: cloneList(n.Parts)} }

func (n *ValuesGroup) IsSame(other Node) bool {
	o, ok := other.(*ValuesGroup)
	return ok && n.Value == o.Value && sameList(n.Parts, o.Parts)
}

func (n *ValuesGroup) Children() []Node { return n.Parts }

func (n *ValuesGroup) String() string { return joinNodes(n.Parts, ":") }

func (n *ValuesGroup) StringEx(int) string { return n.String() }

// String is a string constant.
type String struct{ Value string }

func (n *String) Kind() Kind { return KindString }

func (n *String) Clone() Node { return &String{Value: n.Value} }

func (n *String) IsSame(other Node) bool {
	o, ok := other.(*String)
	return ok && n.Value == o.Value
}

func (n *String) Children() []Node { return nil }

func (n *String) String() string { return `"` + n.Value + `"` }

func (n *String) StringEx(int) string { return n.String() }

// Field references a register field: State.Name.Field.
type Field struct {
	Field string
	Name  string
	State string
}

// NewField returns a field reference in the AArch64 state.
func NewField(field, register string) *Field {
	return &Field{Field: field, Name: register, State: "AArch64"}
}

func (n *Field) Kind() Kind { return KindField }

func (n *Field) Clone() Node { return &Field{Field: n.Field, Name: n.Name, State: n.State} }

func (n *Field) IsSame(other Node) bool {
	o, ok := other.(*Field)
	return ok && *n == *o
}

func (n *Field) Children() []Node { return nil }

func (n *Field) String() string { return n.State + "." + n.Name + "." + n.Field }

func (n *Field) StringEx(int) string { return n.String() }

// RegisterType references a whole register: State.Name.
type RegisterType struct {
	Name  string
	State string
}

func (n *RegisterType) Kind() Kind { return KindRegisterType }

func (n *RegisterType) Clone() Node { return &RegisterType{Name: n.Name, State: n.State} }

func (n *RegisterType) IsSame(other Node) bool {
	o, ok := other.(*RegisterType)
	return ok && *n == *o
}

func (n *RegisterType) Children() []Node { return nil }

func (n *RegisterType) String() string { return n.State + "." + n.Name }

func (n *RegisterType) StringEx(int) string { return n.String() }

// Type names a type in an accessor.
type Type struct{ Name Node }

func (n *Type) Kind() Kind { return KindType }

func (n *Type) Clone() Node { return &Type{Name: n.Name.Clone()} }

func (n *Type) IsSame(other Node) bool {
	o, ok := other.(*Type)
	return ok && n.Name.IsSame(o.Name)
}

func (n *Type) Children() []Node { return []Node{n.Name} }

func (n *Type) String() string { return n.Name.String() }

func (n *Type) StringEx(int) string { return n.String() }

// TypeAnnotation is a cast `(Type) Var`.
type TypeAnnotation struct {
	Var  Node
	Type Node
}

func (n *TypeAnnotation) Kind() Kind { return KindTypeAnnotation }

func (n *TypeAnnotation) Clone() Node {
	return &TypeAnnotation{Var: n.Var.Clone(), Type: n.Type.Clone()}
}

func (n *TypeAnnotation) IsSame(other Node) bool {
	o, ok := other.(*TypeAnnotation)
	return ok && n.Var.IsSame(o.Var) && n.Type.IsSame(o.Type)
}

func (n *TypeAnnotation) Children() []Node { return []Node{n.Var, n.Type} }

func (n *TypeAnnotation) String() string { return "(" + n.Type.String() + ") " + n.Var.String() }

func (n *TypeAnnotation) StringEx(int) string { return n.String() }

// TargetExpr is an opaque expression in the output language.
type TargetExpr struct {
	Expr  string
	Width int
}

func (n *TargetExpr) Kind() Kind { return KindTargetExpr }

func (n *TargetExpr) Clone() Node { return &TargetExpr{Expr: n.Expr, Width: n.Width} }

func (n *TargetExpr) IsSame(other Node) bool {
	o, ok := other.(*TargetExpr)
	return ok && *n == *o
}

func (n *TargetExpr) Children() []Node { return nil }

func (n *TargetExpr) String() string { return n.Expr }

func (n *TargetExpr) StringEx(int) string { return n.Expr }

func joinNodes(nodes []Node, sep string) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, sep)
}
