// Package ast models the expression and statement trees found in the ARM
// machine-readable architecture specification.
//
// Trees are built from the specification JSON through FromJSON and can be cloned,
// compared structurally with IsSame, rewritten with Transform and printed
// with String or StringEx.
//
// Usage:
//
//	node, err := ast.FromJSON(obj, ast.ModeCondition)
//	if err != nil {
//		return err
//	}
//	simplified := ast.Transform(node, ast.Identity, false)
//	fmt.Println(simplified.StringEx(80))
package ast

// Kind identifies the variant of a Node.
type Kind uint8

// Node kinds.
const (
	KindBinaryOp Kind = iota
	KindUnaryOp
	KindSlice
	KindSquareOp
	KindTuple
	KindDotAtom
	KindConcat
	KindFunction
	KindIdentifier
	KindBool
	KindInteger
	KindSet
	KindValue
	KindEquationValue
	KindValuesGroup
	KindString
	KindField
	KindRegisterType
	KindType
	KindTypeAnnotation
	KindAssignment
	KindReturn
	KindIfList
	KindNop
	KindTargetExpr
	KindTargetStmt
)

var kindNames = [...]string{
	KindBinaryOp:       "AST.BinaryOp",
	KindUnaryOp:        "AST.UnaryOp",
	KindSlice:          "AST.Slice",
	KindSquareOp:       "AST.SquareOp",
	KindTuple:          "AST.Tuple",
	KindDotAtom:        "AST.DotAtom",
	KindConcat:         "AST.Concat",
	KindFunction:       "AST.Function",
	KindIdentifier:     "AST.Identifier",
	KindBool:           "AST.Bool",
	KindInteger:        "AST.Integer",
	KindSet:            "AST.Set",
	KindValue:          "Values.Value",
	KindEquationValue:  "Values.EquationValue",
	KindValuesGroup:    "Values.Group",
	KindString:         "Types.String",
	KindField:          "Types.Field",
	KindRegisterType:   "Types.RegisterType",
	KindType:           "AST.Type",
	KindTypeAnnotation: "AST.TypeAnnotation",
	KindAssignment:     "AST.Assignment",
	KindReturn:         "AST.Return",
	KindIfList:         "Accessors.Permission.SystemAccess",
	KindNop:            "AST.Nop",
	KindTargetExpr:     "Target.Expr",
	KindTargetStmt:     "Target.Stmt",
}

// String returns the JSON `_type` name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// Mode selects which sub-grammar FromJSON accepts.
type Mode uint8

// Parsing modes.
const (
	ModeCondition Mode = iota
	ModeConstraints
	ModeAccessor
	ModeAccessorCond
	ModeValuesOnly
)

func (m Mode) String() string {
	switch m {
	case ModeCondition:
		return "condition"
	case ModeConstraints:
		return "constraints"
	case ModeAccessor:
		return "accessor"
	case ModeAccessorCond:
		return "accessor-cond"
	case ModeValuesOnly:
		return "values-only"
	}
	return "unknown"
}

// Node is implemented by every tree node.
type Node interface {
	// Kind returns the variant.
	Kind() Kind
	// Clone returns a deep copy.
	Clone() Node
	// IsSame reports structural equality.
	IsSame(other Node) bool
	// Children returns the direct sub-nodes in source order.
	Children() []Node
	// String renders the node on a single line.
	String() string
	// StringEx renders the node, splitting long operator chains over
	// several lines so that each fits in maxWidth where possible.
	StringEx(maxWidth int) string

	transform(cb TransformFunc, mayEliminate bool) Node
}

// Statement is implemented by nodes that render as a list of lines.
type Statement interface {
	Node
	StringList(indent string) []string
}

// Walk calls fn for every node of the tree, children before parents.
func Walk(n Node, fn func(Node)) {
	if n == nil {
		return
	}
	for _, child := range n.Children() {
		Walk(child, fn)
	}
	fn(n)
}

func cloneList(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

func sameList(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].IsSame(b[i]) {
			return false
		}
	}
	return true
}
