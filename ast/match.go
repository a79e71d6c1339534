package ast

// ArgMatch selects an argument by node kind in IsMatchingSquareOp and
// IsMatchingFunctionCall.
type ArgMatch uint8

const (
	// AnyInt matches any Integer argument.
	AnyInt ArgMatch = iota + 1
	// AnyIdent matches any Identifier argument.
	AnyIdent
)

// IsBoolAndTrue reports whether n is the constant true.
func IsBoolAndTrue(n Node) bool {
	b, ok := n.(*Bool)
	return ok && b.Value
}

// IsBoolAndFalse reports whether n is the constant false.
func IsBoolAndFalse(n Node) bool {
	b, ok := n.(*Bool)
	return ok && !b.Value
}

// IsMatchingIdentifier reports whether n is an identifier called name.
func IsMatchingIdentifier(n Node, name string) bool {
	id, ok := n.(*Identifier)
	return ok && id.Name == name
}

// IdentifierName returns the name of an identifier node.
func IdentifierName(n Node) (string, bool) {
	id, ok := n.(*Identifier)
	if !ok {
		return "", false
	}
	return id.Name, true
}

// IsMatchingDotAtom reports whether n is a dotted name made of exactly the
// given identifiers.
func IsMatchingDotAtom(n Node, parts ...string) bool {
	d, ok := n.(*DotAtom)
	if !ok || len(d.Values) != len(parts) {
		return false
	}
	for i, part := range parts {
		if !IsMatchingIdentifier(d.Values[i], part) {
			return false
		}
	}
	return true
}

// IsMatchingInteger reports whether n is the integer v.
func IsMatchingInteger(n Node, v int64) bool {
	i, ok := n.(*Integer)
	return ok && i.Value == v
}

// IntegerValue returns the value of an integer node.
func IntegerValue(n Node) (int64, bool) {
	i, ok := n.(*Integer)
	if !ok {
		return 0, false
	}
	return i.Value, true
}

// IsMatchingSquareOp reports whether n is `name[args...]`. Each match is an
// int (that integer), a string (that identifier), AnyInt, AnyIdent or nil
// (anything).
func IsMatchingSquareOp(n Node, name string, matches ...any) bool {
	sq, ok := n.(*SquareOp)
	if !ok || !IsMatchingIdentifier(sq.Var, name) || len(sq.Args) != len(matches) {
		return false
	}
	for i, m := range matches {
		if !matchArg(sq.Args[i], m, false) {
			return false
		}
	}
	return true
}

// IsMatchingFunctionCall reports whether n is `name(args...)`. Matches are as
// for IsMatchingSquareOp except that a string is compared with the
// argument's String form.
func IsMatchingFunctionCall(n Node, name string, matches ...any) bool {
	fn, ok := n.(*Function)
	if !ok || fn.Name != name || len(fn.Args) != len(matches) {
		return false
	}
	for i, m := range matches {
		if !matchArg(fn.Args[i], m, true) {
			return false
		}
	}
	return true
}

func matchArg(arg Node, m any, textual bool) bool {
	switch v := m.(type) {
	case nil:
		return true
	case ArgMatch:
		switch v {
		case AnyInt:
			_, ok := arg.(*Integer)
			return ok
		case AnyIdent:
			_, ok := arg.(*Identifier)
			return ok
		}
		return false
	case int:
		return IsMatchingInteger(arg, int64(v))
	case int64:
		return IsMatchingInteger(arg, v)
	case string:
		if textual {
			return arg.String() == v
		}
		return IsMatchingIdentifier(arg, v)
	}
	return false
}

// AndListToTree joins clones of conds with `&&`, nesting to the right.
func AndListToTree(conds []Node) Node {
	return listToTree(conds, "&&")
}

// OrListToTree joins clones of conds with `||`, nesting to the right.
func OrListToTree(conds []Node) Node {
	return listToTree(conds, "||")
}

func listToTree(conds []Node, op string) Node {
	switch len(conds) {
	case 0:
		return nil
	case 1:
		return conds[0].Clone()
	}
	return &BinaryOp{Left: conds[0].Clone(), Op: op, Right: listToTree(conds[1:], op)}
}

// AndChain returns the operands of a tree of `&&` operations, left to right.
func AndChain(n Node) []Node {
	if b, ok := n.(*BinaryOp); ok && b.Op == "&&" {
		return append(AndChain(b.Left), AndChain(b.Right)...)
	}
	return []Node{n}
}
