package ast

import "strings"

// Nop is an empty statement produced by transformations.
type Nop struct{}

func (n *Nop) Kind() Kind { return KindNop }

func (n *Nop) Clone() Node { return &Nop{} }

func (n *Nop) IsSame(other Node) bool {
	_, ok := other.(*Nop)
	return ok
}

func (n *Nop) Children() []Node { return nil }

func (n *Nop) String() string { return "NOP();" }

func (n *Nop) StringEx(int) string { return n.String() }

func (n *Nop) StringList(indent string) []string { return []string{indent + "NOP();"} }

// Assignment is `Var = Val;`.
type Assignment struct {
	Var Node
	Val Node
}

func (n *Assignment) Kind() Kind { return KindAssignment }

func (n *Assignment) Clone() Node { return &Assignment{Var: n.Var.Clone(), Val: n.Val.Clone()} }

func (n *Assignment) IsSame(other Node) bool {
	o, ok := other.(*Assignment)
	return ok && n.Var.IsSame(o.Var) && n.Val.IsSame(o.Val)
}

func (n *Assignment) Children() []Node { return []Node{n.Var, n.Val} }

func (n *Assignment) String() string { return n.Var.String() + " = " + n.Val.String() + ";" }

func (n *Assignment) StringEx(int) string { return n.String() }

func (n *Assignment) StringList(indent string) []string { return []string{indent + n.String()} }

// Return is `return Val;` with an optional value.
type Return struct{ Val Node }

func (n *Return) Kind() Kind { return KindReturn }

func (n *Return) Clone() Node {
	if n.Val == nil {
		return &Return{}
	}
	return &Return{Val: n.Val.Clone()}
}

func (n *Return) IsSame(other Node) bool {
	o, ok := other.(*Return)
	if !ok || (n.Val == nil) != (o.Val == nil) {
		return false
	}
	return n.Val == nil || n.Val.IsSame(o.Val)
}

func (n *Return) Children() []Node {
	if n.Val == nil {
		return nil
	}
	return []Node{n.Val}
}

func (n *Return) String() string {
	if n.Val == nil {
		return "return;"
	}
	return "return " + n.Val.String() + ";"
}

func (n *Return) StringEx(int) string { return n.String() }

func (n *Return) StringList(indent string) []string { return []string{indent + n.String()} }

// IfList is an if / else-if / else cascade. Statements may be nested
// IfLists or function calls.
type IfList struct {
	Conds []Node
	Stmts []Node
	Else  Node
}

func (n *IfList) Kind() Kind { return KindIfList }

func (n *IfList) Clone() Node {
	c := &IfList{Conds: cloneList(n.Conds), Stmts: cloneList(n.Stmts)}
	if n.Else != nil {
		c.Else = n.Else.Clone()
	}
	return c
}

func (n *IfList) IsSame(other Node) bool {
	o, ok := other.(*IfList)
	if !ok || !sameList(n.Conds, o.Conds) || !sameList(n.Stmts, o.Stmts) {
		return false
	}
	if (n.Else == nil) != (o.Else == nil) {
		return false
	}
	return n.Else == nil || n.Else.IsSame(o.Else)
}

func (n *IfList) Children() []Node {
	children := make([]Node, 0, 2*len(n.Conds)+1)
	for i, c := range n.Conds {
		children = append(children, c, n.Stmts[i])
	}
	if n.Else != nil {
		children = append(children, n.Else)
	}
	return children
}

func (n *IfList) String() string { return strings.Join(n.StringList(""), "\n") }

func (n *IfList) StringEx(int) string { return n.String() }

// StringList renders the cascade one line per entry, nested statements
// indented by four spaces.
func (n *IfList) StringList(indent string) []string {
	var lines []string
	next := indent + "    "
	for i, cond := range n.Conds {
		width := 120 - len(indent)
		if width < 60 {
			width = 60
		}
		text := cond.StringEx(width)
		prefix := "if ("
		if i > 0 {
			prefix = "else if ("
			text = strings.ReplaceAll(text, "\n", "\n         "+indent)
		} else {
			text = strings.ReplaceAll(text, "\n", "\n    "+indent)
		}
		lines = append(lines, strings.Split(indent+prefix+text+")", "\n")...)
		lines = append(lines, statementLines(n.Stmts[i], next)...)
	}
	if n.Else != nil {
		if len(n.Conds) > 0 {
			lines = append(lines, indent+"else")
		} else {
			next = indent
		}
		lines = append(lines, statementLines(n.Else, next)...)
	}
	return lines
}

func statementLines(n Node, indent string) []string {
	if s, ok := n.(Statement); ok {
		return s.StringList(indent)
	}
	return []string{indent + n.String()}
}

// TargetStmt holds opaque statements in the output language.
type TargetStmt struct{ Stmts []string }

func (n *TargetStmt) Kind() Kind { return KindTargetStmt }

func (n *TargetStmt) Clone() Node { return &TargetStmt{Stmts: append([]string(nil), n.Stmts...)} }

func (n *TargetStmt) IsSame(other Node) bool {
	o, ok := other.(*TargetStmt)
	if !ok || len(n.Stmts) != len(o.Stmts) {
		return false
	}
	for i := range n.Stmts {
		if n.Stmts[i] != o.Stmts[i] {
			return false
		}
	}
	return true
}

func (n *TargetStmt) Children() []Node { return nil }

func (n *TargetStmt) String() string { return strings.Join(n.Stmts, "\n") }

func (n *TargetStmt) StringEx(int) string { return n.String() }

func (n *TargetStmt) StringList(indent string) []string {
	lines := make([]string, len(n.Stmts))
	for i, s := range n.Stmts {
		lines[i] = indent + s
	}
	return lines
}
