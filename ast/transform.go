package ast

// TransformFunc is applied to every node after its children have been
// transformed. It returns the replacement node, the node itself, or nil to
// delete it; deletion is only honoured when mayEliminate is set.
type TransformFunc func(n Node, mayEliminate bool) Node

// Identity is a TransformFunc that keeps every node.
func Identity(n Node, _ bool) Node { return n }

// Transform rewrites the tree rooted at n bottom-up and returns the new root,
// or nil when the whole tree was eliminated. The input tree is not modified.
//
// Children of `&&`, `||` and `!` and the branches of an IfList may be
// eliminated; a deleted conjunct turns its `&&` false and a deleted disjunct
// leaves the other side of its `||`. Boolean constants are folded along the
// way and `!` is pushed into negatable comparisons.
func Transform(n Node, cb TransformFunc, mayEliminate bool) Node {
	if n == nil {
		return nil
	}
	return n.transform(cb, mayEliminate)
}

func (n *BinaryOp) transform(cb TransformFunc, mayEliminate bool) Node {
	childElim := binaryOps[n.Op] == OpLogical
	left := n.Left.transform(cb, childElim)
	right := n.Right.transform(cb, childElim)

	if left != nil && right != nil {
		switch n.Op {
		case "||":
			switch {
			case IsBoolAndTrue(left):
				return left
			case IsBoolAndTrue(right):
				return right
			case IsBoolAndFalse(left):
				return right
			case IsBoolAndFalse(right):
				return left
			}
		case "&&":
			if IsBoolAndFalse(left) || IsBoolAndFalse(right) {
				if mayEliminate {
					return nil
				}
				return cb(False(), mayEliminate)
			}
			if IsBoolAndTrue(left) {
				return cb(right, mayEliminate)
			}
			if IsBoolAndTrue(right) {
				return cb(left, mayEliminate)
			}
		}
		return cb(&BinaryOp{Left: left, Op: n.Op, Right: right}, mayEliminate)
	}

	if n.Op == "||" {
		if left != nil {
			return left
		}
		if right != nil {
			return right
		}
	}
	if mayEliminate {
		return nil
	}
	return cb(False(), mayEliminate)
}

func (n *UnaryOp) transform(cb TransformFunc, mayEliminate bool) Node {
	switch e := n.Expr.(type) {
	case *BinaryOp:
		if neg, ok := opNegation[e.Op]; ok && n.Op == "!" {
			left, right := e.Left, e.Right
			if neg.negateOperands {
				left = &UnaryOp{Op: "!", Expr: left}
				right = &UnaryOp{Op: "!", Expr: right}
			}
			return (&BinaryOp{Left: left, Op: neg.op, Right: right}).transform(cb, mayEliminate)
		}
	case *UnaryOp:
		if e.Op == n.Op {
			return e.Expr.transform(cb, mayEliminate)
		}
	}

	expr := n.Expr.transform(cb, unaryOps[n.Op] == OpLogical)
	if expr == nil {
		if n.Op == "!" {
			return cb(True(), mayEliminate)
		}
		return nil
	}
	if b, ok := expr.(*Bool); ok && n.Op == "!" {
		return cb(&Bool{Value: !b.Value}, mayEliminate)
	}
	return cb(&UnaryOp{Op: n.Op, Expr: expr}, mayEliminate)
}

func (n *Slice) transform(cb TransformFunc, mayEliminate bool) Node {
	from := n.From.transform(cb, false)
	to := n.To.transform(cb, false)
	if from == nil || to == nil {
		return nil
	}
	return cb(&Slice{From: from, To: to}, mayEliminate)
}

func (n *SquareOp) transform(cb TransformFunc, mayEliminate bool) Node {
	v := n.Var.transform(cb, mayEliminate)
	if v == nil {
		return nil
	}
	return cb(&SquareOp{Var: v, Args: transformList(n.Args, cb)}, mayEliminate)
}

func (n *Tuple) transform(cb TransformFunc, mayEliminate bool) Node {
	return cb(&Tuple{Values: transformList(n.Values, cb)}, mayEliminate)
}

func (n *DotAtom) transform(cb TransformFunc, mayEliminate bool) Node {
	return cb(&DotAtom{Values: transformList(n.Values, cb)}, mayEliminate)
}

func (n *Concat) transform(cb TransformFunc, mayEliminate bool) Node {
	return cb(&Concat{Values: transformList(n.Values, cb)}, mayEliminate)
}

func (n *Function) transform(cb TransformFunc, mayEliminate bool) Node {
	return cb(&Function{Name: n.Name, Args: transformList(n.Args, cb)}, mayEliminate)
}

func (n *Set) transform(cb TransformFunc, mayEliminate bool) Node {
	return cb(&Set{Values: transformList(n.Values, cb)}, mayEliminate)
}

func (n *ValuesGroup) transform(cb TransformFunc, mayEliminate bool) Node {
	return cb(&ValuesGroup{Value: n.Value, Parts: transformList(n.Parts, cb)}, mayEliminate)
}

func (n *Type) transform(cb TransformFunc, mayEliminate bool) Node {
	name := n.Name.transform(cb, false)
	if name == nil {
		return nil
	}
	return cb(&Type{Name: name}, mayEliminate)
}

func (n *TypeAnnotation) transform(cb TransformFunc, mayEliminate bool) Node {
	v := n.Var.transform(cb, false)
	t := n.Type.transform(cb, false)
	if v == nil || t == nil {
		return nil
	}
	return cb(&TypeAnnotation{Var: v, Type: t}, mayEliminate)
}

func (n *Assignment) transform(cb TransformFunc, mayEliminate bool) Node {
	v := n.Var.transform(cb, mayEliminate)
	if v == nil {
		return nil
	}
	val := n.Val.transform(cb, false)
	if val == nil {
		return nil
	}
	return cb(&Assignment{Var: v, Val: val}, mayEliminate)
}

func (n *Return) transform(cb TransformFunc, mayEliminate bool) Node {
	if n.Val == nil {
		return cb(&Return{}, mayEliminate)
	}
	val := n.Val.transform(cb, false)
	if val == nil {
		return cb(&Return{}, mayEliminate)
	}
	return cb(&Return{Val: val}, mayEliminate)
}

func (n *IfList) transform(cb TransformFunc, mayEliminate bool) Node {
	var conds, stmts []Node
	var elseStmt Node
	for i, cond := range n.Conds {
		cond = cond.transform(cb, true)
		if cond == nil || IsBoolAndFalse(cond) {
			continue
		}
		stmt := n.Stmts[i].transform(cb, true)
		if stmt == nil {
			stmt = &Nop{}
		}
		if IsBoolAndTrue(cond) {
			elseStmt = stmt
			break
		}
		conds = append(conds, cond)
		stmts = append(stmts, stmt)
	}
	if elseStmt == nil && n.Else != nil {
		elseStmt = n.Else.transform(cb, true)
	}

	if len(conds) > 0 {
		return cb(&IfList{Conds: conds, Stmts: stmts, Else: elseStmt}, mayEliminate)
	}
	if elseStmt != nil {
		return cb(elseStmt, mayEliminate)
	}
	if mayEliminate {
		return nil
	}
	return cb(&Nop{}, mayEliminate)
}

func (n *Identifier) transform(cb TransformFunc, mayEliminate bool) Node { return cb(n, mayEliminate) }

func (n *Bool) transform(cb TransformFunc, mayEliminate bool) Node { return cb(n, mayEliminate) }

func (n *Integer) transform(cb TransformFunc, mayEliminate bool) Node { return cb(n, mayEliminate) }

func (n *Value) transform(cb TransformFunc, mayEliminate bool) Node { return cb(n, mayEliminate) }

func (n *EquationValue) transform(cb TransformFunc, mayEliminate bool) Node {
	return cb(n, mayEliminate)
}

func (n *String) transform(cb TransformFunc, mayEliminate bool) Node { return cb(n, mayEliminate) }

func (n *Field) transform(cb TransformFunc, mayEliminate bool) Node { return cb(n, mayEliminate) }

func (n *RegisterType) transform(cb TransformFunc, mayEliminate bool) Node {
	return cb(n, mayEliminate)
}

func (n *Nop) transform(cb TransformFunc, mayEliminate bool) Node { return cb(n, mayEliminate) }

func (n *TargetExpr) transform(cb TransformFunc, mayEliminate bool) Node {
	return cb(n, mayEliminate)
}

func (n *TargetStmt) transform(cb TransformFunc, mayEliminate bool) Node {
	return cb(n, mayEliminate)
}

// transformList rewrites list members without elimination; members the
// callback deletes anyway are dropped.
func transformList(nodes []Node, cb TransformFunc) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if t := n.transform(cb, false); t != nil {
			out = append(out, t)
		}
	}
	return out
}
