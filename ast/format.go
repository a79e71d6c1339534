package ast

import "strings"

// StringEx renders the operation on one line when it fits in maxWidth.
// Otherwise chains of groupable operators are flattened and printed one
// operand per line, each prefixed by the operator joining it to the
// previous one.
func (n *BinaryOp) StringEx(maxWidth int) string {
	s := n.String()
	if len(s) <= maxWidth {
		return s
	}

	indent := len(n.Op) + 1
	list := []any{n.Left, n.Op, n.Right}
	for idx := 0; idx < len(list); idx++ {
		switch e := list[idx].(type) {
		case string:
			indent = max(indent, len(e)+1)
		case *BinaryOp:
			if Groupable(n.Op, e.Op) {
				expanded := make([]any, 0, len(list)+2)
				expanded = append(expanded, list[:idx]...)
				expanded = append(expanded, e.Left, e.Op, e.Right)
				expanded = append(expanded, list[idx+1:]...)
				list = expanded
				idx--
			}
		}
	}

	childWidth := max(maxWidth-indent, 16)
	pad := "\n" + strings.Repeat(" ", indent)
	curOp := strings.Repeat(" ", indent-1)
	curPrio := opPrecedence[n.Op]

	var sb strings.Builder
	for idx := 0; idx < len(list); idx += 2 {
		node := list[idx].(Node)
		nextOp, nextPrio := curOp, curPrio
		if idx+1 < len(list) {
			nextOp = list[idx+1].(string)
			nextPrio = opPrecedence[nextOp]
		}

		expr := node.StringEx(childWidth)
		if b, ok := node.(*BinaryOp); ok && opPrecedence[b.Op] > min(nextPrio, curPrio) {
			expr = "(" + strings.ReplaceAll(expr, "\n", "\n ") + ")"
		}
		if idx > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(curOp + " " + strings.ReplaceAll(expr, "\n", pad))

		curOp, curPrio = nextOp, nextPrio
	}
	return sb.String()
}
