package emit

import (
	"fmt"
	"io"
	"strings"

	"github.com/sarchlab/armspecgen/decoder"
)

// Text writes an indented dump of the tree, one node per line. Table
// entries without an instruction are left out.
func Text(w io.Writer, tree *decoder.Tree) error {
	st := tree.Stats()
	tw := &textWriter{w: w}
	tw.printf("decoder: %d instructions, %d nodes, %d tables, %d leaves, %d leaf checks, %d check lists, depth %d, cost %d\n",
		len(tree.Instructions), st.Nodes, st.Tables, st.Leaves, st.LeafChecks, st.CheckLists, st.MaxDepth, st.Cost)
	if tree.Memo.Hits+tree.Memo.Misses > 0 {
		tw.printf("memo: %d hits, %d misses, %d evictions\n", tree.Memo.Hits, tree.Memo.Misses, tree.Memo.Evictions)
	}
	if tree.Root == nil {
		tw.printf("<empty>\n")
		return tw.err
	}
	tw.node(tree.Root, "", 0)
	return tw.err
}

type textWriter struct {
	w   io.Writer
	err error
}

func (tw *textWriter) printf(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.w, format, args...)
}

func (tw *textWriter) node(n *decoder.Node, label string, indent int) {
	pad := strings.Repeat("  ", indent)
	switch {
	case n.IsLeaf():
		inst := n.Instruction()
		check := ""
		if n.LeafCheckNeeded {
			check = fmt.Sprintf(" check %#08x/%#08x", inst.FixedMask()&^n.CheckedMask, inst.FixedValue()&^n.CheckedMask)
		}
		tw.printf("%s%sleaf %s%s cost=%d\n", pad, label, inst.CName(), check, n.Cost)

	case n.IsCheckList():
		tw.printf("%s%scheck list of %d cost=%d\n", pad, label, len(n.Instructions), n.Cost)
		for _, inst := range n.Instructions {
			tw.printf("%s  %08x/%08x %s\n", pad, inst.FixedMask(), inst.FixedValue(), inst.CName())
		}

	default:
		tw.printf("%s%stable mask=%#08x %s bits=%d instructions=%d cost=%d\n",
			pad, label, n.Mask, n.Algo, n.Algo.Bits(), len(n.Instructions), n.Cost)
		width := (n.Algo.Bits() + 3) / 4
		if width == 0 {
			width = 1
		}
		for idx, c := range n.Children {
			if c == nil {
				continue
			}
			tw.node(c, fmt.Sprintf("[%0*x] ", width, idx), indent+1)
		}
	}
}
