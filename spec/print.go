package spec

import (
	"fmt"
	"io"
	"math/bits"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"golang.org/x/exp/slices"

	"github.com/sarchlab/armspecgen/ast"
	"github.com/sarchlab/armspecgen/insts"
)

// PrintOptions selects the debug listings of Print.
type PrintOptions struct {
	Instructions              bool
	InstructionsWithEncoding  bool
	InstructionsWithCondition bool
	FixedMaskStats            bool
	FixedMaskTop              bool
	SysRegs                   bool
}

// Any reports whether any listing is selected.
func (o PrintOptions) Any() bool {
	return o.Instructions || o.InstructionsWithEncoding || o.InstructionsWithCondition ||
		o.FixedMaskStats || o.FixedMaskTop || o.SysRegs
}

// TopFixedMasks is the number of masks listed by PrintFixedMaskTop.
const TopFixedMasks = 20

// Print writes the selected listings to w.
func (s *Spec) Print(w io.Writer, opts PrintOptions) {
	if opts.Instructions || opts.InstructionsWithEncoding || opts.InstructionsWithCondition {
		PrintInstructions(w, s.Instructions, opts.InstructionsWithEncoding, opts.InstructionsWithCondition)
	}
	if opts.FixedMaskStats {
		PrintFixedMaskStats(w, s.Instructions)
	}
	if opts.FixedMaskTop {
		PrintFixedMaskTop(w, s.Instructions, TopFixedMasks)
	}
	if opts.SysRegs {
		s.PrintSysRegs(w)
	}
}

// PrintInstructions lists instructions as `mask/value cname asm`, optionally
// followed by their encoding fields and remaining conditions.
func PrintInstructions(w io.Writer, list []*insts.Instruction, encoding, conditions bool) {
	for _, inst := range list {
		fmt.Fprintf(w, "%08x/%08x %s %s\n", inst.FixedMask(), inst.FixedValue(), inst.CName(), inst.AsmDisplay)
		if encoding {
			fields := slices.Clone(inst.Fields)
			slices.SortStableFunc(fields, func(a, b *insts.Field) int { return a.FirstBit - b.FirstBit })
			for _, f := range fields {
				name := ""
				if f.Name != "" {
					name = " " + f.Name
				}
				fmt.Fprintf(w, "  %2d L %2d: %010x/%010x%s\n", f.FirstBit, f.Width, f.Fixed, f.Value, name)
			}
		}
		if conditions && !ast.IsBoolAndTrue(inst.Condition) {
			fmt.Fprintf(w, "  condition: %s\n", inst.Condition)
		}
	}
}

// PrintFixedMaskStats writes how many instructions fix each number of bits.
func PrintFixedMaskStats(w io.Writer, list []*insts.Instruction) {
	var counts [insts.OpcodeBits + 1]int
	for _, inst := range list {
		counts[bits.OnesCount32(inst.FixedMask())]++
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Fixed bit pop count distribution:")
	for i, n := range counts {
		if n > 0 {
			fmt.Fprintf(w, "  %2d: %d\n", i, n)
		}
	}
}

// MaskCount is a fixed mask and the number of instructions using it.
type MaskCount struct {
	Mask  uint32
	Count int
}

// CountFixedMasks returns the fixed masks by descending use. Masks used
// equally often keep the order in which they first appear.
func CountFixedMasks(list []*insts.Instruction) []MaskCount {
	index := make(map[uint32]int)
	var out []MaskCount
	for _, inst := range list {
		m := inst.FixedMask()
		i, ok := index[m]
		if !ok {
			i = len(out)
			index[m] = i
			out = append(out, MaskCount{Mask: m})
		}
		out[i].Count++
	}
	slices.SortStableFunc(out, func(a, b MaskCount) int { return b.Count - a.Count })
	return out
}

// PrintFixedMaskTop writes the n most common fixed masks.
func PrintFixedMaskTop(w io.Writer, list []*insts.Instruction, n int) {
	counts := CountFixedMasks(list)
	if len(counts) > n {
		counts = counts[:n]
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Top %d fixed masks:\n", n)
	for _, c := range counts {
		fmt.Fprintf(w, "  %#x: %d times\n", c.Mask, c.Count)
	}
}

// PrintSysRegs lists the AArch64 registers with their fieldsets and
// accessors.
func (s *Spec) PrintSysRegs(w io.Writer) {
	const indent = "                         "
	fmt.Fprintln(w)
	fmt.Fprintln(w, "System registers:")
	for _, r := range s.registersByState["AArch64"] {
		fmt.Fprintf(w, "   %s.%s\n", r.State, r.Name)
		fmt.Fprintf(w, "       Condition: %s\n", r.Condition)
		for _, fs := range r.Fieldsets {
			fmt.Fprintf(w, "       Fieldsset: %s\n", fs)
		}
		for i, a := range r.Accessors {
			if !a.IsSystem() {
				fmt.Fprintf(w, "       Accessors[%d]: %s\n", i, a)
				continue
			}
			fmt.Fprintf(w, "       Accessors[%d]: encoding=%s\n", i, a.Encoding)
			fmt.Fprintf(w, "                     name=%s\n", a.Name)
			if !ast.IsBoolAndTrue(a.Condition) {
				fmt.Fprintf(w, "                     condition=%s\n", a.Condition)
			}
			switch acc := a.Access.(type) {
			case nil:
			case *ast.IfList:
				fmt.Fprintln(w, strings.Join(acc.StringList(indent), "\n"))
			default:
				fmt.Fprintf(w, "%s%s\n", indent, acc)
			}
		}
	}
}

// PrintFeatures lists the features with their support expressions. The
// constraints are shown for features not detected through an AArch64
// register.
func (s *Spec) PrintFeatures(w io.Writer) {
	width := 0
	for _, f := range s.Features {
		width = max(width, len(f.Name))
	}
	for i, f := range s.Features {
		if f.SupportExpr != nil {
			fmt.Fprintf(w, "%3d: %s  %-*s := %s\n", i, f.TypeName(), width, f.Name, f.SupportExpr)
		} else {
			fmt.Fprintf(w, "%3d: %s  %s\n", i, f.TypeName(), f.Name)
		}
		if f.SupportExpr == nil || !strings.Contains(f.SupportExpr.String(), "AArch64") {
			for j, c := range f.Constraints {
				fmt.Fprintf(w, "        #%d: %s\n", j, c)
			}
		}
	}
}

// Dump writes a deep dump of the named instructions, or of every
// instruction when names is empty.
func (s *Spec) Dump(w io.Writer, names ...string) error {
	cfg := spew.ConfigState{
		Indent:                  "  ",
		DisablePointerAddresses: true,
		DisableCapacities:       true,
		SortKeys:                true,
		MaxDepth:                4,
	}
	if len(names) == 0 {
		for _, inst := range s.Instructions {
			cfg.Fdump(w, dumpView(inst))
		}
		return nil
	}
	for _, name := range names {
		inst := s.instructionsByName[name]
		if inst == nil {
			return fmt.Errorf("no instruction named %s", name)
		}
		cfg.Fdump(w, dumpView(inst))
	}
	return nil
}

type instructionDump struct {
	Name       string
	Mnemonic   string
	AsmDisplay string
	FixedMask  string
	FixedValue string
	Groups     []string
	Fields     []*insts.Field
	Condition  string
}

// dumpView leaves out the parent links, which would dump the whole
// hierarchy.
func dumpView(inst *insts.Instruction) instructionDump {
	return instructionDump{
		Name:       inst.Name,
		Mnemonic:   inst.Mnemonic,
		AsmDisplay: inst.AsmDisplay,
		FixedMask:  fmt.Sprintf("%#08x", inst.FixedMask()),
		FixedValue: fmt.Sprintf("%#08x", inst.FixedValue()),
		Groups:     inst.GroupNames(),
		Fields:     inst.Fields,
		Condition:  inst.Condition.String(),
	}
}
