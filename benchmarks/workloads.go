package benchmarks

import (
	"fmt"
	"strings"

	"github.com/sarchlab/armspecgen/decoder"
	"github.com/sarchlab/armspecgen/insts"
)

// patternFields names the letters of an encoding pattern.
var patternFields = map[byte]string{
	'd': "Rd",
	'n': "Rn",
	'm': "Rm",
	't': "Rt",
	'a': "Rt2",
	'i': "imm",
	'c': "cond",
}

// ParsePattern builds an instruction from a 32 character encoding pattern,
// most significant bit first. 0 and 1 are fixed bits, x is a free anonymous
// bit and the letters d, n, m, t, a, i and c are the free bits of Rd, Rn,
// Rm, Rt, Rt2, imm and cond. Spaces are ignored.
func ParsePattern(name, pattern string) (*insts.Instruction, error) {
	p := strings.ReplaceAll(pattern, " ", "")
	if len(p) != insts.OpcodeBits {
		return nil, fmt.Errorf("pattern of %s has %d bits, want %d", name, len(p), insts.OpcodeBits)
	}

	var fields []*insts.Field
	seen := make(map[string]bool)
	for end := 0; end < len(p); {
		start := end
		fixed := p[start] == '0' || p[start] == '1'
		for end < len(p) && sameRun(p[start], p[end]) {
			end++
		}
		f := &insts.Field{FirstBit: len(p) - end, Width: end - start}
		switch {
		case fixed:
			f.Fixed = f.Mask()
			for _, c := range p[start:end] {
				f.Value = f.Value<<1 | uint32(c-'0')
			}
		case p[start] == 'x':
		default:
			fieldName, ok := patternFields[p[start]]
			if !ok {
				return nil, fmt.Errorf("pattern of %s: unknown field letter %q", name, p[start])
			}
			if seen[fieldName] {
				return nil, fmt.Errorf("pattern of %s: field %s is split", name, fieldName)
			}
			seen[fieldName] = true
			f.Name = fieldName
		}
		fields = append(fields, f)
	}

	return insts.NewInstruction(name, strings.TrimSuffix(name, "_"), name, fields, nil, nil, nil)
}

func sameRun(a, b byte) bool {
	if a == '0' || a == '1' {
		return b == '0' || b == '1'
	}
	return a == b
}

// MustParsePatterns builds a workload from name/pattern pairs and panics on
// a malformed pattern.
func MustParsePatterns(name, description string, patterns ...[2]string) Workload {
	w := Workload{Name: name, Description: description}
	for _, p := range patterns {
		inst, err := ParsePattern(p[0], p[1])
		if err != nil {
			panic(err)
		}
		w.Instructions = append(w.Instructions, inst)
	}
	return w
}

// GetWorkloads returns the standard workloads. Each covers one region of
// the A64 encoding space.
func GetWorkloads() []Workload {
	return []Workload{
		dataProcessing(),
		loadStore(),
		branches(),
		systemHints(),
		mixed(),
	}
}

// GetCoreWorkloads returns a minimal set for quick validation.
func GetCoreWorkloads() []Workload {
	return []Workload{
		dataProcessing(),
		systemHints(),
	}
}

var dataProcessingPatterns = [][2]string{
	{"add_imm_", "x 00100010 x iiiiiiiiiiii nnnnn ddddd"},
	{"adds_imm_", "x 01100010 x iiiiiiiiiiii nnnnn ddddd"},
	{"sub_imm_", "x 10100010 x iiiiiiiiiiii nnnnn ddddd"},
	{"subs_imm_", "x 11100010 x iiiiiiiiiiii nnnnn ddddd"},
	{"add_reg_", "x 0001011 xx 0 mmmmm iiiiii nnnnn ddddd"},
	{"sub_reg_", "x 1001011 xx 0 mmmmm iiiiii nnnnn ddddd"},
	{"and_reg_", "x 0001010 xx 0 mmmmm iiiiii nnnnn ddddd"},
	{"orr_reg_", "x 0101010 xx 0 mmmmm iiiiii nnnnn ddddd"},
	{"eor_reg_", "x 1001010 xx 0 mmmmm iiiiii nnnnn ddddd"},
	{"movz_", "x 10 100101 xx iiiiiiiiiiiiiiii ddddd"},
	{"movk_", "x 11 100101 xx iiiiiiiiiiiiiiii ddddd"},
}

var loadStorePatterns = [][2]string{
	{"ldr_imm_", "1111100101 iiiiiiiiiiii nnnnn ttttt"},
	{"str_imm_", "1111100100 iiiiiiiiiiii nnnnn ttttt"},
	{"ldrb_imm_", "0011100101 iiiiiiiiiiii nnnnn ttttt"},
	{"strb_imm_", "0011100100 iiiiiiiiiiii nnnnn ttttt"},
	{"ldr_lit_", "01011000 iiiiiiiiiiiiiiiiiii ttttt"},
	{"ldp_", "1010100101 iiiiiii aaaaa nnnnn ttttt"},
	{"stp_", "1010100100 iiiiiii aaaaa nnnnn ttttt"},
}

var branchPatterns = [][2]string{
	{"b_", "000101 iiiiiiiiiiiiiiiiiiiiiiiiii"},
	{"bl_", "100101 iiiiiiiiiiiiiiiiiiiiiiiiii"},
	{"b_cond_", "01010100 iiiiiiiiiiiiiiiiiii 0 cccc"},
	{"cbz_", "x 0110100 iiiiiiiiiiiiiiiiiii ttttt"},
	{"cbnz_", "x 0110101 iiiiiiiiiiiiiiiiiii ttttt"},
	{"br_", "1101011000011111000000 nnnnn 00000"},
	{"blr_", "1101011000111111000000 nnnnn 00000"},
	{"ret_", "1101011001011111000000 nnnnn 00000"},
}

// hint_ overlaps the named hints, which leaves a check list behind.
var systemPatterns = [][2]string{
	{"nop_", "11010101000000110010000000011111"},
	{"yield_", "11010101000000110010000000111111"},
	{"wfe_", "11010101000000110010000001011111"},
	{"wfi_", "11010101000000110010000001111111"},
	{"sev_", "11010101000000110010000010011111"},
	{"sevl_", "11010101000000110010000010111111"},
	{"hint_", "11010101000000110010 xxxxxxx 11111"},
}

func dataProcessing() Workload {
	return MustParsePatterns("data_processing",
		"Add, subtract, logical and move wide - wide free fields under short opcodes",
		dataProcessingPatterns...)
}

func loadStore() Workload {
	return MustParsePatterns("load_store",
		"Unsigned offset, literal and pair loads and stores",
		loadStorePatterns...)
}

func branches() Workload {
	return MustParsePatterns("branches",
		"Immediate, conditional, compare and register branches",
		branchPatterns...)
}

func systemHints() Workload {
	return MustParsePatterns("system_hints",
		"Fully fixed hints shadowed by the generic HINT",
		systemPatterns...)
}

func mixed() Workload {
	var all [][2]string
	all = append(all, dataProcessingPatterns...)
	all = append(all, loadStorePatterns...)
	all = append(all, branchPatterns...)
	all = append(all, systemPatterns...)
	return MustParsePatterns("mixed", "Every other workload together", all...)
}

// DefaultVariant returns the variant with the default tunables.
func DefaultVariant() Variant {
	return Variant{
		Name:        "default",
		Description: "Default tunables",
		Params:      decoder.DefaultParams(),
	}
}

// GetVariants returns the standard variants: the defaults and one change to
// the cost model or the search limits each.
func GetVariants() []Variant {
	free := decoder.DefaultParams()
	free.LeafCheckCost = 0

	deep := decoder.DefaultParams()
	deep.DepthWeight = 4

	wide := decoder.DefaultParams()
	wide.TableSizeWeight = 2

	singleRun := decoder.DefaultParams()
	singleRun.MaxMaskRuns = 1

	narrow := decoder.DefaultParams()
	narrow.MaxSeedMasks = 2
	narrow.MaxCandidatesPerSeed = 8

	smallMemo := decoder.DefaultParams()
	smallMemo.MemoSets = 4
	smallMemo.MemoWays = 2

	return []Variant{
		DefaultVariant(),
		{Name: "free_leaf_checks", Description: "Leaf checks cost nothing", Params: free},
		{Name: "depth_weighted", Description: "Tables cost 4 per level of depth", Params: deep},
		{Name: "size_weighted", Description: "Tables cost 2 per index bit", Params: wide},
		{Name: "single_run", Description: "Masks must be one contiguous run", Params: singleRun},
		{Name: "narrow_search", Description: "2 seeds of 8 candidates", Params: narrow},
		{Name: "small_memo", Description: "A memo of 4 sets of 2 ways", Params: smallMemo},
	}
}

// VariantByName returns the named standard variant.
func VariantByName(name string) (Variant, bool) {
	for _, v := range GetVariants() {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}
