package spec

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/sarchlab/armspecgen/ast"
)

// Feature parameter types.
const (
	FeatureBoolean = "Parameters.Boolean"
	FeatureInteger = "Parameters.Integer"
)

// Feature is an architecture feature parameter (FEAT_xxx).
type Feature struct {
	Name        string
	Type        string
	Constraints []ast.Node

	// SupportExpr detects the feature at runtime, usually by testing an ID
	// register field. It is nil when nothing usable was found.
	SupportExpr ast.Node
	// Vars are the sorted, unique names SupportExpr refers to.
	Vars []string
}

// NewFeature creates a feature and derives its support expression from the
// constraints, letting the override table have the final word.
func NewFeature(name, typ string, constraints []ast.Node) *Feature {
	f := &Feature{Name: name, Type: typ, Constraints: constraints}

	candidates := make(map[string]ast.Node)
	for _, c := range constraints {
		if expr := ExtractFeatureIndicator(c, name); expr != nil {
			candidates[expr.String()] = expr
		}
	}
	if len(candidates) > 0 {
		keys := sortedKeys(candidates)
		slices.SortStableFunc(keys, func(a, b string) int {
			return supportWeight(b) - supportWeight(a)
		})
		f.SupportExpr = candidates[keys[0]]
	}

	if override, ok := featureOverrides[name]; ok {
		f.SupportExpr = override.Clone()
	}

	vars := ExtractVariables(f.SupportExpr)
	slices.Sort(vars)
	f.Vars = slices.Compact(vars)
	return f
}

// FeatureFromJSON builds a feature from a Parameters.Boolean or
// Parameters.Integer object.
func FeatureFromJSON(obj map[string]any) (*Feature, error) {
	typ, err := ast.StringAttr(obj, "_type")
	if err != nil {
		return nil, err
	}
	if typ != FeatureBoolean && typ != FeatureInteger {
		return nil, fmt.Errorf("%w: unexpected feature type %s", ast.ErrSchema, typ)
	}
	name, err := ast.StringAttr(obj, "name")
	if err != nil {
		return nil, err
	}

	var constraints []ast.Node
	if raw, ok := obj["constraints"].([]any); ok {
		constraints = make([]ast.Node, 0, len(raw))
		for i, c := range raw {
			n, err := ast.FromJSON(c, ast.ModeConstraints)
			if err != nil {
				return nil, fmt.Errorf("feature %s constraint #%d: %w", name, i, err)
			}
			constraints = append(constraints, n)
		}
	}
	return NewFeature(name, typ, constraints), nil
}

// TypeName returns "boolean" or "integer".
func (f *Feature) TypeName() string {
	if f.Type == FeatureInteger {
		return "integer"
	}
	return "boolean"
}

// ExtractFeatureIndicator returns the part of a constraint that detects
// feature, or nil. `FEAT_X <-> expr` gives expr. An implication whose left
// side is not the feature itself lists preconditions, so its right side is
// searched instead.
func ExtractFeatureIndicator(constraint ast.Node, feature string) ast.Node {
	b, ok := constraint.(*ast.BinaryOp)
	if !ok {
		return nil
	}
	switch b.Op {
	case "<->":
		if ast.IsMatchingIdentifier(b.Left, feature) {
			return b.Right
		}
	case "-->":
		if !ast.IsMatchingIdentifier(b.Left, feature) {
			return ExtractFeatureIndicator(b.Right, feature)
		}
	}
	return nil
}

// ExtractVariables lists the names an expression refers to, in order of
// appearance and with repeats.
func ExtractVariables(n ast.Node) []string {
	switch x := n.(type) {
	case nil:
		return nil
	case *ast.Identifier:
		return []string{x.Name}
	case *ast.DotAtom:
		return []string{x.String()}
	case *ast.BinaryOp:
		return append(ExtractVariables(x.Left), ExtractVariables(x.Right)...)
	case *ast.Field:
		return []string{x.State + "." + x.Name}
	case *ast.Function:
		return extractList(x.Args)
	case *ast.Set:
		return extractList(x.Values)
	case *ast.Concat:
		return extractList(x.Values)
	}
	return nil
}

func extractList(nodes []ast.Node) []string {
	var out []string
	for _, n := range nodes {
		out = append(out, ExtractVariables(n)...)
	}
	return out
}

// supportWeight ranks candidate support expressions: AArch64 registers
// first, external debug registers last.
func supportWeight(expr string) int {
	w := 0
	if strings.Contains(expr, "AArch64.") {
		w += 10
	}
	if strings.Contains(expr, "AArch32.") {
		w--
	}
	if strings.Contains(expr, "ext.") {
		w -= 2
	}
	return w
}

// placeholderFeatures are added when a release does not list them.
var placeholderFeatures = []string{
	"FEAT_ETMv4p1", "FEAT_ETMv4p2", "FEAT_ETMv4p3", "FEAT_ETMv4p4", "FEAT_ETMv4p5", "FEAT_ETMv4p6",
	"FEAT_GICv3", "FEAT_GICv3p1", "FEAT_GICv4", "FEAT_GICv4p1", "FEAT_GICv3_NMI", "FEAT_GICv3_TDIR",
	"FEAT_VPIPT",
	"FEAT_AA64", "FEAT_AA32", "FEAT_SSVE_FEXPA",
}

func (s *Spec) parseFeatures(list []any) error {
	for i, v := range list {
		obj, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: parameter #%d is not an object", ast.ErrSchema, i)
		}
		f, err := FeatureFromJSON(obj)
		if err != nil {
			return err
		}
		if _, dup := s.featuresByName[f.Name]; dup {
			return fmt.Errorf("%w: feature %s is listed twice", ast.ErrSchema, f.Name)
		}
		s.featuresByName[f.Name] = f
		s.Features = append(s.Features, f)
	}

	for _, name := range placeholderFeatures {
		if _, ok := s.featuresByName[name]; ok {
			continue
		}
		f := NewFeature(name, FeatureBoolean, nil)
		s.featuresByName[name] = f
		s.Features = append(s.Features, f)
		s.log.WithField("feature", name).Debug("added placeholder feature")
	}

	slices.SortFunc(s.Features, func(a, b *Feature) int {
		return compareStrings(a.Name, b.Name)
	})
	return nil
}
