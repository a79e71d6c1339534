package ast

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

// ErrSchema is wrapped by every error caused by JSON that does not match the
// expected schema.
var ErrSchema = errors.New("schema violation")

type builder func(obj map[string]any, mode Mode) (Node, error)

var builders map[string]builder

func init() {
	builders = map[string]builder{
		"AST.BinaryOp":         binaryOpFromJSON,
		"AST.UnaryOp":          unaryOpFromJSON,
		"AST.Slice":            sliceFromJSON,
		"AST.SquareOp":         squareOpFromJSON,
		"AST.Tuple":            tupleFromJSON,
		"AST.DotAtom":          dotAtomFromJSON,
		"AST.Concat":           concatFromJSON,
		"AST.Function":         functionFromJSON,
		"AST.Identifier":       identifierFromJSON,
		"AST.Bool":             boolFromJSON,
		"AST.Integer":          integerFromJSON,
		"AST.Set":              setFromJSON,
		"Values.Value":         valueFromJSON,
		"Values.EquationValue": equationValueFromJSON,
		"Values.Group":         valuesGroupFromJSON,
		"Types.String":         stringFromJSON,
		"Types.Field":          fieldFromJSON,
		"Types.RegisterType":   registerTypeFromJSON,
		"AST.Type":             typeFromJSON,
		"AST.TypeAnnotation":   typeAnnotationFromJSON,
		"AST.Assignment":       assignmentFromJSON,
		"AST.Return":           returnFromJSON,
	}
}

// FromJSON builds a node from a decoded JSON object. The object's `_type`
// selects the node kind; its attribute set must match exactly and the kind
// must be permitted in mode.
func FromJSON(v any, mode Mode) (Node, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected an AST object, got %T", ErrSchema, v)
	}
	typ, _ := obj["_type"].(string)
	build, ok := builders[typ]
	if !ok {
		return nil, fmt.Errorf("%w: unknown AST type %q", ErrSchema, typ)
	}
	return build(obj, mode)
}

// CheckAttribs verifies that obj has exactly the given attributes.
func CheckAttribs(obj map[string]any, attribs ...string) error {
	want := make(map[string]bool, len(attribs))
	for _, a := range attribs {
		want[a] = true
		if _, ok := obj[a]; !ok {
			return fmt.Errorf("%w: %s is missing attribute %q", ErrSchema, typeName(obj), a)
		}
	}
	var extra []string
	for k := range obj {
		if !want[k] {
			extra = append(extra, k)
		}
	}
	if len(extra) > 0 {
		slices.Sort(extra)
		return fmt.Errorf("%w: %s has unexpected attributes %s", ErrSchema, typeName(obj),
			strings.Join(extra, ", "))
	}
	return nil
}

func typeName(obj map[string]any) string {
	if typ, ok := obj["_type"].(string); ok {
		return typ
	}
	return "object"
}

func checkMode(obj map[string]any, mode Mode, allowed ...Mode) error {
	for _, m := range allowed {
		if m == mode {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is not allowed in %s mode", ErrSchema, typeName(obj), mode)
}

func notValuesOnly(obj map[string]any, mode Mode) error {
	if mode == ModeValuesOnly {
		return fmt.Errorf("%w: %s is not allowed in %s mode", ErrSchema, typeName(obj), mode)
	}
	return nil
}

func child(obj map[string]any, key string, mode Mode) (Node, error) {
	n, err := FromJSON(obj[key], mode)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", typeName(obj), key, err)
	}
	return n, nil
}

func childList(obj map[string]any, key string, mode Mode) ([]Node, error) {
	list, ok := obj[key].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s is not a list", ErrSchema, typeName(obj), key)
	}
	nodes := make([]Node, 0, len(list))
	for i, v := range list {
		n, err := FromJSON(v, mode)
		if err != nil {
			return nil, fmt.Errorf("%s.%s[%d]: %w", typeName(obj), key, i, err)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// StringAttr returns a string attribute of obj.
func StringAttr(obj map[string]any, key string) (string, error) {
	s, ok := obj[key].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s.%s is not a string", ErrSchema, typeName(obj), key)
	}
	return s, nil
}

// IntAttr returns an integer attribute of obj, accepting JSON numbers and
// numeric strings.
func IntAttr(obj map[string]any, key string) (int64, error) {
	v, err := toInt(obj[key])
	if err != nil {
		return 0, fmt.Errorf("%s.%s: %w", typeName(obj), key, err)
	}
	return v, nil
}

func toInt(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int64:
		return x, nil
	case float64:
		if x != float64(int64(x)) {
			return 0, fmt.Errorf("%w: %v is not an integer", ErrSchema, x)
		}
		return int64(x), nil
	case json.Number:
		return strconv.ParseInt(string(x), 0, 64)
	case string:
		i, err := strconv.ParseInt(x, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrSchema, x)
		}
		return i, nil
	}
	return 0, fmt.Errorf("%w: %T is not an integer", ErrSchema, v)
}

func binaryOpFromJSON(obj map[string]any, mode Mode) (Node, error) {
	if err := notValuesOnly(obj, mode); err != nil {
		return nil, err
	}
	if err := CheckAttribs(obj, "_type", "left", "op", "right"); err != nil {
		return nil, err
	}
	op, err := StringAttr(obj, "op")
	if err != nil {
		return nil, err
	}
	class, ok := binaryOps[op]
	if !ok {
		return nil, fmt.Errorf("%w: unknown binary operator %q", ErrSchema, op)
	}
	if class == OpImplication && mode != ModeConstraints {
		return nil, fmt.Errorf("%w: operator %q is only allowed in constraints", ErrSchema, op)
	}
	left, err := child(obj, "left", mode)
	if err != nil {
		return nil, err
	}
	right, err := child(obj, "right", mode)
	if err != nil {
		return nil, err
	}
	return NewBinaryOp(left, op, right), nil
}

func unaryOpFromJSON(obj map[string]any, mode Mode) (Node, error) {
	if err := notValuesOnly(obj, mode); err != nil {
		return nil, err
	}
	if err := CheckAttribs(obj, "_type", "op", "expr"); err != nil {
		return nil, err
	}
	op, err := StringAttr(obj, "op")
	if err != nil {
		return nil, err
	}
	if _, ok := unaryOps[op]; !ok {
		return nil, fmt.Errorf("%w: unknown unary operator %q", ErrSchema, op)
	}
	expr, err := child(obj, "expr", mode)
	if err != nil {
		return nil, err
	}
	return &UnaryOp{Op: op, Expr: expr}, nil
}

func sliceFromJSON(obj map[string]any, mode Mode) (Node, error) {
	if err := checkMode(obj, mode, ModeAccessor, ModeAccessorCond); err != nil {
		return nil, err
	}
	if err := CheckAttribs(obj, "_type", "left", "right"); err != nil {
		return nil, err
	}
	from, err := child(obj, "left", mode)
	if err != nil {
		return nil, err
	}
	to, err := child(obj, "right", mode)
	if err != nil {
		return nil, err
	}
	return &Slice{From: from, To: to}, nil
}

func squareOpFromJSON(obj map[string]any, mode Mode) (Node, error) {
	if err := notValuesOnly(obj, mode); err != nil {
		return nil, err
	}
	if err := CheckAttribs(obj, "_type", "var", "arguments"); err != nil {
		return nil, err
	}
	v, err := child(obj, "var", mode)
	if err != nil {
		return nil, err
	}
	args, err := childList(obj, "arguments", mode)
	if err != nil {
		return nil, err
	}
	return &SquareOp{Var: v, Args: args}, nil
}

func tupleFromJSON(obj map[string]any, mode Mode) (Node, error) {
	if err := checkMode(obj, mode, ModeAccessor); err != nil {
		return nil, err
	}
	if err := CheckAttribs(obj, "_type", "values"); err != nil {
		return nil, err
	}
	values, err := childList(obj, "values", mode)
	if err != nil {
		return nil, err
	}
	return &Tuple{Values: values}, nil
}

func dotAtomFromJSON(obj map[string]any, mode Mode) (Node, error) {
	if err := checkMode(obj, mode, ModeConstraints, ModeAccessor, ModeAccessorCond); err != nil {
		return nil, err
	}
	if err := CheckAttribs(obj, "_type", "values"); err != nil {
		return nil, err
	}
	values, err := childList(obj, "values", mode)
	if err != nil {
		return nil, err
	}
	return &DotAtom{Values: values}, nil
}

func concatFromJSON(obj map[string]any, mode Mode) (Node, error) {
	if err := notValuesOnly(obj, mode); err != nil {
		return nil, err
	}
	if err := CheckAttribs(obj, "_type", "values"); err != nil {
		return nil, err
	}
	values, err := childList(obj, "values", mode)
	if err != nil {
		return nil, err
	}
	return &Concat{Values: values}, nil
}

func functionFromJSON(obj map[string]any, mode Mode) (Node, error) {
	if err := notValuesOnly(obj, mode); err != nil {
		return nil, err
	}
	if err := CheckAttribs(obj, "_type", "name", "arguments"); err != nil {
		return nil, err
	}
	name, err := StringAttr(obj, "name")
	if err != nil {
		return nil, err
	}
	if !reFunctionName.MatchString(name) {
		return nil, fmt.Errorf("%w: bad function name %q", ErrSchema, name)
	}
	args, err := childList(obj, "arguments", mode)
	if err != nil {
		return nil, err
	}
	return &Function{Name: name, Args: args}, nil
}

func identifierFromJSON(obj map[string]any, mode Mode) (Node, error) {
	if err := notValuesOnly(obj, mode); err != nil {
		return nil, err
	}
	if err := CheckAttribs(obj, "_type", "value"); err != nil {
		return nil, err
	}
	name, err := StringAttr(obj, "value")
	if err != nil {
		return nil, err
	}
	re := reIdentifier
	if mode == ModeConstraints {
		re = reIdentifierRelaxed
	}
	if !re.MatchString(name) {
		return nil, fmt.Errorf("%w: bad identifier %q", ErrSchema, name)
	}
	return &Identifier{Name: name}, nil
}

func boolFromJSON(obj map[string]any, mode Mode) (Node, error) {
	if err := notValuesOnly(obj, mode); err != nil {
		return nil, err
	}
	if err := CheckAttribs(obj, "_type", "value"); err != nil {
		return nil, err
	}
	v, ok := obj["value"].(bool)
	if !ok {
		return nil, fmt.Errorf("%w: AST.Bool value %v is not a boolean", ErrSchema, obj["value"])
	}
	return &Bool{Value: v}, nil
}

func integerFromJSON(obj map[string]any, mode Mode) (Node, error) {
	if err := notValuesOnly(obj, mode); err != nil {
		return nil, err
	}
	if err := CheckAttribs(obj, "_type", "value"); err != nil {
		return nil, err
	}
	v, err := IntAttr(obj, "value")
	if err != nil {
		return nil, err
	}
	return &Integer{Value: v}, nil
}

func setFromJSON(obj map[string]any, mode Mode) (Node, error) {
	if err := notValuesOnly(obj, mode); err != nil {
		return nil, err
	}
	if err := CheckAttribs(obj, "_type", "values"); err != nil {
		return nil, err
	}
	values, err := childList(obj, "values", mode)
	if err != nil {
		return nil, err
	}
	return &Set{Values: values}, nil
}

func valueFromJSON(obj map[string]any, _ Mode) (Node, error) {
	if err := CheckAttribs(obj, "_type", "value", "meaning"); err != nil {
		return nil, err
	}
	s, err := StringAttr(obj, "value")
	if err != nil {
		return nil, err
	}
	return &Value{Value: s}, nil
}

func equationValueFromJSON(obj map[string]any, mode Mode) (Node, error) {
	if err := checkMode(obj, mode, ModeValuesOnly); err != nil {
		return nil, err
	}
	if err := CheckAttribs(obj, "_type", "value", "meaning", "slice"); err != nil {
		return nil, err
	}
	name, err := StringAttr(obj, "value")
	if err != nil {
		return nil, err
	}
	ranges, ok := obj["slice"].([]any)
	if !ok || len(ranges) != 1 {
		return nil, fmt.Errorf("%w: Values.EquationValue needs exactly one slice", ErrSchema)
	}
	r, ok := ranges[0].(map[string]any)
	if !ok || r["_type"] != "Range" {
		return nil, fmt.Errorf("%w: Values.EquationValue slice is not a Range", ErrSchema)
	}
	if err := CheckAttribs(r, "_type", "start", "width"); err != nil {
		return nil, err
	}
	start, err := IntAttr(r, "start")
	if err != nil {
		return nil, err
	}
	width, err := IntAttr(r, "width")
	if err != nil {
		return nil, err
	}
	return &EquationValue{Name: name, FirstBit: int(start), Width: int(width)}, nil
}

func valuesGroupFromJSON(obj map[string]any, mode Mode) (Node, error) {
	if err := checkMode(obj, mode, ModeValuesOnly); err != nil {
		return nil, err
	}
	if err := CheckAttribs(obj, "_type", "value", "meaning", "values"); err != nil {
		return nil, err
	}
	values, ok := obj["values"].(map[string]any)
	if !ok || values["_type"] != "Valuesets.Values" {
		return nil, fmt.Errorf("%w: Values.Group values is not a Valuesets.Values", ErrSchema)
	}
	if list, ok := values["values"].([]any); !ok || len(list) != 0 {
		return nil, fmt.Errorf("%w: Values.Group with explicit values is not supported", ErrSchema)
	}
	s, err := StringAttr(obj, "value")
	if err != nil {
		return nil, err
	}
	parts, err := ParseValuesGroup(s)
	if err != nil {
		return nil, err
	}
	return &ValuesGroup{Value: s, Parts: parts}, nil
}

func stringFromJSON(obj map[string]any, mode Mode) (Node, error) {
	if err := checkMode(obj, mode, ModeConstraints, ModeAccessorCond); err != nil {
		return nil, err
	}
	if err := CheckAttribs(obj, "_type", "value"); err != nil {
		return nil, err
	}
	s, err := StringAttr(obj, "value")
	if err != nil {
		return nil, err
	}
	return &String{Value: s}, nil
}

func fieldFromJSON(obj map[string]any, mode Mode) (Node, error) {
	if err := checkMode(obj, mode, ModeConstraints, ModeAccessor, ModeAccessorCond); err != nil {
		return nil, err
	}
	if err := CheckAttribs(obj, "_type", "value"); err != nil {
		return nil, err
	}
	v, ok := obj["value"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: Types.Field value is not an object", ErrSchema)
	}
	if err := CheckAttribs(v, "field", "name", "state", "instance", "slices"); err != nil {
		return nil, err
	}
	if v["instance"] != nil || v["slices"] != nil {
		return nil, fmt.Errorf("%w: Types.Field with instance or slices is not supported", ErrSchema)
	}
	f := &Field{}
	var err error
	if f.Field, err = StringAttr(v, "field"); err != nil {
		return nil, err
	}
	if f.Name, err = StringAttr(v, "name"); err != nil {
		return nil, err
	}
	if f.State, err = StringAttr(v, "state"); err != nil {
		return nil, err
	}
	return f, nil
}

func registerTypeFromJSON(obj map[string]any, mode Mode) (Node, error) {
	if err := checkMode(obj, mode, ModeConstraints, ModeAccessorCond); err != nil {
		return nil, err
	}
	if err := CheckAttribs(obj, "_type", "value"); err != nil {
		return nil, err
	}
	v, ok := obj["value"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: Types.RegisterType value is not an object", ErrSchema)
	}
	if err := CheckAttribs(v, "name", "state", "instance", "slices"); err != nil {
		return nil, err
	}
	if v["instance"] != nil || v["slices"] != nil {
		return nil, fmt.Errorf("%w: Types.RegisterType with instance or slices is not supported", ErrSchema)
	}
	r := &RegisterType{}
	var err error
	if r.Name, err = StringAttr(v, "name"); err != nil {
		return nil, err
	}
	if r.State, err = StringAttr(v, "state"); err != nil {
		return nil, err
	}
	return r, nil
}

func typeFromJSON(obj map[string]any, mode Mode) (Node, error) {
	if err := checkMode(obj, mode, ModeAccessor); err != nil {
		return nil, err
	}
	if err := CheckAttribs(obj, "_type", "name"); err != nil {
		return nil, err
	}
	name, err := child(obj, "name", mode)
	if err != nil {
		return nil, err
	}
	return &Type{Name: name}, nil
}

func typeAnnotationFromJSON(obj map[string]any, mode Mode) (Node, error) {
	if err := checkMode(obj, mode, ModeAccessor); err != nil {
		return nil, err
	}
	if err := CheckAttribs(obj, "_type", "type", "var"); err != nil {
		return nil, err
	}
	v, err := child(obj, "var", mode)
	if err != nil {
		return nil, err
	}
	t, err := child(obj, "type", mode)
	if err != nil {
		return nil, err
	}
	return &TypeAnnotation{Var: v, Type: t}, nil
}

func assignmentFromJSON(obj map[string]any, mode Mode) (Node, error) {
	if err := checkMode(obj, mode, ModeAccessor); err != nil {
		return nil, err
	}
	if err := CheckAttribs(obj, "_type", "val", "var"); err != nil {
		return nil, err
	}
	v, err := child(obj, "var", mode)
	if err != nil {
		return nil, err
	}
	val, err := child(obj, "val", mode)
	if err != nil {
		return nil, err
	}
	return &Assignment{Var: v, Val: val}, nil
}

func returnFromJSON(obj map[string]any, mode Mode) (Node, error) {
	if err := checkMode(obj, mode, ModeAccessor); err != nil {
		return nil, err
	}
	if err := CheckAttribs(obj, "_type", "val"); err != nil {
		return nil, err
	}
	if obj["val"] == nil {
		return &Return{}, nil
	}
	val, err := child(obj, "val", mode)
	if err != nil {
		return nil, err
	}
	return &Return{Val: val}, nil
}

// IfListFromJSON builds the access policy of a system register accessor
// from an Accessors.Permission.SystemAccess object. Nested lists are
// flattened into a single cascade where that keeps the meaning; a trivially
// true condition returns the bare statement.
func IfListFromJSON(v any) (Node, error) {
	obj, ok := v.(map[string]any)
	if !ok || obj["_type"] != "Accessors.Permission.SystemAccess" {
		return nil, fmt.Errorf("%w: expected Accessors.Permission.SystemAccess", ErrSchema)
	}
	if err := CheckAttribs(obj, "_type", "access", "condition"); err != nil {
		return nil, err
	}
	cond, err := child(obj, "condition", ModeAccessorCond)
	if err != nil {
		return nil, err
	}

	list, isList := obj["access"].([]any)
	if !isList {
		stmt, err := child(obj, "access", ModeAccessor)
		if err != nil {
			return nil, err
		}
		if IsBoolAndTrue(cond) {
			return stmt, nil
		}
		return &IfList{Conds: []Node{cond}, Stmts: []Node{stmt}}, nil
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: empty access list", ErrSchema)
	}

	children := make([]Node, 0, len(list))
	for i, c := range list {
		n, err := IfListFromJSON(c)
		if err != nil {
			return nil, fmt.Errorf("access[%d]: %w", i, err)
		}
		children = append(children, n)
	}

	if len(children) == 1 {
		only := children[0]
		if _, nested := only.(*IfList); !nested {
			if IsBoolAndTrue(cond) {
				return only, nil
			}
			return &IfList{Conds: []Node{cond}, Stmts: children}, nil
		}
		if IsBoolAndTrue(cond) {
			return only, nil
		}
	}

	flat := &IfList{}
	for i, c := range children {
		last := i == len(children)-1
		il, nested := c.(*IfList)
		if !nested {
			if !last {
				return nil, fmt.Errorf("%w: unconditional access statement is not last", ErrSchema)
			}
			flat.Else = c
			continue
		}
		flat.Conds = append(flat.Conds, il.Conds...)
		flat.Stmts = append(flat.Stmts, il.Stmts...)
		if il.Else != nil {
			if !last {
				return nil, fmt.Errorf("%w: access list with an else branch is not last", ErrSchema)
			}
			flat.Else = il.Else
		}
	}

	if IsBoolAndTrue(cond) {
		return flat, nil
	}
	return &IfList{Conds: []Node{cond}, Stmts: []Node{flat}}, nil
}
