package spec_test

import "github.com/sarchlab/armspecgen/spec"

func jTrue() map[string]any {
	return map[string]any{"_type": "AST.Bool", "value": true}
}

func jIdent(name string) map[string]any {
	return map[string]any{"_type": "AST.Identifier", "value": name}
}

func jInt(v int) map[string]any {
	return map[string]any{"_type": "AST.Integer", "value": v}
}

func jValue(v string) map[string]any {
	return map[string]any{"_type": "Values.Value", "value": v, "meaning": nil}
}

func jBinOp(left map[string]any, op string, right map[string]any) map[string]any {
	return map[string]any{"_type": "AST.BinaryOp", "left": left, "op": op, "right": right}
}

func jCall(name string, args ...any) map[string]any {
	return map[string]any{"_type": "AST.Function", "name": name, "arguments": args}
}

func jDotAtom(parts ...string) map[string]any {
	values := make([]any, len(parts))
	for i, p := range parts {
		values[i] = jIdent(p)
	}
	return map[string]any{"_type": "AST.DotAtom", "values": values}
}

func jEncField(name string, start, width int, value string) map[string]any {
	typ := "Instruction.Encodeset.Field"
	if name == "" {
		typ = "Instruction.Encodeset.Bits"
	}
	f := map[string]any{
		"_type": typ,
		"range": map[string]any{"_type": "Range", "start": start, "width": width},
		"value": map[string]any{"_type": "Values.Value", "value": value, "meaning": nil},
	}
	if name != "" {
		f["name"] = name
	}
	return f
}

func jEncodeset(fields ...any) map[string]any {
	return map[string]any{"_type": "Instruction.Encodeset.Encodeset", "values": fields, "width": 32}
}

func jSet(name string, enc map[string]any, children ...any) map[string]any {
	return map[string]any{
		"_type":      "Instruction.InstructionSet",
		"name":       name,
		"read_width": 32,
		"encoding":   enc,
		"condition":  jTrue(),
		"children":   children,
	}
}

func jGroup(name string, enc map[string]any, cond map[string]any, children ...any) map[string]any {
	return map[string]any{
		"_type":     "Instruction.InstructionGroup",
		"name":      name,
		"encoding":  enc,
		"condition": cond,
		"children":  children,
	}
}

func jInst(name string, enc map[string]any, cond map[string]any, asm ...any) map[string]any {
	obj := map[string]any{
		"_type":     "Instruction.Instruction",
		"name":      name,
		"encoding":  enc,
		"condition": cond,
	}
	if len(asm) > 0 {
		obj["assembly"] = map[string]any{"_type": "Instruction.Assembly", "symbols": asm}
	}
	return obj
}

func jLit(text string) map[string]any {
	return map[string]any{"_type": "Instruction.Symbols.Literal", "value": text}
}

func jRuleRef(id string) map[string]any {
	return map[string]any{"_type": "Instruction.Symbols.RuleReference", "rule_id": id}
}

func jFeature(name string, constraints ...any) map[string]any {
	return map[string]any{"_type": "Parameters.Boolean", "name": name, "constraints": constraints}
}

func jRange(start, width int) map[string]any {
	return map[string]any{"_type": "Range", "start": start, "width": width}
}

func jRegField(name string, start, width int) map[string]any {
	return map[string]any{
		"_type":       "Fields.Field",
		"access":      nil,
		"description": nil,
		"display":     nil,
		"name":        name,
		"rangeset":    []any{jRange(start, width)},
		"resets":      nil,
		"values":      nil,
		"volatile":    false,
	}
}

func jReserved(start, width int) map[string]any {
	return map[string]any{
		"_type":       "Fields.Reserved",
		"description": nil,
		"rangeset":    []any{jRange(start, width)},
		"value":       "RES0",
	}
}

func jFieldset(width int, fields ...any) map[string]any {
	return map[string]any{"_type": "Fieldset", "width": width, "name": nil, "values": fields}
}

func jEncoding(asm string, values map[string]string) map[string]any {
	encs := make(map[string]any, len(values))
	for k, v := range values {
		encs[k] = jValue(v)
	}
	return map[string]any{"_type": "Encoding", "asmvalue": asm, "encodings": encs}
}

func jSysAccessor(name string, enc map[string]any) map[string]any {
	return map[string]any{
		"_type":     "Accessors.SystemAccessor",
		"access":    nil,
		"condition": jTrue(),
		"encoding":  []any{enc},
		"name":      name,
	}
}

func jRegister(name, state string, fieldsets []any, accessors ...any) map[string]any {
	return map[string]any{
		"_type":     "Register",
		"_meta":     map[string]any{"version": map[string]any{"architecture": "2025-03"}},
		"name":      name,
		"state":     state,
		"fieldsets": fieldsets,
		"condition": jTrue(),
		"accessors": accessors,
	}
}

// docs wraps the given pieces into a complete set of documents.
func docs(instructions []any, rules map[string]any, features []any, registers []any) *spec.Documents {
	if rules == nil {
		rules = map[string]any{}
	}
	return &spec.Documents{
		Instructions: map[string]any{
			"_meta":          map[string]any{"version": map[string]any{"architecture": "2025-03"}},
			"instructions":   instructions,
			"assembly_rules": rules,
		},
		Features: map[string]any{
			"_meta":      map[string]any{"version": map[string]any{"architecture": "2025-03"}},
			"parameters": features,
		},
		Registers: registers,
	}
}

// a64 is an instruction set with an empty top level encoding.
func a64(children ...any) map[string]any {
	return jSet("A64", jEncodeset(), children...)
}
