package spec

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/armspecgen/ast"
	"github.com/sarchlab/armspecgen/insts"
)

// encodingCorrections lists conditions missing from some releases. They are
// ANDed onto the instruction condition unless already present.
func encodingCorrections(name string) []ast.Node {
	switch name {
	case "sdot_z_zzz_", "udot_z_zzz_":
		return []ast.Node{
			ast.NewBinaryOp(ident("size"), "!=", &ast.Value{Value: "'00'"}),
			ast.NewBinaryOp(ident("size"), "!=", &ast.Value{Value: "'01'"}),
		}
	case "SETGEN_SET_memcms", "SETGETN_SET_memcms", "SETGET_SET_memcms", "SETGE_SET_memcms",
		"SETGMN_SET_memcms", "SETGMTN_SET_memcms", "SETGMT_SET_memcms", "SETGM_SET_memcms",
		"SETGPN_SET_memcms", "SETGPTN_SET_memcms", "SETGPT_SET_memcms", "SETGP_SET_memcms":
		return []ast.Node{
			&ast.Function{Name: "IsFeatureImplemented", Args: []ast.Node{ident("FEAT_MTE")}},
		}
	}
	return nil
}

// AddAndConditions ANDs every condition in conds that tree does not
// already require. A trivially true tree is replaced by the list.
func AddAndConditions(tree ast.Node, conds []ast.Node) ast.Node {
	if len(conds) == 0 {
		return tree
	}
	if ast.IsBoolAndTrue(tree) {
		return ast.AndListToTree(conds)
	}

	present := ast.AndChain(tree)
	list := []ast.Node{tree}
	for _, c := range conds {
		found := false
		for _, p := range present {
			if c.IsSame(p) {
				found = true
				break
			}
		}
		if !found {
			list = append(list, c)
		}
	}
	return ast.AndListToTree(list)
}

func (s *Spec) parseInstructions(set *insts.Set, parent *insts.Group, list []any) error {
	for i, v := range list {
		obj, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: entry #%d is not an object", ast.ErrSchema, i)
		}
		typ, _ := obj["_type"].(string)
		children, _ := obj["children"].([]any)

		switch typ {
		case "Instruction.InstructionSet":
			if parent != nil {
				return fmt.Errorf("%w: instruction set inside %s", ast.ErrSchema, parent.Name)
			}
			newSet, err := insts.SetFromJSON(obj)
			if err != nil {
				return err
			}
			for _, other := range s.Sets {
				if other.Name == newSet.Name {
					return fmt.Errorf("%w: instruction set %s is listed twice", ast.ErrSchema, newSet.Name)
				}
			}
			s.Sets = append(s.Sets, newSet)
			if err := s.parseInstructions(newSet, &newSet.Group, children); err != nil {
				return err
			}

		case "Instruction.InstructionGroup":
			if parent == nil {
				return fmt.Errorf("%w: instruction group outside an instruction set", ast.ErrSchema)
			}
			g, err := insts.GroupFromJSON(obj, parent)
			if err != nil {
				return err
			}
			if _, dup := s.groupsByName[g.Name]; dup {
				if g.Name != parent.Name {
					return fmt.Errorf("%w: instruction group %s is listed twice", ast.ErrSchema, g.Name)
				}
				g.Name += "_lvl2"
			}
			s.groupsByName[g.Name] = g
			s.Groups = append(s.Groups, g)
			if err := s.parseInstructions(set, g, children); err != nil {
				return err
			}

		case "Instruction.Instruction":
			if parent == nil {
				return fmt.Errorf("%w: instruction outside an instruction set", ast.ErrSchema)
			}
			inst, err := s.parseInstruction(obj, set, parent)
			if err != nil {
				return err
			}
			if _, dup := s.instructionsByName[inst.Name]; dup {
				return fmt.Errorf("%w: instruction %s is listed twice", ast.ErrSchema, inst.Name)
			}
			if err := parent.AddInstruction(inst); err != nil {
				return err
			}
			s.instructionsByName[inst.Name] = inst
			s.Instructions = append(s.Instructions, inst)

		default:
			return fmt.Errorf("%w: unexpected instruction object type %q", ast.ErrSchema, typ)
		}
	}
	return nil
}

func (s *Spec) parseInstruction(obj map[string]any, set *insts.Set, parent *insts.Group) (*insts.Instruction, error) {
	name, err := ast.StringAttr(obj, "name")
	if err != nil {
		return nil, err
	}

	cond, err := ast.FromJSON(obj["condition"], ast.ModeCondition)
	if err != nil {
		return nil, fmt.Errorf("failed to parse instruction %s condition: %w", name, err)
	}
	cond = AddAndConditions(cond, encodingCorrections(name))

	fields, covered, err := insts.FieldsFromEncodeset(obj["encoding"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse instruction %s encoding: %w", name, err)
	}
	for _, up := range parent.Ancestors() {
		if up.Covered&^covered != 0 {
			if fields, covered, err = insts.AddParentFields(fields, covered, up.Fields); err != nil {
				return nil, fmt.Errorf("instruction %s from %s: %w", name, up.Name, err)
			}
		}
		switch {
		case ast.IsBoolAndTrue(up.Condition):
		case ast.IsBoolAndTrue(cond):
			cond = up.Condition.Clone()
		default:
			cond = &ast.BinaryOp{Left: cond, Op: "&&", Right: up.Condition.Clone()}
		}
	}
	if covered != insts.AllOnes {
		return nil, fmt.Errorf("%w: instruction %s has an incomplete encodingset: fields=%#08x (missing %#08x)",
			insts.ErrEncoding, name, covered, covered^insts.AllOnes)
	}

	asm := name
	if raw, ok := obj["assembly"]; ok && raw != nil {
		if asm, err = s.asmFromJSON(raw, name); err != nil {
			return nil, err
		}
	}
	mnemonic := name
	if words := strings.Fields(asm); len(words) > 0 {
		mnemonic = words[0]
	}

	inst, err := insts.NewInstruction(name, mnemonic, asm, fields, cond, parent, set)
	if err != nil {
		return nil, err
	}
	before := inst.Condition.String()
	changed, err := s.lifter.Lift(inst)
	if err != nil {
		return nil, fmt.Errorf("failed to lift instruction %s: %w", name, err)
	}
	if changed {
		s.log.WithFields(logrus.Fields{
			"instruction": name,
			"before":      before,
			"after":       inst.Condition.String(),
		}).Debug("lifted condition into encoding")
	}
	return inst, nil
}

func (s *Spec) asmFromJSON(v any, inst string) (string, error) {
	obj, ok := v.(map[string]any)
	if !ok || obj["_type"] != "Instruction.Assembly" {
		return "", fmt.Errorf("%w: %s: assembly is not an Instruction.Assembly", ast.ErrSchema, inst)
	}
	symbols, ok := obj["symbols"].([]any)
	if !ok {
		return "", fmt.Errorf("%w: %s: assembly has no symbols", ast.ErrSchema, inst)
	}
	return s.symbolsToDisplay(symbols, inst)
}

// symbolsToDisplay turns assembly symbols into an outline of the syntax,
// e.g. "ADD <Zd>.<T>, <Zn>.<T>, <Zm>.<T>".
func (s *Spec) symbolsToDisplay(symbols []any, inst string) (string, error) {
	var sb strings.Builder
	for _, v := range symbols {
		sym, _ := v.(map[string]any)
		switch typ, _ := sym["_type"].(string); typ {
		case "Instruction.Symbols.Literal":
			text, err := ast.StringAttr(sym, "value")
			if err != nil {
				return "", fmt.Errorf("%s: %w", inst, err)
			}
			sb.WriteString(text)
		case "Instruction.Symbols.RuleReference":
			id, err := ast.StringAttr(sym, "rule_id")
			if err != nil {
				return "", fmt.Errorf("%s: %w", inst, err)
			}
			text, err := s.ruleDisplay(id, inst)
			if err != nil {
				return "", err
			}
			sb.WriteString(text)
		default:
			return "", fmt.Errorf("%w: %s: unknown assembly symbol type %q", ast.ErrSchema, inst, typ)
		}
	}
	return sb.String(), nil
}

func (s *Spec) rule(id, inst string) (map[string]any, error) {
	rule, ok := s.asmRules[id].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s: unknown assembly rule %s", ast.ErrSchema, inst, id)
	}
	return rule, nil
}

func (s *Spec) ruleDisplay(id, inst string) (string, error) {
	if text, ok := s.asmDisplay[id]; ok {
		return text, nil
	}
	rule, err := s.rule(id, inst)
	if err != nil {
		return "", err
	}

	typ, _ := rule["_type"].(string)
	switch typ {
	case "Instruction.Rules.Token":
		text, _ := rule["default"].(string)
		if text == "" {
			return "", fmt.Errorf("%w: %s: token %s has no default", ast.ErrSchema, inst, id)
		}
		return text, nil
	case "Instruction.Rules.Rule":
		text, _ := rule["display"].(string)
		if text == "" {
			return "", fmt.Errorf("%w: %s: rule %s has no display", ast.ErrSchema, inst, id)
		}
		return text, nil
	case "Instruction.Rules.Choice":
		if text, _ := rule["display"].(string); text != "" {
			return text, nil
		}
	default:
		return "", fmt.Errorf("%w: %s: unknown assembly rule type %q for %s", ast.ErrSchema, inst, typ, id)
	}

	choices, _ := rule["choices"].([]any)
	if len(choices) < 2 {
		return "", fmt.Errorf("%w: %s: choice %s has fewer than two choices", ast.ErrSchema, inst, id)
	}
	choices, err = s.dropAbsentChoice(choices, inst)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(choices))
	for _, c := range choices {
		choice, _ := c.(map[string]any)
		symbols, _ := choice["symbols"].([]any)
		text, err := s.symbolsToDisplay(symbols, inst)
		if err != nil {
			return "", err
		}
		parts = append(parts, text)
	}
	text := "{" + strings.Join(parts, " | ") + "}"
	s.asmDisplay[id] = text
	return text, nil
}

// dropAbsentChoice removes a trailing null choice and then the first choice
// that displays nothing at all.
func (s *Spec) dropAbsentChoice(choices []any, inst string) ([]any, error) {
	if choices[len(choices)-1] == nil {
		choices = choices[:len(choices)-1]
	}
	if len(choices) < 2 {
		return choices, nil
	}
	for i, c := range choices {
		choice, _ := c.(map[string]any)
		symbols, _ := choice["symbols"].([]any)
		absent, err := s.allAbsent(symbols, inst)
		if err != nil {
			return nil, err
		}
		if absent {
			out := make([]any, 0, len(choices)-1)
			out = append(out, choices[:i]...)
			return append(out, choices[i+1:]...), nil
		}
	}
	return choices, nil
}

func (s *Spec) allAbsent(symbols []any, inst string) (bool, error) {
	for _, v := range symbols {
		sym, _ := v.(map[string]any)
		if sym["_type"] != "Instruction.Symbols.RuleReference" {
			return false, nil
		}
		id, _ := sym["rule_id"].(string)
		rule, err := s.rule(id, inst)
		if err != nil {
			return false, err
		}
		if text, _ := rule["display"].(string); text != "" {
			return false, nil
		}
		if syms, _ := rule["symbols"].([]any); len(syms) > 0 {
			return false, nil
		}
	}
	return true, nil
}
