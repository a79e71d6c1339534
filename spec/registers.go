package spec

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/sarchlab/armspecgen/ast"
)

// Range is a bit range of a register.
type Range struct {
	FirstBit int
	Width    int
}

func rangesFromJSON(v any) ([]Range, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: rangeset is not a list", ast.ErrSchema)
	}
	out := make([]Range, 0, len(list))
	for _, e := range list {
		obj, ok := e.(map[string]any)
		if !ok || obj["_type"] != "Range" {
			return nil, fmt.Errorf("%w: rangeset entry is not a Range", ast.ErrSchema)
		}
		start, err := ast.IntAttr(obj, "start")
		if err != nil {
			return nil, err
		}
		width, err := ast.IntAttr(obj, "width")
		if err != nil {
			return nil, err
		}
		out = append(out, Range{FirstBit: int(start), Width: int(width)})
	}
	return out, nil
}

// CondField is one alternative of a Fields.ConditionalField.
type CondField struct {
	Condition ast.Node
	Field     *RegisterField
}

// CondSize is one alternative size of a Fields.Vector.
type CondSize struct {
	Condition ast.Node
	Value     ast.Node
}

// RegisterField is one entry of a register fieldset. Kind is the JSON
// `_type`; the kind specific members are only set for that kind.
type RegisterField struct {
	Kind   string
	Name   string
	Ranges []Range

	// Fields.ConditionalField.
	CondFields []CondField

	// Fields.Array and Fields.Vector.
	IndexVar     string
	Indexes      []Range
	Entries      int
	BitsPerEntry int
	Sizes        []CondSize

	// Fields.Dynamic.
	Instances []*Fieldset
}

var fieldAttribs = map[string][]string{
	"Fields.Reserved": {"_type", "description", "rangeset", "value"},
	"Fields.ImplementationDefined": {
		"_type", "constraints", "description", "display", "name", "rangeset", "resets", "volatile",
	},
	"Fields.Field": {
		"_type", "access", "description", "display", "name", "rangeset", "resets", "values", "volatile",
	},
	"Fields.ConditionalField": {
		"_type", "description", "display", "fields", "name", "rangeset", "reservedtype", "resets", "volatile",
	},
	"Fields.ConstantField": {"_type", "access", "description", "name", "rangeset", "value"},
	"Fields.Array": {
		"_type", "access", "description", "display", "index_variable", "indexes", "name",
		"rangeset", "resets", "values", "volatile",
	},
	"Fields.Vector": {
		"_type", "access", "description", "display", "index_variable", "indexes", "name",
		"rangeset", "reserved_type", "resets", "size", "values", "volatile",
	},
	"Fields.Dynamic": {"_type", "description", "display", "instances", "name", "rangeset", "resets", "volatile"},
}

// RegisterFieldFromJSON builds a register field from one of the Fields.*
// objects.
func RegisterFieldFromJSON(obj map[string]any) (*RegisterField, error) {
	kind, err := ast.StringAttr(obj, "_type")
	if err != nil {
		return nil, err
	}
	attribs, ok := fieldAttribs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown field type %s", ast.ErrSchema, kind)
	}
	if err := ast.CheckAttribs(obj, attribs...); err != nil {
		return nil, err
	}

	f := &RegisterField{Kind: kind}
	if kind != "Fields.Reserved" {
		if f.Name, err = ast.StringAttr(obj, "name"); err != nil {
			return nil, err
		}
	}
	if f.Ranges, err = rangesFromJSON(obj["rangeset"]); err != nil {
		return nil, fmt.Errorf("field %s: %w", f.Name, err)
	}

	switch kind {
	case "Fields.ConditionalField":
		err = f.condFieldsFromJSON(obj["fields"])
	case "Fields.Array":
		err = f.arrayFromJSON(obj)
	case "Fields.Vector":
		if err = f.arrayFromJSON(obj); err == nil {
			err = f.sizesFromJSON(obj["size"])
		}
	case "Fields.Dynamic":
		err = f.instancesFromJSON(obj["instances"])
	}
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", f.Name, err)
	}
	return f, nil
}

func (f *RegisterField) condFieldsFromJSON(v any) error {
	list, ok := v.([]any)
	if !ok {
		return fmt.Errorf("%w: fields is not a list", ast.ErrSchema)
	}
	for i, e := range list {
		obj, ok := e.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: conditional field #%d is not an object", ast.ErrSchema, i)
		}
		if err := ast.CheckAttribs(obj, "condition", "field"); err != nil {
			return err
		}
		cond, err := ast.FromJSON(obj["condition"], ast.ModeConstraints)
		if err != nil {
			return fmt.Errorf("conditional field #%d: %w", i, err)
		}
		sub, ok := obj["field"].(map[string]any)
		if !ok {
			return fmt.Errorf("%w: conditional field #%d has no field", ast.ErrSchema, i)
		}
		field, err := RegisterFieldFromJSON(sub)
		if err != nil {
			return fmt.Errorf("conditional field #%d: %w", i, err)
		}
		f.CondFields = append(f.CondFields, CondField{Condition: cond, Field: field})
	}
	return nil
}

func (f *RegisterField) arrayFromJSON(obj map[string]any) error {
	var err error
	if f.IndexVar, err = ast.StringAttr(obj, "index_variable"); err != nil {
		return err
	}
	if f.Indexes, err = rangesFromJSON(obj["indexes"]); err != nil {
		return err
	}
	if len(f.Indexes) > len(f.Ranges) {
		return fmt.Errorf("%w: %d indexes for %d ranges", ast.ErrSchema, len(f.Indexes), len(f.Ranges))
	}

	bits := 0
	for _, r := range f.Ranges {
		bits += r.Width
	}
	for _, idx := range f.Indexes {
		f.Entries += idx.Width
	}
	if f.Entries == 0 || bits%f.Entries != 0 {
		return fmt.Errorf("%w: %d bits do not split into %d entries", ast.ErrSchema, bits, f.Entries)
	}
	f.BitsPerEntry = bits / f.Entries
	return nil
}

func (f *RegisterField) sizesFromJSON(v any) error {
	list, ok := v.([]any)
	if !ok {
		return fmt.Errorf("%w: size is not a list", ast.ErrSchema)
	}
	for i, e := range list {
		obj, ok := e.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: size #%d is not an object", ast.ErrSchema, i)
		}
		cond, err := ast.FromJSON(obj["condition"], ast.ModeCondition)
		if err != nil {
			return fmt.Errorf("size #%d: %w", i, err)
		}
		val, err := ast.FromJSON(obj["value"], ast.ModeConstraints)
		if err != nil {
			return fmt.Errorf("size #%d: %w", i, err)
		}
		f.Sizes = append(f.Sizes, CondSize{Condition: cond, Value: val})
	}
	return nil
}

func (f *RegisterField) instancesFromJSON(v any) error {
	list, ok := v.([]any)
	if !ok {
		return fmt.Errorf("%w: instances is not a list", ast.ErrSchema)
	}
	for i, e := range list {
		fs, err := FieldsetFromJSON(e)
		if err != nil {
			return fmt.Errorf("instance #%d: %w", i, err)
		}
		f.Instances = append(f.Instances, fs)
	}
	return nil
}

func (f *RegisterField) String() string {
	if len(f.Ranges) == 1 {
		return fmt.Sprintf("%s@%d:%d", f.Name, f.Ranges[0].FirstBit, f.Ranges[0].Width)
	}
	parts := make([]string, len(f.Ranges))
	for i, r := range f.Ranges {
		parts[i] = fmt.Sprintf("%d:%d", r.FirstBit, r.Width)
	}
	return f.Name + "@" + strings.Join(parts, ",")
}

func (f *RegisterField) firstBit() int {
	if len(f.Ranges) == 0 {
		return 0
	}
	return f.Ranges[0].FirstBit
}

// Fieldset is one layout of a register.
type Fieldset struct {
	Width  int
	Name   string
	Fields []*RegisterField
}

// FieldsetFromJSON builds a fieldset from a Fieldset object.
func FieldsetFromJSON(v any) (*Fieldset, error) {
	obj, ok := v.(map[string]any)
	if !ok || obj["_type"] != "Fieldset" {
		return nil, fmt.Errorf("%w: expected a Fieldset", ast.ErrSchema)
	}
	width, err := ast.IntAttr(obj, "width")
	if err != nil {
		return nil, err
	}
	fs := &Fieldset{Width: int(width)}
	fs.Name, _ = obj["name"].(string)

	values, ok := obj["values"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: Fieldset values is not a list", ast.ErrSchema)
	}
	for i, e := range values {
		fobj, ok := e.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: Fieldset value #%d is not an object", ast.ErrSchema, i)
		}
		f, err := RegisterFieldFromJSON(fobj)
		if err != nil {
			return nil, err
		}
		fs.Fields = append(fs.Fields, f)
	}
	return fs, nil
}

func (fs *Fieldset) String() string {
	sorted := slices.Clone(fs.Fields)
	slices.SortStableFunc(sorted, func(a, b *RegisterField) int { return a.firstBit() - b.firstBit() })
	parts := make([]string, len(sorted))
	for i, f := range sorted {
		parts[i] = f.String()
	}
	name := ""
	if fs.Name != "" {
		name = ", " + fs.Name
	}
	return fmt.Sprintf("%d bits%s: %s", fs.Width, name, strings.Join(parts, ", "))
}

// encodingKeys is the order of the named values of a system register
// encoding. Other keys sort after these.
var encodingKeys = []string{"op0", "op1", "CRn", "CRm", "op2"}

// Encoding is the MRS/MSR encoding of a system register.
type Encoding struct {
	AsmValue    string
	Keys        []string
	Values      map[string]ast.Node
	HasWildcard bool
	HasIndex    bool
}

// EncodingFromJSON builds an encoding from an Encoding object.
func EncodingFromJSON(v any) (*Encoding, error) {
	obj, ok := v.(map[string]any)
	if !ok || obj["_type"] != "Encoding" {
		return nil, fmt.Errorf("%w: expected an Encoding", ast.ErrSchema)
	}
	if err := ast.CheckAttribs(obj, "_type", "asmvalue", "encodings"); err != nil {
		return nil, err
	}
	asm, _ := obj["asmvalue"].(string)
	raw, ok := obj["encodings"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: Encoding %s has no encodings", ast.ErrSchema, asm)
	}

	e := &Encoding{AsmValue: asm, Values: make(map[string]ast.Node, len(raw))}
	for _, k := range sortedKeys(raw) {
		n, err := ast.FromJSON(raw[k], ast.ModeValuesOnly)
		if err != nil {
			return nil, fmt.Errorf("encoding %s.%s: %w", asm, k, err)
		}
		e.Keys = append(e.Keys, k)
		e.Values[k] = n
		text := valueText(n)
		e.HasWildcard = e.HasWildcard || strings.Contains(text, "x")
		e.HasIndex = e.HasIndex || strings.Contains(text, "[")
	}
	slices.SortStableFunc(e.Keys, func(a, b string) int { return encodingRank(a) - encodingRank(b) })
	return e, nil
}

func encodingRank(key string) int {
	if i := slices.Index(encodingKeys, key); i >= 0 {
		return i
	}
	return len(encodingKeys) + 4
}

func valueText(n ast.Node) string {
	switch x := n.(type) {
	case *ast.Value:
		return x.Value
	case *ast.ValuesGroup:
		return x.Value
	}
	return n.String()
}

func (e *Encoding) String() string {
	parts := make([]string, len(e.Keys))
	for i, k := range e.Keys {
		parts[i] = k + "=" + e.Values[k].String()
	}
	return fmt.Sprintf("%s={%s}", e.AsmValue, strings.Join(parts, ", "))
}

// SysRegID identifies a system register by its MRS/MSR operands.
type SysRegID struct {
	Op0, Op1, CRn, CRm, Op2 uint32
}

// Packed returns op0:op1:CRn:CRm:op2 as the 16 bit value found in bits
// [20:5] of MRS and MSR.
func (id SysRegID) Packed() uint32 {
	return id.Op0<<14 | id.Op1<<11 | id.CRn<<7 | id.CRm<<3 | id.Op2
}

func (id SysRegID) String() string {
	return fmt.Sprintf("S%d_%d_C%d_C%d_%d", id.Op0, id.Op1, id.CRn, id.CRm, id.Op2)
}

// SysRegID returns the operands of a fully specified encoding.
func (e *Encoding) SysRegID() (SysRegID, error) {
	var ops [5]uint32
	for i, k := range encodingKeys {
		n, ok := e.Values[k]
		if !ok {
			return SysRegID{}, fmt.Errorf("%w: encoding %s has no %s", ast.ErrSchema, e.AsmValue, k)
		}
		v, ok := n.(*ast.Value)
		if !ok {
			return SysRegID{}, fmt.Errorf("%w: encoding %s: %s=%s is not a plain value", ast.ErrSchema, e.AsmValue, k, n)
		}
		p, err := v.Pattern(0)
		if err != nil {
			return SysRegID{}, err
		}
		if p.Wildcard != 0 {
			return SysRegID{}, fmt.Errorf("%w: wildcard encoding for %s: %s=%s", ast.ErrSchema, e.AsmValue, k, n)
		}
		ops[i] = uint32(p.Value)
	}
	return SysRegID{Op0: ops[0], Op1: ops[1], CRn: ops[2], CRm: ops[3], Op2: ops[4]}, nil
}

var accessorAttribs = map[string][]string{
	"Accessors.BlockAccess": {"_type", "access", "condition"},
	"Accessors.BlockAccessArray": {
		"_type", "access", "condition", "index_variables", "indexes", "offset", "references",
	},
	"Accessors.ExternalDebug": {
		"_type", "access", "component", "condition", "instance", "offset", "power_domain", "range",
	},
	"Accessors.MemoryMapped": {
		"_type", "access", "component", "condition", "frame", "instance", "offset", "power_domain", "range",
	},
	"Accessors.SystemAccessor":      {"_type", "access", "condition", "encoding", "name"},
	"Accessors.SystemAccessorArray": {"_type", "access", "condition", "encoding", "index_variable", "indexes", "name"},
}

// Accessor is one way of reaching a register. Only system accessors carry a
// name, an encoding and an access policy.
type Accessor struct {
	Kind      string
	Condition ast.Node

	Name     string
	Encoding *Encoding
	// Access is an IfList, a single statement, or nil.
	Access ast.Node
}

// AccessorFromJSON builds an accessor from one of the Accessors.* objects.
func AccessorFromJSON(obj map[string]any) (*Accessor, error) {
	kind, err := ast.StringAttr(obj, "_type")
	if err != nil {
		return nil, err
	}
	attribs, ok := accessorAttribs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown accessor type %s", ast.ErrSchema, kind)
	}
	if err := ast.CheckAttribs(obj, attribs...); err != nil {
		return nil, err
	}

	a := &Accessor{Kind: kind}
	if a.Condition, err = ast.FromJSON(obj["condition"], ast.ModeConstraints); err != nil {
		return nil, fmt.Errorf("%s condition: %w", kind, err)
	}
	if !a.IsSystem() {
		return a, nil
	}

	if a.Name, err = ast.StringAttr(obj, "name"); err != nil {
		return nil, err
	}
	encs, ok := obj["encoding"].([]any)
	if !ok || len(encs) != 1 {
		return nil, fmt.Errorf("%w: accessor %s needs exactly one encoding", ast.ErrSchema, a.Name)
	}
	if a.Encoding, err = EncodingFromJSON(encs[0]); err != nil {
		return nil, fmt.Errorf("accessor %s: %w", a.Name, err)
	}
	if obj["access"] != nil {
		if a.Access, err = ast.IfListFromJSON(obj["access"]); err != nil {
			return nil, fmt.Errorf("accessor %s access: %w", a.Name, err)
		}
	}
	return a, nil
}

// IsSystem reports whether a is an MRS/MSR style accessor.
func (a *Accessor) IsSystem() bool {
	return a.Kind == "Accessors.SystemAccessor" || a.Kind == "Accessors.SystemAccessorArray"
}

func (a *Accessor) String() string {
	if a.IsSystem() {
		return fmt.Sprintf("%s %s encoding=%s", a.Kind, a.Name, a.Encoding)
	}
	return "<" + a.Kind + ">"
}

// Register is a system or memory mapped register.
type Register struct {
	Name      string
	State     string
	Fieldsets []*Fieldset
	IsArray   bool
	Condition ast.Node
	Accessors []*Accessor

	fields map[string][]*RegisterField
}

// RegisterFromJSON builds a register from a Register or RegisterArray
// object. statePrefix is prepended to the state of registers inside a
// RegisterBlock.
func RegisterFromJSON(obj map[string]any, statePrefix string) (*Register, error) {
	typ, err := ast.StringAttr(obj, "_type")
	if err != nil {
		return nil, err
	}
	if typ != "Register" && typ != "RegisterArray" {
		return nil, fmt.Errorf("%w: unexpected register type %s", ast.ErrSchema, typ)
	}
	r := &Register{IsArray: typ == "RegisterArray", fields: make(map[string][]*RegisterField)}
	if r.Name, err = ast.StringAttr(obj, "name"); err != nil {
		return nil, err
	}
	if r.State, err = ast.StringAttr(obj, "state"); err != nil {
		return nil, fmt.Errorf("register %s: %w", r.Name, err)
	}
	r.State = statePrefix + r.State

	sets, _ := obj["fieldsets"].([]any)
	for i, v := range sets {
		fs, err := FieldsetFromJSON(v)
		if err != nil {
			return nil, fmt.Errorf("register %s fieldset #%d: %w", r.Name, i, err)
		}
		r.Fieldsets = append(r.Fieldsets, fs)
		r.indexFields(fs.Fields)
	}

	if r.Condition, err = ast.FromJSON(obj["condition"], ast.ModeConstraints); err != nil {
		return nil, fmt.Errorf("register %s condition: %w", r.Name, err)
	}

	accs, _ := obj["accessors"].([]any)
	for i, v := range accs {
		aobj, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: register %s accessor #%d is not an object", ast.ErrSchema, r.Name, i)
		}
		a, err := AccessorFromJSON(aobj)
		if err != nil {
			return nil, fmt.Errorf("register %s accessor #%d: %w", r.Name, i, err)
		}
		r.Accessors = append(r.Accessors, a)
	}
	return r, nil
}

func (r *Register) indexFields(fields []*RegisterField) {
	for _, f := range fields {
		if f.Name != "" {
			r.fields[f.Name] = append(r.fields[f.Name], f)
		}
		for _, cf := range f.CondFields {
			r.indexFields([]*RegisterField{cf.Field})
		}
	}
}

// FieldsByName returns every field of the register with the given name,
// across fieldsets and conditional alternatives.
func (r *Register) FieldsByName(name string) []*RegisterField {
	return r.fields[name]
}

// ConstantName returns the C style constant naming the register, e.g.
// ARMV8_AARCH64_SYSREG_ID_AA64ZFR0_EL1.
func (r *Register) ConstantName() string {
	return "ARMV8_" + strings.ToUpper(r.State) + "_SYSREG_" + strings.ToUpper(r.Name)
}

func (s *Spec) parseRegisters(list []any) error {
	for i, v := range list {
		obj, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: register #%d is not an object", ast.ErrSchema, i)
		}
		if obj["_type"] != "RegisterBlock" {
			r, err := RegisterFromJSON(obj, "")
			if err != nil {
				return err
			}
			s.Registers = append(s.Registers, r)
			continue
		}

		name, err := ast.StringAttr(obj, "name")
		if err != nil {
			return err
		}
		blocks, _ := obj["blocks"].([]any)
		for j, b := range blocks {
			bobj, ok := b.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: block %s #%d is not an object", ast.ErrSchema, name, j)
			}
			r, err := RegisterFromJSON(bobj, name+".")
			if err != nil {
				return fmt.Errorf("block %s: %w", name, err)
			}
			s.Registers = append(s.Registers, r)
		}
	}

	slices.SortStableFunc(s.Registers, func(a, b *Register) int {
		if a.State != b.State {
			return compareStrings(a.State, b.State)
		}
		return compareStrings(a.Name, b.Name)
	})

	for _, r := range s.Registers {
		byName := s.registersByStateNm[r.State]
		if byName == nil {
			byName = make(map[string]*Register)
			s.registersByStateNm[r.State] = byName
		}
		if _, dup := byName[r.Name]; dup {
			return fmt.Errorf("%w: register %s.%s is listed twice", ast.ErrSchema, r.State, r.Name)
		}
		byName[r.Name] = r
		s.registersByState[r.State] = append(s.registersByState[r.State], r)
	}
	return nil
}
