package insts

import (
	"fmt"

	"github.com/sarchlab/armspecgen/ast"
)

// Field is one entry of an encodeset: a contiguous bit range of the opcode
// and the bits within it that are fixed.
type Field struct {
	// Name is empty for anonymous Instruction.Encodeset.Bits entries.
	Name     string
	FirstBit int
	Width    int

	// Fixed and Value are in the field's own coordinates (unshifted).
	Fixed uint32
	Value uint32
}

// Mask returns the unshifted all-ones mask of the field.
func (f *Field) Mask() uint32 {
	if f.Width >= 32 {
		return AllOnes
	}
	return (uint32(1) << f.Width) - 1
}

// ShiftedMask returns the opcode bits the field covers.
func (f *Field) ShiftedMask() uint32 {
	return f.Mask() << f.FirstBit
}

// ShiftedFixed returns Fixed in opcode coordinates.
func (f *Field) ShiftedFixed() uint32 {
	return f.Fixed << f.FirstBit
}

// ShiftedValue returns Value in opcode coordinates.
func (f *Field) ShiftedValue() uint32 {
	return f.Value << f.FirstBit
}

// IsFullyFixed reports whether every bit of the field is fixed.
func (f *Field) IsFullyFixed() bool {
	return f.Fixed == f.Mask()
}

// Clone returns a copy of the field.
func (f *Field) Clone() *Field {
	c := *f
	return &c
}

func (f *Field) String() string {
	s := fmt.Sprintf("[%2d:%-2d] = %#x/%#x/%#x", f.FirstBit+f.Width-1, f.FirstBit, f.Value, f.Fixed, f.Mask())
	if f.Name != "" {
		s += " # " + f.Name
	}
	return s
}

// FieldFromJSON builds a field from an Instruction.Encodeset.Field or
// Instruction.Encodeset.Bits object.
func FieldFromJSON(obj map[string]any) (*Field, error) {
	typ, err := ast.StringAttr(obj, "_type")
	if err != nil {
		return nil, err
	}

	f := &Field{}
	switch typ {
	case "Instruction.Encodeset.Field":
		if f.Name, err = ast.StringAttr(obj, "name"); err != nil {
			return nil, err
		}
	case "Instruction.Encodeset.Bits":
	default:
		return nil, fmt.Errorf("%w: unexpected encodeset entry %s", ast.ErrSchema, typ)
	}

	rng, ok := obj["range"].(map[string]any)
	if !ok || rng["_type"] != "Range" {
		return nil, fmt.Errorf("%w: %s has no Range", ast.ErrSchema, typ)
	}
	start, err := ast.IntAttr(rng, "start")
	if err != nil {
		return nil, err
	}
	width, err := ast.IntAttr(rng, "width")
	if err != nil {
		return nil, err
	}
	if start < 0 || width < 1 || start+width > OpcodeBits {
		return nil, fmt.Errorf("%w: range start=%d width=%d is outside the opcode", ErrEncoding, start, width)
	}
	f.FirstBit = int(start)
	f.Width = int(width)

	val, ok := obj["value"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no value", ast.ErrSchema, typ)
	}
	lit, err := ast.StringAttr(val, "value")
	if err != nil {
		return nil, err
	}
	p, err := ast.ParseValue(lit, f.Width)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", f.Name, err)
	}
	f.Fixed = uint32(p.Fixed)
	f.Value = uint32(p.Value)
	return f, nil
}

// FieldsFromEncodeset loads an Instruction.Encodeset.Encodeset and returns
// its fields together with the union of their shifted masks.
func FieldsFromEncodeset(v any) ([]*Field, uint32, error) {
	obj, ok := v.(map[string]any)
	if !ok || obj["_type"] != "Instruction.Encodeset.Encodeset" {
		return nil, 0, fmt.Errorf("%w: expected Instruction.Encodeset.Encodeset", ast.ErrSchema)
	}
	values, ok := obj["values"].([]any)
	if !ok {
		return nil, 0, fmt.Errorf("%w: encodeset values is not a list", ast.ErrSchema)
	}

	fields := make([]*Field, 0, len(values))
	var covered uint32
	for i, entry := range values {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, 0, fmt.Errorf("%w: encodeset value #%d is not an object", ast.ErrSchema, i)
		}
		f, err := FieldFromJSON(m)
		if err != nil {
			return nil, 0, fmt.Errorf("encodeset value #%d: %w", i, err)
		}
		if f.ShiftedMask()&covered != 0 {
			return nil, 0, fmt.Errorf("%w: field %s overlaps bits %#08x", ErrEncoding, f,
				f.ShiftedMask()&covered)
		}
		fields = append(fields, f)
		covered |= f.ShiftedMask()
	}
	return fields, covered, nil
}

// AddParentFields appends clones of the parent fields that cover bits not yet
// in covered. A parent field that only partly overlaps covered is an error.
func AddParentFields(fields []*Field, covered uint32, parent []*Field) ([]*Field, uint32, error) {
	for _, pf := range parent {
		mask := pf.ShiftedMask()
		switch mask & covered {
		case mask:
			continue
		case 0:
			fields = append(fields, pf.Clone())
			covered |= mask
		default:
			return nil, 0, fmt.Errorf("%w: inherited field %s partially overlaps %#08x", ErrEncoding, pf, covered)
		}
	}
	return fields, covered, nil
}

// FieldByName returns the named field, or nil.
func FieldByName(fields []*Field, name string) *Field {
	for _, f := range fields {
		if f.Name != "" && f.Name == name {
			return f
		}
	}
	return nil
}
