package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// BitPattern is a parsed bit-pattern literal.
type BitPattern struct {
	// Value holds the 1 bits.
	Value uint64
	// Fixed marks the explicit 0 and 1 positions.
	Fixed uint64
	// Wildcard marks the x positions.
	Wildcard uint64
	// Bits is the literal's width.
	Bits int
}

// Mask returns the all-ones mask of the pattern's width.
func (p BitPattern) Mask() uint64 {
	return onesMask(p.Bits)
}

func onesMask(bits int) uint64 {
	if bits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << bits) - 1
}

// ParseValue parses a quoted pattern such as `'10x1'`. A non-zero width
// requires the literal to have exactly that many digits.
func ParseValue(s string, width int) (BitPattern, error) {
	if len(s) < 2 || s[0] != '\'' || s[len(s)-1] != '\'' {
		return BitPattern{}, fmt.Errorf("%w: bit pattern %s is not quoted", ErrSchema, s)
	}
	digits := s[1 : len(s)-1]
	if width != 0 && len(digits) != width {
		return BitPattern{}, fmt.Errorf("%w: bit pattern %s is not %d bits wide", ErrSchema, s, width)
	}
	if len(digits) > 64 {
		return BitPattern{}, fmt.Errorf("%w: bit pattern %s is wider than 64 bits", ErrSchema, s)
	}

	p := BitPattern{Bits: len(digits)}
	for _, ch := range digits {
		p.Fixed <<= 1
		p.Value <<= 1
		p.Wildcard <<= 1
		switch ch {
		case '1':
			p.Value |= 1
			p.Fixed |= 1
		case '0':
			p.Fixed |= 1
		case 'x':
			p.Wildcard |= 1
		default:
			return BitPattern{}, fmt.Errorf("%w: bad digit %q in bit pattern %s", ErrSchema, ch, s)
		}
	}
	return p, nil
}

// ParseValuesGroup splits a colon separated value list such as
// `'10':imm[3:0]` into Value, EquationValue and Identifier parts.
func ParseValuesGroup(s string) ([]Node, error) {
	var parts []Node
	start := 0
	inSlice := false
	for off := 0; off <= len(s); off++ {
		if off < len(s) {
			switch s[off] {
			case '[':
				if inSlice || off == start {
					return nil, fmt.Errorf("%w: malformed values group %q", ErrSchema, s)
				}
				inSlice = true
				continue
			case ']':
				if !inSlice {
					return nil, fmt.Errorf("%w: malformed values group %q", ErrSchema, s)
				}
				inSlice = false
				continue
			case ':':
				if inSlice {
					continue
				}
			default:
				continue
			}
		}
		if inSlice || off == start {
			return nil, fmt.Errorf("%w: malformed values group %q", ErrSchema, s)
		}

		part, err := parseValuesGroupPart(s[start:off])
		if err != nil {
			return nil, fmt.Errorf("%w (in %q)", err, s)
		}
		parts = append(parts, part)
		start = off + 1
	}
	return parts, nil
}

func parseValuesGroupPart(sub string) (Node, error) {
	if sub[0] == '\'' {
		if _, err := ParseValue(sub, 0); err != nil {
			return nil, err
		}
		return &Value{Value: sub}, nil
	}

	open := strings.IndexByte(sub, '[')
	if open < 0 {
		if !reIdentifier.MatchString(sub) {
			return nil, fmt.Errorf("%w: bad values group part %q", ErrSchema, sub)
		}
		return &Identifier{Name: sub}, nil
	}
	if sub[len(sub)-1] != ']' {
		return nil, fmt.Errorf("%w: bad values group slice %q", ErrSchema, sub)
	}
	bounds := strings.Split(sub[open+1:len(sub)-1], ":")
	if len(bounds) != 2 {
		return nil, fmt.Errorf("%w: bad values group slice %q", ErrSchema, sub)
	}
	first, err1 := strconv.Atoi(bounds[0])
	last, err2 := strconv.Atoi(bounds[1])
	if err1 != nil || err2 != nil {
		return nil, fmt.Errorf("%w: bad values group slice %q", ErrSchema, sub)
	}
	if last < first {
		first, last = last, first
	}
	return &EquationValue{Name: sub[:open], FirstBit: first, Width: last - first + 1}, nil
}
