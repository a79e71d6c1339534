// Package insts models the instruction side of the ARM machine-readable
// architecture specification: encoding fields, the instruction set and group
// hierarchy, and the instructions themselves.
//
// It also provides the Lifter, which moves `field == literal` and
// `field != literal` tests out of an instruction's condition and into the
// fixed bits of its encoding.
//
// Usage:
//
//	lifter := insts.NewLifter(insts.WithLogger(log))
//	changed, err := lifter.Lift(inst)
//	fmt.Printf("%08x/%08x %s\n", inst.FixedValue(), inst.FixedMask(), inst.Name)
package insts

import (
	"errors"
	"regexp"
)

// Sentinel errors. They are wrapped with the offending instruction and field.
var (
	// ErrEncoding reports overlapping or incomplete encoding fields.
	ErrEncoding = errors.New("invalid encoding")
	// ErrCollision reports a condition that tests bits the encoding already
	// fixes.
	ErrCollision = errors.New("condition collides with encoding")
	// ErrRange reports a literal that does not fit its field.
	ErrRange = errors.New("literal out of range")
)

var reValidName = regexp.MustCompile(`^[_A-Za-z][_A-Za-z0-9]+$`)

// OpcodeBits is the only instruction width the A64 instruction set uses.
const OpcodeBits = 32

// AllOnes is the mask covering a full opcode.
const AllOnes uint32 = 0xFFFF_FFFF
