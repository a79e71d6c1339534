package ast

// OpClass classifies binary and unary operators.
type OpClass uint8

// Operator classes.
const (
	OpLogical OpClass = iota
	OpCompare
	OpSet
	OpArithmetic
	OpBitwise
	OpImplication
)

func (c OpClass) String() string {
	switch c {
	case OpLogical:
		return "logical"
	case OpCompare:
		return "compare"
	case OpSet:
		return "set"
	case OpArithmetic:
		return "arithmetic"
	case OpBitwise:
		return "bitwise"
	case OpImplication:
		return "implication"
	}
	return "unknown"
}

var binaryOps = map[string]OpClass{
	"||":  OpLogical,
	"&&":  OpLogical,
	"==":  OpCompare,
	"!=":  OpCompare,
	">":   OpCompare,
	"<":   OpCompare,
	">=":  OpCompare,
	"<=":  OpCompare,
	"IN":  OpSet,
	"+":   OpArithmetic,
	"-":   OpArithmetic,
	"MOD": OpArithmetic,
	"*":   OpArithmetic,
	"AND": OpBitwise,
	"OR":  OpBitwise,
	"-->": OpImplication, // right side holds whenever the left side does
	"<->": OpImplication, // both directions
}

var unaryOps = map[string]OpClass{
	"!":   OpLogical,
	"NOT": OpBitwise,
}

// Operator precedence; lower binds tighter.
var opPrecedence = map[string]int{
	"||":  15,
	"&&":  14,
	"==":  10,
	"!=":  10,
	">":   9,
	"<":   9,
	">=":  9,
	"<=":  9,
	"IN":  9,
	"+":   6,
	"-":   6,
	"MOD": 5,
	"*":   5,
	"AND": 11,
	"OR":  15,
	"-->": 17,
	"<->": 17,
}

var (
	compareGroup = opSet("==", "!=", ">", "<", ">=", "<=", "IN")
	addGroup     = opSet("+", "-")
	mulGroup     = opSet("*", "MOD")
	bitwiseGroup = opSet("AND", "OR")
)

// Operators that StringEx may flatten into one chain.
var opGroupings = map[string]map[string]bool{
	"||":  opSet("||"),
	"&&":  opSet("&&"),
	"==":  compareGroup,
	"!=":  compareGroup,
	">":   compareGroup,
	"<":   compareGroup,
	">=":  compareGroup,
	"<=":  compareGroup,
	"IN":  compareGroup,
	"+":   addGroup,
	"-":   addGroup,
	"MOD": mulGroup,
	"*":   mulGroup,
	"AND": bitwiseGroup,
	"OR":  bitwiseGroup,
	"-->": opSet("-->"),
	"<->": opSet("<->"),
}

type negation struct {
	op             string
	negateOperands bool
}

// Boolean negation rules pushed down by Transform.
var opNegation = map[string]negation{
	"||": {"&&", true},
	"&&": {"||", true},
	"==": {"!=", false},
	"!=": {"==", false},
	">":  {"<=", false},
	"<":  {">=", false},
	">=": {"<", false},
	"<=": {">", false},
}

func opSet(ops ...string) map[string]bool {
	m := make(map[string]bool, len(ops))
	for _, op := range ops {
		m[op] = true
	}
	return m
}

// BinaryOpClass returns the class of a binary operator.
func BinaryOpClass(op string) (OpClass, bool) {
	c, ok := binaryOps[op]
	return c, ok
}

// UnaryOpClass returns the class of a unary operator.
func UnaryOpClass(op string) (OpClass, bool) {
	c, ok := unaryOps[op]
	return c, ok
}

// Precedence returns the precedence of a binary operator, lower binding
// tighter.
func Precedence(op string) int {
	return opPrecedence[op]
}

// Groupable reports whether b may share a flattened chain with a.
func Groupable(a, b string) bool {
	return opGroupings[a][b]
}

// Negate returns the operator expressing the negation of op and whether the
// operands must be negated too.
func Negate(op string) (string, bool, bool) {
	n, ok := opNegation[op]
	return n.op, n.negateOperands, ok
}
