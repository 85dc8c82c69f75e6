package calculator

import "fmt"

// Op names a primitive remote operation. The string form is also the wire
// name used in registry call routes.
type Op string

const (
	OpAdd  Op = "add"
	OpSub  Op = "sub"
	OpMul  Op = "mul"
	OpDiv  Op = "div"
	OpPow  Op = "pow"
	OpSqrt Op = "sqrt"
	OpSin  Op = "sin"
	OpCos  Op = "cos"
	OpTan  Op = "tan"
)

// Category groups operations by the service that serves them.
type Category string

const (
	CategoryMath Category = "math"
	CategoryTrig Category = "trig"
)

// MathOps and TrigOps are the capability sets of the two service contracts.
var (
	MathOps = []Op{OpAdd, OpSub, OpMul, OpDiv, OpPow, OpSqrt}
	TrigOps = []Op{OpSin, OpCos, OpTan}
)

// ParseOp returns the Op for a wire name.
func ParseOp(s string) (Op, error) {
	op := Op(s)
	if !op.Valid() {
		return "", fmt.Errorf("unknown operation %q", s)
	}
	return op, nil
}

func (o Op) Valid() bool {
	switch o {
	case OpAdd, OpSub, OpMul, OpDiv, OpPow, OpSqrt, OpSin, OpCos, OpTan:
		return true
	}
	return false
}

// Arity is the number of operands the operation takes.
func (o Op) Arity() int {
	switch o {
	case OpAdd, OpSub, OpMul, OpDiv, OpPow:
		return 2
	case OpSqrt, OpSin, OpCos, OpTan:
		return 1
	}
	return 0
}

// Category reports which service contract serves the operation. sqrt is
// unary but belongs to the math service.
func (o Op) Category() Category {
	switch o {
	case OpSin, OpCos, OpTan:
		return CategoryTrig
	}
	return CategoryMath
}

// Symbol is the key label shown to users.
func (o Op) Symbol() string {
	switch o {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpPow:
		return "^"
	case OpSqrt:
		return "√"
	}
	return string(o)
}

func (o Op) String() string { return string(o) }
