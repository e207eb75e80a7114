package equation

import "strings"

// Operator indexes the fixed label vocabulary. The order is part of the label format.
type Operator int

const (
	OpAdd Operator = iota
	OpSub
	OpSubRev
	OpMul
	OpDiv
	OpDivRev
)

// NumOperators is the size of the operator vocabulary.
const NumOperators = 6

var operatorSymbols = [NumOperators]string{"+", "-", "-_rev", "*", "/", "/_rev"}

// Operators returns the vocabulary in label order.
func Operators() []Operator {
	return []Operator{OpAdd, OpSub, OpSubRev, OpMul, OpDiv, OpDivRev}
}

// ParseOperator maps a symbol such as "-" or "/_rev" to its operator.
func ParseOperator(symbol string) (Operator, error) {
	s := strings.TrimSpace(symbol)
	for i, sym := range operatorSymbols {
		if sym == s {
			return Operator(i), nil
		}
	}
	return 0, errorf(ErrUnknownOperator, "%q", symbol)
}

func (o Operator) Valid() bool {
	return o >= 0 && int(o) < NumOperators
}

func (o Operator) Symbol() string {
	if !o.Valid() {
		return "?"
	}
	return operatorSymbols[o]
}

func (o Operator) String() string { return o.Symbol() }

// IsCommutative is true for + and *.
func (o Operator) IsCommutative() bool {
	return o == OpAdd || o == OpMul
}

func (o Operator) IsReversed() bool {
	return o == OpSubRev || o == OpDivRev
}

// Reverse toggles the _rev suffix. Commutative operators are returned unchanged.
func (o Operator) Reverse() Operator {
	switch o {
	case OpSub:
		return OpSubRev
	case OpSubRev:
		return OpSub
	case OpDiv:
		return OpDivRev
	case OpDivRev:
		return OpDiv
	}
	return o
}

// Forward strips the _rev suffix.
func (o Operator) Forward() Operator {
	if o.IsReversed() {
		return o.Reverse()
	}
	return o
}

// Apply computes left OP right, or right OP left for reversed operators.
func (o Operator) Apply(left, right float64) (float64, error) {
	if o.IsReversed() {
		left, right = right, left
	}
	switch o.Forward() {
	case OpAdd:
		return left + right, nil
	case OpSub:
		return left - right, nil
	case OpMul:
		return left * right, nil
	case OpDiv:
		if right == 0 {
			return 0, errorf(ErrDivisionByZero, "%g %s %g", left, o.Forward().Symbol(), right)
		}
		return left / right, nil
	}
	return 0, errorf(ErrUnknownOperator, "index %d", int(o))
}
