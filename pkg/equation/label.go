package equation

import "fmt"

// Label is the canonical encoding of one equation step. Low <= High always holds for
// labels built by Canonicalize.
type Label struct {
	Low   int      `json:"low" cbor:"1,keyasint"`
	High  int      `json:"high" cbor:"2,keyasint"`
	Op    Operator `json:"op" cbor:"3,keyasint"`
	Final bool     `json:"final" cbor:"4,keyasint"`
}

// Ints returns the (low, high, op, final) row used by the collators.
func (l Label) Ints() [4]int {
	final := 0
	if l.Final {
		final = 1
	}
	return [4]int{l.Low, l.High, int(l.Op), final}
}

// LabelFromInts is the inverse of Ints.
func LabelFromInts(row [4]int) (Label, error) {
	op := Operator(row[2])
	if !op.Valid() {
		return Label{}, errorf(ErrUnknownOperator, "index %d", row[2])
	}
	if row[3] != 0 && row[3] != 1 {
		return Label{}, fmt.Errorf("equation: final flag must be 0 or 1, got %d", row[3])
	}
	return Label{Low: row[0], High: row[1], Op: op, Final: row[3] == 1}, nil
}

func (l Label) String() string {
	r := l.Ints()
	return fmt.Sprintf("[%d %d %s %d]", r[0], r[1], l.Op.Symbol(), r[3])
}

// Canonicalize orders the operands so that the lower index comes first. Swapping a
// non-commutative operator toggles its _rev suffix; when both indices are equal the suffix
// is dropped because the step has no direction.
func Canonicalize(left, right int, op Operator, final bool) Label {
	if left <= right {
		if left == right && op.IsReversed() {
			op = op.Forward()
		}
		return Label{Low: left, High: right, Op: op, Final: final}
	}
	if !op.IsCommutative() {
		op = op.Reverse()
	}
	return Label{Low: right, High: left, Op: op, Final: final}
}

// Flatten concatenates grouped labels in height order.
func Flatten(groups [][]Label) []Label {
	var n int
	for _, g := range groups {
		n += len(g)
	}
	out := make([]Label, 0, n)
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
