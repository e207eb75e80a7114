package equation

import (
	"fmt"
	"strconv"
	"strings"
)

// OperandKind tags the variants of Operand.
type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandQuantity
	OperandConstant
	OperandIntermediate
)

func (k OperandKind) String() string {
	switch k {
	case OperandNone:
		return "none"
	case OperandQuantity:
		return "quantity"
	case OperandConstant:
		return "constant"
	case OperandIntermediate:
		return "intermediate"
	}
	return "unknown"
}

// NonePlaceholder marks a missing left operand in raw equation layers.
const NonePlaceholder = "#"

// MaxQuantities is the number of quantity letters a..z.
const MaxQuantities = 26

// Operand is a parsed operand reference. Only the fields of its Kind are meaningful:
// Index for quantities, ID for constants, Chain/Step for intermediates.
// Chain is -1 for single-chain references of the form m_<k>.
type Operand struct {
	Kind  OperandKind
	Index int
	ID    int
	Chain int
	Step  int
}

func None() Operand { return Operand{Kind: OperandNone} }

func Quantity(index int) Operand { return Operand{Kind: OperandQuantity, Index: index} }

func Constant(id int) Operand { return Operand{Kind: OperandConstant, ID: id} }

// Intermediate references the result of an earlier step in a single chain (m_<k>).
func Intermediate(step int) Operand {
	return Operand{Kind: OperandIntermediate, Chain: -1, Step: step}
}

// ChainResult references step k of chain c in a parallel layer (m_<c>_<k>).
func ChainResult(chain, step int) Operand {
	return Operand{Kind: OperandIntermediate, Chain: chain, Step: step}
}

func (o Operand) IsIntermediate() bool { return o.Kind == OperandIntermediate }

func (o Operand) String() string {
	switch o.Kind {
	case OperandNone:
		return NonePlaceholder
	case OperandQuantity:
		return string(rune('a' + o.Index))
	case OperandConstant:
		return fmt.Sprintf("c%d", o.ID)
	case OperandIntermediate:
		if o.Chain < 0 {
			return fmt.Sprintf("m_%d", o.Step)
		}
		return fmt.Sprintf("m_%d_%d", o.Chain, o.Step)
	}
	return "?"
}

// ParseOperand classifies a raw reference once. Constant names take precedence over
// quantity letters, so a table may define single-letter constants.
func ParseOperand(ref string, constants *ConstantTable) (Operand, error) {
	ref = strings.TrimSpace(ref)
	if ref == NonePlaceholder {
		return None(), nil
	}
	if id, ok := constants.ID(ref); ok {
		return Constant(id), nil
	}
	if strings.HasPrefix(ref, "m_") {
		return parseIntermediate(ref)
	}
	if len(ref) == 1 && ref[0] >= 'a' && ref[0] <= 'z' {
		return Quantity(int(ref[0] - 'a')), nil
	}
	return Operand{}, errorf(ErrResolution, "unrecognised operand %q", ref)
}

func parseIntermediate(ref string) (Operand, error) {
	parts := strings.Split(ref[2:], "_")
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Operand{}, errorf(ErrResolution, "malformed intermediate %q", ref)
		}
		nums[i] = n
	}
	switch len(nums) {
	case 1:
		return Intermediate(nums[0]), nil
	case 2:
		return ChainResult(nums[0], nums[1]), nil
	}
	return Operand{}, errorf(ErrResolution, "malformed intermediate %q", ref)
}
