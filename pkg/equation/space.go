package equation

import (
	"fmt"
	"strings"
)

// Mode selects how operand references are mapped to label indices.
type Mode int

const (
	ModeFlat Mode = iota
	ModeIncremental
	ModeParallel
)

func (m Mode) String() string {
	switch m {
	case ModeFlat:
		return "flat"
	case ModeIncremental:
		return "incremental"
	case ModeParallel:
		return "parallel"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "flat":
		return ModeFlat, nil
	case "incremental":
		return ModeIncremental, nil
	case "parallel":
		return ModeParallel, nil
	}
	return 0, fmt.Errorf("equation: unknown labeling mode %q", s)
}

// Side tells the resolver which operand slot is being resolved.
type Side int

const (
	Left Side = iota
	Right
)

// Cursor locates the step being resolved. Step is the position inside the layer (or inside
// the chain for parallel layers). Offsets is only used by the parallel space: Offsets[c] is
// the number of steps in the chains before c, for every c <= Chain.
type Cursor struct {
	Chain   int
	Step    int
	Offsets []int
}

// IndexSpace maps parsed operands to label indices for one labeling mode.
type IndexSpace interface {
	Mode() Mode
	Constants() *ConstantTable
	Resolve(op Operand, side Side, cur Cursor) (int, error)
	// PadLabel is the sentinel row used when padding label sequences.
	PadLabel() [4]int
}

// NewIndexSpace returns the strategy for mode.
func NewIndexSpace(mode Mode, constants *ConstantTable) (IndexSpace, error) {
	base := baseSpace{constants: constants}
	switch mode {
	case ModeFlat:
		return flatSpace{base}, nil
	case ModeIncremental:
		return incrementalSpace{base}, nil
	case ModeParallel:
		return parallelSpace{base}, nil
	}
	return nil, fmt.Errorf("equation: unknown labeling mode %d", int(mode))
}

type baseSpace struct {
	constants *ConstantTable
}

func (b baseSpace) Constants() *ConstantTable { return b.constants }

// global resolves quantities and constants in the unshifted space: constants first, then
// quantities.
func (b baseSpace) global(op Operand) (int, error) {
	switch op.Kind {
	case OperandConstant:
		if op.ID < 0 || op.ID >= b.constants.Len() {
			return 0, errorf(ErrResolution, "constant id %d", op.ID)
		}
		return op.ID, nil
	case OperandQuantity:
		if op.Index < 0 || op.Index >= MaxQuantities {
			return 0, errorf(ErrResolution, "quantity index %d", op.Index)
		}
		return op.Index + b.constants.Len(), nil
	}
	return 0, errorf(ErrResolution, "%s operand has no global index", op.Kind)
}

type flatSpace struct{ baseSpace }

func (flatSpace) Mode() Mode { return ModeFlat }

func (flatSpace) PadLabel() [4]int { return [4]int{-1, 0, 0, 0} }

// Resolve maps the none placeholder and intermediate references on the left to -1, the
// running result of the previous step.
func (s flatSpace) Resolve(op Operand, side Side, cur Cursor) (int, error) {
	switch op.Kind {
	case OperandNone, OperandIntermediate:
		if side == Left {
			return -1, nil
		}
		return 0, errorf(ErrResolution, "%s operand %s on the right of step %d", op.Kind, op, cur.Step)
	}
	return s.global(op)
}

type incrementalSpace struct{ baseSpace }

func (incrementalSpace) Mode() Mode { return ModeIncremental }

func (incrementalSpace) PadLabel() [4]int { return [4]int{0, 0, 0, 0} }

// Resolve shifts every quantity and constant by the step position so that the first
// cur.Step indices address intermediate results, most recent first. m_<k> is the result of
// step k-1 and resolves to cur.Step-k.
func (s incrementalSpace) Resolve(op Operand, side Side, cur Cursor) (int, error) {
	switch op.Kind {
	case OperandNone:
		return 0, errorf(ErrResolution, "none placeholder at step %d", cur.Step)
	case OperandIntermediate:
		if op.Chain >= 0 {
			return 0, errorf(ErrResolution, "chain reference %s in a single-chain layer", op)
		}
		if op.Step < 1 || op.Step > cur.Step {
			return 0, errorf(ErrResolution, "%s is not available at step %d", op, cur.Step)
		}
		return cur.Step - op.Step, nil
	}
	idx, err := s.global(op)
	if err != nil {
		return 0, err
	}
	return idx + cur.Step, nil
}

type parallelSpace struct{ baseSpace }

func (parallelSpace) Mode() Mode { return ModeParallel }

func (parallelSpace) PadLabel() [4]int { return [4]int{0, 0, 0, 0} }

// Resolve shifts quantities and constants by the number of steps in earlier chains.
// m_<c>_<k> is step k of an earlier chain c.
func (s parallelSpace) Resolve(op Operand, side Side, cur Cursor) (int, error) {
	if cur.Chain < 0 || cur.Chain >= len(cur.Offsets) {
		return 0, fmt.Errorf("equation: cursor chain %d without offset", cur.Chain)
	}
	shift := cur.Offsets[cur.Chain]
	switch op.Kind {
	case OperandNone:
		return 0, errorf(ErrResolution, "none placeholder in chain %d", cur.Chain)
	case OperandIntermediate:
		if op.Chain < 0 {
			return 0, errorf(ErrResolution, "%s lacks a chain index", op)
		}
		if op.Chain >= cur.Chain {
			return 0, errorf(ErrResolution, "%s is not available in chain %d", op, cur.Chain)
		}
		if op.Step >= cur.Offsets[op.Chain+1]-cur.Offsets[op.Chain] {
			return 0, errorf(ErrResolution, "%s beyond the length of chain %d", op, op.Chain)
		}
		return shift - cur.Offsets[op.Chain] - op.Step - 1, nil
	}
	idx, err := s.global(op)
	if err != nil {
		return 0, err
	}
	return idx + shift, nil
}
