package equation

import (
	"fmt"
	"math"
)

// Evaluate replays flat labels. Index -1 is the running result, which is 0 before the first
// step.
func Evaluate(labels []Label, quantities, constants []float64) (float64, error) {
	if len(labels) == 0 {
		return 0, errorf(ErrEvaluation, "no labels")
	}
	var current float64
	for i, l := range labels {
		left, err := flatValue(l.Low, current, quantities, constants)
		if err != nil {
			return 0, stepError(i, err)
		}
		right, err := flatValue(l.High, current, quantities, constants)
		if err != nil {
			return 0, stepError(i, err)
		}
		if current, err = l.Op.Apply(left, right); err != nil {
			return 0, stepError(i, err)
		}
	}
	return current, nil
}

func flatValue(idx int, current float64, quantities, constants []float64) (float64, error) {
	if idx == -1 {
		return current, nil
	}
	return valueAt(idx, nil, quantities, constants)
}

// EvaluateIncremental replays incremental labels and returns the final value together with
// every step result in order.
func EvaluateIncremental(labels []Label, quantities, constants []float64) (float64, []float64, error) {
	if len(labels) == 0 {
		return 0, nil, errorf(ErrEvaluation, "no labels")
	}
	store := make([]float64, 0, len(labels))
	for i, l := range labels {
		v, err := applyLabel(l, store, quantities, constants)
		if err != nil {
			return 0, nil, stepError(i, err)
		}
		store = append(store, v)
	}
	return store[len(store)-1], store, nil
}

// EvaluateParallel replays parallel labels. Every chain sees the results of the chains before
// it; its own results become visible once the chain is complete.
func EvaluateParallel(chains [][]Label, quantities, constants []float64) (float64, []float64, error) {
	var store []float64
	var last float64
	var n int
	for _, chain := range chains {
		visible := store[:len(store):len(store)]
		results := make([]float64, 0, len(chain))
		for _, l := range chain {
			v, err := applyLabel(l, visible, quantities, constants)
			if err != nil {
				return 0, nil, stepError(n, err)
			}
			results = append(results, v)
			last = v
			n++
		}
		store = append(store, results...)
	}
	if n == 0 {
		return 0, nil, errorf(ErrEvaluation, "no labels")
	}
	return last, store, nil
}

// Replay evaluates grouped labels for mode. Flat and incremental labels are flattened first.
func Replay(mode Mode, groups [][]Label, quantities, constants []float64) (float64, error) {
	var (
		v   float64
		err error
	)
	switch mode {
	case ModeFlat:
		v, err = Evaluate(Flatten(groups), quantities, constants)
	case ModeIncremental:
		v, _, err = EvaluateIncremental(Flatten(groups), quantities, constants)
	case ModeParallel:
		v, _, err = EvaluateParallel(groups, quantities, constants)
	default:
		err = errorf(ErrEvaluation, "unknown mode %d", int(mode))
	}
	return v, err
}

func applyLabel(l Label, inter, quantities, constants []float64) (float64, error) {
	left, err := valueAt(l.Low, inter, quantities, constants)
	if err != nil {
		return 0, err
	}
	right, err := valueAt(l.High, inter, quantities, constants)
	if err != nil {
		return 0, err
	}
	return l.Op.Apply(left, right)
}

// valueAt reads index idx of the shifted space: intermediates most recent first, then
// constants, then quantities.
func valueAt(idx int, inter, quantities, constants []float64) (float64, error) {
	if idx < 0 {
		return 0, errorf(ErrMissingOperand, "index %d", idx)
	}
	if n := len(inter); idx < n {
		return inter[n-1-idx], nil
	}
	idx -= len(inter)
	if idx < len(constants) {
		return constants[idx], nil
	}
	idx -= len(constants)
	if idx < len(quantities) {
		return quantities[idx], nil
	}
	return 0, errorf(ErrMissingOperand, "quantity %d of %d", idx, len(quantities))
}

func stepError(step int, err error) error {
	le, ok := err.(*LabelError)
	if !ok {
		return err
	}
	details := fmt.Sprintf("step %d", step)
	if le.Details != "" {
		details += ": " + le.Details
	}
	return &LabelError{Code: le.Code, Message: le.Message, Details: details}
}

// Tolerance decides whether an evaluated value reproduces the stated answer. Answers above
// Threshold use the Large bound, everything else the Small bound.
type Tolerance struct {
	Small     float64 `json:"small"`
	Large     float64 `json:"large"`
	Threshold float64 `json:"threshold"`
}

var DefaultTolerance = Tolerance{Small: 1e-4, Large: 200, Threshold: 1e6}

func (t Tolerance) Matches(got, want float64) bool {
	if math.IsNaN(got) || math.IsInf(got, 0) {
		return false
	}
	diff := math.Abs(got - want)
	if want > t.Threshold {
		return diff < t.Large
	}
	return diff < t.Small
}
