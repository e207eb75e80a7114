package collate

import (
	"errors"
	"fmt"

	"github.com/lab/mwp-encoder/pkg/equation"
	"github.com/lab/mwp-encoder/pkg/feature"
)

var ErrFlatDense = errors.New("collate: dense labels need incremental or parallel features")

// DenseBatch carries multi-hot targets of shape (B, H, K, NumOperators, 2) where K is the
// largest per-height combination count. The last axis is {continue, stop}.
type DenseBatch struct {
	Inputs
	// Intermediates[h] is the batch-wide number of step results visible at height h.
	Intermediates []int
	// Combinations[h] lists the candidate pairs at height h; CombinationMask[h][k] is 1
	// when pair k exists at that height.
	Combinations    [][][2]int
	CombinationMask [][]int
	LabelHeightMask [][]int
	Targets         []float32

	batch, heights, pairs int
}

// Shape is (B, H, K, NumOperators, 2).
func (d *DenseBatch) Shape() []int {
	return []int{d.batch, d.heights, d.pairs, equation.NumOperators, 2}
}

func (d *DenseBatch) offset(b, h, k, op, stop int) int {
	return (((b*d.heights+h)*d.pairs+k)*equation.NumOperators+op)*2 + stop
}

// At reads one target cell.
func (d *DenseBatch) At(b, h, k, op, stop int) float32 {
	return d.Targets[d.offset(b, h, k, op, stop)]
}

// Dense expands labels over every candidate pair per height.
type Dense struct {
	PadTokenID      int
	NumConstants    int
	WithReplacement bool
}

// Collate builds the dense batch. Each feature's operand indices are realigned so that its
// constants and quantities sit after the batch-wide intermediate count for that height.
func (d Dense) Collate(features []feature.Feature) (*DenseBatch, error) {
	if len(features) == 0 {
		return nil, ErrEmptyBatch
	}
	for _, f := range features {
		if f.Mode() == equation.ModeFlat {
			return nil, ErrFlatDense
		}
	}
	out := &DenseBatch{Inputs: padInputs(features, d.PadTokenID), batch: len(features)}

	maxQ := 0
	for _, f := range features {
		if n := f.Common().NumSpans(); n > maxQ {
			maxQ = n
		}
		if n := f.Height(); n > out.heights {
			out.heights = n
		}
	}

	out.Intermediates = make([]int, out.heights)
	out.Combinations = make([][][2]int, out.heights)
	index := make([]map[[2]int]int, out.heights)
	for h := 0; h < out.heights; h++ {
		for _, f := range features {
			if n := feature.IntermediatesBefore(f, h); n > out.Intermediates[h] {
				out.Intermediates[h] = n
			}
		}
		candidates := out.Intermediates[h] + d.NumConstants + maxQ
		out.Combinations[h] = Combinations(candidates, d.WithReplacement)
		index[h] = make(map[[2]int]int, len(out.Combinations[h]))
		for k, p := range out.Combinations[h] {
			index[h][p] = k
		}
		if n := len(out.Combinations[h]); n > out.pairs {
			out.pairs = n
		}
	}

	out.CombinationMask = make([][]int, out.heights)
	for h := range out.CombinationMask {
		out.CombinationMask[h] = padInts(onesOf(len(out.Combinations[h])), out.pairs, 0)
	}

	out.Targets = make([]float32, out.batch*out.heights*out.pairs*equation.NumOperators*2)
	out.LabelHeightMask = make([][]int, out.batch)
	for b, f := range features {
		heights := f.Heights()
		out.LabelHeightMask[b] = padInts(onesOf(len(heights)), out.heights, 0)
		for h, group := range heights {
			fInter := feature.IntermediatesBefore(f, h)
			shift := out.Intermediates[h] - fInter
			for _, l := range group {
				low, high := realign(l.Low, fInter, shift), realign(l.High, fInter, shift)
				k, ok := index[h][[2]int{low, high}]
				if !ok {
					return nil, fmt.Errorf("collate: record %q height %d: no candidate pair (%d, %d)",
						f.Common().RecordID, h, low, high)
				}
				stop := 0
				if l.Final {
					stop = 1
				}
				out.Targets[out.offset(b, h, k, int(l.Op), stop)] = 1
			}
		}
	}
	return out, nil
}

func realign(idx, intermediates, shift int) int {
	if idx >= intermediates {
		return idx + shift
	}
	return idx
}

func onesOf(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
