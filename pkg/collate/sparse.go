// Package collate pads assembled features into fixed-shape batches.
package collate

import (
	"errors"

	"github.com/lab/mwp-encoder/pkg/equation"
	"github.com/lab/mwp-encoder/pkg/feature"
)

var ErrEmptyBatch = errors.New("collate: empty batch")

// Inputs holds the padded token and span fields shared by both batch kinds.
type Inputs struct {
	InputIDs      [][]int // (B, T)
	AttentionMask [][]int // (B, T)
	TokenTypeIDs  [][]int // (B, T)
	SpanStarts    [][]int // (B, Q)
	SpanEnds      [][]int // (B, Q)
	SpanMask      [][]int // (B, Q)
}

// Batch is a sparse batch: one label row per step.
type Batch struct {
	Inputs
	Labels    [][][4]int // (B, H, 4)
	LabelMask [][]int    // (B, H)
}

// Sparse pads label sequences with the mode's sentinel row.
type Sparse struct {
	PadTokenID int
	Mode       equation.Mode
}

// PadLabel returns the sentinel label row for mode.
func PadLabel(mode equation.Mode) [4]int {
	space, err := equation.NewIndexSpace(mode, nil)
	if err != nil {
		return [4]int{}
	}
	return space.PadLabel()
}

// Collate pads features without modifying them.
func (s Sparse) Collate(features []feature.Feature) (*Batch, error) {
	if len(features) == 0 {
		return nil, ErrEmptyBatch
	}
	b := &Batch{Inputs: padInputs(features, s.PadTokenID)}

	maxH := 0
	for _, f := range features {
		if n := len(f.Labels()); n > maxH {
			maxH = n
		}
	}
	pad := PadLabel(s.Mode)
	b.Labels = make([][][4]int, len(features))
	b.LabelMask = make([][]int, len(features))
	for i, f := range features {
		labels := f.Labels()
		rows := make([][4]int, maxH)
		mask := make([]int, maxH)
		for h := range rows {
			if h < len(labels) {
				rows[h] = labels[h].Ints()
				mask[h] = 1
				continue
			}
			rows[h] = pad
		}
		b.Labels[i], b.LabelMask[i] = rows, mask
	}
	return b, nil
}

func padInputs(features []feature.Feature, padID int) Inputs {
	maxT, maxQ := 0, 0
	for _, f := range features {
		c := f.Common()
		if len(c.InputIDs) > maxT {
			maxT = len(c.InputIDs)
		}
		if len(c.SpanStarts) > maxQ {
			maxQ = len(c.SpanStarts)
		}
	}
	in := Inputs{
		InputIDs:      make([][]int, len(features)),
		AttentionMask: make([][]int, len(features)),
		TokenTypeIDs:  make([][]int, len(features)),
		SpanStarts:    make([][]int, len(features)),
		SpanEnds:      make([][]int, len(features)),
		SpanMask:      make([][]int, len(features)),
	}
	for i, f := range features {
		c := f.Common()
		in.InputIDs[i] = padInts(c.InputIDs, maxT, padID)
		in.AttentionMask[i] = padInts(c.AttentionMask, maxT, 0)
		in.TokenTypeIDs[i] = padInts(c.TokenTypeIDs, maxT, 0)
		in.SpanStarts[i] = padInts(c.SpanStarts, maxQ, 0)
		in.SpanEnds[i] = padInts(c.SpanEnds, maxQ, 0)
		in.SpanMask[i] = padInts(c.SpanMask, maxQ, 0)
	}
	return in
}

// padInts returns a copy of src extended to n with v.
func padInts(src []int, n, v int) []int {
	out := make([]int, n)
	copy(out, src)
	for i := len(src); i < n; i++ {
		out[i] = v
	}
	return out
}
