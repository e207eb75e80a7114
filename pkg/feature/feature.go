// Package feature turns raw records into labelled, tokenized training features.
package feature

import "github.com/lab/mwp-encoder/pkg/equation"

// Base holds the fields shared by every feature variant.
type Base struct {
	RecordID      string
	InputIDs      []int
	AttentionMask []int
	TokenTypeIDs  []int
	SpanStarts    []int
	SpanEnds      []int
	SpanMask      []int
	Quantities    []float64
	Answer        float64
}

// NumSpans is the number of quantity spans found in the text.
func (b *Base) NumSpans() int { return len(b.SpanStarts) }

// Feature is one assembled example. Heights groups labels that share an index space: one
// label per height for flat and incremental features, one chain per height for parallel ones.
type Feature interface {
	Common() *Base
	Mode() equation.Mode
	Labels() []equation.Label
	Heights() [][]equation.Label
	Height() int
}

type FlatFeature struct {
	Base
	Steps []equation.Label
}

func (f *FlatFeature) Common() *Base               { return &f.Base }
func (f *FlatFeature) Mode() equation.Mode         { return equation.ModeFlat }
func (f *FlatFeature) Labels() []equation.Label    { return f.Steps }
func (f *FlatFeature) Heights() [][]equation.Label { return singletons(f.Steps) }
func (f *FlatFeature) Height() int                 { return len(f.Steps) }

type IncrementalFeature struct {
	Base
	Steps []equation.Label
}

func (f *IncrementalFeature) Common() *Base               { return &f.Base }
func (f *IncrementalFeature) Mode() equation.Mode         { return equation.ModeIncremental }
func (f *IncrementalFeature) Labels() []equation.Label    { return f.Steps }
func (f *IncrementalFeature) Heights() [][]equation.Label { return singletons(f.Steps) }
func (f *IncrementalFeature) Height() int                 { return len(f.Steps) }

type ParallelFeature struct {
	Base
	Chains [][]equation.Label
}

func (f *ParallelFeature) Common() *Base               { return &f.Base }
func (f *ParallelFeature) Mode() equation.Mode         { return equation.ModeParallel }
func (f *ParallelFeature) Labels() []equation.Label    { return equation.Flatten(f.Chains) }
func (f *ParallelFeature) Heights() [][]equation.Label { return f.Chains }
func (f *ParallelFeature) Height() int                 { return len(f.Chains) }

func singletons(labels []equation.Label) [][]equation.Label {
	out := make([][]equation.Label, len(labels))
	for i := range labels {
		out[i] = labels[i : i+1 : i+1]
	}
	return out
}

// New builds the variant for mode from grouped labels.
func New(mode equation.Mode, base Base, groups [][]equation.Label) Feature {
	switch mode {
	case equation.ModeIncremental:
		return &IncrementalFeature{Base: base, Steps: equation.Flatten(groups)}
	case equation.ModeParallel:
		return &ParallelFeature{Base: base, Chains: groups}
	}
	return &FlatFeature{Base: base, Steps: equation.Flatten(groups)}
}

// IntermediatesBefore returns how many step results are visible at height h.
func IntermediatesBefore(f Feature, h int) int {
	heights := f.Heights()
	if h > len(heights) {
		h = len(heights)
	}
	var n int
	for _, g := range heights[:h] {
		n += len(g)
	}
	return n
}
