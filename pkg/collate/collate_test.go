package collate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lab/mwp-encoder/pkg/equation"
	"github.com/lab/mwp-encoder/pkg/feature"
)

func base(id string, tokens, spans int) feature.Base {
	b := feature.Base{RecordID: id}
	for i := 0; i < tokens; i++ {
		b.InputIDs = append(b.InputIDs, 10+i)
		b.AttentionMask = append(b.AttentionMask, 1)
		b.TokenTypeIDs = append(b.TokenTypeIDs, 0)
	}
	for i := 0; i < spans; i++ {
		b.SpanStarts = append(b.SpanStarts, i+1)
		b.SpanEnds = append(b.SpanEnds, i+1)
		b.SpanMask = append(b.SpanMask, 1)
		b.Quantities = append(b.Quantities, float64(i+1))
	}
	return b
}

func TestCombinations(t *testing.T) {
	assert.Equal(t, [][2]int{{0, 1}, {0, 2}, {1, 2}}, Combinations(3, false))
	assert.Equal(t, [][2]int{{0, 0}, {0, 1}, {1, 1}}, Combinations(2, true))
	assert.Nil(t, Combinations(0, true))
	for n := 0; n < 6; n++ {
		assert.Len(t, Combinations(n, true), CombinationCount(n, true))
		assert.Len(t, Combinations(n, false), CombinationCount(n, false))
	}
}

func TestSparsePadsTokensAndLabels(t *testing.T) {
	f1 := &feature.FlatFeature{Base: base("a", 5, 1), Steps: []equation.Label{{Low: 0, High: 1, Op: equation.OpAdd, Final: true}}}
	f2 := &feature.FlatFeature{Base: base("b", 8, 2), Steps: []equation.Label{
		{Low: 1, High: 2, Op: equation.OpMul},
		{Low: -1, High: 0, Op: equation.OpSub, Final: true},
	}}

	b, err := Sparse{PadTokenID: 0, Mode: equation.ModeFlat}.Collate([]feature.Feature{f1, f2})
	require.NoError(t, err)

	require.Len(t, b.InputIDs[0], 8)
	require.Len(t, b.InputIDs[1], 8)
	assert.Equal(t, []int{0, 0, 0}, b.InputIDs[0][5:])
	assert.Equal(t, []int{1, 1, 1, 1, 1, 0, 0, 0}, b.AttentionMask[0])
	assert.Equal(t, []int{1, 0}, b.SpanMask[0])

	assert.Equal(t, [][4]int{{0, 1, 0, 1}, {-1, 0, 0, 0}}, b.Labels[0])
	assert.Equal(t, []int{1, 0}, b.LabelMask[0])
	assert.Equal(t, []int{1, 1}, b.LabelMask[1])

	// inputs are untouched
	assert.Len(t, f1.InputIDs, 5)
}

func TestSparseIncrementalPadLabel(t *testing.T) {
	f1 := &feature.IncrementalFeature{Base: base("a", 3, 1)}
	f2 := &feature.IncrementalFeature{Base: base("b", 3, 1), Steps: []equation.Label{{Low: 0, High: 1}}}

	b, err := Sparse{Mode: equation.ModeIncremental}.Collate([]feature.Feature{f1, f2})
	require.NoError(t, err)
	assert.Equal(t, [][4]int{{0, 0, 0, 0}}, b.Labels[0])
}

func TestCollateEmpty(t *testing.T) {
	_, err := Sparse{}.Collate(nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
	_, err = Dense{}.Collate(nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestDenseRejectsFlat(t *testing.T) {
	f := &feature.FlatFeature{Base: base("a", 3, 2)}
	_, err := Dense{}.Collate([]feature.Feature{f})
	assert.ErrorIs(t, err, ErrFlatDense)
}

func TestDenseIncremental(t *testing.T) {
	f1 := &feature.IncrementalFeature{Base: base("a", 4, 2), Steps: []equation.Label{
		{Low: 0, High: 1, Op: equation.OpAdd, Final: true},
	}}
	f2 := &feature.IncrementalFeature{Base: base("b", 6, 1), Steps: []equation.Label{
		{Low: 0, High: 0, Op: equation.OpMul},
		{Low: 0, High: 1, Op: equation.OpAdd, Final: true},
	}}

	d, err := Dense{WithReplacement: true}.Collate([]feature.Feature{f1, f2})
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2, 6, equation.NumOperators, 2}, d.Shape())
	assert.Equal(t, []int{0, 1}, d.Intermediates)
	assert.Equal(t, []int{1, 1, 1, 0, 0, 0}, d.CombinationMask[0])
	assert.Equal(t, []int{1, 1, 1, 1, 1, 1}, d.CombinationMask[1])
	assert.Equal(t, []int{1, 0}, d.LabelHeightMask[0])

	assert.Equal(t, float32(1), d.At(0, 0, 1, int(equation.OpAdd), 1))
	assert.Equal(t, float32(0), d.At(0, 0, 1, int(equation.OpAdd), 0))
	assert.Equal(t, float32(1), d.At(1, 0, 0, int(equation.OpMul), 0))
	assert.Equal(t, float32(1), d.At(1, 1, 1, int(equation.OpAdd), 1))

	var total float32
	for _, v := range d.Targets {
		total += v
	}
	assert.Equal(t, float32(3), total)
}

func TestDenseParallelRealignsQuantities(t *testing.T) {
	f1 := &feature.ParallelFeature{Base: base("a", 4, 2), Chains: [][]equation.Label{
		{{Low: 0, High: 1, Op: equation.OpAdd}, {Low: 0, High: 1, Op: equation.OpMul}},
		{{Low: 0, High: 1, Op: equation.OpSub, Final: true}},
	}}
	f2 := &feature.ParallelFeature{Base: base("b", 4, 2), Chains: [][]equation.Label{
		{{Low: 0, High: 1, Op: equation.OpAdd}},
		{{Low: 0, High: 2, Op: equation.OpMul, Final: true}},
	}}

	d, err := Dense{}.Collate([]feature.Feature{f1, f2})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2}, d.Intermediates)
	assert.Equal(t, [][2]int{{0, 1}}, d.Combinations[0])
	assert.Len(t, d.Combinations[1], 6)

	// f2's quantity index 2 moves to 3 because the batch has one more intermediate at height 1.
	assert.Equal(t, float32(1), d.At(1, 1, 2, int(equation.OpMul), 1))
	assert.Equal(t, float32(1), d.At(0, 0, 0, int(equation.OpAdd), 0))
	assert.Equal(t, float32(1), d.At(0, 0, 0, int(equation.OpMul), 0))
	assert.Equal(t, float32(1), d.At(0, 1, 0, int(equation.OpSub), 1))
}

func TestDenseMissingPair(t *testing.T) {
	f := &feature.IncrementalFeature{Base: base("a", 3, 1), Steps: []equation.Label{{Low: 0, High: 0, Op: equation.OpMul, Final: true}}}
	_, err := Dense{}.Collate([]feature.Feature{f})
	assert.Error(t, err)
}

type sliceSource []feature.Feature

func (s sliceSource) Len() int                 { return len(s) }
func (s sliceSource) At(i int) feature.Feature { return s[i] }

func TestLoader(t *testing.T) {
	src := make(sliceSource, 5)
	for i := range src {
		src[i] = &feature.FlatFeature{Base: base(string(rune('a'+i)), 2, 1)}
	}

	l := NewLoader(src, 2)
	assert.Equal(t, [][]int{{0, 1}, {2, 3}, {4}}, l.Batches())
	assert.Equal(t, 3, l.EstimateBatchCount())

	l.DropLast = true
	assert.Len(t, l.Batches(), 2)
	assert.Equal(t, 2, l.EstimateBatchCount())

	l.DropLast, l.Shuffle, l.Seed = false, true, 7
	first := l.Batches()
	assert.Equal(t, first, l.Batches())
	var seen []int
	for _, b := range first {
		seen = append(seen, b...)
	}
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4}, seen)

	feats := l.Features([]int{4, 0})
	assert.Equal(t, "e", feats[0].Common().RecordID)
}

func TestTensors(t *testing.T) {
	f := &feature.IncrementalFeature{Base: base("a", 3, 2), Steps: []equation.Label{{Low: 0, High: 1, Op: equation.OpDiv, Final: true}}}

	b, err := Sparse{Mode: equation.ModeIncremental}.Collate([]feature.Feature{f})
	require.NoError(t, err)
	ts := b.Tensors()
	assert.Equal(t, []int{1, 3}, []int(ts["input_ids"].Shape()))
	assert.Equal(t, []int{1, 1, 4}, []int(ts["labels"].Shape()))

	d, err := Dense{}.Collate([]feature.Feature{f})
	require.NoError(t, err)
	assert.Equal(t, d.Shape(), []int(d.Tensor().Shape()))
	assert.Contains(t, d.Tensors(), "combination_mask")
}
