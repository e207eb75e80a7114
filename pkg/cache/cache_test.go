package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lab/mwp-encoder/pkg/equation"
	"github.com/lab/mwp-encoder/pkg/feature"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestScopeRoundTrip(t *testing.T) {
	s := openStore(t)
	scope := s.Scope(Fingerprint("data.json", "incremental"))

	base := feature.Base{
		RecordID:      "7",
		InputIDs:      []int{2, 16, 3},
		AttentionMask: []int{1, 1, 1},
		TokenTypeIDs:  []int{0, 0, 0},
		SpanStarts:    []int{1},
		SpanEnds:      []int{1},
		SpanMask:      []int{1},
		Quantities:    []float64{3, 5},
		Answer:        8,
	}
	labels := []equation.Label{{Low: 0, High: 1, Op: equation.OpAdd, Final: true}}
	kept := feature.Result{Feature: feature.New(equation.ModeIncremental, base, [][]equation.Label{labels}), Value: 8}

	require.NoError(t, scope.Store(0, kept))
	require.NoError(t, scope.Store(1, feature.Result{Reason: feature.ReasonDegenerate, Err: errors.New("operand a used twice")}))

	got, ok, err := scope.Load(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, got.Feature)
	assert.Equal(t, equation.ModeIncremental, got.Feature.Mode())
	assert.Equal(t, base, *got.Feature.Common())
	assert.Equal(t, labels, got.Feature.Labels())
	assert.Equal(t, 8.0, got.Value)

	got, ok, err = scope.Load(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, feature.ReasonDegenerate, got.Reason)
	assert.EqualError(t, got.Err, "operand a used twice")
	assert.Nil(t, got.Feature)

	_, ok, err = scope.Load(2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParallelOutcomeKeepsChains(t *testing.T) {
	s := openStore(t)
	scope := s.Scope("p")
	chains := [][]equation.Label{
		{{Low: 0, High: 1, Op: equation.OpAdd}},
		{{Low: 0, High: 1, Op: equation.OpSubRev, Final: true}},
	}
	res := feature.Result{Feature: feature.New(equation.ModeParallel, feature.Base{RecordID: "p"}, chains)}
	require.NoError(t, scope.Store(3, res))

	got, ok, err := scope.Load(3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, chains, got.Feature.Heights())
}

func TestCountAndPrune(t *testing.T) {
	s := openStore(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Scope("old").Store(i, feature.Result{Reason: feature.ReasonIllegal}))
	}
	require.NoError(t, s.Scope("new").Store(0, feature.Result{Reason: feature.ReasonIllegal}))

	n, err := s.Count("old")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	removed, err := s.Prune("new")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	n, err = s.Count("old")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	n, err = s.Count("new")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, Fingerprint("a", "b"), Fingerprint("a", "b"))
	assert.NotEqual(t, Fingerprint("a", "b"), Fingerprint("ab"))
	assert.Len(t, Fingerprint("x"), 32)
}

func TestFileDigest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"id": "1"}`), 0644))
	first, err := FileDigest(path)
	require.NoError(t, err)
	assert.Len(t, first, 64)

	again, err := FileDigest(path)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	require.NoError(t, os.WriteFile(path, []byte(`{"id": "2"}`), 0644))
	changed, err := FileDigest(path)
	require.NoError(t, err)
	assert.NotEqual(t, first, changed)

	_, err = FileDigest(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
