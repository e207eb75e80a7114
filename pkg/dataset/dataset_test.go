package dataset

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lab/mwp-encoder/pkg/cache"
	"github.com/lab/mwp-encoder/pkg/equation"
	"github.com/lab/mwp-encoder/pkg/feature"
	"github.com/lab/mwp-encoder/pkg/schema"
	"github.com/lab/mwp-encoder/pkg/tokenizer"
)

const testRecords = `{"id": "1", "text": "temp_a apples , temp_b more", "type_str": "legal", "equation_layer": [["a", "b", "+"]], "answer": 8, "num_list": [3, 5]}
{"id": "2", "text": "temp_a apples", "type_str": "legal", "equation_layer": [["a", "a", "*"]], "answer": 9, "num_list": [3]}
{"id": "3", "text": "temp_a apples", "type_str": "illegal", "equation_layer": [["a", "b", "+"]], "answer": 8, "num_list": [3, 5]}
{"id": "4", "text": "temp_a , temp_b , temp_c", "type_str": "legal", "equation_layer": [["a", "b", "+"], ["m_1", "c", "*"]], "answer": 12, "num_list": [1, 2, 4]}
{"id": "5", "text": "temp_a , temp_b", "type_str": "legal", "equation_layer": [["a", "b", "-"]], "answer": 100, "num_list": [1, 2]}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newAssembler(t *testing.T) *feature.Assembler {
	t.Helper()
	wp, err := tokenizer.NewWordPiece([]string{"[PAD]", "[UNK]", "[CLS]", "[SEP]", "<", ">", "q", "##uan", "##t", ","}, false)
	require.NoError(t, err)
	space, err := equation.NewIndexSpace(equation.ModeIncremental, nil)
	require.NoError(t, err)
	asm, err := feature.NewAssembler(wp, equation.NewLabeler(space, false), feature.Options{})
	require.NoError(t, err)
	return asm
}

type countingProgress struct{ n int64 }

func (p *countingProgress) Increment() { atomic.AddInt64(&p.n, 1) }

func TestLoadRecordsJSONL(t *testing.T) {
	path := writeFile(t, "train.jsonl", testRecords)
	records, report, err := LoadRecords(path, 0)
	require.NoError(t, err)
	assert.Len(t, records, 5)
	assert.Equal(t, "jsonl", report.Format)
	assert.Equal(t, 0, report.Skipped)

	records, _, err = LoadRecords(path, 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestLoadRecordsRepairs(t *testing.T) {
	lines := strings.Join([]string{
		`{"id": "1", "text": "bad \x41 escape", "equation_layer": [], "answer": 0, "num_list": []}`,
		`{not json at all`,
	}, "\n")
	records, report, err := LoadRecords(writeFile(t, "broken.jsonl", lines), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "bad  escape", records[0].Text)
	assert.Equal(t, 1, report.Fixed)
	assert.Equal(t, 1, report.Skipped)

	array := `[{"id": "1", "equation_layer": [], "answer": 0, "num_list": []},`
	records, report, err = LoadRecords(writeFile(t, "truncated.json", array), 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 1, report.Fixed)
}

func TestBuild(t *testing.T) {
	records, _, err := LoadRecords(writeFile(t, "train.jsonl", testRecords), 0)
	require.NoError(t, err)

	progress := &countingProgress{}
	ds, stats, err := Build(context.Background(), records, newAssembler(t), Options{Workers: 3, Progress: progress})
	require.NoError(t, err)

	assert.Equal(t, int64(5), progress.n)
	assert.Equal(t, equation.ModeIncremental, ds.Mode())
	require.Equal(t, 3, ds.Len())
	ids := []string{}
	for _, r := range ds.Records() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"1", "4", "5"}, ids)
	assert.Equal(t, "4", ds.At(1).Common().RecordID)

	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 3, stats.Kept)
	assert.Equal(t, 1, stats.Discarded[feature.ReasonDegenerate])
	assert.Equal(t, 1, stats.Discarded[feature.ReasonIllegal])
	assert.Equal(t, 1, stats.Mismatches)
	assert.Equal(t, 2, stats.MaxSteps)
	assert.Equal(t, []StepCount{{Steps: 1, Count: 2}, {Steps: 2, Count: 1}}, stats.StepHistogram())
	assert.Contains(t, stats.Summary()[0], "kept: 3")

	data, err := json.Marshal(stats)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"degenerate":1`)
}

func TestBuildUsesCache(t *testing.T) {
	records, _, err := LoadRecords(writeFile(t, "train.jsonl", testRecords), 0)
	require.NoError(t, err)

	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer store.Close()
	scope := store.Scope(cache.Fingerprint("train.jsonl"))

	first, _, err := Build(context.Background(), records, newAssembler(t), Options{Workers: 2, Cache: scope})
	require.NoError(t, err)

	second, stats, err := Build(context.Background(), records, newAssembler(t), Options{Workers: 2, Cache: scope})
	require.NoError(t, err)
	assert.Equal(t, 5, stats.CacheHits)
	require.Equal(t, first.Len(), second.Len())
	for i := 0; i < first.Len(); i++ {
		assert.Equal(t, first.At(i).Labels(), second.At(i).Labels())
		assert.Equal(t, first.At(i).Common().InputIDs, second.At(i).Common().InputIDs)
	}
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Build(ctx, []schema.Record{{ID: "1"}}, newAssembler(t), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
