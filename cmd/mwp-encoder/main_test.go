package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lab/mwp-encoder/pkg/equation"
	"github.com/lab/mwp-encoder/pkg/storage"
)

const testRecords = `{"id": "1", "text": "temp_a apples , temp_b more", "type_str": "legal", "equation_layer": [["a", "b", "+"]], "answer": 8, "num_list": [3, 5]}
{"id": "2", "text": "temp_a apples", "type_str": "legal", "equation_layer": [["a", "a", "*"]], "answer": 9, "num_list": [3]}
{"id": "3", "text": "temp_a apples", "type_str": "illegal", "equation_layer": [["a", "b", "+"]], "answer": 8, "num_list": [3, 5]}
{"id": "4", "text": "temp_a , temp_b , temp_c", "type_str": "legal", "equation_layer": [["a", "b", "+"], ["m_1", "c", "*"]], "answer": 12, "num_list": [1, 2, 4]}
`

const testVocab = "[PAD]\n[UNK]\n[CLS]\n[SEP]\n<\n>\nq\n##uan\n##t\n,\n"

func setup(t *testing.T) (dir, configPath string) {
	t.Helper()
	dir = t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return path
	}
	input := write("train.jsonl", testRecords)
	vocab := write("vocab.txt", testVocab)
	configPath = write("config.json", `{
		"data": {"input": "`+input+`", "output": "`+filepath.Join(dir, "out", "features.parquet")+`"},
		"tokenizer": {"kind": "wordpiece", "vocab_path": "`+vocab+`"},
		"build": {"workers": 2, "progress": false, "write_labels": true, "cache_path": "`+filepath.Join(dir, "cache.db")+`"},
		"collate": {"batch_size": 2, "dense": true},
		"logging": {"level": "error", "output": "stderr"}
	}`)
	return dir, configPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(append(args, "--env", filepath.Join(t.TempDir(), "none.env")))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestBuildCommand(t *testing.T) {
	dir, cfg := setup(t)

	out, err := run(t, "build", "--config", cfg)
	require.NoError(t, err, out)
	assert.Contains(t, out, "BUILD")
	assert.Contains(t, out, "degenerate")

	features := filepath.Join(dir, "out", "features.parquet")
	m, err := storage.LoadManifest(storage.ManifestPath(features))
	require.NoError(t, err)
	assert.Equal(t, "incremental", m.Mode)
	assert.Equal(t, 4, m.Records)
	assert.Equal(t, 2, m.Features)
	assert.FileExists(t, m.Files["labels"])

	got, err := storage.ReadFeatures(features, 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].Common().RecordID)
	assert.Equal(t, "4", got[1].Common().RecordID)

	// second run is served from the cache
	out, err = run(t, "build", "--config", cfg)
	require.NoError(t, err, out)
}

func TestBuildCacheFollowsInputEdits(t *testing.T) {
	dir, cfg := setup(t)
	features := filepath.Join(dir, "out", "features.parquet")

	out, err := run(t, "build", "--config", cfg)
	require.NoError(t, err, out)

	edited := strings.Replace(testRecords,
		`"equation_layer": [["a", "b", "+"]], "answer": 8, "num_list": [3, 5]}`,
		`"equation_layer": [["a", "b", "*"]], "answer": 15, "num_list": [3, 5]}`, 1)
	require.NotEqual(t, testRecords, edited)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "train.jsonl"), []byte(edited), 0644))

	out, err = run(t, "build", "--config", cfg)
	require.NoError(t, err, out)

	got, err := storage.ReadFeatures(features, 1)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	first := got[0]
	assert.Equal(t, "1", first.Common().RecordID)
	assert.Equal(t, 15.0, first.Common().Answer)
	require.Len(t, first.Labels(), 1)
	assert.Equal(t, equation.OpMul, first.Labels()[0].Op)
}

func TestInspectCommand(t *testing.T) {
	_, cfg := setup(t)

	out, err := run(t, "inspect", "4", "--config", cfg)
	require.NoError(t, err, out)
	assert.Contains(t, out, "RECORD 4")
	assert.Contains(t, out, "m_1")
	assert.Contains(t, out, "labels evaluate to 12")

	out, err = run(t, "inspect", "3", "--config", cfg)
	require.NoError(t, err, out)
	assert.Contains(t, out, "discarded (illegal)")

	_, err = run(t, "inspect", "42", "--config", cfg)
	assert.Error(t, err)
}

func TestCollateCommand(t *testing.T) {
	dir, cfg := setup(t)
	_, err := run(t, "build", "--config", cfg)
	require.NoError(t, err)

	out, err := run(t, "collate", "--config", cfg, "--from", filepath.Join(dir, "out", "features.parquet"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "BATCHES (1 of size 2)")
	assert.True(t, strings.Contains(out, "(2, "), out)
}

func TestInvalidConfig(t *testing.T) {
	_, cfg := setup(t)
	_, err := run(t, "build", "--config", cfg, "--mode", "tree")
	assert.Error(t, err)
}
