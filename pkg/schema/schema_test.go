package schema

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lab/mwp-encoder/pkg/equation"
)

func decode(t *testing.T, src string) Record {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(src), &m))
	rec, err := DecodeRecord(m)
	require.NoError(t, err)
	return rec
}

func TestDecodeMath23kRecord(t *testing.T) {
	rec := decode(t, `{
		"id": 163,
		"text": "he has temp_a apples and buys temp_b more",
		"type_str": "legal",
		"equation_layer": [["a", "b", "+"]],
		"answer": "8",
		"num_list": [3, "5"]
	}`)

	assert.Equal(t, "163", rec.ID)
	assert.Equal(t, 8.0, rec.Answer)
	assert.Equal(t, []float64{3, 5}, rec.NumList)
	assert.Equal(t, equation.Layer{{Left: "a", Right: "b", Op: "+"}}, rec.Layer)
	assert.False(t, rec.IsParallel())
	assert.True(t, rec.IsLegal(FormatMath23k))
	assert.False(t, rec.IsLegal(FormatComplex))
	assert.Equal(t, rec.Text, rec.Source(FormatMath23k))
}

func TestDecodeParallelRecord(t *testing.T) {
	rec := decode(t, `{
		"id": "p1",
		"mapped_text": "@ a and @ b",
		"legal": true,
		"num_steps": 3,
		"equation_layer": [[["a", "b", "+"]], [["c", "d", "*"], ["m_0_0", "m_1_0", "-"]]],
		"answer": -9,
		"num_list": [1, 2, 3, 4]
	}`)

	require.True(t, rec.IsParallel())
	require.Len(t, rec.Chains, 2)
	assert.Len(t, rec.Chains[1], 2)
	assert.Equal(t, 3, rec.NumEquationSteps())
	assert.True(t, rec.IsLegal(FormatComplex))
	assert.Equal(t, "@ a and @ b", rec.Source(FormatComplex))
}

func TestDecodeRecordRejectsMalformedSteps(t *testing.T) {
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(`{"id": "x", "equation_layer": [["a", "+"]]}`), &m))
	_, err := DecodeRecord(m)
	assert.Error(t, err)

	empty := decode(t, `{"id": "e", "equation_layer": []}`)
	assert.Equal(t, 0, empty.NumEquationSteps())
}

func TestFormats(t *testing.T) {
	assert.Equal(t, FormatComplex, DetectFormat("/data/complex/mawps_test_nodup.json"))
	assert.Equal(t, FormatMath23k, DetectFormat("math23k_train.json"))
	assert.Equal(t, FormatComplex, DetectFormat("data/COMPLEX/train.json"))

	assert.True(t, IsTestSplit("data/test23k_processed_nodup.json"))
	assert.True(t, IsDeduplicated("data/test23k_processed_nodup.json"))
	assert.False(t, IsTestSplit("data/train23k_processed.json"))
	assert.False(t, IsDeduplicated("data/train23k_processed.json"))

	f, err := ParseFormat("Complex")
	require.NoError(t, err)
	assert.Equal(t, FormatComplex, f)
	_, err = ParseFormat("csv")
	assert.Error(t, err)
}

func TestLabelArrowIO(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.arrow")
	rows := []LabelRow{
		{RecordID: "1", Height: 0, Step: 0, Low: 0, High: 1, Op: 2, Final: false},
		{RecordID: "1", Height: 1, Step: 1, Low: 0, High: 3, Op: 3, Final: true},
	}

	require.NoError(t, WriteLabelsToArrowIPC(path, rows))
	got, err := ReadLabelsFromArrowIPC(path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	// the stream is finished with the end-of-stream marker
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasSuffix(raw, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0, 0, 0, 0}))

	assert.Error(t, WriteLabelsToArrowIPC(filepath.Join(t.TempDir(), "missing", "labels.arrow"), rows))
}
