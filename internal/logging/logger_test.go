package logging

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, WARN, &LoggingConfig{Format: "plain"}, nil)

	l.Debug("hidden %d", 1)
	l.Info("hidden %d", 2)
	l.Warn("shown %d", 3)
	l.Error("shown %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown 3")
	assert.Contains(t, out, "[ERROR] shown 4")

	buf.Reset()
	l.SetLevel(DEBUG)
	l.Debug("now %s", "visible")
	assert.Equal(t, "[DEBUG] now visible\n", buf.String())
}

func TestLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, INFO, &LoggingConfig{Format: "json"}, nil)
	l.Warn("kept %d of %d", 2, 4)

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "kept 2 of 4", entry["msg"])
	assert.NotEmpty(t, entry["time"])

	assert.True(t, ValidFormat("JSON"))
	assert.True(t, ValidFormat("text"))
	assert.False(t, ValidFormat("xml"))
}

func TestNewLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build.log")
	l, err := NewLogger(&LoggingConfig{Level: "info", Output: path})
	require.NoError(t, err)
	l.Info("written")
	require.NoError(t, l.Close())
	assert.FileExists(t, path)

	assert.True(t, ValidLevel("DEBUG"))
	assert.False(t, ValidLevel("verbose"))
}

func TestDisabledProgress(t *testing.T) {
	p := NewProgress(nil, 10, "records")
	p.Increment()
	p.Wait()
}
