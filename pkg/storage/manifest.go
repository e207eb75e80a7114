package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Manifest describes one build run and the files it produced.
type Manifest struct {
	RunID       string `json:"run_id"`
	CreatedAt   int64  `json:"created_at"`
	Mode        string `json:"mode"`
	Format      string `json:"format"`
	Source      string `json:"source"`
	Tokenizer   string `json:"tokenizer"`
	Fingerprint string `json:"fingerprint"`

	Constants []string `json:"constants,omitempty"`
	Records   int      `json:"records"`
	Features  int      `json:"features"`

	// Files maps an artifact kind ("features", "labels") to its path.
	Files map[string]string `json:"files"`
	Stats json.RawMessage   `json:"stats,omitempty"`
}

// NewManifest starts a manifest with a fresh run id.
func NewManifest() *Manifest {
	return &Manifest{
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().Unix(),
		Files:     map[string]string{},
	}
}

// ManifestPath returns the manifest location stored next to an output file.
func ManifestPath(outputFile string) string {
	return outputFile + ".manifest.json"
}

// Save writes the manifest atomically.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := EnsureDir(path); err != nil {
		return err
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename manifest: %w", err)
	}
	return nil
}

// LoadManifest reads a manifest written by Save.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.Files == nil {
		m.Files = map[string]string{}
	}
	return &m, nil
}

// EnsureDir creates the parent directory of path.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}
