package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Writer persists the catalog as the new source of truth.
type Writer struct {
	filePath string
}

// NewWriter creates a writer for the given catalog file.
func NewWriter(filePath string) *Writer {
	return &Writer{filePath: filePath}
}

// Save encodes f (JSON for *.json files, YAML otherwise) and atomically
// replaces the catalog file. A failed save leaves the previous file intact.
func (w *Writer) Save(f File) (string, error) {
	data, err := encode(w.filePath, f)
	if err != nil {
		return "", fmt.Errorf("failed to encode catalog: %w", err)
	}

	dir := filepath.Dir(w.filePath)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(w.filePath)+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp catalog: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName) // no-op after a successful rename
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write temp catalog: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to sync temp catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp catalog: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return "", fmt.Errorf("failed to chmod temp catalog: %w", err)
	}
	if err := os.Rename(tmpName, w.filePath); err != nil {
		return "", fmt.Errorf("failed to replace catalog file: %w", err)
	}

	return Fingerprint(data), nil
}

func encode(path string, f File) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return json.MarshalIndent(f, "", "    ")
	}
	return yaml.Marshal(f)
}
