package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// JSONBackend stores the record as a single JSON document.
type JSONBackend struct {
	path string
}

var _ Backend = (*JSONBackend)(nil)

// NewJSONBackend creates a backend for the file at path. The file need not exist.
func NewJSONBackend(path string) *JSONBackend {
	return &JSONBackend{path: path}
}

func (j *JSONBackend) ReadAll() (map[string]Entry, error) {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]Entry), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	entries := make(map[string]Entry)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse cache file %s: %w", j.path, err)
	}
	return entries, nil
}

// WriteAll replaces the file atomically through a temp file in the same directory.
func (j *JSONBackend) WriteAll(entries map[string]Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".go2web-cache-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return os.Rename(tmp.Name(), j.path)
}

func (j *JSONBackend) Close() error { return nil }
