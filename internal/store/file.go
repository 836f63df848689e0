package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ktmair/pm25-pipeline/internal/measurement"
)

// FileStore persists the measurement table as a single msgpack-encoded file.
// Save writes to a temp file in the same directory and renames it over the
// target, so readers only ever observe the previous or the new table, never
// a truncated one.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore rooted at path. The parent directory is
// created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(ctx context.Context) (measurement.Table, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read table %s: %w", s.path, err)
	}

	var table measurement.Table
	if err := msgpack.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("decode table %s: %w", s.path, err)
	}
	return table, nil
}

func (s *FileStore) Save(ctx context.Context, table measurement.Table) error {
	data, err := msgpack.Marshal(table)
	if err != nil {
		return fmt.Errorf("encode table: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp table file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp table file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp table file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace table %s: %w", s.path, err)
	}
	return nil
}
