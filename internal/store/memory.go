package store

import (
	"context"
	"sync"

	"github.com/ktmair/pm25-pipeline/internal/measurement"
)

// MemoryStore is a concurrency-safe in-memory implementation of Store, used
// in tests and anywhere a run does not need to survive a restart. Load and
// Save copy the table so callers cannot mutate stored state through shared
// slices.
type MemoryStore struct {
	mu    sync.RWMutex
	table measurement.Table
	saved bool
}

// NewMemoryStore creates an empty MemoryStore. Load returns ErrNotFound
// until the first Save.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) (measurement.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.saved {
		return nil, ErrNotFound
	}
	out := make(measurement.Table, len(s.table))
	copy(out, s.table)
	return out, nil
}

func (s *MemoryStore) Save(ctx context.Context, table measurement.Table) error {
	in := make(measurement.Table, len(table))
	copy(in, table)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.table = in
	s.saved = true
	return nil
}
