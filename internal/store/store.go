package store

import (
	"context"
	"errors"

	"github.com/ktmair/pm25-pipeline/internal/measurement"
)

var (
	// ErrNotFound is returned by Load when no table has been persisted yet.
	// It is the only condition under which callers may start from an empty
	// baseline; any other Load failure is fatal to a pipeline run.
	ErrNotFound = errors.New("no measurement table stored")
)

// Store is the contract for the persisted-table store. The table is read and
// written whole; Save must never expose a half-written table to concurrent
// readers.
type Store interface {
	Load(ctx context.Context) (measurement.Table, error)
	Save(ctx context.Context, table measurement.Table) error
}
