// Package store persists the tracker aggregate as a single document.
//
// Every mutation saves the entire aggregate; there are no partial writes
// and no versioning. Two backends share the same JSON codec: a plain
// file written atomically, and a single-row SQLite table.
package store

import (
	"context"
	"fmt"

	"cyclecal/internal/model"
)

// Store loads and saves the whole aggregate.
type Store interface {
	// Load returns the persisted aggregate, or a fresh defaulted one
	// when nothing was saved yet. Damaged fields are defaulted; only a
	// document that cannot be read as an object yields ErrCorruptState.
	Load(ctx context.Context) (model.Aggregate, error)

	// Save replaces the persisted aggregate.
	Save(ctx context.Context, a model.Aggregate) error

	// Quarantine moves the current persisted document out of the way so
	// the next Save starts clean. It returns where the old data went.
	Quarantine(ctx context.Context) (string, error)

	Close() error
}

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open returns the Store for the configured backend.
func Open(backend, path string) (Store, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(path)
	case BackendSQLite:
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
