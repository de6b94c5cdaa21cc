package store

import (
	"context"
	"fmt"
)

// Backend names a store implementation.
type Backend string

const (
	// BackendSQLite persists to a SQLite database file.
	BackendSQLite Backend = "sqlite"
	// BackendMemory keeps events in memory only.
	BackendMemory Backend = "memory"
)

// Open creates and initializes a store for the given backend.
func Open(ctx context.Context, backend Backend, path string) (Store, error) {
	switch backend {
	case "", BackendSQLite:
		s := NewSQLiteStore(path)
		if err := s.Init(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", backend)
	}
}
