package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Load when nothing has been saved yet.
var ErrNotFound = errors.New("storage: snapshot not found")

// Config configures the cache store.
//
// Driver values:
//   - "file" (default): JSON file at Path
//   - "sqlite": SQLite database at Path
//   - "none": disabled, Load always misses and Save is a no-op
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Snapshot is one saved cache artifact.
type Snapshot struct {
	Data    []byte
	SavedAt time.Time
}

// Store is the cache persistence API used by the command loader.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, data []byte) error
	Delete(ctx context.Context) error
	Close() error
}
