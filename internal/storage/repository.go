// Package storage defines the warehouse sink interface and the backend
// registry. Backends register themselves from init() so the pipeline binary
// selects one purely by config.
package storage

import (
	"context"
	"fmt"
	"sync"

	"salesmart/internal/table"
	"salesmart/internal/warehouse"
)

// Config is the minimal configuration needed to construct a Repository.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is
//     backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// Repository is the sink consumed by the pipeline.
//
// IMPORTANT: ReplaceTable is the sole mutation point of a run and is not
// reentrant. Callers must not run two pipelines against the same sink
// concurrently; the replace itself must be atomic with respect to readers
// (no partially written table ever visible).
type Repository interface {
	// ReplaceTable creates the table if absent, or atomically replaces its
	// contents, then applies the declared primary key. nil cells are stored
	// as SQL NULL. Returns the number of rows written.
	ReplaceTable(ctx context.Context, spec warehouse.TableSpec, data *table.Table) (int64, error)

	// Close releases backend resources. Call once at process shutdown.
	Close()
}

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// Call from an init() function in a backend package. Registering the same
// kind twice panics: failing fast beats ambiguous backend selection.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
//
// Errors:
//   - If cfg.Kind is empty or not registered.
//   - Whatever error the registered factory returns (an unreachable sink
//     surfaces here, before any table is touched).
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing Kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: unsupported kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
