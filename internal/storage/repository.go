// Package storage defines the relational repository used to read source
// tables and to publish the star schema, plus a registry of backends.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"hretl/internal/table"
)

// DefaultBatchSize is the insert batch size when Config.BatchSize is unset.
const DefaultBatchSize = 500

// Config is the minimal configuration needed to open a Repository.
//
// Kind must match a registered backend. DSN is passed through to the
// backend; validation is backend-specific.
type Config struct {
	Kind      string
	DSN       string
	BatchSize int
}

// Batch returns the configured batch size or DefaultBatchSize.
func (c Config) Batch() int {
	if c.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return c.BatchSize
}

// Repository is the backend-agnostic surface the pipeline needs. Each backend
// implements it in its own dialect.
type Repository interface {
	// Close releases backend resources. Call it once.
	Close()

	// ReadTable returns every row of the named table, columns in table order.
	ReadTable(ctx context.Context, name string) (*table.Table, error)

	// ReplaceTable drops t.Name if it exists, creates it from t's column types
	// and inserts every row. It returns the number of rows written.
	ReplaceTable(ctx context.Context, t *table.Table) (int64, error)

	// ApplyDDL executes ops in order. Backends with transactional DDL run
	// them in one transaction; the others stop at the first failure.
	ApplyDDL(ctx context.Context, ops []DDLOp) error
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. Backend packages call it
// from init().
//
// Panics if kind is empty, f is nil or kind is already registered.
func Register(kind string, f Factory) {
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

// New opens a Repository using the backend registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage kind=%s (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds lists the registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
