// Package storage defines the backend-agnostic contract for persisting
// cleaned, typed tables and for describing what a database already holds.
//
// Backends register themselves from init() in their own packages; callers
// select one by kind string. The interface is intentionally small: replace a
// table atomically, and answer the two catalog questions a query-generation
// consumer needs (which tables exist, what columns they have).
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrWriteFailed marks a table build that was aborted and rolled back. The
// previous version of the table, if one existed, is intact.
var ErrWriteFailed = errors.New("storage: write failed")

// Config is the minimal configuration needed to construct a repository.
type Config struct {
	// Kind selects a registered backend ("sqlite", "postgres", "mssql").
	Kind string
	// DSN is passed through to the backend; its format is backend-specific.
	DSN string
}

// Repository is one destination database.
//
// Implementations must guarantee that ReplaceTable is atomic per table:
// either the new table with all its rows is committed, or the database is
// left exactly as it was. That guarantee is what makes re-running ingestion
// safe after a failure or cancellation.
type Repository interface {
	// Close releases backend resources. Call exactly once.
	Close()

	// ReplaceTable drops any existing table of the spec's name, creates it
	// from the spec, and bulk-inserts rows in order, all in one transaction.
	// It returns the number of rows written. Failures wrap ErrWriteFailed.
	ReplaceTable(ctx context.Context, spec TableSpec, rows [][]any) (int64, error)

	// Tables lists user table names in the database.
	Tables(ctx context.Context) ([]string, error)

	// Describe returns the column schemas of one table in column order.
	Describe(ctx context.Context, table string) ([]ColumnSpec, error)
}

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind. Call from an init() function in
// the backend package. Registering a duplicate kind panics: backend selection
// must never be ambiguous.
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
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing Kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: unsupported kind=%q", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend kinds, for CLI help and validation.
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
