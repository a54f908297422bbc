// Package registry holds the database the service is currently searching
// and swaps it when a newer database file is published.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/search"
)

// ErrClosed is returned once the registry has been closed.
var ErrClosed = errors.New("registry closed")

// Opener opens the database at a path.
type Opener func(path string) (*search.Database, error)

// Registry is safe for concurrent use. Searches hold a read lock for their
// whole evaluation, so a swapped-out database is closed only after the
// last search using it has finished.
type Registry struct {
	mu       sync.RWMutex
	db       *search.Database
	path     string
	open     Opener
	onSwap   []func(ctx context.Context, db *search.Database)
	metrics  *metrics.Metrics
	logger   *slog.Logger
	closed   bool
	reloadMu sync.Mutex
}

// New opens path and returns a registry serving it. m may be nil.
func New(path string, open Opener, m *metrics.Metrics) (*Registry, error) {
	if open == nil {
		open = func(p string) (*search.Database, error) { return search.Open(p) }
	}
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	r := &Registry{
		db:      db,
		path:    path,
		open:    open,
		metrics: m,
		logger:  slog.Default().With("component", "database-registry"),
	}
	if m != nil {
		m.DatabaseDocuments.Set(float64(db.DocCount()))
	}
	return r, nil
}

// OnSwap registers fn to run after every successful swap.
func (r *Registry) OnSwap(fn func(ctx context.Context, db *search.Database)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSwap = append(r.onSwap, fn)
}

// With runs fn against the current database.
func (r *Registry) With(fn func(db *search.Database) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}
	return fn(r.db)
}

// Current returns the path of the file being served and its document
// count.
func (r *Registry) Current() (path string, docs uint32) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return "", 0
	}
	return r.db.Path(), r.db.DocCount()
}

// Reload opens path (the configured path when empty) and swaps it in if it
// resolves to a different file than the one being served. It reports
// whether a swap happened.
func (r *Registry) Reload(ctx context.Context, path string) (bool, error) {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()
	if path == "" {
		path = r.path
	}

	resolved, err := segment.Resolve(path)
	if err != nil {
		r.recordReload("failed")
		return false, err
	}
	current, _ := r.Current()
	if resolved == current {
		r.recordReload("unchanged")
		r.logger.Debug("database unchanged", "path", resolved)
		return false, nil
	}

	next, err := r.open(resolved)
	if err != nil {
		r.recordReload("failed")
		r.logger.Error("database reload failed", "path", resolved, "error", err)
		return false, fmt.Errorf("reloading database: %w", err)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		next.Close()
		return false, ErrClosed
	}
	prev := r.db
	r.db = next
	hooks := slices.Clone(r.onSwap)
	r.mu.Unlock()

	if err := prev.Close(); err != nil {
		r.logger.Warn("closing previous database", "path", prev.Path(), "error", err)
	}
	r.recordReload("swapped")
	if r.metrics != nil {
		r.metrics.DatabaseDocuments.Set(float64(next.DocCount()))
	}
	r.logger.Info("database swapped",
		"previous", prev.Path(),
		"current", next.Path(),
		"documents", next.DocCount(),
	)
	for _, fn := range hooks {
		fn(ctx, next)
	}
	return true, nil
}

func (r *Registry) recordReload(status string) {
	if r.metrics != nil {
		r.metrics.DatabaseReloadsTotal.WithLabelValues(status).Inc()
	}
}

// Close closes the served database. Later searches fail with ErrClosed.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.db.Close()
}
