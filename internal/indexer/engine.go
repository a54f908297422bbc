// Package indexer builds database files from documents. Documents are
// added to an in-memory index and every flush writes the whole index as a
// new database file, so the newest file in the data directory is always a
// complete database.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer/segment"
)

// ErrNothingIndexed is returned by Flush before any document was added.
var ErrNothingIndexed = errors.New("no documents indexed")

type Config struct {
	DataDir     string
	Compression segment.Compression
}

type Engine struct {
	memIndex *index.MemoryIndex
	writer   *segment.Writer
	cfg      Config
	logger   *slog.Logger

	mu       sync.Mutex
	dirty    bool
	lastPath string
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.DataDir == "" {
		return nil, errors.New("data directory is required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	return &Engine{
		memIndex: index.NewMemoryIndex(),
		writer:   segment.NewWriter(cfg.DataDir, cfg.Compression),
		cfg:      cfg,
		logger:   slog.Default().With("component", "indexer"),
	}, nil
}

// IndexDocument adds one document and returns its id.
func (e *Engine) IndexDocument(in index.Input) (uint32, error) {
	id, err := e.memIndex.Add(in)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	e.dirty = true
	e.mu.Unlock()
	e.logger.Debug("document indexed in memory",
		"doc_id", id,
		"mem_size", e.memIndex.Size(),
	)
	return id, nil
}

// Flush writes the index as a new database file and returns its path.
// With nothing added since the last flush it returns the previous path.
func (e *Engine) Flush() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.dirty {
		if e.lastPath == "" {
			return "", ErrNothingIndexed
		}
		return e.lastPath, nil
	}
	snap := e.memIndex.Snapshot()
	path, err := e.writer.Write(snap)
	if err != nil {
		return "", fmt.Errorf("writing database: %w", err)
	}
	e.dirty = false
	e.lastPath = path
	e.logger.Info("database written",
		"path", path,
		"terms", len(snap.Terms),
		"docs", len(snap.Documents),
		"last_doc_id", snap.LastDocID,
	)
	return path, nil
}

// StartFlushLoop flushes every interval while documents keep arriving and
// once more when ctx is cancelled. onFlush, if set, receives the path of
// every new file. The returned channel is closed when the loop has exited.
func (e *Engine) StartFlushLoop(ctx context.Context, interval time.Duration, onFlush func(path string)) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	flush := func(reason string) {
		e.mu.Lock()
		dirty := e.dirty
		e.mu.Unlock()
		if !dirty {
			return
		}
		path, err := e.Flush()
		if err != nil {
			e.logger.Error(reason+" flush failed", "error", err)
			return
		}
		if onFlush != nil {
			onFlush(path)
		}
	}
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("flush loop stopping, performing final flush")
				flush("final")
				return
			case <-ticker.C:
				flush("periodic")
			}
		}
	}()
	return done
}

// Prune removes all but the newest keep database files from the data
// directory and returns the removed paths. keep < 1 is treated as 1.
func (e *Engine) Prune(keep int) ([]string, error) {
	keep = max(keep, 1)
	files, err := filepath.Glob(filepath.Join(e.cfg.DataDir, "*"+segment.FileExt))
	if err != nil {
		return nil, fmt.Errorf("listing database files: %w", err)
	}
	if len(files) <= keep {
		return nil, nil
	}
	sort.Strings(files)
	stale := files[:len(files)-keep]
	removed := make([]string, 0, len(stale))
	for _, f := range stale {
		if err := os.Remove(f); err != nil {
			return removed, fmt.Errorf("removing %s: %w", f, err)
		}
		removed = append(removed, f)
		e.logger.Info("stale database removed", "path", f)
	}
	return removed, nil
}

func (e *Engine) DocCount() int {
	return e.memIndex.DocCount()
}

func (e *Engine) DataDir() string {
	return e.cfg.DataDir
}
