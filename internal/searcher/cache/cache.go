// Package cache keeps rendered result pages in Redis. Concurrent misses for
// the same key are collapsed with singleflight, and a circuit breaker keeps
// a failing Redis from slowing every search down.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/response"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/resilience"
)

// storeTimeout bounds a single Get or Set.
const storeTimeout = 250 * time.Millisecond

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Key identifies one result page. Query is the canonical description of
// the parsed query, so equivalent spellings share an entry.
type Key struct {
	Query     string
	Flags     uint32
	Offset    int
	Limit     int
	BoostSlot int // negative when the search is not boosted
	Boost     string
	WithData  bool
	Database  string
}

func (k Key) String() string {
	return strings.Join([]string{
		k.Database,
		k.Query,
		strconv.FormatUint(uint64(k.Flags), 16),
		strconv.Itoa(k.Offset),
		strconv.Itoa(k.Limit),
		strconv.Itoa(k.BoostSlot),
		k.Boost,
		strconv.FormatBool(k.WithData),
	}, "\x1f")
}

type Stats struct {
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Errors  int64  `json:"errors"`
	Breaker string `json:"breaker"`
}

// Cache is safe for concurrent use.
type Cache struct {
	store   Store
	isMiss  func(error) bool
	ttl     time.Duration
	prefix  string
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger

	hits     atomic.Int64
	misses   atomic.Int64
	failures atomic.Int64
}

// New creates a cache over store. isMiss tells a missing key apart from a
// failure. m may be nil.
func New(store Store, isMiss func(error) bool, cfg config.CacheConfig, m *metrics.Metrics) *Cache {
	c := &Cache{
		store:   store,
		isMiss:  isMiss,
		ttl:     cfg.TTL,
		prefix:  cfg.Prefix,
		metrics: m,
		logger:  slog.Default().With("component", "result-cache"),
	}
	c.breaker = resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		// Client cancellations do not count against Redis.
		IsFailure: func(err error) bool {
			return !errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, _, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	if m != nil {
		m.CircuitBreakerState.WithLabelValues(c.breaker.Name()).Set(float64(resilience.StateClosed))
	}
	return c
}

// Get returns the cached page for key. Store failures count as misses.
func (c *Cache) Get(ctx context.Context, key Key) (*response.Page, bool) {
	redisKey := c.redisKey(key)
	var data []byte
	err := c.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, storeTimeout, "cache get", func(ctx context.Context) error {
			var err error
			data, err = c.store.Get(ctx, redisKey)
			if err != nil && c.isMiss(err) {
				data = nil
				return nil
			}
			return err
		})
	})
	if err != nil {
		c.failed("get", redisKey, err)
		c.miss()
		return nil, false
	}
	if data == nil {
		c.miss()
		return nil, false
	}
	var page response.Page
	if err := json.Unmarshal(data, &page); err != nil {
		c.logger.Error("cache unmarshal failed", "key", redisKey, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	page.CacheHit = true
	return &page, true
}

// Set stores page under key. Failures are logged, not returned.
func (c *Cache) Set(ctx context.Context, key Key, page *response.Page) {
	redisKey := c.redisKey(key)
	stored := *page
	stored.CacheHit = false
	data, err := json.Marshal(&stored)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", redisKey, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, storeTimeout, "cache set", func(ctx context.Context) error {
			return c.store.Set(ctx, redisKey, data, c.ttl)
		})
	})
	if err != nil {
		c.failed("set", redisKey, err)
	}
}

// GetOrCompute returns the cached page for key, or computes, stores and
// returns it. Concurrent callers with the same key share one computation.
// The bool reports a cache hit.
func (c *Cache) GetOrCompute(ctx context.Context, key Key, compute func(context.Context) (*response.Page, error)) (*response.Page, bool, error) {
	if page, ok := c.Get(ctx, key); ok {
		return page, true, nil
	}
	val, err, _ := c.group.Do(c.redisKey(key), func() (any, error) {
		page, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, page)
		return page, nil
	})
	if err != nil {
		return nil, false, err
	}
	page := *val.(*response.Page)
	return &page, false, nil
}

// Invalidate drops every cached page and returns the number removed.
func (c *Cache) Invalidate(ctx context.Context) (int64, error) {
	var deleted int64
	err := c.breaker.Execute(func() error {
		var err error
		deleted, err = c.store.FlushByPattern(ctx, c.prefix+"*")
		return err
	})
	if err != nil {
		c.failed("invalidate", c.prefix+"*", err)
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *Cache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Errors:  c.failures.Load(),
		Breaker: c.breaker.GetState().String(),
	}
}

func (c *Cache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *Cache) failed(op, key string, err error) {
	c.failures.Add(1)
	if c.metrics != nil {
		c.metrics.CacheErrorsTotal.Inc()
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Debug("cache bypassed", "op", op, "key", key)
		return
	}
	c.logger.Warn("cache operation failed", "op", op, "key", key, "error", err)
}

func (c *Cache) redisKey(key Key) string {
	sum := sha256.Sum256([]byte(key.String()))
	return fmt.Sprintf("%s%x", c.prefix, sum[:16])
}
