package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/metrics"
)

// Publisher ships a batch of events downstream; *kafka.Producer is one.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

type CollectorConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

func (c CollectorConfig) withDefaults() CollectorConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = 10000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 5 * time.Second
	}
	return c
}

// Collector queues events without blocking the caller. A background loop
// feeds them to the local Aggregator and publishes them in batches, when
// the batch is full or the flush interval passes.
type Collector struct {
	cfg       CollectorConfig
	publisher Publisher
	agg       *Aggregator
	metrics   *metrics.Metrics
	eventCh   chan any
	logger    *slog.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewCollector creates a collector. publisher, agg and m may each be nil.
func NewCollector(publisher Publisher, agg *Aggregator, m *metrics.Metrics, cfg CollectorConfig) *Collector {
	cfg = cfg.withDefaults()
	return &Collector{
		cfg:       cfg,
		publisher: publisher,
		agg:       agg,
		metrics:   m,
		eventCh:   make(chan any, cfg.BufferSize),
		logger:    slog.Default().With("component", "analytics-collector"),
		done:      make(chan struct{}),
	}
}

// Start launches the background loop. It runs until ctx is cancelled or
// Close is called, then flushes what is left.
func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
	c.logger.Info("analytics collector started",
		"buffer_size", c.cfg.BufferSize,
		"batch_size", c.cfg.BatchSize,
		"flush_interval", c.cfg.FlushInterval,
		"publishing", c.publisher != nil,
	)
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.cfg.BatchSize)
	for {
		select {
		case ev, ok := <-c.eventCh:
			if !ok {
				c.finalFlush(batch)
				return
			}
			batch = c.add(ctx, batch, ev)
		case <-ticker.C:
			batch = c.flush(ctx, batch)
		case <-ctx.Done():
			c.drain(batch)
			return
		}
	}
}

func (c *Collector) add(ctx context.Context, batch []kafka.Event, ev any) []kafka.Event {
	if c.agg != nil {
		c.agg.Record(ev)
	}
	if c.publisher == nil {
		return batch
	}
	batch = append(batch, kafka.Event{Key: eventKey(ev), Value: ev})
	if len(batch) >= c.cfg.BatchSize {
		batch = c.flush(ctx, batch)
	}
	return batch
}

func (c *Collector) flush(ctx context.Context, batch []kafka.Event) []kafka.Event {
	if len(batch) == 0 || c.publisher == nil {
		return batch[:0]
	}
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("analytics batch publish failed", "events", len(batch), "error", err)
		c.count("failed", len(batch))
	} else {
		c.logger.Debug("analytics batch published", "events", len(batch))
		c.count("published", len(batch))
	}
	return batch[:0]
}

// drain consumes whatever is queued after cancellation and flushes it with
// a short deadline of its own.
func (c *Collector) drain(batch []kafka.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case ev, ok := <-c.eventCh:
			if !ok {
				c.flush(ctx, batch)
				return
			}
			batch = c.add(ctx, batch, ev)
		default:
			c.flush(ctx, batch)
			return
		}
	}
}

func (c *Collector) finalFlush(batch []kafka.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.flush(ctx, batch)
}

// Track queues ev, dropping it if the buffer is full or the collector is
// closed.
func (c *Collector) Track(ev any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.count("dropped", 1)
		return
	}
	select {
	case c.eventCh <- ev:
	default:
		c.count("dropped", 1)
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the loop to flush.
func (c *Collector) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.eventCh)
	}
	c.mu.Unlock()
	<-c.done
}

func (c *Collector) count(status string, n int) {
	if c.metrics != nil {
		c.metrics.AnalyticsEventsTotal.WithLabelValues(status).Add(float64(n))
	}
}

func eventKey(ev any) string {
	switch e := ev.(type) {
	case SearchEvent:
		return e.Parsed
	case ReloadEvent:
		return e.Path
	default:
		return "analytics"
	}
}
