package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/metrics"
)

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	err     error
}

func (f *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, append([]kafka.Event(nil), events...))
	return nil
}

func (f *fakePublisher) events() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func search(parsed string, hits int) SearchEvent {
	return SearchEvent{Type: EventSearch, Parsed: parsed, MatchesEstimated: hits, Returned: hits, Terms: []string{parsed}}
}

func TestCollectorBatchesBySize(t *testing.T) {
	pub := &fakePublisher{}
	agg := NewAggregator()
	c := NewCollector(pub, agg, nil, CollectorConfig{BatchSize: 2, FlushInterval: time.Hour})
	c.Start(context.Background())

	for _, q := range []string{"a", "b", "c"} {
		c.Track(search(q, 1))
	}
	assert.Eventually(t, func() bool { return pub.events() == 2 }, time.Second, time.Millisecond)

	c.Close()
	assert.Equal(t, 3, pub.events())
	assert.Equal(t, "a", pub.batches[0][0].Key)
	assert.Equal(t, int64(3), agg.Stats().TotalSearches)

	c.Track(search("late", 1))
	assert.Equal(t, int64(3), agg.Stats().TotalSearches)
}

func TestCollectorFlushesOnInterval(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, nil, nil, CollectorConfig{BatchSize: 100, FlushInterval: 5 * time.Millisecond})
	c.Start(context.Background())
	defer c.Close()

	c.Track(search("a", 1))
	assert.Eventually(t, func() bool { return pub.events() == 1 }, time.Second, time.Millisecond)
}

func TestCollectorDrainsOnCancel(t *testing.T) {
	pub := &fakePublisher{}
	reg := prometheus.NewRegistry()
	c := NewCollector(pub, nil, metrics.NewWithRegistry(reg), CollectorConfig{BatchSize: 100, FlushInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	c.Track(search("a", 1))
	c.Track(ReloadEvent{Type: EventReload, Path: "/data/db.rqdb"})
	cancel()
	<-c.done
	assert.Equal(t, 2, pub.events())
}

func TestCollectorWithoutPublisher(t *testing.T) {
	agg := NewAggregator()
	c := NewCollector(nil, agg, nil, CollectorConfig{})
	c.Start(context.Background())
	c.Track(search("a", 0))
	c.Close()
	assert.Equal(t, int64(1), agg.Stats().ZeroResultCount)
}

func TestCollectorPublishFailureIsCounted(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	reg := prometheus.NewRegistry()
	c := NewCollector(pub, nil, metrics.NewWithRegistry(reg), CollectorConfig{BatchSize: 1, FlushInterval: time.Hour})
	c.Start(context.Background())
	c.Track(search("a", 1))
	c.Close()

	families, err := reg.Gather()
	require.NoError(t, err)
	failed := 0.0
	for _, f := range families {
		if f.GetName() != "analytics_events_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			if m.GetLabel()[0].GetValue() == "failed" {
				failed = m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, failed)
}

func TestTrackDropsWhenFull(t *testing.T) {
	agg := NewAggregator()
	c := NewCollector(nil, agg, nil, CollectorConfig{BufferSize: 1})
	c.Track(search("a", 1))
	c.Track(search("b", 1))
	c.Start(context.Background())
	c.Close()
	assert.Equal(t, int64(1), agg.Stats().TotalSearches)
}

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	start := agg.startTime
	agg.now = func() time.Time { return start.Add(2 * time.Minute) }

	for i, lat := range []float64{1, 2, 3, 4} {
		ev := search("africa", 2)
		ev.LatencyMs = lat
		ev.CacheHit = i%2 == 0
		agg.Record(ev)
	}
	zero := search("europe", 0)
	zero.Pruned = true
	agg.Record(&zero)
	agg.Record(SearchEvent{Parsed: "bad", ErrorKind: "syntax"})
	agg.Record(ReloadEvent{Path: "/data/db2.rqdb"})
	agg.Record("ignored")

	stats := agg.Stats()
	assert.Equal(t, int64(6), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.FailedSearches)
	assert.Equal(t, int64(2), stats.CacheHits)
	assert.Equal(t, int64(3), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.Equal(t, int64(1), stats.PrunedCount)
	assert.Equal(t, int64(1), stats.Reloads)
	assert.Equal(t, "/data/db2.rqdb", stats.Database)
	assert.Equal(t, map[string]int64{"syntax": 1}, stats.Errors)
	assert.Equal(t, []QueryCount{{"africa", 4}, {"europe", 1}}, stats.TopQueries)
	assert.Equal(t, []QueryCount{{"europe", 1}}, stats.ZeroResultQueries)
	assert.InDelta(t, 2.0, stats.AvgLatencyMs, 1e-9)
	assert.Equal(t, 2.0, stats.P50LatencyMs)
	assert.Equal(t, 4.0, stats.P99LatencyMs)
	assert.InDelta(t, 3.0, stats.QueriesPerMinute, 1e-9)
}

func TestAggregatorLatencyWindow(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < latencyWindow+5; i++ {
		ev := search("q", 1)
		ev.LatencyMs = float64(i)
		agg.Record(ev)
	}
	assert.Len(t, agg.latencies, latencyWindow)
	assert.Equal(t, float64(latencyWindow+4), agg.latencies[4])
}

func TestStatsHandler(t *testing.T) {
	agg := NewAggregator()
	agg.Record(search("africa", 2))
	h := NewHandler(agg)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalSearches)

	rec = httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodPost, "/api/v1/analytics/stats", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
