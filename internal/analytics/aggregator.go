package analytics

import (
	"sort"
	"sync"
	"time"
)

// latencyWindow is how many recent latencies the percentiles cover.
const latencyWindow = 10000

type AggregatedStats struct {
	TotalSearches     int64            `json:"total_searches"`
	FailedSearches    int64            `json:"failed_searches"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	PrunedCount       int64            `json:"pruned_count"`
	Reloads           int64            `json:"reloads"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      float64          `json:"p50_latency_ms"`
	P95LatencyMs      float64          `json:"p95_latency_ms"`
	P99LatencyMs      float64          `json:"p99_latency_ms"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	TopTerms          []QueryCount     `json:"top_terms"`
	Errors            map[string]int64 `json:"errors,omitempty"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
	Database          string           `json:"database,omitempty"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps running totals over the events it is given. It is safe
// for concurrent use.
type Aggregator struct {
	mu sync.Mutex

	totalSearches int64
	failed        int64
	cacheHits     int64
	cacheMisses   int64
	zeroResults   int64
	pruned        int64
	reloads       int64
	database      string

	latencies   []float64
	next        int
	queryCounts map[string]int64
	zeroQueries map[string]int64
	termCounts  map[string]int64
	errors      map[string]int64
	startTime   time.Time
	now         func() time.Time
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:   make([]float64, 0, 1024),
		queryCounts: make(map[string]int64),
		zeroQueries: make(map[string]int64),
		termCounts:  make(map[string]int64),
		errors:      make(map[string]int64),
		startTime:   time.Now(),
		now:         time.Now,
	}
}

// Record folds one event into the totals. Unknown event types are ignored.
func (a *Aggregator) Record(ev any) {
	switch e := ev.(type) {
	case SearchEvent:
		a.recordSearch(e)
	case *SearchEvent:
		a.recordSearch(*e)
	case ReloadEvent:
		a.mu.Lock()
		a.reloads++
		a.database = e.Path
		a.mu.Unlock()
	}
}

func (a *Aggregator) recordSearch(e SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalSearches++
	if e.ErrorKind != "" {
		a.failed++
		a.errors[e.ErrorKind]++
		return
	}
	if e.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	if e.Pruned {
		a.pruned++
	}
	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, e.LatencyMs)
	} else {
		a.latencies[a.next] = e.LatencyMs
		a.next = (a.next + 1) % latencyWindow
	}
	a.queryCounts[e.Parsed]++
	if e.MatchesEstimated == 0 {
		a.zeroResults++
		a.zeroQueries[e.Parsed]++
	}
	for _, t := range e.Terms {
		a.termCounts[t]++
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := AggregatedStats{
		TotalSearches:   a.totalSearches,
		FailedSearches:  a.failed,
		CacheHits:       a.cacheHits,
		CacheMisses:     a.cacheMisses,
		ZeroResultCount: a.zeroResults,
		PrunedCount:     a.pruned,
		Reloads:         a.reloads,
		Database:        a.database,
	}
	if len(a.latencies) > 0 {
		sorted := append([]float64(nil), a.latencies...)
		sort.Float64s(sorted)
		var sum float64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = sum / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroQueries, 10)
	stats.TopTerms = topN(a.termCounts, 10)
	if len(a.errors) > 0 {
		stats.Errors = make(map[string]int64, len(a.errors))
		for k, v := range a.errors {
			stats.Errors[k] = v
		}
	}
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []float64, pct int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n largest counts, ties broken by name.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for q, c := range counts {
		result = append(result, QueryCount{Query: q, Count: c})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
