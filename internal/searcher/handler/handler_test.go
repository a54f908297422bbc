package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/registry"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/response"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/stopper"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/testutil"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/search"
)

var errMissing = errors.New("missing")

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errMissing
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStore) FlushByPattern(context.Context, string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.data))
	m.data = map[string][]byte{}
	return n, nil
}

type fixture struct {
	mux *http.ServeMux
	agg *analytics.Aggregator
	col *analytics.Collector
}

func corpus() []index.Input {
	return append(testutil.AfricaDocs(), index.Input{ID: 4, Text: "african routes", Data: []byte("plain text")})
}

func newFixture(t *testing.T, withCache bool) *fixture {
	t.Helper()
	dir := testutil.WriteDatabase(t, corpus())
	open := func(path string) (*search.Database, error) {
		return search.Open(path, search.WithMaxWildcardExpansion(5))
	}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	reg, err := registry.New(dir, open, m)
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	var c *cache.Cache
	if withCache {
		store := &memStore{data: map[string][]byte{}}
		c = cache.New(store, func(err error) bool { return errors.Is(err, errMissing) },
			config.CacheConfig{Enabled: true, TTL: time.Minute, Prefix: "rqe:mset:"}, m)
	}
	agg := analytics.NewAggregator()
	col := analytics.NewCollector(nil, agg, m, analytics.CollectorConfig{})
	col.Start(context.Background())

	h := New(reg, c, col, m, Config{
		DefaultLimit: 10,
		MaxResults:   100,
		DefaultFlags: parser.FlagDefault,
		Stopwords:    stopper.New("the", "me").Freeze(),
	})
	mux := http.NewServeMux()
	h.Register(mux)
	return &fixture{mux: mux, agg: agg, col: col}
}

func (f *fixture) do(t *testing.T, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) search(t *testing.T, params url.Values) (*response.Page, *httptest.ResponseRecorder) {
	t.Helper()
	rec := f.do(t, http.MethodGet, "/api/v1/search?"+params.Encode(), "")
	if rec.Code != http.StatusOK {
		return nil, rec
	}
	var page response.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	return &page, rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSearch(t *testing.T) {
	f := newFixture(t, false)

	page, rec := f.search(t, url.Values{"q": {"africa"}})
	require.NotNil(t, page, rec.Body.String())
	assert.Equal(t, []uint32{1, 2}, page.DocIDs())
	assert.Equal(t, "africa", page.Query)
	assert.Equal(t, 2, page.MatchesEstimated)
	assert.Equal(t, 2, page.TermFreqs["africa"])
	assert.JSONEq(t, `{"title":"Africa trade"}`, string(page.Hits[0].Data))
	assert.False(t, page.CacheHit)
}

func TestSearchBoost(t *testing.T) {
	f := newFixture(t, false)

	page, rec := f.search(t, url.Values{"q": {"africa"}, "boost_slot": {"1"}})
	require.NotNil(t, page, rec.Body.String())
	assert.Equal(t, []uint32{2, 1}, page.DocIDs())

	page, rec = f.search(t, url.Values{"q": {"africa"}, "boost_slot": {"1"}, "boost": {"zero"}})
	require.NotNil(t, page, rec.Body.String())
	assert.Equal(t, []uint32{1, 2}, page.DocIDs())
}

func TestSearchWildcard(t *testing.T) {
	f := newFixture(t, false)

	page, rec := f.search(t, url.Values{"q": {"afr*"}, "wildcard": {"true"}})
	require.NotNil(t, page, rec.Body.String())
	assert.ElementsMatch(t, []uint32{1, 2, 4}, page.DocIDs())
	for _, h := range page.Hits {
		if h.DocID == 4 {
			assert.JSONEq(t, `"plain text"`, string(h.Data))
		}
	}

	page, rec = f.search(t, url.Values{"q": {"afr*"}, "flags": {"default,wildcard"}, "data": {"false"}})
	require.NotNil(t, page, rec.Body.String())
	assert.Len(t, page.Hits, 3)
	assert.Nil(t, page.Hits[0].Data)
}

func TestSearchWindow(t *testing.T) {
	f := newFixture(t, false)

	page, rec := f.search(t, url.Values{"q": {"africa"}, "offset": {"1"}, "limit": {"1"}})
	require.NotNil(t, page, rec.Body.String())
	assert.Equal(t, []uint32{2}, page.DocIDs())
	assert.Equal(t, 1, page.Hits[0].Rank)

	page, rec = f.search(t, url.Values{"q": {"africa"}, "limit": {"0"}})
	require.NotNil(t, page, rec.Body.String())
	assert.Empty(t, page.Hits)
}

func TestSearchEmptyAndStopwordQueries(t *testing.T) {
	f := newFixture(t, false)

	page, rec := f.search(t, url.Values{"q": {"   "}})
	require.NotNil(t, page, rec.Body.String())
	assert.Empty(t, page.Hits)
	assert.Equal(t, "Query()", page.Parsed)

	page, rec = f.search(t, url.Values{"q": {"africa me"}})
	require.NotNil(t, page, rec.Body.String())
	assert.Equal(t, []uint32{1, 2}, page.DocIDs())
	assert.Equal(t, "Query(africa)", page.Parsed)
}

func TestSearchErrors(t *testing.T) {
	f := newFixture(t, false)

	tests := []struct {
		name   string
		params url.Values
		kind   string
	}{
		{"missing q", url.Values{}, "invalid_input"},
		{"bad limit", url.Values{"q": {"a"}, "limit": {"-1"}}, "invalid_input"},
		{"bad offset", url.Values{"q": {"a"}, "offset": {"x"}}, "invalid_input"},
		{"bad boost slot", url.Values{"q": {"a"}, "boost_slot": {"-2"}}, "invalid_input"},
		{"bad transform", url.Values{"q": {"a"}, "boost_slot": {"1"}, "boost": {"cube"}}, "invalid_input"},
		{"unknown flag", url.Values{"q": {"a"}, "flags": {"telepathy"}}, "unsupported"},
		{"unsupported flag", url.Values{"q": {"a"}, "flags": {"default,partial"}}, "unsupported"},
		{"syntax", url.Values{"q": {`africa "trade`}}, "syntax"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rec := f.search(t, tt.params)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.kind, decodeError(t, rec)["kind"])
		})
	}

	_, rec := f.search(t, url.Values{"q": {`africa "trade`}})
	assert.Equal(t, float64(7), decodeError(t, rec)["offset"])
}

func TestSearchExpansionLimit(t *testing.T) {
	dir := testutil.WriteDatabase(t, corpus())
	reg, err := registry.New(dir, func(path string) (*search.Database, error) {
		return search.Open(path, search.WithMaxWildcardExpansion(1))
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })
	mux := http.NewServeMux()
	New(reg, nil, nil, nil, Config{DefaultLimit: 10, MaxResults: 10, DefaultFlags: parser.FlagDefault}).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=afr*&wildcard=1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "expansion_limit", decodeError(t, rec)["kind"])
}

func TestSearchCache(t *testing.T) {
	f := newFixture(t, true)

	first, _ := f.search(t, url.Values{"q": {"africa"}})
	require.NotNil(t, first)
	assert.False(t, first.CacheHit)

	// Equivalent spelling, same parsed query.
	second, _ := f.search(t, url.Values{"q": {"Africa"}})
	require.NotNil(t, second)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.DocIDs(), second.DocIDs())
	assert.Equal(t, "Africa", second.Query)

	rec := f.do(t, http.MethodGet, "/api/v1/cache/stats", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	stats := decodeError(t, rec)
	assert.Equal(t, float64(1), stats["hits"])

	rec = f.do(t, http.MethodPost, "/api/v1/cache/invalidate", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	third, _ := f.search(t, url.Values{"q": {"africa"}})
	require.NotNil(t, third)
	assert.False(t, third.CacheHit)
}

func TestCacheDisabled(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(t, http.MethodGet, "/api/v1/cache/stats", "")
	assert.Equal(t, "disabled", decodeError(t, rec)["status"])
	rec = f.do(t, http.MethodPost, "/api/v1/cache/invalidate", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDocument(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/api/v1/documents/2", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var doc documentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, uint32(2), doc.ID)
	assert.Equal(t, uint32(3), doc.Length)
	assert.Equal(t, map[string]float64{"1": 5}, doc.Values)
	assert.JSONEq(t, `{"title":"Africa drop me"}`, string(doc.Data))

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/documents/99", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/documents/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/documents/0", "").Code)
}

func TestDatabaseAndReload(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/api/v1/database", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(4), decodeError(t, rec)["documents"])

	rec = f.do(t, http.MethodPost, "/api/v1/admin/reload", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, false, decodeError(t, rec)["swapped"])

	rec = f.do(t, http.MethodPost, "/api/v1/admin/reload", `{"path":"/nonexistent/db"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/admin/reload", `{"path":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchesAreRecorded(t *testing.T) {
	f := newFixture(t, false)
	f.search(t, url.Values{"q": {"africa"}})
	f.search(t, url.Values{"q": {"europe"}})
	f.search(t, url.Values{"q": {`"open`}})
	f.col.Close()

	stats := f.agg.Stats()
	assert.Equal(t, int64(3), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.FailedSearches)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.Equal(t, map[string]int64{"syntax": 1}, stats.Errors)
}
