// Package handler serves the search API over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/postingsource"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/registry"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/response"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/stopper"
	apperrors "github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/search"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/tracing"
)

type Config struct {
	DefaultLimit   int
	MaxResults     int
	DefaultFlags   parser.Flags
	BoostTransform postingsource.Transform
	Stopwords      stopper.Filter
}

type Handler struct {
	registry  *registry.Registry
	cache     *cache.Cache
	collector *analytics.Collector
	metrics   *metrics.Metrics
	cfg       Config
	logger    *slog.Logger
}

// New creates a handler. queryCache, collector and m may be nil.
func New(reg *registry.Registry, queryCache *cache.Cache, collector *analytics.Collector, m *metrics.Metrics, cfg Config) *Handler {
	if cfg.BoostTransform == nil {
		cfg.BoostTransform = postingsource.Identity
	}
	return &Handler{
		registry:  reg,
		cache:     queryCache,
		collector: collector,
		metrics:   m,
		cfg:       cfg,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Document)
	mux.HandleFunc("GET /api/v1/database", h.Database)
	mux.HandleFunc("POST /api/v1/admin/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

type searchRequest struct {
	text      string
	offset    int
	limit     int
	flags     parser.Flags
	boostSlot int
	boost     postingsource.Transform
	withData  bool
}

func (h *Handler) parseRequest(r *http.Request) (searchRequest, error) {
	q := r.URL.Query()
	if !q.Has("q") {
		return searchRequest{}, invalid("query parameter 'q' is required")
	}
	req := searchRequest{
		text:      q.Get("q"),
		limit:     h.cfg.DefaultLimit,
		flags:     h.cfg.DefaultFlags,
		boostSlot: -1,
		boost:     h.cfg.BoostTransform,
		withData:  true,
	}
	if s := q.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return req, invalid("offset must be a non-negative integer")
		}
		req.offset = n
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return req, invalid("limit must be a non-negative integer")
		}
		req.limit = min(n, h.cfg.MaxResults)
	}
	if s := q.Get("flags"); s != "" {
		flags, err := parser.ParseFlags(strings.Split(s, ",")...)
		if err != nil {
			return req, &apperrors.UnsupportedFeatureError{Feature: err.Error()}
		}
		req.flags = flags
	}
	if s := q.Get("wildcard"); s != "" {
		on, err := strconv.ParseBool(s)
		if err != nil {
			return req, invalid("wildcard must be a boolean")
		}
		if on {
			req.flags |= parser.FlagWildcard
		} else {
			req.flags &^= parser.FlagWildcard
		}
	}
	if s := q.Get("boost_slot"); s != "" {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return req, invalid("boost_slot must be a value slot number")
		}
		req.boostSlot = int(n)
	}
	if s := q.Get("boost"); s != "" {
		t, err := postingsource.ParseTransform(s)
		if err != nil {
			return req, invalid(err.Error())
		}
		req.boost = t
	}
	if s := q.Get("data"); s != "" {
		on, err := strconv.ParseBool(s)
		if err != nil {
			return req, invalid("data must be a boolean")
		}
		req.withData = on
	}
	return req, nil
}

// Search serves GET /api/v1/search.
//
// Parameters: q (required, may be blank), offset, limit, flags (comma
// separated flag names), wildcard, boost_slot, boost (transform name) and
// data (include payloads, default true).
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	ctx, span := tracing.StartSpan(ctx, "search", logger.RequestID(ctx))
	defer func() {
		span.End()
		span.Log(log)
	}()

	req, err := h.parseRequest(r)
	if err != nil {
		h.fail(w, r, req, "", err, start)
		return
	}
	span.SetAttr("query", req.text)

	var (
		page     *response.Page
		cacheHit bool
		parsed   string
	)
	err = h.registry.With(func(db *search.Database) error {
		node, err := h.parse(ctx, db, req)
		if err != nil {
			return err
		}
		parsed = query.Description(node)
		compute := func(ctx context.Context) (*response.Page, error) {
			return h.evaluate(ctx, db, node, req)
		}
		if h.cache == nil {
			page, err = compute(ctx)
			return err
		}
		key := cache.Key{
			Query:     parsed,
			Flags:     uint32(req.flags),
			Offset:    req.offset,
			Limit:     req.limit,
			BoostSlot: req.boostSlot,
			Boost:     req.boost.Name(),
			WithData:  req.withData,
			Database:  db.Path(),
		}
		page, cacheHit, err = h.cache.GetOrCompute(ctx, key, compute)
		return err
	})
	if err != nil {
		h.fail(w, r, req, parsed, err, start)
		return
	}

	page.Query = req.text
	page.CacheHit = cacheHit
	page.TookMs = float64(time.Since(start).Microseconds()) / 1000
	h.record(ctx, req, page, start)
	log.Info("search completed",
		"query", req.text,
		"parsed", page.Parsed,
		"matches_estimated", page.MatchesEstimated,
		"returned", len(page.Hits),
		"cache_hit", cacheHit,
		"latency_ms", page.TookMs,
	)
	h.writeJSON(w, http.StatusOK, page)
}

func (h *Handler) parse(ctx context.Context, db *search.Database, req searchRequest) (query.Node, error) {
	_, span := tracing.StartChildSpan(ctx, "parse")
	defer span.End()
	node, err := db.ParseQuery(req.text, req.flags, h.cfg.Stopwords)
	if err != nil {
		return nil, err
	}
	if req.boostSlot >= 0 {
		src := postingsource.Wrap(uint32(req.boostSlot), postingsource.WithTransform(req.boost))
		node = query.NewAndMaybe(node, query.PostingSource{Source: src})
	}
	span.SetAttr("tree", query.Description(node))
	return node, nil
}

func (h *Handler) evaluate(ctx context.Context, db *search.Database, node query.Node, req searchRequest) (*response.Page, error) {
	ctx, span := tracing.StartChildSpan(ctx, "evaluate")
	defer span.End()
	ms, err := db.Evaluate(ctx, node, req.offset, req.limit)
	if err != nil {
		return nil, err
	}
	page, err := response.FromMSet(ms, query.Terms(node), req.withData)
	if err != nil {
		return nil, err
	}
	page.Parsed = query.Description(node)
	page.Limit = req.limit
	page.Database = db.Path()
	span.SetAttr("matches_estimated", page.MatchesEstimated)
	span.SetAttr("pruned", page.Pruned())
	return page, nil
}

func (h *Handler) record(ctx context.Context, req searchRequest, page *response.Page, start time.Time) {
	elapsed := time.Since(start)
	if h.metrics != nil {
		resultType := "hit"
		if page.MatchesEstimated == 0 {
			resultType = "zero"
		}
		status := "bypass"
		if h.cache != nil {
			status = "miss"
			if page.CacheHit {
				status = "hit"
			}
		}
		h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
		h.metrics.SearchLatency.WithLabelValues(status).Observe(elapsed.Seconds())
		h.metrics.SearchResultsCount.Observe(float64(len(page.Hits)))
		h.metrics.SearchMatchEstimate.Observe(float64(page.MatchesEstimated))
		if page.Pruned() {
			h.metrics.EarlyTerminations.Inc()
		}
	}
	if h.collector != nil {
		terms := make([]string, 0, len(page.TermFreqs))
		for t := range page.TermFreqs {
			terms = append(terms, t)
		}
		h.collector.Track(analytics.SearchEvent{
			Type:             analytics.EventSearch,
			Query:            req.text,
			Parsed:           page.Parsed,
			Flags:            req.flags.String(),
			Terms:            terms,
			Offset:           req.offset,
			MatchesEstimated: page.MatchesEstimated,
			Returned:         len(page.Hits),
			Pruned:           page.Pruned(),
			LatencyMs:        float64(elapsed.Microseconds()) / 1000,
			CacheHit:         page.CacheHit,
			Database:         page.Database,
			RequestID:        logger.RequestID(ctx),
			Timestamp:        time.Now().UTC(),
		})
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, req searchRequest, parsed string, err error, start time.Time) {
	kind := errorKind(err)
	status := apperrors.HTTPStatusCode(err)
	if errors.Is(err, registry.ErrClosed) {
		status = http.StatusServiceUnavailable
	}
	if h.metrics != nil {
		h.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		h.metrics.QueryErrorsTotal.WithLabelValues(kind).Inc()
	}
	if h.collector != nil {
		h.collector.Track(analytics.SearchEvent{
			Type:      analytics.EventSearch,
			Query:     req.text,
			Parsed:    parsed,
			Flags:     req.flags.String(),
			LatencyMs: float64(time.Since(start).Microseconds()) / 1000,
			ErrorKind: kind,
			RequestID: logger.RequestID(r.Context()),
			Timestamp: time.Now().UTC(),
		})
	}
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("search failed", "query", req.text, "error", err)
	} else {
		log.Debug("search rejected", "query", req.text, "kind", kind, "error", err)
	}

	body := map[string]any{"error": err.Error(), "kind": kind}
	var syntax *apperrors.QuerySyntaxError
	if errors.As(err, &syntax) {
		body["offset"] = syntax.Offset
	}
	if status >= http.StatusInternalServerError && status != http.StatusGatewayTimeout {
		body["error"] = "search failed"
	}
	h.writeJSON(w, status, body)
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrQuerySyntax):
		return "syntax"
	case errors.Is(err, apperrors.ErrExpansionLimit):
		return "expansion_limit"
	case errors.Is(err, apperrors.ErrUnsupportedFeature):
		return "unsupported"
	case errors.Is(err, apperrors.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, apperrors.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, apperrors.ErrDatabaseCorrupt):
		return "corrupt"
	case errors.Is(err, registry.ErrClosed):
		return "unavailable"
	default:
		return "internal"
	}
}

type documentResponse struct {
	ID     uint32             `json:"id"`
	Length uint32             `json:"length"`
	Values map[string]float64 `json:"values,omitempty"`
	Data   json.RawMessage    `json:"data,omitempty"`
}

// Document serves GET /api/v1/documents/{id}.
func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil || id == 0 {
		h.writeError(w, http.StatusBadRequest, "document id must be a positive integer")
		return
	}
	var out documentResponse
	err = h.registry.With(func(db *search.Database) error {
		doc, err := db.Document(uint32(id))
		if err != nil {
			return err
		}
		out = documentResponse{ID: doc.ID, Length: doc.Length}
		if len(doc.Values) > 0 {
			out.Values = make(map[string]float64, len(doc.Values))
			for slot, v := range doc.Values {
				out.Values[strconv.FormatUint(uint64(slot), 10)] = v
			}
		}
		if len(doc.Data) > 0 {
			if json.Valid(doc.Data) {
				out.Data = doc.Data
			} else {
				out.Data, _ = json.Marshal(string(doc.Data))
			}
		}
		return nil
	})
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status == http.StatusInternalServerError {
			logger.FromContext(r.Context()).Error("loading document failed", "id", id, "error", err)
		}
		h.writeError(w, status, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

// Database serves GET /api/v1/database.
func (h *Handler) Database(w http.ResponseWriter, r *http.Request) {
	var info map[string]any
	err := h.registry.With(func(db *search.Database) error {
		info = map[string]any{
			"path":           db.Path(),
			"documents":      db.DocCount(),
			"last_doc_id":    db.LastDocID(),
			"avg_doc_length": db.AvgDocLength(),
		}
		return nil
	})
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

// Reload serves POST /api/v1/admin/reload. The optional JSON body
// {"path": "..."} names the database to switch to.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	var body proto.ReloadRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&body); err != nil {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
			return
		}
	}
	swapped, err := h.registry.Reload(r.Context(), body.Path)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	path, docs := h.registry.Current()
	h.writeJSON(w, http.StatusOK, proto.ReloadResponse{Swapped: swapped, Path: path, Documents: docs})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	stats := h.cache.Stats()
	total := stats.Hits + stats.Misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"errors":   stats.Errors,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		"breaker":  stats.Breaker,
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusBadGateway, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func invalid(msg string) error {
	return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, msg)
}
