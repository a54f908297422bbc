// Package middleware provides the HTTP middleware of the search service:
// request ids, Prometheus metrics, rate limiting, CORS and timeouts.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/metrics"
)

// Metrics records request counts, latency and in-flight requests per route.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			duration := time.Since(start).Seconds()
			path := normalizePath(r.URL.Path)

			m.HTTPRequestsTotal.WithLabelValues(
				r.Method,
				path,
				strconv.Itoa(sw.status),
			).Inc()

			m.HTTPRequestDuration.WithLabelValues(
				r.Method,
				path,
			).Observe(duration)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.wroteHeader {
		sw.wroteHeader = true
	}
	return sw.ResponseWriter.Write(b)
}

// routes are the path labels recorded as themselves.
var routes = map[string]bool{
	"/api/v1/search":           true,
	"/api/v1/database":         true,
	"/api/v1/admin/reload":     true,
	"/api/v1/cache/stats":      true,
	"/api/v1/cache/invalidate": true,
	"/api/v1/analytics/stats":  true,
	"/health/live":             true,
	"/health/ready":            true,
}

// normalizePath keeps the path label bounded: document ids collapse to
// {id} and unknown paths become "other".
func normalizePath(path string) string {
	const docs = "/api/v1/documents/"
	switch {
	case routes[path]:
		return path
	case strings.HasPrefix(path, docs) && len(path) > len(docs) && !strings.Contains(path[len(docs):], "/"):
		return docs + "{id}"
	default:
		return "other"
	}
}
