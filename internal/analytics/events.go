// Package analytics records what the search service does: every search and
// database reload becomes an event that is aggregated locally and, when
// Kafka is enabled, published in batches for downstream consumers.
package analytics

import "time"

type EventType string

const (
	EventSearch EventType = "search"
	EventReload EventType = "database_reload"
)

type SearchEvent struct {
	Type             EventType `json:"type"`
	Query            string    `json:"query"`
	Parsed           string    `json:"parsed"`
	Flags            string    `json:"flags"`
	Terms            []string  `json:"terms,omitempty"`
	Offset           int       `json:"offset"`
	MatchesEstimated int       `json:"matches_estimated"`
	Returned         int       `json:"returned"`
	Pruned           bool      `json:"pruned"`
	LatencyMs        float64   `json:"latency_ms"`
	CacheHit         bool      `json:"cache_hit"`
	// ErrorKind is empty for successful searches.
	ErrorKind string    `json:"error_kind,omitempty"`
	Database  string    `json:"database"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ReloadEvent struct {
	Type      EventType `json:"type"`
	Path      string    `json:"path"`
	Documents uint32    `json:"documents"`
	Timestamp time.Time `json:"timestamp"`
}
