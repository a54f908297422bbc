// Package proto defines the messages the indexer and the search service
// exchange over Kafka. They are plain structs with JSON tags; the Kafka
// producer serialises them as JSON.
package proto

import "time"

// IndexComplete announces a newly written database file. The search
// service reloads its database when it receives one.
type IndexComplete struct {
	// Path is the database file, or a directory resolving to its newest
	// database file.
	Path      string    `json:"path"`
	Documents uint32    `json:"documents"`
	Terms     int       `json:"terms"`
	LastDocID uint32    `json:"last_doc_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Key is the partition key of the message. Announcements for the same
// path land on the same partition, so they are consumed in order.
func (m IndexComplete) Key() string {
	return m.Path
}

// ReloadRequest is the body of the admin reload endpoint. An empty path
// reloads the configured database path.
type ReloadRequest struct {
	Path string `json:"path"`
}

// ReloadResponse reports the outcome of a reload.
type ReloadResponse struct {
	Swapped   bool   `json:"swapped"`
	Path      string `json:"path"`
	Documents uint32 `json:"documents"`
}
