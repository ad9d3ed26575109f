// Package history records the outcome of every downstream forwarding
// attempt. Entries are written to an append-only newline-delimited
// JSON file, the durable audit trail, and mirrored into a bounded
// per-key recent store for fast queries. Durable writes are best
// effort: a failed write is logged and counted, never surfaced to the
// forwarding caller.
package history

import (
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Entry is an immutable record of one forwarding attempt. It is
// created exactly once, after the attempt concludes, and never
// mutated.
type Entry struct {
	// ID is a unique identifier for the entry.
	ID string `json:"id"`

	// Timestamp is when the attempt concluded.
	Timestamp time.Time `json:"timestamp"`

	// Key is the route key the caller addressed.
	Key string `json:"key"`

	// Method is the inbound HTTP method.
	Method string `json:"method"`

	// TailPath is the inbound path beyond the route key, without a
	// leading slash.
	TailPath string `json:"tailPath,omitempty"`

	// RawQuery is the inbound query string exactly as sent, preserving
	// parameter order and duplicates across keys.
	RawQuery string `json:"rawQuery,omitempty"`

	// Query holds the inbound query parameters, decoded for
	// convenience. Cross-key ordering is not preserved here; RawQuery
	// is authoritative.
	Query url.Values `json:"query,omitempty"`

	// Status is the status code relayed to the caller.
	Status int `json:"status"`

	// DurationMs is the wall time of the attempt in milliseconds.
	DurationMs int64 `json:"durationMs"`

	// RequestBytes is the number of request body bytes sent downstream.
	RequestBytes int64 `json:"requestBytes"`

	// ResponseBytes is the number of response body bytes relayed back.
	ResponseBytes int64 `json:"responseBytes"`

	// ClientIP is the originating caller's IP.
	ClientIP string `json:"clientIP"`

	// Error holds the transport error detail when the attempt failed.
	Error string `json:"error,omitempty"`
}

// finalize fills generated fields that the forwarding engine leaves
// empty.
func (e *Entry) finalize() {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
}
