// Package analytics tracks search and ingestion activity. Events are
// buffered by a Collector, shipped over Kafka and folded into running
// statistics by an Aggregator; without Kafka the Aggregator records them
// directly.
package analytics

import "time"

type EventType string

const (
	EventSearch EventType = "search"
	EventIngest EventType = "ingest"
)

// Event is a single analytics record. Fields irrelevant to Type are zero.
type Event struct {
	Type         EventType `json:"type"`
	Title        string    `json:"title"`
	Year         int       `json:"year,omitempty"`
	Page         int       `json:"page,omitempty"`
	Size         int       `json:"size,omitempty"`
	TotalResults int       `json:"total_results,omitempty"`
	Returned     int       `json:"returned,omitempty"`
	CacheHit     bool      `json:"cache_hit,omitempty"`
	TotalIndexed int       `json:"total_indexed,omitempty"`
	PagesFetched int       `json:"pages_fetched,omitempty"`
	LatencyMs    int64     `json:"latency_ms"`
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id,omitempty"`
}

// Tracker accepts events without blocking the caller.
type Tracker interface {
	Track(event Event)
}

// Discard is a Tracker that drops everything.
type Discard struct{}

func (Discard) Track(Event) {}
