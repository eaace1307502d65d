// Package ingestion defines the result type and Kafka event schema of the
// catalog ingestion pipeline.
package ingestion

import "time"

// StatusIndexed is the only status reported by a successful run.
const StatusIndexed = "indexed"

// IngestResult is returned to the caller after every page has been indexed.
type IngestResult struct {
	Status       string `json:"status"`
	TotalIndexed int    `json:"total_indexed"`
}

// IngestCompleteEvent is published once a run has written all its records
// and invalidated the search cache.
type IngestCompleteEvent struct {
	RunID        string    `json:"run_id"`
	TitleFilter  string    `json:"title_filter"`
	StartPage    int       `json:"start_page"`
	PagesFetched int       `json:"pages_fetched"`
	TotalIndexed int       `json:"total_indexed"`
	CompletedAt  time.Time `json:"completed_at"`
}

// CacheInvalidateEvent asks every gateway to drop its search cache
// namespace. Out-of-band writers publish it after touching the index.
type CacheInvalidateEvent struct {
	Reason   string    `json:"reason"`
	IssuedAt time.Time `json:"issued_at"`
	IssuedBy string    `json:"issued_by"`
}
