// Package docstore is the document store adapter holding the mirrored movie
// catalog. Two backends implement Store: Elasticsearch for deployments and an
// embedded bleve index for local runs and tests.
package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/movie"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/errors"
)

// MaxResultWindow is the deepest Offset+Limit a Search accepts, the
// Elasticsearch index.max_result_window default.
const MaxResultWindow = 10000

var (
	ErrNotFound      = errors.New("document not found")
	ErrIndexNotFound = errors.New("index not found")
	ErrResultWindow  = errors.New("result window exceeded")
)

// Query selects catalog records. Title is matched case-insensitively as a
// substring; Year 0 disables the year clause. With neither set every record
// matches.
type Query struct {
	Title  string
	Year   int
	Offset int
	Limit  int
}

// checkWindow rejects negative bounds and pages reaching past
// MaxResultWindow. The error also matches ErrInvalidInput.
func (q Query) checkWindow() error {
	if q.Offset < 0 || q.Limit < 0 || q.Offset > MaxResultWindow-q.Limit {
		return apperrors.Wrap(apperrors.ErrInvalidInput, ErrResultWindow, "offset %d limit %d", q.Offset, q.Limit)
	}
	return nil
}

// Result is one page of matches plus the total number of matches.
type Result struct {
	Hits  []movie.Record
	Total int
}

// Store is the set of document store operations the gateway relies on.
type Store interface {
	// EnsureIndex creates the index with its field mapping when absent.
	EnsureIndex(ctx context.Context) error
	// Upsert writes rec under rec.ExternalID, replacing any previous version.
	Upsert(ctx context.Context, rec movie.Record) error
	Get(ctx context.Context, externalID string) (movie.Record, error)
	Search(ctx context.Context, q Query) (*Result, error)
	// Refresh makes prior writes visible to Search.
	Refresh(ctx context.Context) error
	DeleteIndex(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Open builds the backend selected by cfg.Backend. It does not contact the
// backend; callers verify reachability with Ping.
func Open(cfg config.DocStoreConfig) (Store, error) {
	switch cfg.Backend {
	case "elasticsearch":
		return NewElastic(cfg.URL, cfg.IndexName)
	case "bleve":
		return NewBleve(cfg.BlevePath), nil
	default:
		return nil, fmt.Errorf("unknown docstore backend %q", cfg.Backend)
	}
}
