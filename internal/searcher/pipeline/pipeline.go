// Package pipeline answers catalog searches, cache first.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/docstore"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/movie"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/tracing"
)

// Cache is the read-through surface of the response cache.
type Cache interface {
	GetOrCompute(
		ctx context.Context,
		p movie.SearchParams,
		computeFn func(ctx context.Context) (*movie.SearchResponse, error),
	) (*movie.SearchResponse, bool, error)
}

type Searcher struct {
	store   docstore.Store
	cache   Cache
	limits  validator.SearchLimits
	tracker analytics.Tracker
	metrics *metrics.Metrics
}

func New(store docstore.Store, cache Cache, limits validator.SearchLimits, tracker analytics.Tracker, m *metrics.Metrics) *Searcher {
	if tracker == nil {
		tracker = analytics.Discard{}
	}
	return &Searcher{
		store:   store,
		cache:   cache,
		limits:  limits,
		tracker: tracker,
		metrics: m,
	}
}

// Search validates p and returns one page of matches together with the
// total match count. Results are served from the cache when present.
func (s *Searcher) Search(ctx context.Context, p movie.SearchParams) (*movie.SearchResponse, error) {
	p, err := validator.ValidateSearch(p, s.limits)
	if err != nil {
		return nil, err
	}
	ctx, span := tracing.StartChildSpan(ctx, "search")
	start := time.Now()

	resp, hit, err := s.cache.GetOrCompute(ctx, p, func(ctx context.Context) (*movie.SearchResponse, error) {
		return s.query(ctx, p)
	})
	span.SetAttr("cache_hit", hit)
	span.End(err)
	elapsed := time.Since(start)
	cacheStatus := "miss"
	if hit {
		cacheStatus = "hit"
	}
	if err != nil {
		s.metrics.SearchServed("error", cacheStatus, elapsed.Seconds())
		return nil, err
	}

	resultType := cacheStatus
	if resp.TotalResults == 0 {
		resultType = "zero_result"
	}
	s.metrics.SearchServed(resultType, cacheStatus, elapsed.Seconds())
	s.tracker.Track(analytics.Event{
		Type:         analytics.EventSearch,
		Title:        p.Title,
		Year:         p.Year,
		Page:         p.Page,
		Size:         p.Size,
		TotalResults: resp.TotalResults,
		Returned:     len(resp.Movies),
		CacheHit:     hit,
		LatencyMs:    elapsed.Milliseconds(),
		Timestamp:    time.Now().UTC(),
		RequestID:    logger.RequestID(ctx),
	})
	logger.FromContext(ctx).Debug("search served",
		"title", p.Title, "year", p.Year, "page", p.Page, "size", p.Size,
		"total_results", resp.TotalResults, "cache", cacheStatus,
	)
	return resp, nil
}

func (s *Searcher) query(ctx context.Context, p movie.SearchParams) (*movie.SearchResponse, error) {
	resp := &movie.SearchResponse{
		Movies: []movie.Record{},
		Page:   p.Page,
		Size:   p.Size,
	}
	res, err := s.store.Search(ctx, docstore.Query{
		Title:  p.Title,
		Year:   p.Year,
		Offset: p.Offset(),
		Limit:  p.Size,
	})
	if errors.Is(err, docstore.ErrIndexNotFound) {
		return resp, nil
	}
	if err != nil {
		return nil, fmt.Errorf("searching catalog: %w", err)
	}
	resp.Movies = res.Hits
	resp.TotalResults = res.Total
	return resp, nil
}
