package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/docstore"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/movie"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/testutil"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/errors"
)

type countingStore struct {
	docstore.Store
	mu       sync.Mutex
	searches int
	err      error
}

func (s *countingStore) Search(ctx context.Context, q docstore.Query) (*docstore.Result, error) {
	s.mu.Lock()
	s.searches++
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Store.Search(ctx, q)
}

type recordingTracker struct {
	mu     sync.Mutex
	events []analytics.Event
}

func (r *recordingTracker) Track(e analytics.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

var limits = validator.SearchLimits{DefaultSize: 10, MaxSize: 100}

func newSearcher(t *testing.T, n int) (*Searcher, *countingStore, *testutil.KV, *recordingTracker) {
	t.Helper()
	b := docstore.NewBleve("")
	ctx := context.Background()
	require.NoError(t, b.EnsureIndex(ctx))
	t.Cleanup(func() { b.Close() })
	for i := 1; i <= n; i++ {
		require.NoError(t, b.Upsert(ctx, movie.Record{
			Title:      fmt.Sprintf("Batman %02d", i),
			Year:       2000 + i%3,
			ExternalID: fmt.Sprintf("tt%07d", i),
		}))
	}
	store := &countingStore{Store: b}
	kv := testutil.NewKV()
	tracker := &recordingTracker{}
	return New(store, cache.New(kv, time.Minute, nil), limits, tracker, nil), store, kv, tracker
}

func TestSearchSecondPage(t *testing.T) {
	s, _, _, _ := newSearcher(t, 25)

	resp, err := s.Search(context.Background(), movie.SearchParams{Title: "batman", Page: 2, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 25, resp.TotalResults)
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, 10, resp.Size)
	require.Len(t, resp.Movies, 10)
	assert.Equal(t, "tt0000011", resp.Movies[0].ExternalID)
	assert.Equal(t, "tt0000020", resp.Movies[9].ExternalID)
}

func TestSearchServedFromCache(t *testing.T) {
	s, store, kv, tracker := newSearcher(t, 5)
	ctx := context.Background()
	p := movie.SearchParams{Title: "Batman", Page: 1, Size: 10}

	first, err := s.Search(ctx, p)
	require.NoError(t, err)
	second, err := s.Search(ctx, movie.SearchParams{Title: "  BATMAN ", Page: 1, Size: 10})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.searches)
	assert.Len(t, kv.Keys("search:*"), 1)
	require.Len(t, tracker.events, 2)
	assert.False(t, tracker.events[0].CacheHit)
	assert.True(t, tracker.events[1].CacheHit)
	assert.Equal(t, "BATMAN", tracker.events[1].Title)
}

func TestSearchZeroResults(t *testing.T) {
	s, _, _, _ := newSearcher(t, 5)

	resp, err := s.Search(context.Background(), movie.SearchParams{Title: "superman", Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.TotalResults)
	assert.NotNil(t, resp.Movies)
	assert.Empty(t, resp.Movies)
}

func TestSearchPastLastPage(t *testing.T) {
	s, _, _, _ := newSearcher(t, 5)

	resp, err := s.Search(context.Background(), movie.SearchParams{Page: 3, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 5, resp.TotalResults)
	assert.Empty(t, resp.Movies)
}

func TestSearchYearOnly(t *testing.T) {
	s, _, _, _ := newSearcher(t, 9)

	resp, err := s.Search(context.Background(), movie.SearchParams{Year: 2001, Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.TotalResults)
	for _, m := range resp.Movies {
		assert.Equal(t, 2001, m.Year)
	}
}

func TestSearchInvalidParams(t *testing.T) {
	s, store, _, _ := newSearcher(t, 1)

	_, err := s.Search(context.Background(), movie.SearchParams{Title: "batman", Page: 0, Size: 10})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, 0, store.searches)
}

func TestSearchPageBeyondResultWindow(t *testing.T) {
	s, store, kv, _ := newSearcher(t, 5)
	ctx := context.Background()

	for _, page := range []int{1001, math.MaxInt64 / 5, math.MaxInt} {
		_, err := s.Search(ctx, movie.SearchParams{Title: "batman", Page: page, Size: 10})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, "page %d", page)
		assert.Equal(t, apperrors.CodeInvalidRequest, apperrors.Classify(err).Code)
	}
	assert.Equal(t, 0, store.searches)
	assert.Empty(t, kv.Keys("search:*"))

	resp, err := s.Search(ctx, movie.SearchParams{Title: "batman", Page: 1000, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 5, resp.TotalResults)
	assert.Empty(t, resp.Movies)
}

func TestSearchMissingIndex(t *testing.T) {
	s := New(docstore.NewBleve(""), cache.New(testutil.NewKV(), time.Minute, nil), limits, nil, nil)

	resp, err := s.Search(context.Background(), movie.SearchParams{Title: "batman", Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.TotalResults)
	assert.NotNil(t, resp.Movies)
}

func TestSearchStoreFailureNotCached(t *testing.T) {
	s, store, kv, tracker := newSearcher(t, 3)
	store.err = errors.New("cluster_block_exception")

	_, err := s.Search(context.Background(), movie.SearchParams{Title: "batman", Page: 1, Size: 10})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeServerError, apperrors.Classify(err).Code)
	assert.Empty(t, kv.Keys("search:*"))
	assert.Empty(t, tracker.events)
}

func TestSearchSeesInvalidation(t *testing.T) {
	s, store, kv, _ := newSearcher(t, 3)
	ctx := context.Background()
	p := movie.SearchParams{Title: "batman", Page: 1, Size: 10}

	_, err := s.Search(ctx, p)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, movie.Record{Title: "Batman 04", Year: 2004, ExternalID: "tt0000004"}))
	_, err = kv.FlushByPattern(ctx, "search:*")
	require.NoError(t, err)

	resp, err := s.Search(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 4, resp.TotalResults)
	assert.Equal(t, 2, store.searches)
}
