// Package cache is the search response cache. Entries live in Redis under
// the "search:" namespace and are dropped wholesale whenever the catalog
// changes.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/movie"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const (
	keyPrefix = "search:"
	// computeTimeout bounds a shared miss computation, which outlives the
	// request that started it.
	computeTimeout = 30 * time.Second
)

// Store is the key-value surface the cache needs. *pkgredis.Client
// satisfies it.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
	// generation counts invalidations. A computation that overlaps one is
	// returned but not stored. storeMu orders the check-and-store against
	// the increment.
	generation atomic.Uint64
	storeMu    sync.RWMutex
}

func New(store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Get returns the cached response for p. Any store or decoding failure is
// logged and reported as a miss.
func (c *QueryCache) Get(ctx context.Context, p movie.SearchParams) (*movie.SearchResponse, bool) {
	key := Key(p)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, pkgredis.ErrKeyNotFound) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var resp movie.SearchResponse
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	c.metrics.CacheHit()
	c.logger.Debug("cache hit", "key", key)
	return &resp, true
}

// Set stores resp under the key of p. Failures are logged, not returned.
func (c *QueryCache) Set(ctx context.Context, p movie.SearchParams, resp *movie.SearchResponse) {
	key := Key(p)
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, string(data), c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute serves p from the cache or runs computeFn once for all
// concurrent callers asking for the same key. The bool reports a cache hit.
//
// computeFn ignores the cancellation of the caller that started it and is
// bounded by computeTimeout; each caller still returns early on its own ctx.
// A result computed while InvalidateAll ran is returned but not stored. That
// holds within one process only: a miss on another gateway can still store
// a result predating an invalidation here, until the TTL expires.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	p movie.SearchParams,
	computeFn func(ctx context.Context) (*movie.SearchResponse, error),
) (*movie.SearchResponse, bool, error) {
	if resp, ok := c.Get(ctx, p); ok {
		return resp, true, nil
	}
	ch := c.group.DoChan(Key(p), func() (interface{}, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), computeTimeout)
		defer cancel()
		gen := c.generation.Load()
		resp, err := computeFn(cctx)
		if err != nil {
			return nil, err
		}
		c.storeMu.RLock()
		defer c.storeMu.RUnlock()
		if c.generation.Load() != gen {
			c.logger.Debug("cache invalidated during computation, not storing", "key", Key(p))
			return resp, nil
		}
		c.Set(cctx, p, resp)
		return resp, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*movie.SearchResponse), false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// InvalidateAll deletes every entry in the namespace and returns how many
// keys were removed.
func (c *QueryCache) InvalidateAll(ctx context.Context) (int64, error) {
	c.storeMu.Lock()
	c.generation.Add(1)
	c.storeMu.Unlock()
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		c.metrics.CacheInvalidated(false)
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.metrics.CacheInvalidated(true)
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// HandleInvalidateMessage is the Kafka handler for cache invalidation
// events published by out-of-band index writers.
func (c *QueryCache) HandleInvalidateMessage(ctx context.Context, key, value []byte) error {
	event, err := kafka.DecodeJSON[ingestion.CacheInvalidateEvent](value)
	if err != nil {
		return err
	}
	c.logger.Info("invalidation requested", "reason", event.Reason, "issued_by", event.IssuedBy)
	_, err = c.InvalidateAll(ctx)
	return err
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	c.metrics.CacheMiss()
}

// Key returns the cache key for p. Parameters are normalised first so that
// equivalent requests share an entry.
func Key(p movie.SearchParams) string {
	hash := sha256.Sum256([]byte(normalize(p)))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

func normalize(p movie.SearchParams) string {
	return fmt.Sprintf("title=%s|year=%d|page=%d|size=%d",
		strings.ToLower(strings.TrimSpace(p.Title)), p.Year, p.Page, p.Size)
}
