// Package testutil provides in-memory stand-ins for Redis and the upstream
// catalog API.
package testutil

import (
	"context"
	"errors"
	"path"
	"sync"
	"time"

	pkgredis "github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/redis"
)

// ErrKVDown is returned by every KV operation while the KV is marked down.
var ErrKVDown = errors.New("kv unavailable")

type entry struct {
	value     string
	expiresAt time.Time
}

// KV is an in-memory key-value store with TTLs and glob pattern deletes,
// mirroring the subset of Redis behaviour the gateway uses.
type KV struct {
	mu        sync.Mutex
	data      map[string]entry
	now       func() time.Time
	down      bool
	flushDown bool
}

func NewKV() *KV {
	return &KV{data: make(map[string]entry), now: time.Now}
}

// SetClock replaces the time source used for expiry.
func (k *KV) SetClock(now func() time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.now = now
}

// SetDown makes every operation fail with ErrKVDown.
func (k *KV) SetDown(down bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.down = down
}

// SetFlushDown makes only FlushByPattern fail.
func (k *KV) SetFlushDown(down bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.flushDown = down
}

func (k *KV) Exists(ctx context.Context, key string) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.down {
		return false, ErrKVDown
	}
	_, ok := k.live(key)
	return ok, nil
}

func (k *KV) Get(ctx context.Context, key string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.down {
		return "", ErrKVDown
	}
	e, ok := k.live(key)
	if !ok {
		return "", pkgredis.ErrKeyNotFound
	}
	return e.value, nil
}

func (k *KV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.down {
		return ErrKVDown
	}
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = k.now().Add(ttl)
	}
	k.data[key] = e
	return nil
}

func (k *KV) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.down || k.flushDown {
		return 0, ErrKVDown
	}
	var deleted int64
	for key := range k.data {
		if ok, _ := path.Match(pattern, key); ok {
			delete(k.data, key)
			deleted++
		}
	}
	return deleted, nil
}

// Keys returns the live keys matching pattern.
func (k *KV) Keys(pattern string) []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	var out []string
	for key := range k.data {
		if _, ok := k.live(key); !ok {
			continue
		}
		if ok, _ := path.Match(pattern, key); ok {
			out = append(out, key)
		}
	}
	return out
}

// TTL returns the remaining lifetime of key, or 0 if it has none.
func (k *KV) TTL(key string) time.Duration {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.live(key)
	if !ok || e.expiresAt.IsZero() {
		return 0
	}
	return e.expiresAt.Sub(k.now())
}

func (k *KV) Ping(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.down {
		return ErrKVDown
	}
	return nil
}

func (k *KV) Close() error {
	return nil
}

// live must be called with mu held.
func (k *KV) live(key string) (entry, bool) {
	e, ok := k.data[key]
	if !ok {
		return entry{}, false
	}
	if !e.expiresAt.IsZero() && !k.now().Before(e.expiresAt) {
		delete(k.data, key)
		return entry{}, false
	}
	return e, true
}
