// Package idempotency rejects repeated requests carrying the same
// Idempotency-Key for the same path within the key TTL.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/gateway/pipeline"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/metrics"
)

const (
	Header    = "Idempotency-Key"
	keyPrefix = "idempotency:"
	marker    = "processed"
)

// KV is the Redis surface the guard needs. *pkgredis.Client satisfies it.
type KV interface {
	Exists(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

type Guard struct {
	kv      KV
	ttl     time.Duration
	metrics *metrics.Metrics
}

func NewGuard(kv KV, ttl time.Duration, m *metrics.Metrics) *Guard {
	return &Guard{kv: kv, ttl: ttl, metrics: m}
}

// Check marks (token, path) as seen. It returns ErrDuplicateRequest when the
// pair was already marked and has not expired. An empty token is not
// guarded.
//
// Exists and Set are separate round trips, so two concurrent first requests
// with the same key can both pass.
func (g *Guard) Check(ctx context.Context, token, path string) error {
	log := logger.FromContext(ctx).With("component", "idempotency")
	if token == "" {
		log.Info("request without idempotency key", "path", path)
		return nil
	}
	key := Key(token, path)
	seen, err := g.kv.Exists(ctx, key)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, err, "idempotency lookup")
	}
	if seen {
		g.metrics.DuplicateRejected()
		log.Warn("duplicate request", "path", path, "key", key)
		return apperrors.ErrDuplicateRequest
	}
	if err := g.kv.Set(ctx, key, marker, g.ttl); err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, err, "idempotency record")
	}
	return nil
}

// Key derives the Redis key for a client token and request path.
func Key(token, path string) string {
	sum := sha256.Sum256([]byte(token + path))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Interceptor guards requests by their Idempotency-Key header and URL path.
func (g *Guard) Interceptor() pipeline.Interceptor {
	return pipeline.Interceptor{
		Name: "idempotency",
		Run: func(r *http.Request) (*http.Request, error) {
			if err := g.Check(r.Context(), r.Header.Get(Header), r.URL.Path); err != nil {
				return nil, err
			}
			return r, nil
		},
	}
}
