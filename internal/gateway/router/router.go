// Package router wires up all gateway routes and the outer middleware chain
// (RequestID → Metrics → CORS).
package router

import (
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/analytics"
	gwhandler "github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/gateway/handler"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/gateway/idempotency"
	gwmw "github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/gateway/middleware"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/gateway/pipeline"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/middleware"
)

type Deps struct {
	Handler       *gwhandler.Handler
	Analytics     *analytics.Handler
	Health        *health.Checker
	Guard         *idempotency.Guard
	Verifier      gwmw.Verifier
	Metrics       *metrics.Metrics
	TokenEndpoint bool
}

// New builds the full gateway HTTP handler.
//
// Route table:
//
//	POST /api/v1/movies/index       idempotency, auth → ingest
//	GET  /api/v1/movies/search      idempotency, auth → search
//	GET  /api/v1/movies/index/runs  auth → ingestion run audit
//	GET  /api/v1/cache/stats        auth → cache counters
//	POST /api/v1/cache/invalidate   auth → drop cached searches
//	GET  /api/v1/analytics          auth → aggregated analytics
//	POST /token                     credential exchange (when enabled)
//	GET  /health/live, /health/ready
func New(d Deps) http.Handler {
	n := pipeline.NewNormalizer(d.Metrics)
	auth := gwmw.Auth(d.Verifier)
	guarded := pipeline.New(n, d.Guard.Interceptor(), auth)
	authed := pipeline.New(n, auth)

	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/movies/index", guarded.Handle(d.Handler.Ingest))
	mux.Handle("GET /api/v1/movies/search", guarded.Handle(d.Handler.Search))
	mux.Handle("GET /api/v1/movies/index/runs", authed.Handle(d.Handler.Runs))

	mux.Handle("GET /api/v1/cache/stats", authed.Handle(d.Handler.CacheStats))
	mux.Handle("POST /api/v1/cache/invalidate", authed.Handle(d.Handler.CacheInvalidate))
	if d.Analytics != nil {
		mux.Handle("GET /api/v1/analytics", authed.Handle(d.Analytics.Stats))
	}

	if d.TokenEndpoint {
		mux.Handle("POST /token", pipeline.New(n).Handle(d.Handler.Token))
	}

	mux.HandleFunc("GET /health/live", d.Health.LiveHandler())
	mux.HandleFunc("GET /health/ready", d.Health.ReadyHandler())

	return pkgmw.Chain(mux,
		pkgmw.RequestID,
		pkgmw.Metrics(d.Metrics),
		gwmw.CORS(gwmw.DefaultCORSConfig()),
	)
}
