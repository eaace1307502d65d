// Package app assembles the gateway from configuration: the document store,
// Redis, the optional PostgreSQL run audit and Kafka topics, the ingestion
// and search pipelines, and the HTTP router.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/auth/token"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/docstore"
	gwhandler "github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/gateway/handler"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/gateway/idempotency"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/gateway/router"
	ingestpipeline "github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/ingestion/pipeline"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/ingestion/runs"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/searcher/cache"
	searchpipeline "github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/searcher/pipeline"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/source"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/resilience"
)

// KV is the Redis surface shared by the search cache and the idempotency
// guard. *pkgredis.Client satisfies it.
type KV interface {
	cache.Store
	idempotency.KV
	health.Pinger
	Close() error
}

// Options override pieces New would otherwise build from configuration.
type Options struct {
	// Registerer receives the gateway metrics. Nil uses a private registry.
	Registerer prometheus.Registerer
	Store      docstore.Store
	KV         KV
	Fetcher    source.Fetcher
}

// App owns every long-lived component of the gateway.
type App struct {
	cfg       *config.Config
	handler   http.Handler
	metrics   *metrics.Metrics
	store     docstore.Store
	kv        KV
	db        *postgres.Client
	producers []*kafka.Producer
	consumers []*kafka.Consumer
	collector *analytics.Collector
	logger    *slog.Logger
}

// OpenStore opens the configured document store, waits for it to answer
// and makes sure the index exists.
func OpenStore(ctx context.Context, cfg config.DocStoreConfig) (docstore.Store, error) {
	store, err := docstore.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := WaitForStore(ctx, store, cfg); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// WaitForStore pings store on a fixed backoff, then ensures the index.
func WaitForStore(ctx context.Context, store docstore.Store, cfg config.DocStoreConfig) error {
	attempts := cfg.StartupAttempts
	if attempts < 1 {
		attempts = 1
	}
	err := resilience.Retry(ctx, "docstore-ping", resilience.FixedRetry(attempts, cfg.StartupBackoff), store.Ping)
	if err != nil {
		return fmt.Errorf("docstore unreachable after %d attempts: %w", attempts, err)
	}
	if err := store.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("ensuring index %s: %w", cfg.IndexName, err)
	}
	return nil
}

// New builds the gateway. Failures of the document store are fatal; an
// unreachable Redis is only logged because the cache and guard fail per
// request.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{
		cfg:     cfg,
		metrics: metrics.New(opts.Registerer),
		logger:  slog.Default().With("component", "app"),
	}

	a.store = opts.Store
	if a.store == nil {
		store, err := OpenStore(ctx, cfg.DocStore)
		if err != nil {
			return nil, err
		}
		a.store = store
	} else if err := WaitForStore(ctx, a.store, cfg.DocStore); err != nil {
		return nil, err
	}
	a.logger.Info("document store ready", "backend", cfg.DocStore.Backend, "index", cfg.DocStore.IndexName)

	a.kv = opts.KV
	if a.kv == nil {
		a.kv = pkgredis.NewClient(cfg.Redis)
	}
	if err := a.kv.Ping(ctx); err != nil {
		a.logger.Warn("redis unreachable at startup", "addr", cfg.Redis.Addr, "error", err)
	}

	checker := health.NewChecker()
	checker.Register("redis", health.PingCheck(a.kv, true))
	checker.Register("docstore", health.PingCheck(a.store, true))

	var (
		recorder  runs.Recorder
		runLister gwhandler.RunLister
	)
	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		a.db = db
		runStore := runs.NewStore(db)
		if err := runStore.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, err
		}
		recorder, runLister = runStore, runStore
		checker.Register("postgres", health.PingCheck(db, false))
		a.logger.Info("ingestion run audit enabled", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}

	queryCache := cache.New(a.kv, cfg.Redis.CacheTTL, a.metrics)
	aggregator := analytics.NewAggregator()
	var (
		tracker analytics.Tracker = aggregator
		events  *publisher.Publisher
	)
	if cfg.Kafka.Enabled {
		ingestComplete := a.producer(cfg.Kafka.Topics.IngestComplete)
		cacheInvalidate := a.producer(cfg.Kafka.Topics.CacheInvalidate)
		events = publisher.New(ingestComplete, cacheInvalidate)

		a.collector = analytics.NewCollector(a.producer(cfg.Kafka.Topics.AnalyticsEvents), 10000)
		tracker = a.collector
		a.consumers = append(a.consumers,
			kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate, "cache", queryCache.HandleInvalidateMessage),
			kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, "analytics", aggregator.HandleMessage),
		)
		a.logger.Info("kafka enabled", "brokers", cfg.Kafka.Brokers)
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = source.NewClient(cfg.Source)
	}
	ingester := ingestpipeline.New(ingestpipeline.Deps{
		Store:   a.store,
		Source:  fetcher,
		Cache:   queryCache,
		Runs:    recorder,
		Events:  events,
		Tracker: tracker,
		Metrics: a.metrics,
	})
	limits := validator.SearchLimits{
		DefaultSize:     cfg.Search.DefaultSize,
		MaxSize:         cfg.Search.MaxSize,
		MaxResultWindow: cfg.Search.MaxResultWindow,
	}
	searcher := searchpipeline.New(a.store, queryCache, limits, tracker, a.metrics)
	tokens := token.NewService(cfg.Auth)

	a.handler = router.New(router.Deps{
		Handler: gwhandler.New(gwhandler.Deps{
			Ingester:    ingester,
			Searcher:    searcher,
			Tokens:      tokens,
			Runs:        runLister,
			Cache:       queryCache,
			DefaultSize: cfg.Search.DefaultSize,
		}),
		Analytics:     analytics.NewHandler(aggregator),
		Health:        checker,
		Guard:         idempotency.NewGuard(a.kv, cfg.Redis.IdempotencyTTL, a.metrics),
		Verifier:      tokens,
		Metrics:       a.metrics,
		TokenEndpoint: cfg.Auth.TokenEndpointEnabled(cfg.Environment),
	})
	return a, nil
}

func (a *App) producer(topic string) *kafka.Producer {
	p := kafka.NewProducer(a.cfg.Kafka, topic)
	a.producers = append(a.producers, p)
	return p
}

// Handler is the root HTTP handler of the gateway.
func (a *App) Handler() http.Handler {
	return a.handler
}

func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// Run drives the background workers until ctx is cancelled. Without Kafka
// it simply waits for ctx.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if a.collector != nil {
		g.Go(func() error {
			a.collector.Run(ctx)
			return nil
		})
	}
	for _, c := range a.consumers {
		g.Go(func() error {
			return c.Start(ctx)
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})
	return g.Wait()
}

// Close flushes analytics and releases every client. It is safe to call
// on a partially built App.
func (a *App) Close() error {
	if a.collector != nil {
		a.collector.Close()
	}
	var errs []error
	for _, p := range a.producers {
		errs = append(errs, p.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.kv != nil {
		errs = append(errs, a.kv.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
