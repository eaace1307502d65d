// Package publisher announces catalog changes on Kafka: completed ingestion
// runs, and cache invalidation requests from writers that bypass the
// gateway. A nil *Publisher publishes nothing.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/kafka"
)

// Producer is the Kafka surface the publisher needs.
type Producer interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Publisher coordinates the two catalog-change topics.
type Publisher struct {
	ingestComplete  Producer
	cacheInvalidate Producer
	logger          *slog.Logger
}

func New(ingestComplete, cacheInvalidate Producer) *Publisher {
	return &Publisher{
		ingestComplete:  ingestComplete,
		cacheInvalidate: cacheInvalidate,
		logger:          slog.Default().With("component", "publisher"),
	}
}

// IngestCompleted publishes a run summary keyed by run ID.
func (p *Publisher) IngestCompleted(ctx context.Context, event ingestion.IngestCompleteEvent) error {
	if p == nil || p.ingestComplete == nil {
		return nil
	}
	if err := p.ingestComplete.Publish(ctx, kafka.Event{Key: event.RunID, Value: event}); err != nil {
		return fmt.Errorf("publishing ingest-complete %s: %w", event.RunID, err)
	}
	p.logger.Debug("ingest-complete published", "run_id", event.RunID, "total_indexed", event.TotalIndexed)
	return nil
}

// RequestCacheInvalidation asks every gateway consuming the topic to drop
// its search cache namespace.
func (p *Publisher) RequestCacheInvalidation(ctx context.Context, reason, issuedBy string) error {
	if p == nil || p.cacheInvalidate == nil {
		return nil
	}
	event := ingestion.CacheInvalidateEvent{
		Reason:   reason,
		IssuedAt: time.Now().UTC(),
		IssuedBy: issuedBy,
	}
	if err := p.cacheInvalidate.Publish(ctx, kafka.Event{Key: "search", Value: event}); err != nil {
		return fmt.Errorf("publishing cache-invalidate: %w", err)
	}
	p.logger.Info("cache invalidation requested", "reason", reason)
	return nil
}
