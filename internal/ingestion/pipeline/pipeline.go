// Package pipeline mirrors the upstream catalog into the document store.
// Pages are fetched and written strictly in order; any failure aborts the
// run and nothing already written is rolled back.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/docstore"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/ingestion/runs"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/movie"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/source"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/tracing"
)

// Invalidator drops every cached search response.
type Invalidator interface {
	InvalidateAll(ctx context.Context) (int64, error)
}

// EventPublisher announces finished runs.
type EventPublisher interface {
	IngestCompleted(ctx context.Context, event ingestion.IngestCompleteEvent) error
}

// Deps are the collaborators of an Ingester. Runs, Events, Tracker and
// Metrics are optional.
type Deps struct {
	Store   docstore.Store
	Source  source.Fetcher
	Cache   Invalidator
	Runs    runs.Recorder
	Events  EventPublisher
	Tracker analytics.Tracker
	Metrics *metrics.Metrics
}

type Ingester struct {
	store   docstore.Store
	source  source.Fetcher
	cache   Invalidator
	runs    runs.Recorder
	events  EventPublisher
	tracker analytics.Tracker
	metrics *metrics.Metrics
}

func New(d Deps) *Ingester {
	if d.Tracker == nil {
		d.Tracker = analytics.Discard{}
	}
	return &Ingester{
		store:   d.Store,
		source:  d.Source,
		cache:   d.Cache,
		runs:    d.Runs,
		events:  d.Events,
		tracker: d.Tracker,
		metrics: d.Metrics,
	}
}

// progress is what a run achieved before it stopped.
type progress struct {
	pages   int
	indexed int
}

// Ingest fetches the catalog filtered by titleFilter from startPage onward
// and upserts every record. It succeeds only if every page was fetched and
// every record was valid and written; the cache is invalidated afterwards.
//
// A search miss computed in this process while the invalidation runs is not
// cached. One computed on another gateway instance can still be stored after
// the flush and serve pre-ingest results until its TTL expires.
func (i *Ingester) Ingest(ctx context.Context, titleFilter string, startPage int) (*ingestion.IngestResult, error) {
	if err := validator.ValidateStartPage(startPage); err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx).With("component", "ingester", "title_filter", titleFilter)
	ctx, span := tracing.StartChildSpan(ctx, "ingest")
	span.SetAttr("start_page", startPage)
	start := time.Now()

	runID := i.startRun(ctx, log, titleFilter, startPage)
	prog, err := i.run(ctx, log, titleFilter, startPage)
	i.finishRun(ctx, log, runID, prog, err)
	span.SetAttr("pages", prog.pages)
	span.SetAttr("indexed", prog.indexed)
	span.End(err)
	if err != nil {
		i.metrics.IngestionFinished("failed")
		log.Warn("ingestion aborted", "pages_fetched", prog.pages, "indexed_before_failure", prog.indexed, "error", err)
		return nil, err
	}

	if err := i.store.Refresh(ctx); err != nil {
		log.Warn("document store refresh failed", "error", err)
	}
	if _, err := i.cache.InvalidateAll(ctx); err != nil {
		log.Warn("cache invalidation after ingestion failed, stale results possible until TTL expiry", "error", err)
	}
	if i.events != nil {
		event := ingestion.IngestCompleteEvent{
			RunID:        runID,
			TitleFilter:  titleFilter,
			StartPage:    startPage,
			PagesFetched: prog.pages,
			TotalIndexed: prog.indexed,
			CompletedAt:  time.Now().UTC(),
		}
		if err := i.events.IngestCompleted(ctx, event); err != nil {
			log.Warn("ingest-complete event not published", "error", err)
		}
	}

	i.metrics.IngestionFinished("indexed")
	i.tracker.Track(analytics.Event{
		Type:         analytics.EventIngest,
		Title:        titleFilter,
		TotalIndexed: prog.indexed,
		PagesFetched: prog.pages,
		LatencyMs:    time.Since(start).Milliseconds(),
		Timestamp:    time.Now().UTC(),
		RequestID:    logger.RequestID(ctx),
	})
	log.Info("ingestion complete", "pages_fetched", prog.pages, "total_indexed", prog.indexed, "duration", time.Since(start))
	return &ingestion.IngestResult{Status: ingestion.StatusIndexed, TotalIndexed: prog.indexed}, nil
}

func (i *Ingester) run(ctx context.Context, log *slog.Logger, titleFilter string, startPage int) (progress, error) {
	var prog progress
	if err := i.store.EnsureIndex(ctx); err != nil {
		return prog, fmt.Errorf("ensuring index: %w", err)
	}

	totalPages := 0
	for page := startPage; ; page++ {
		if err := ctx.Err(); err != nil {
			return prog, err
		}
		p, err := i.source.FetchPage(ctx, titleFilter, page)
		i.metrics.PageFetched(err == nil)
		if err != nil {
			return prog, err
		}
		prog.pages++
		if len(p.Data) == 0 {
			log.Debug("empty page, stopping", "page", page)
			return prog, nil
		}
		if prog.pages == 1 {
			totalPages = int(p.TotalPages)
		}

		records, err := validatePage(p, page)
		if err != nil {
			return prog, err
		}
		for _, rec := range records {
			if err := i.store.Upsert(ctx, rec); err != nil {
				return prog, fmt.Errorf("writing %s: %w", rec.ExternalID, err)
			}
			prog.indexed++
			i.metrics.DocIndexed()
		}
		log.Debug("page indexed", "page", page, "records", len(records), "total_pages", totalPages)

		if totalPages > 0 && page >= totalPages {
			return prog, nil
		}
	}
}

// validatePage checks every record of a page before any of them is written.
func validatePage(p *source.Page, page int) ([]movie.Record, error) {
	records := make([]movie.Record, 0, len(p.Data))
	for n, raw := range p.Data {
		rec, err := validator.ValidateRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("page %d record %d: %w", page, n, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (i *Ingester) startRun(ctx context.Context, log *slog.Logger, titleFilter string, startPage int) string {
	if i.runs == nil {
		return ""
	}
	id, err := i.runs.Start(ctx, titleFilter, startPage)
	if err != nil {
		log.Warn("run audit start failed", "error", err)
		return ""
	}
	return id
}

func (i *Ingester) finishRun(ctx context.Context, log *slog.Logger, id string, prog progress, runErr error) {
	if i.runs == nil || id == "" {
		return
	}
	outcome := runs.Outcome{
		Status:       runs.StatusIndexed,
		TotalIndexed: prog.indexed,
		PagesFetched: prog.pages,
	}
	if runErr != nil {
		outcome.Status = runs.StatusFailed
		outcome.ErrorCode = apperrors.Classify(runErr).Code
	}
	// The request context may already be cancelled; the audit row should
	// still be closed.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := i.runs.Finish(finishCtx, id, outcome); err != nil {
		log.Warn("run audit finish failed", "run_id", id, "error", err)
	}
}
