package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/app"
	ingestpipeline "github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/ingestion/pipeline"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/ingestion/runs"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/source"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/redis"
)

func ensureIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-index",
		Short: "Create the index with its mapping if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := app.OpenStore(cmd.Context(), cfg.DocStore)
			if err != nil {
				return err
			}
			defer store.Close()
			fmt.Printf("index %s ready\n", cfg.DocStore.IndexName)
			return nil
		},
	}
}

func deleteIndexCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete-index",
		Short: "Drop the index and invalidate every cached search",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete the index without --yes")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := app.OpenStore(ctx, cfg.DocStore)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.DeleteIndex(ctx); err != nil {
				return err
			}
			fmt.Printf("index %s deleted\n", cfg.DocStore.IndexName)
			return invalidate(ctx, cfg, "index deleted")
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")
	return cmd
}

func ingestCmd() *cobra.Command {
	var (
		title string
		page  int
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Mirror the upstream catalog into the index",
		Long: `Fetch every page of the upstream catalog matching --title, starting at
--page, and upsert the records into the index. Cached searches are dropped
once the run succeeds.

Examples:
  indexctl ingest --title Batman
  indexctl ingest --title "" --page 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := app.OpenStore(ctx, cfg.DocStore)
			if err != nil {
				return err
			}
			defer store.Close()

			rdb := pkgredis.NewClient(cfg.Redis)
			defer rdb.Close()

			deps := ingestpipeline.Deps{
				Store:  store,
				Source: source.NewClient(cfg.Source),
				Cache:  cache.New(rdb, cfg.Redis.CacheTTL, nil),
			}
			if cfg.Postgres.Enabled {
				db, err := postgres.New(ctx, cfg.Postgres)
				if err != nil {
					return err
				}
				defer db.Close()
				runStore := runs.NewStore(db)
				if err := runStore.EnsureSchema(ctx); err != nil {
					return err
				}
				deps.Runs = runStore
			}
			if cfg.Kafka.Enabled {
				p := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IngestComplete)
				defer p.Close()
				deps.Events = publisher.New(p, nil)
			}

			result, err := ingestpipeline.New(deps).Ingest(ctx, title, page)
			if err != nil {
				return err
			}
			if err := invalidate(ctx, cfg, "indexctl ingest"); err != nil {
				slog.Warn("remote cache invalidation failed", "error", err)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "upstream title filter")
	cmd.Flags().IntVarP(&page, "page", "p", 1, "first page to fetch")
	return cmd
}

// invalidate tells running gateways to drop their cached searches. Without
// Kafka the shared Redis namespace is flushed directly.
func invalidate(ctx context.Context, cfg *config.Config, reason string) error {
	if cfg.Kafka.Enabled {
		p := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate)
		defer p.Close()
		return publisher.New(nil, p).RequestCacheInvalidation(ctx, reason, "indexctl")
	}
	rdb := pkgredis.NewClient(cfg.Redis)
	defer rdb.Close()
	n, err := cache.New(rdb, cfg.Redis.CacheTTL, nil).InvalidateAll(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%d cached searches dropped\n", n)
	return nil
}
