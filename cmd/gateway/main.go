// Command gateway serves the movie search API: authenticated ingestion from
// the upstream catalog, cached search over the document store, and the
// supporting health, analytics and metrics endpoints.
//
// Usage:
//
//	go run ./cmd/gateway [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/app"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting movie gateway",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
		"docstore", cfg.DocStore.Backend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := app.New(ctx, cfg, app.Options{Registerer: prometheus.DefaultRegisterer})
	if err != nil {
		slog.Error("failed to start gateway", "error", err)
		os.Exit(1)
	}
	defer gw.Close()

	if cfg.Metrics.Enabled {
		shutdownMetrics := gw.Metrics().StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	go func() {
		if err := gw.Run(ctx); err != nil {
			slog.Error("background workers stopped", "error", err)
		}
	}()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      gw.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("movie gateway listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("movie gateway stopped")
}
