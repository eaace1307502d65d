// Command indexctl administers the movie index outside the HTTP surface:
// creating or dropping the index, running an ingestion, listing audited
// runs and minting bearer tokens for operators.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/logger"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "indexctl",
		Short:         "Administer the movie search index",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	rootCmd.AddCommand(ensureIndexCmd())
	rootCmd.AddCommand(deleteIndexCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(tokenCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Setup(cfg.Logging.Level, "text")
	return cfg, nil
}
