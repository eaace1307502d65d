package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/auth/token"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/ingestion/runs"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/postgres"
)

func runsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent ingestion runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Postgres.Enabled {
				return fmt.Errorf("ingestion run audit is disabled")
			}
			ctx := cmd.Context()
			db, err := postgres.New(ctx, cfg.Postgres)
			if err != nil {
				return err
			}
			defer db.Close()
			list, err := runs.NewStore(db).List(ctx, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tTITLE\tSTART\tPAGES\tINDEXED\tSTARTED")
			for _, r := range list {
				fmt.Fprintf(tw, "%s\t%s\t%q\t%d\t%d\t%d\t%s\n",
					r.ID, r.Status, r.TitleFilter, r.StartPage, r.PagesFetched, r.TotalIndexed,
					r.StartedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list")
	return cmd
}

func tokenCmd() *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with the configured secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			signed, expires, err := token.NewService(cfg.Auth).Issue(subject)
			if err != nil {
				return err
			}
			fmt.Println(signed)
			fmt.Fprintf(os.Stderr, "expires %s\n", expires.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVarP(&subject, "subject", "s", "operator", "token subject")
	return cmd
}
