// Package runs persists an audit row per ingestion run in PostgreSQL.
package runs

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/postgres"
	"github.com/google/uuid"
)

const (
	StatusRunning = "RUNNING"
	StatusIndexed = "INDEXED"
	StatusFailed  = "FAILED"
)

const schema = `
CREATE TABLE IF NOT EXISTS ingestion_runs (
	id            UUID PRIMARY KEY,
	title_filter  TEXT NOT NULL,
	start_page    INTEGER NOT NULL,
	status        TEXT NOT NULL,
	total_indexed INTEGER NOT NULL DEFAULT 0,
	pages_fetched INTEGER NOT NULL DEFAULT 0,
	error_code    TEXT,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ
)`

// Run is one row of the audit log.
type Run struct {
	ID           string     `json:"id"`
	TitleFilter  string     `json:"title_filter"`
	StartPage    int        `json:"start_page"`
	Status       string     `json:"status"`
	TotalIndexed int        `json:"total_indexed"`
	PagesFetched int        `json:"pages_fetched"`
	ErrorCode    string     `json:"error_code,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// Outcome is what a run reports when it ends.
type Outcome struct {
	Status       string
	TotalIndexed int
	PagesFetched int
	ErrorCode    string
}

// Recorder is the write side used by the ingestion pipeline.
type Recorder interface {
	Start(ctx context.Context, titleFilter string, startPage int) (string, error)
	Finish(ctx context.Context, id string, outcome Outcome) error
}

// Store implements Recorder and listing on top of PostgreSQL.
type Store struct {
	db *postgres.Client
}

func NewStore(db *postgres.Client) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the ingestion_runs table if needed.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating ingestion_runs: %w", err)
	}
	return nil
}

func (s *Store) Start(ctx context.Context, titleFilter string, startPage int) (string, error) {
	id := uuid.NewString()
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO ingestion_runs (id, title_filter, start_page, status, started_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, titleFilter, startPage, StatusRunning, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("recording run start: %w", err)
	}
	return id, nil
}

func (s *Store) Finish(ctx context.Context, id string, o Outcome) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE ingestion_runs
			 SET status = $2, total_indexed = $3, pages_fetched = $4, error_code = NULLIF($5, ''), finished_at = $6
			 WHERE id = $1 AND status = $7`,
			id, o.Status, o.TotalIndexed, o.PagesFetched, o.ErrorCode, time.Now().UTC(), StatusRunning,
		)
		if err != nil {
			return fmt.Errorf("recording run finish: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("recording run finish: %w", err)
		}
		if n != 1 {
			return fmt.Errorf("run %s is not running", id)
		}
		return nil
	})
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, title_filter, start_page, status, total_indexed, pages_fetched,
		        COALESCE(error_code, ''), started_at, finished_at
		 FROM ingestion_runs ORDER BY started_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	out := make([]Run, 0, limit)
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.TitleFilter, &r.StartPage, &r.Status, &r.TotalIndexed,
			&r.PagesFetched, &r.ErrorCode, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
