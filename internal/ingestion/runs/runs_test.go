package runs

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/postgres"
)

// newStore connects to the database named by TEST_POSTGRES_DSN and gives the
// test an empty ingestion_runs table.
func newStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	s := NewStore(postgres.FromDB(db))
	require.NoError(t, s.EnsureSchema(ctx))
	_, err = db.ExecContext(ctx, `TRUNCATE ingestion_runs`)
	require.NoError(t, err)
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	id, err := s.Start(ctx, "Batman", 2)
	require.NoError(t, err)

	list, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, StatusRunning, list[0].Status)
	assert.Nil(t, list[0].FinishedAt)

	require.NoError(t, s.Finish(ctx, id, Outcome{Status: StatusIndexed, TotalIndexed: 20, PagesFetched: 2}))

	list, err = s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	r := list[0]
	assert.Equal(t, id, r.ID)
	assert.Equal(t, "Batman", r.TitleFilter)
	assert.Equal(t, 2, r.StartPage)
	assert.Equal(t, StatusIndexed, r.Status)
	assert.Equal(t, 20, r.TotalIndexed)
	assert.Equal(t, 2, r.PagesFetched)
	assert.Empty(t, r.ErrorCode)
	require.NotNil(t, r.FinishedAt)
	assert.False(t, r.FinishedAt.Before(r.StartedAt))
}

func TestFinishTwiceFails(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	id, err := s.Start(ctx, "Alien", 1)
	require.NoError(t, err)
	require.NoError(t, s.Finish(ctx, id, Outcome{Status: StatusFailed, ErrorCode: "EXTERNAL_API_TIMEOUT"}))
	assert.Error(t, s.Finish(ctx, id, Outcome{Status: StatusIndexed}))

	list, err := s.List(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, list[0].Status)
	assert.Equal(t, "EXTERNAL_API_TIMEOUT", list[0].ErrorCode)
}

func TestListNewestFirst(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c"} {
		_, err := s.Start(ctx, title, 1)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}
	list, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].TitleFilter)
	assert.Equal(t, "b", list[1].TitleFilter)
}
