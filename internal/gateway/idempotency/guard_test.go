package idempotency

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/testutil"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/errors"
)

const indexPath = "/api/v1/movies/index"

func TestCheckRejectsRepeat(t *testing.T) {
	kv := testutil.NewKV()
	g := NewGuard(kv, 10*time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, g.Check(ctx, "abc", indexPath))
	err := g.Check(ctx, "abc", indexPath)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateRequest)
	assert.Equal(t, http.StatusConflict, apperrors.HTTPStatusCode(err))

	assert.InDelta(t, (10 * time.Minute).Seconds(), kv.TTL(Key("abc", indexPath)).Seconds(), 1)
}

func TestCheckScopesByPath(t *testing.T) {
	g := NewGuard(testutil.NewKV(), time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, g.Check(ctx, "abc", indexPath))
	assert.NoError(t, g.Check(ctx, "abc", "/api/v1/movies/search"))
	assert.NoError(t, g.Check(ctx, "xyz", indexPath))
}

func TestCheckWithoutToken(t *testing.T) {
	kv := testutil.NewKV()
	g := NewGuard(kv, time.Minute, nil)

	for range 3 {
		assert.NoError(t, g.Check(context.Background(), "", indexPath))
	}
	assert.Empty(t, kv.Keys("idempotency:*"))
}

func TestCheckExpires(t *testing.T) {
	now := time.Now()
	kv := testutil.NewKV()
	kv.SetClock(func() time.Time { return now })
	g := NewGuard(kv, time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, g.Check(ctx, "abc", indexPath))
	now = now.Add(61 * time.Second)
	assert.NoError(t, g.Check(ctx, "abc", indexPath))
}

func TestCheckKVFailure(t *testing.T) {
	kv := testutil.NewKV()
	kv.SetDown(true)
	g := NewGuard(kv, time.Minute, nil)

	err := g.Check(context.Background(), "abc", indexPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, testutil.ErrKVDown)
	c := apperrors.Classify(err)
	assert.Equal(t, http.StatusInternalServerError, c.StatusCode)
	assert.Equal(t, apperrors.GenericMessage, c.Message)
}

func TestKeyIsHashed(t *testing.T) {
	k := Key("abc", indexPath)
	assert.Regexp(t, `^idempotency:[0-9a-f]{64}$`, k)
	assert.NotEqual(t, k, Key("abc", "/other"))
}

func TestInterceptorReadsHeader(t *testing.T) {
	ic := NewGuard(testutil.NewKV(), time.Minute, nil).Interceptor()
	assert.Equal(t, "idempotency", ic.Name)

	req, err := http.NewRequest(http.MethodPost, "http://gateway"+indexPath+"?title=Batman", nil)
	require.NoError(t, err)
	req.Header.Set(Header, "abc")

	next, err := ic.Run(req)
	require.NoError(t, err)
	assert.Same(t, req, next)

	_, err = ic.Run(req)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateRequest)
}
