package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/logger"
)

func TestSpanTree(t *testing.T) {
	ctx := logger.WithRequestID(context.Background(), "req-1")
	ctx, root := StartSpan(ctx, "request")
	_, auth := StartChildSpan(ctx, "interceptor.auth")
	auth.End(errors.New("missing token"))
	root.End(nil)

	assert.Equal(t, "req-1", root.TraceID)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "req-1", root.Children[0].TraceID)
	assert.EqualError(t, root.Children[0].Err, "missing token")
	assert.Same(t, root, SpanFromContext(ctx))
}

func TestChildWithoutParentIsRoot(t *testing.T) {
	_, span := StartChildSpan(context.Background(), "orphan")
	assert.Empty(t, span.Children)
	assert.Empty(t, span.TraceID)
}
