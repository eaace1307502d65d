// Package tracing provides lightweight spans carried in contexts. A request
// gets one root span keyed by its request ID; pipeline stages hang child
// spans off it, and the finished tree is written to slog at debug level.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/logger"
)

type contextKey struct{}

// Span represents a timed operation within a trace.
type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time
	Duration  time.Duration
	Err       error
	Children  []*Span
	Attrs     map[string]any
	mu        sync.Mutex
}

// StartSpan creates a root span whose trace ID is the request ID in ctx.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	span := newSpan(name, logger.RequestID(ctx))
	return context.WithValue(ctx, contextKey{}, span), span
}

// StartChildSpan creates a child span linked to the span in ctx, or a root
// span if there is none.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	if parent == nil {
		return StartSpan(ctx, name)
	}
	child := newSpan(name, parent.TraceID)
	parent.mu.Lock()
	parent.Children = append(parent.Children, child)
	parent.mu.Unlock()
	return context.WithValue(ctx, contextKey{}, child), child
}

func newSpan(name, traceID string) *Span {
	return &Span{
		Name:      name,
		TraceID:   traceID,
		StartTime: time.Now(),
		Attrs:     make(map[string]any),
	}
}

// End records the span's duration and the error it finished with, if any.
func (s *Span) End(err error) {
	s.mu.Lock()
	s.Duration = time.Since(s.StartTime)
	s.Err = err
	s.mu.Unlock()
}

// SetAttr attaches a key-value attribute to the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

// SpanFromContext extracts the current Span from ctx, or nil if none.
func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(contextKey{}).(*Span)
	return span
}

// Log writes the span tree to slog.
func (s *Span) Log(ctx context.Context) {
	log := logger.FromContext(ctx)
	if !log.Enabled(ctx, slog.LevelDebug) {
		return
	}
	s.logRecursive(ctx, log, 0)
}

func (s *Span) logRecursive(ctx context.Context, log *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", s.Duration.Milliseconds(),
		"depth", depth,
	}
	if s.Err != nil {
		attrs = append(attrs, "error", s.Err)
	}
	for k, v := range s.Attrs {
		attrs = append(attrs, k, v)
	}
	children := append([]*Span(nil), s.Children...)
	s.mu.Unlock()

	log.DebugContext(ctx, "span", attrs...)
	for _, child := range children {
		child.logRecursive(ctx, log, depth+1)
	}
}
