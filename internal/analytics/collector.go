package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/kafka"
)

// Publisher is the Kafka surface the collector needs.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Collector buffers events in memory and publishes them from a single
// goroutine. Events that do not fit the buffer are dropped.
type Collector struct {
	publisher Publisher
	eventCh   chan Event
	logger    *slog.Logger
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	started   atomic.Bool
}

func NewCollector(publisher Publisher, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		publisher: publisher,
		eventCh:   make(chan Event, bufferSize),
		logger:    slog.Default().With("component", "analytics-collector"),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Run publishes events until ctx is cancelled or Close is called, then
// flushes whatever is still buffered.
func (c *Collector) Run(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	defer close(c.done)
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
	for {
		select {
		case event := <-c.eventCh:
			c.publish(ctx, event)
		case <-c.stop:
			c.drainRemaining()
			return
		case <-ctx.Done():
			c.drainRemaining()
			return
		}
	}
}

func (c *Collector) Track(event Event) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)", "type", event.Type)
	}
}

// Close stops the publishing loop and waits for it to flush. Events tracked
// after Close stay buffered and are never sent.
func (c *Collector) Close() {
	c.closeOnce.Do(func() { close(c.stop) })
	if c.started.Load() {
		<-c.done
	}
}

func (c *Collector) publish(ctx context.Context, event Event) {
	if err := c.publisher.Publish(ctx, kafka.Event{Key: string(event.Type), Value: event}); err != nil {
		c.logger.Error("failed to publish analytics event", "type", event.Type, "error", err)
	}
}

func (c *Collector) drainRemaining() {
	for {
		select {
		case event := <-c.eventCh:
			c.publish(context.Background(), event)
		default:
			return
		}
	}
}
