package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/kafka"
)

type memPublisher struct {
	mu     sync.Mutex
	events []kafka.Event
}

func (p *memPublisher) Publish(ctx context.Context, e kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *memPublisher) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func search(title string, total int, hit bool, latency int64) Event {
	return Event{Type: EventSearch, Title: title, TotalResults: total, CacheHit: hit, LatencyMs: latency}
}

func TestAggregatorStats(t *testing.T) {
	a := NewAggregator()
	a.Track(search("Batman", 20, false, 10))
	a.Track(search(" batman ", 20, true, 2))
	a.Track(search("Alien", 3, false, 30))
	a.Track(search("Zardoz", 0, false, 8))
	a.Track(Event{Type: EventIngest, Title: "Batman", TotalIndexed: 20, PagesFetched: 2})

	s := a.Stats()
	assert.Equal(t, int64(4), s.TotalSearches)
	assert.Equal(t, int64(1), s.TotalIngestions)
	assert.Equal(t, int64(20), s.TotalDocsIndexed)
	assert.Equal(t, int64(1), s.CacheHits)
	assert.Equal(t, int64(3), s.CacheMisses)
	assert.Equal(t, int64(1), s.ZeroResultCount)
	assert.InDelta(t, 12.5, s.AvgLatencyMs, 0.001)
	assert.Equal(t, int64(10), s.P50LatencyMs)
	assert.Equal(t, []TitleCount{{"batman", 2}, {"alien", 1}, {"zardoz", 1}}, s.TopTitles)
	assert.Equal(t, []TitleCount{{"zardoz", 1}}, s.ZeroResultTitles)
}

func TestAggregatorLatencyRing(t *testing.T) {
	a := NewAggregator()
	for i := 0; i < maxLatencySamples+5; i++ {
		a.Record(search("x", 1, false, 1))
	}
	assert.Len(t, a.latencies, maxLatencySamples)
	assert.Equal(t, 5, a.next)
}

func TestAggregatorHandleMessage(t *testing.T) {
	a := NewAggregator()
	raw, err := json.Marshal(search("Batman", 1, false, 4))
	require.NoError(t, err)

	require.NoError(t, a.HandleMessage(context.Background(), nil, raw))
	require.NoError(t, a.HandleMessage(context.Background(), nil, []byte("{")))
	assert.Equal(t, int64(1), a.Stats().TotalSearches)
}

func TestTopNLimit(t *testing.T) {
	counts := map[string]int64{}
	for _, title := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"} {
		counts[title] = 1
	}
	counts["l"] = 5
	top := topN(counts, 10)
	require.Len(t, top, 10)
	assert.Equal(t, TitleCount{"l", 5}, top[0])
	assert.Equal(t, "a", top[1].Title)
}

func TestCollectorPublishesAndFlushes(t *testing.T) {
	pub := &memPublisher{}
	c := NewCollector(pub, 100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	for i := 0; i < 10; i++ {
		c.Track(search("batman", 1, false, 1))
	}
	c.Close()
	<-done

	assert.Equal(t, 10, pub.len())
	assert.Equal(t, "search", pub.events[0].Key)
}

func TestCollectorDropsWhenFull(t *testing.T) {
	pub := &memPublisher{}
	c := NewCollector(pub, 2)
	for i := 0; i < 5; i++ {
		c.Track(search("batman", 1, false, 1))
	}
	assert.Len(t, c.eventCh, 2)

	c.Close()
	c.Track(search("after close", 1, false, 1))
}

func TestCollectorStopsOnContext(t *testing.T) {
	pub := &memPublisher{}
	c := NewCollector(pub, 10)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	c.Track(search("alien", 1, false, 1))
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
	assert.Equal(t, 1, pub.len())
}

func TestStatsHandler(t *testing.T) {
	a := NewAggregator()
	a.Track(search("Batman", 1, true, 3))
	rec := httptest.NewRecorder()
	require.NoError(t, NewHandler(a).Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil)))

	assert.Equal(t, http.StatusOK, rec.Code)
	var s AggregatedStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&s))
	assert.Equal(t, int64(1), s.CacheHits)
}
