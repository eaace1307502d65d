package analytics

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/kafka"
)

const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalSearches     int64        `json:"total_searches"`
	TotalIngestions   int64        `json:"total_ingestions"`
	TotalDocsIndexed  int64        `json:"total_docs_indexed"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	TopTitles         []TitleCount `json:"top_titles"`
	ZeroResultTitles  []TitleCount `json:"zero_result_titles"`
	SearchesPerMinute float64      `json:"searches_per_minute"`
}

type TitleCount struct {
	Title string `json:"title"`
	Count int64  `json:"count"`
}

// Aggregator folds events into running statistics. It keeps the most recent
// search latencies in a fixed-size ring.
type Aggregator struct {
	mu               sync.RWMutex
	totalSearches    int64
	totalIngestions  int64
	totalDocsIndexed int64
	cacheHits        int64
	cacheMisses      int64
	zeroResults      int64
	latencies        []int64
	next             int
	titleCounts      map[string]int64
	zeroResultTitles map[string]int64
	startTime        time.Time
	logger           *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:        make([]int64, 0, maxLatencySamples),
		titleCounts:      make(map[string]int64),
		zeroResultTitles: make(map[string]int64),
		startTime:        time.Now(),
		logger:           slog.Default().With("component", "analytics-aggregator"),
	}
}

// Track records event immediately. It lets the aggregator stand in for a
// Collector when Kafka is disabled.
func (a *Aggregator) Track(event Event) {
	a.Record(event)
}

// HandleMessage is the Kafka handler for the analytics topic. Undecodable
// messages are logged and skipped.
func (a *Aggregator) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	event, err := kafka.DecodeJSON[Event](value)
	if err != nil {
		a.logger.Error("failed to decode analytics event", "error", err)
		return nil
	}
	a.Record(event)
	return nil
}

func (a *Aggregator) Record(event Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch event.Type {
	case EventSearch:
		a.recordSearch(event)
	case EventIngest:
		a.totalIngestions++
		a.totalDocsIndexed += int64(event.TotalIndexed)
	default:
		a.logger.Warn("unknown analytics event type", "type", event.Type)
	}
}

func (a *Aggregator) recordSearch(event Event) {
	a.totalSearches++
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	title := strings.ToLower(strings.TrimSpace(event.Title))
	a.titleCounts[title]++
	if event.TotalResults == 0 {
		a.zeroResults++
		a.zeroResultTitles[title]++
	}
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % maxLatencySamples
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:    a.totalSearches,
		TotalIngestions:  a.totalIngestions,
		TotalDocsIndexed: a.totalDocsIndexed,
		CacheHits:        a.cacheHits,
		CacheMisses:      a.cacheMisses,
		ZeroResultCount:  a.zeroResults,
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopTitles = topN(a.titleCounts, 10)
	stats.ZeroResultTitles = topN(a.zeroResultTitles, 10)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.SearchesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n most frequent titles; ties are broken alphabetically.
func topN(counts map[string]int64, n int) []TitleCount {
	result := make([]TitleCount, 0, len(counts))
	for title, count := range counts {
		result = append(result, TitleCount{Title: title, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Title < result[j].Title
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
