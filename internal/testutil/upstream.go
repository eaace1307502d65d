package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

// Movie is one upstream record as served by Upstream. Raw, when set,
// replaces the whole JSON object so tests can serve malformed records.
type Movie struct {
	Title  string
	Year   int
	IMDbID string
	Raw    map[string]any
}

// Upstream is a fake paginated catalog API. Pages holds the records of each
// page, 1-based; pages past the end are served empty.
type Upstream struct {
	Server *httptest.Server

	mu         sync.Mutex
	pages      [][]Movie
	totalPages int
	delay      time.Duration
	status     int
	requests   []string
}

// NewUpstream starts a fake API serving pages. It is closed with the test.
func NewUpstream(t testing.TB, pages ...[]Movie) *Upstream {
	t.Helper()
	u := &Upstream{pages: pages, totalPages: len(pages)}
	u.Server = httptest.NewServer(http.HandlerFunc(u.serve))
	t.Cleanup(u.Server.Close)
	return u
}

// URL is the base URL to configure the source client with.
func (u *Upstream) URL() string {
	return u.Server.URL + "/api/moviesdata/search/"
}

// SetDelay slows every response down by d.
func (u *Upstream) SetDelay(d time.Duration) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.delay = d
}

// SetStatus makes every response fail with the given HTTP status.
func (u *Upstream) SetStatus(code int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.status = code
}

// SetTotalPages overrides the advertised total_pages.
func (u *Upstream) SetTotalPages(n int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.totalPages = n
}

// Requests returns the "Title|page" pairs requested so far, in order.
func (u *Upstream) Requests() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.requests...)
}

func (u *Upstream) serve(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	delay, status, totalPages := u.delay, u.status, u.totalPages
	title := r.URL.Query().Get("Title")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	u.requests = append(u.requests, fmt.Sprintf("%s|%d", title, page))
	var movies []Movie
	if page >= 1 && page <= len(u.pages) {
		movies = u.pages[page-1]
	}
	u.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if status != 0 {
		http.Error(w, "upstream failure", status)
		return
	}

	data := make([]map[string]any, 0, len(movies))
	total := 0
	for _, p := range u.pages {
		total += len(p)
	}
	for _, m := range movies {
		if m.Raw != nil {
			data = append(data, m.Raw)
			continue
		}
		data = append(data, map[string]any{"Title": m.Title, "Year": m.Year, "imdbID": m.IMDbID})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"page":        strconv.Itoa(page),
		"per_page":    10,
		"total":       total,
		"total_pages": totalPages,
		"data":        data,
	})
}

// Catalog builds n sequential movies split into pages of perPage. IDs are
// zero-padded so their lexical order matches their position.
func Catalog(prefix string, n, perPage int) [][]Movie {
	var pages [][]Movie
	for i := 0; i < n; i++ {
		if i%perPage == 0 {
			pages = append(pages, nil)
		}
		pages[len(pages)-1] = append(pages[len(pages)-1], Movie{
			Title:  fmt.Sprintf("%s %02d", prefix, i+1),
			Year:   2000 + i%5,
			IMDbID: fmt.Sprintf("tt%07d", i+1),
		})
	}
	return pages
}
