// Package handler implements the gateway's route handlers. Handlers parse
// and bound their inputs, call one pipeline, and return errors for the
// request pipeline to normalise.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/gateway/pipeline"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/ingestion/runs"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/movie"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/logger"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

type Ingester interface {
	Ingest(ctx context.Context, titleFilter string, startPage int) (*ingestion.IngestResult, error)
}

type Searcher interface {
	Search(ctx context.Context, p movie.SearchParams) (*movie.SearchResponse, error)
}

type TokenIssuer interface {
	Authenticate(username, password string) error
	Issue(subject string) (string, time.Time, error)
}

type RunLister interface {
	List(ctx context.Context, limit int) ([]runs.Run, error)
}

type CacheAdmin interface {
	InvalidateAll(ctx context.Context) (int64, error)
	Stats() (hits, misses int64)
}

// Deps are the collaborators of the handlers. Runs may be nil when the run
// audit is disabled.
type Deps struct {
	Ingester    Ingester
	Searcher    Searcher
	Tokens      TokenIssuer
	Runs        RunLister
	Cache       CacheAdmin
	DefaultSize int
}

type Handler struct {
	ingester    Ingester
	searcher    Searcher
	tokens      TokenIssuer
	runs        RunLister
	cache       CacheAdmin
	defaultSize int
}

func New(d Deps) *Handler {
	return &Handler{
		ingester:    d.Ingester,
		searcher:    d.Searcher,
		tokens:      d.Tokens,
		runs:        d.Runs,
		cache:       d.Cache,
		defaultSize: d.DefaultSize,
	}
}

// Ingest handles POST /api/v1/movies/index?title=&page=.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	page, err := intParam(q.Get("page"), "page", 1)
	if err != nil {
		return err
	}
	res, err := h.ingester.Ingest(r.Context(), q.Get("title"), page)
	if err != nil {
		return err
	}
	pipeline.WriteJSON(w, http.StatusOK, res)
	return nil
}

// Search handles GET /api/v1/movies/search?title=&year=&page=&size=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	title := strings.TrimSpace(q.Get("title"))
	if title == "" {
		return validator.Invalid("title", "is required")
	}
	year, err := intParam(q.Get("year"), "year", 0)
	if err != nil {
		return err
	}
	page, err := intParam(q.Get("page"), "page", 1)
	if err != nil {
		return err
	}
	size, err := intParam(q.Get("size"), "size", h.defaultSize)
	if err != nil {
		return err
	}
	resp, err := h.searcher.Search(r.Context(), movie.SearchParams{
		Title: title,
		Year:  year,
		Page:  page,
		Size:  size,
	})
	if err != nil {
		return err
	}
	pipeline.WriteJSON(w, http.StatusOK, resp)
	return nil
}

// Token handles POST /token with form fields username and password.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return validator.Invalid("body", "must be a form")
	}
	username := r.PostForm.Get("username")
	if err := h.tokens.Authenticate(username, r.PostForm.Get("password")); err != nil {
		return err
	}
	signed, exp, err := h.tokens.Issue(username)
	if err != nil {
		return err
	}
	logger.FromContext(r.Context()).Info("token issued", "subject", username)
	pipeline.WriteJSON(w, http.StatusOK, map[string]any{
		"access_token": signed,
		"token_type":   "bearer",
		"expires_in":   int(time.Until(exp).Seconds()),
	})
	return nil
}

// Runs handles GET /api/v1/movies/index/runs?limit=.
func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) error {
	if h.runs == nil {
		return apperrors.New(apperrors.ErrNotFound, http.StatusNotFound, "ingestion run audit is not enabled")
	}
	limit, err := intParam(r.URL.Query().Get("limit"), "limit", defaultRunsLimit)
	if err != nil {
		return err
	}
	if limit < 1 || limit > maxRunsLimit {
		return validator.Invalid("limit", "must be between 1 and "+strconv.Itoa(maxRunsLimit))
	}
	list, err := h.runs.List(r.Context(), limit)
	if err != nil {
		return err
	}
	pipeline.WriteJSON(w, http.StatusOK, map[string]any{"runs": list})
	return nil
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) error {
	hits, misses := h.cache.Stats()
	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	pipeline.WriteJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"hit_rate": hitRate,
	})
	return nil
}

// CacheInvalidate handles POST /api/v1/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) error {
	deleted, err := h.cache.InvalidateAll(r.Context())
	if err != nil {
		return err
	}
	pipeline.WriteJSON(w, http.StatusOK, map[string]any{
		"status":       "invalidated",
		"keys_deleted": deleted,
	})
	return nil
}

// intParam parses an optional integer query parameter.
func intParam(raw, name string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, validator.Invalid(name, "must be an integer")
	}
	return n, nil
}
