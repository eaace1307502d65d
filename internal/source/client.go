// Package source fetches pages of the external movie catalog.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/resilience"
)

// Page is one page of the upstream catalog response.
type Page struct {
	Page       FlexInt     `json:"page"`
	PerPage    FlexInt     `json:"per_page"`
	Total      FlexInt     `json:"total"`
	TotalPages FlexInt     `json:"total_pages"`
	Data       []RawRecord `json:"data"`
}

// RawRecord is an upstream catalog entry before validation. Fields are kept
// loose so the validator can tell missing from malformed.
type RawRecord struct {
	Title  *string         `json:"Title"`
	Year   json.RawMessage `json:"Year"`
	IMDbID *string         `json:"imdbID"`
}

// FlexInt decodes a JSON number or a numeric string.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(s)
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return fmt.Errorf("not an integer: %q", b)
	}
	*f = FlexInt(n)
	return nil
}

// Fetcher retrieves one page of catalog records filtered by title.
type Fetcher interface {
	FetchPage(ctx context.Context, title string, page int) (*Page, error)
}

// Client is the HTTP Fetcher for the upstream catalog API.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	logger  *slog.Logger
}

// NewClient builds a Client from cfg. Each page request is bounded by
// cfg.Timeout.
func NewClient(cfg config.SourceConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		timeout: cfg.Timeout,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: slog.Default().With("component", "source-client"),
	}
}

// FetchPage requests ?Title=<title>&page=<page>. Deadline expiry maps to
// ErrUpstreamTimeout; any other transport, status or decoding failure maps
// to ErrUpstream.
func (c *Client) FetchPage(ctx context.Context, title string, page int) (*Page, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrUpstream, err, "parsing base url")
	}
	q := u.Query()
	q.Set("Title", title)
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()

	var out Page
	err = resilience.WithTimeout(ctx, c.timeout, "fetch page", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &statusError{code: resp.StatusCode, body: string(body)}
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("decoding page: %w", err)
		}
		return nil
	})
	if err != nil {
		if isTimeout(err) {
			c.logger.Warn("upstream page timed out", "page", page, "title", title, "timeout", c.timeout)
			return nil, apperrors.Wrap(apperrors.ErrUpstreamTimeout, err, "page %d", page)
		}
		c.logger.Warn("upstream page failed", "page", page, "title", title, "error", err)
		return nil, apperrors.Wrap(apperrors.ErrUpstream, err, "page %d", page)
	}
	return &out, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

func isTimeout(err error) bool {
	if resilience.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
