// Package validator checks upstream catalog records and request parameters.
// Failures come back as a ValidationError listing every offending field.
package validator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/movie"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/source"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/errors"
)

const (
	maxTitleLength = 1024
	// DefaultResultWindow caps page*size when SearchLimits leaves it unset.
	// It matches the Elasticsearch index.max_result_window default.
	DefaultResultWindow = 10000
)

// ValidationError holds per-field validation failure messages. Kind is the
// taxonomy sentinel it unwraps to.
type ValidationError struct {
	Kind   error
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// ValidateRecord converts an upstream record into a movie.Record. Title and
// imdbID must be present, and Year must be an integer or a numeric string.
// Failures unwrap to ErrMalformedRecord.
func ValidateRecord(raw source.RawRecord) (movie.Record, error) {
	errs := make(map[string]string)

	var rec movie.Record
	if raw.Title == nil {
		errs["Title"] = "is required"
	} else {
		rec.Title = *raw.Title
	}
	if raw.IMDbID == nil || strings.TrimSpace(*raw.IMDbID) == "" {
		errs["imdbID"] = "is required"
	} else {
		rec.ExternalID = *raw.IMDbID
	}
	year, err := parseYear(raw.Year)
	if err != nil {
		errs["Year"] = err.Error()
	}
	rec.Year = year

	if len(errs) > 0 {
		return movie.Record{}, &ValidationError{Kind: apperrors.ErrMalformedRecord, Fields: errs}
	}
	return rec, nil
}

func parseYear(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("is required")
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, fmt.Errorf("is not a string: %w", err)
		}
		text = strings.TrimSpace(text)
	}
	year, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("must be an integer, got %s", raw)
	}
	return year, nil
}

// ValidateStartPage rejects ingestion start pages below 1.
func ValidateStartPage(page int) error {
	if page < 1 {
		return Invalid("page", "must be at least 1")
	}
	return nil
}

// SearchLimits bounds search pagination. MaxResultWindow caps how deep a
// page may reach: page*size must not exceed it.
type SearchLimits struct {
	DefaultSize     int
	MaxSize         int
	MaxResultWindow int
}

// ValidateSearch checks pagination bounds and trims the title. Callers fill
// defaults for absent parameters before validating.
func ValidateSearch(p movie.SearchParams, limits SearchLimits) (movie.SearchParams, error) {
	errs := make(map[string]string)
	p.Title = strings.TrimSpace(p.Title)
	if len(p.Title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("must be at most %d characters", maxTitleLength)
	}
	if p.Year < 0 {
		errs["year"] = "must be a positive integer"
	}
	if p.Page < 1 {
		errs["page"] = "must be at least 1"
	}
	sizeOK := p.Size >= 1 && p.Size <= limits.MaxSize
	if !sizeOK {
		errs["size"] = fmt.Sprintf("must be between 1 and %d", limits.MaxSize)
	}
	window := limits.MaxResultWindow
	if window <= 0 {
		window = DefaultResultWindow
	}
	// Compared by division so that huge pages cannot overflow.
	if p.Page >= 1 && sizeOK && p.Page > window/p.Size {
		errs["page"] = fmt.Sprintf("page*size must not exceed %d", window)
	}
	if len(errs) > 0 {
		return p, &ValidationError{Kind: apperrors.ErrInvalidInput, Fields: errs}
	}
	return p, nil
}

// Invalid builds a single-field ValidationError that unwraps to
// ErrInvalidInput.
func Invalid(field, msg string) error {
	return &ValidationError{Kind: apperrors.ErrInvalidInput, Fields: map[string]string{field: msg}}
}
