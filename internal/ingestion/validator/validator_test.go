package validator

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/movie"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/source"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/errors"
)

func raw(t *testing.T, s string) source.RawRecord {
	t.Helper()
	var r source.RawRecord
	require.NoError(t, json.Unmarshal([]byte(s), &r))
	return r
}

func TestValidateRecord(t *testing.T) {
	rec, err := ValidateRecord(raw(t, `{"Title":"Batman Begins","Year":2005,"imdbID":"tt0372784"}`))
	require.NoError(t, err)
	assert.Equal(t, movie.Record{Title: "Batman Begins", Year: 2005, ExternalID: "tt0372784"}, rec)

	rec, err = ValidateRecord(raw(t, `{"Title":"Batman Begins","Year":" 2005 ","imdbID":"tt0372784"}`))
	require.NoError(t, err)
	assert.Equal(t, 2005, rec.Year)
}

func TestValidateRecordRejects(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		field string
	}{
		{"missing title", `{"Year":2005,"imdbID":"tt1"}`, "Title"},
		{"missing id", `{"Title":"X","Year":2005}`, "imdbID"},
		{"blank id", `{"Title":"X","Year":2005,"imdbID":"  "}`, "imdbID"},
		{"missing year", `{"Title":"X","imdbID":"tt1"}`, "Year"},
		{"null year", `{"Title":"X","Year":null,"imdbID":"tt1"}`, "Year"},
		{"text year", `{"Title":"X","Year":"two thousand","imdbID":"tt1"}`, "Year"},
		{"float year", `{"Title":"X","Year":2005.5,"imdbID":"tt1"}`, "Year"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateRecord(raw(t, tt.in))
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrMalformedRecord)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tt.field)
		})
	}
}

func TestValidateRecordEmptyTitleAllowed(t *testing.T) {
	rec, err := ValidateRecord(raw(t, `{"Title":"","Year":1999,"imdbID":"tt2"}`))
	require.NoError(t, err)
	assert.Equal(t, "", rec.Title)
}

func TestValidateStartPage(t *testing.T) {
	assert.NoError(t, ValidateStartPage(1))
	err := ValidateStartPage(0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, "page: must be at least 1", err.Error())
}

func TestValidateSearch(t *testing.T) {
	limits := SearchLimits{DefaultSize: 10, MaxSize: 100}

	p, err := ValidateSearch(movie.SearchParams{Title: "  batman ", Page: 2, Size: 10}, limits)
	require.NoError(t, err)
	assert.Equal(t, "batman", p.Title)

	_, err = ValidateSearch(movie.SearchParams{Page: 1000, Size: 10}, limits)
	assert.NoError(t, err, "last page inside the result window")
	_, err = ValidateSearch(movie.SearchParams{Page: 2, Size: 10}, SearchLimits{MaxSize: 100, MaxResultWindow: 15})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	tests := []struct {
		name  string
		p     movie.SearchParams
		field string
	}{
		{"page zero", movie.SearchParams{Page: 0, Size: 10}, "page"},
		{"size zero", movie.SearchParams{Page: 1, Size: 0}, "size"},
		{"size over max", movie.SearchParams{Page: 1, Size: 101}, "size"},
		{"negative year", movie.SearchParams{Page: 1, Size: 10, Year: -1}, "year"},
		{"title too long", movie.SearchParams{Title: strings.Repeat("a", 1025), Page: 1, Size: 10}, "title"},
		{"past result window", movie.SearchParams{Page: 1001, Size: 10}, "page"},
		{"overflowing page", movie.SearchParams{Page: math.MaxInt64 / 5, Size: 10}, "page"},
		{"max page", movie.SearchParams{Page: math.MaxInt, Size: 1}, "page"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateSearch(tt.p, limits)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tt.field)
		})
	}
}
