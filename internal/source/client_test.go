package source

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/testutil"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/errors"
)

func newClient(u *testutil.Upstream, timeout time.Duration) *Client {
	return NewClient(config.SourceConfig{BaseURL: u.URL(), Timeout: timeout})
}

func TestFetchPage(t *testing.T) {
	u := testutil.NewUpstream(t, testutil.Catalog("Batman", 12, 10)...)
	c := newClient(u, time.Second)

	p, err := c.FetchPage(context.Background(), "Batman Begins", 2)
	require.NoError(t, err)

	assert.Equal(t, FlexInt(2), p.Page)
	assert.Equal(t, FlexInt(2), p.TotalPages)
	assert.Equal(t, FlexInt(12), p.Total)
	require.Len(t, p.Data, 2)
	assert.Equal(t, "Batman 11", *p.Data[0].Title)
	assert.Equal(t, "tt0000011", *p.Data[0].IMDbID)
	assert.Equal(t, []string{"Batman Begins|2"}, u.Requests())
}

func TestFetchPageTimeout(t *testing.T) {
	u := testutil.NewUpstream(t, testutil.Catalog("Batman", 1, 10)...)
	u.SetDelay(500 * time.Millisecond)
	c := newClient(u, 50*time.Millisecond)

	_, err := c.FetchPage(context.Background(), "Batman", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUpstreamTimeout)
	assert.Equal(t, http.StatusGatewayTimeout, apperrors.HTTPStatusCode(err))
}

func TestFetchPageBadStatus(t *testing.T) {
	u := testutil.NewUpstream(t)
	u.SetStatus(http.StatusInternalServerError)
	c := newClient(u, time.Second)

	_, err := c.FetchPage(context.Background(), "Batman", 1)
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
	assert.Equal(t, http.StatusBadGateway, apperrors.HTTPStatusCode(err))
}

func TestFetchPageUnreachable(t *testing.T) {
	c := NewClient(config.SourceConfig{BaseURL: "http://127.0.0.1:1/api/", Timeout: time.Second})
	_, err := c.FetchPage(context.Background(), "Batman", 1)
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
}

func TestFlexInt(t *testing.T) {
	tests := []struct {
		in      string
		want    FlexInt
		wantErr bool
	}{
		{`3`, 3, false},
		{`"3"`, 3, false},
		{`null`, 0, false},
		{`"three"`, 0, true},
		{`3.5`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var f FlexInt
			err := json.Unmarshal([]byte(tt.in), &f)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, f)
		})
	}
}
