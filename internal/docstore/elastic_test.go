package docstore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/movie"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/errors"
)

// fakeCluster answers the handful of Elasticsearch endpoints the store uses.
type fakeCluster struct {
	mu       sync.Mutex
	exists   bool
	requests []string
	bodies   map[string][]byte
	handler  func(w http.ResponseWriter, r *http.Request) bool
}

func newFakeCluster(t *testing.T) (*fakeCluster, *Elastic) {
	t.Helper()
	fc := &fakeCluster{bodies: make(map[string][]byte)}
	srv := httptest.NewServer(fc)
	t.Cleanup(srv.Close)
	e, err := NewElastic(srv.URL, "movies")
	require.NoError(t, err)
	return fc, e
}

func (fc *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	fc.mu.Lock()
	key := r.Method + " " + r.URL.Path
	fc.requests = append(fc.requests, key)
	fc.bodies[key] = body
	custom := fc.handler
	fc.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	if custom != nil && custom(w, r) {
		return
	}
	switch key {
	case "HEAD /":
		w.WriteHeader(http.StatusOK)
	case "HEAD /movies":
		fc.mu.Lock()
		exists := fc.exists
		fc.mu.Unlock()
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case "PUT /movies":
		fc.mu.Lock()
		fc.exists = true
		fc.mu.Unlock()
		w.Write([]byte(`{"acknowledged":true}`))
	case "PUT /movies/_doc/tt0372784":
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"result":"created"}`))
	case "GET /movies/_doc/tt0372784":
		w.Write([]byte(`{"found":true,"_source":{"title":"Batman Begins","year":2005,"external_id":"tt0372784"}}`))
	case "GET /movies/_doc/missing":
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"found":false}`))
	case "POST /movies/_search":
		w.Write([]byte(`{"hits":{"total":{"value":12},"hits":[
			{"_source":{"title":"Batman Begins","year":2005,"external_id":"tt0372784"}},
			{"_source":{"title":"The Batman","year":2022,"external_id":"tt1877830"}}]}}`))
	case "POST /movies/_refresh":
		w.Write([]byte(`{"_shards":{"total":1,"successful":1,"failed":0}}`))
	case "DELETE /movies":
		w.Write([]byte(`{"acknowledged":true}`))
	default:
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"unexpected request"}`))
	}
}

func (fc *fakeCluster) seen() []string {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return append([]string(nil), fc.requests...)
}

func (fc *fakeCluster) body(key string) []byte {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.bodies[key]
}

func TestElasticEnsureIndexCreatesOnce(t *testing.T) {
	fc, e := newFakeCluster(t)
	ctx := context.Background()

	require.NoError(t, e.EnsureIndex(ctx))
	require.NoError(t, e.EnsureIndex(ctx))

	assert.Equal(t, []string{"HEAD /movies", "PUT /movies", "HEAD /movies"}, fc.seen())
	var mapping map[string]any
	require.NoError(t, json.Unmarshal(fc.body("PUT /movies"), &mapping))
	assert.Contains(t, string(fc.body("PUT /movies")), "lowercase_normalizer")
}

func TestElasticEnsureIndexRace(t *testing.T) {
	fc, e := newFakeCluster(t)
	fc.handler = func(w http.ResponseWriter, r *http.Request) bool {
		if r.Method == http.MethodPut {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"type":"resource_already_exists_exception"},"status":400}`))
			return true
		}
		return false
	}
	assert.NoError(t, e.EnsureIndex(context.Background()))
}

func TestElasticUpsertAndGet(t *testing.T) {
	fc, e := newFakeCluster(t)
	ctx := context.Background()
	rec := movie.Record{Title: "Batman Begins", Year: 2005, ExternalID: "tt0372784"}

	require.NoError(t, e.Upsert(ctx, rec))
	assert.JSONEq(t, `{"title":"Batman Begins","year":2005,"external_id":"tt0372784"}`,
		string(fc.body("PUT /movies/_doc/tt0372784")))

	got, err := e.Get(ctx, "tt0372784")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	_, err = e.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestElasticSearch(t *testing.T) {
	fc, e := newFakeCluster(t)
	res, err := e.Search(context.Background(), Query{Title: "Batman", Year: 2005, Offset: 10, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 12, res.Total)
	assert.Equal(t, []string{"tt0372784", "tt1877830"}, ids(res.Hits))

	var sent map[string]any
	require.NoError(t, json.Unmarshal(fc.body("POST /movies/_search"), &sent))
	assert.EqualValues(t, 10, sent["from"])
	assert.EqualValues(t, 10, sent["size"])
}

func TestElasticResultWindow(t *testing.T) {
	fc, e := newFakeCluster(t)
	ctx := context.Background()

	_, err := e.Search(ctx, Query{Offset: MaxResultWindow - 10, Limit: 10})
	require.NoError(t, err)
	var sent map[string]any
	require.NoError(t, json.Unmarshal(fc.body("POST /movies/_search"), &sent))
	assert.EqualValues(t, MaxResultWindow-10, sent["from"])

	_, err = e.Search(ctx, Query{Offset: MaxResultWindow, Limit: 10})
	assert.ErrorIs(t, err, ErrResultWindow)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, []string{"POST /movies/_search"}, fc.seen())
}

func TestElasticSearchMissingIndex(t *testing.T) {
	fc, e := newFakeCluster(t)
	fc.handler = func(w http.ResponseWriter, r *http.Request) bool {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"type":"index_not_found_exception"},"status":404}`))
		return true
	}
	_, err := e.Search(context.Background(), Query{Limit: 10})
	assert.ErrorIs(t, err, ErrIndexNotFound)
}

func TestElasticAdminCalls(t *testing.T) {
	fc, e := newFakeCluster(t)
	ctx := context.Background()
	require.NoError(t, e.Ping(ctx))
	require.NoError(t, e.Refresh(ctx))
	require.NoError(t, e.DeleteIndex(ctx))
	assert.Equal(t, []string{"HEAD /", "POST /movies/_refresh", "DELETE /movies"}, fc.seen())
}

func TestBuildSearchBody(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		want string
	}{
		{
			name: "match all",
			q:    Query{Offset: 0, Limit: 10},
			want: `{"from":0,"size":10,"track_total_hits":true,"query":{"match_all":{}},
				"sort":["_score",{"external_id":"asc"}]}`,
		},
		{
			name: "title escaped and year",
			q:    Query{Title: " Star*Wars? ", Year: 1977, Offset: 20, Limit: 5},
			want: `{"from":20,"size":5,"track_total_hits":true,"query":{"bool":{"must":[
				{"wildcard":{"title.lower":{"value":"*star\\*wars\\?*","case_insensitive":true}}},
				{"term":{"year":1977}}]}},
				"sort":["_score",{"external_id":"asc"}]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(buildSearchBody(tt.q))
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}
