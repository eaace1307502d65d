package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/movie"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// indexBody declares the title both as analyzed text and as a lowercased
// keyword sub-field used for substring matching.
const indexBody = `{
  "settings": {
    "analysis": {
      "normalizer": {
        "lowercase_normalizer": {"type": "custom", "filter": ["lowercase"]}
      }
    }
  },
  "mappings": {
    "properties": {
      "title": {
        "type": "text",
        "fields": {"lower": {"type": "keyword", "normalizer": "lowercase_normalizer"}}
      },
      "year": {"type": "integer"},
      "external_id": {"type": "keyword"}
    }
  }
}`

// Elastic is a Store backed by an Elasticsearch cluster.
type Elastic struct {
	es    *elasticsearch.Client
	index string
}

// NewElastic builds a client for the cluster at url operating on index.
func NewElastic(url, index string) (*Elastic, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
	})
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}
	return &Elastic{es: es, index: index}, nil
}

func (e *Elastic) EnsureIndex(ctx context.Context) error {
	res, err := e.es.Indices.Exists([]string{e.index}, e.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("checking index %s: %w", e.index, err)
	}
	res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("checking index %s: unexpected status %d", e.index, res.StatusCode)
	}

	res, err = e.es.Indices.Create(e.index,
		e.es.Indices.Create.WithBody(strings.NewReader(indexBody)),
		e.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("creating index %s: %w", e.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body := readBody(res)
		// Another process created it between the two calls.
		if strings.Contains(body, "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("creating index %s: %s: %s", e.index, res.Status(), body)
	}
	return nil
}

func (e *Elastic) Upsert(ctx context.Context, rec movie.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", rec.ExternalID, err)
	}
	res, err := e.es.Index(e.index, bytes.NewReader(body),
		e.es.Index.WithDocumentID(rec.ExternalID),
		e.es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("indexing %s: %w", rec.ExternalID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("indexing %s: %s: %s", rec.ExternalID, res.Status(), readBody(res))
	}
	return nil
}

func (e *Elastic) Get(ctx context.Context, externalID string) (movie.Record, error) {
	res, err := e.es.Get(e.index, externalID, e.es.Get.WithContext(ctx))
	if err != nil {
		return movie.Record{}, fmt.Errorf("getting %s: %w", externalID, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return movie.Record{}, fmt.Errorf("%s: %w", externalID, ErrNotFound)
	}
	if res.IsError() {
		return movie.Record{}, fmt.Errorf("getting %s: %s: %s", externalID, res.Status(), readBody(res))
	}
	var doc struct {
		Source movie.Record `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return movie.Record{}, fmt.Errorf("decoding %s: %w", externalID, err)
	}
	return doc.Source, nil
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source movie.Record `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (e *Elastic) Search(ctx context.Context, q Query) (*Result, error) {
	if err := q.checkWindow(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(buildSearchBody(q))
	if err != nil {
		return nil, fmt.Errorf("encoding search: %w", err)
	}
	res, err := e.es.Search(
		e.es.Search.WithContext(ctx),
		e.es.Search.WithIndex(e.index),
		e.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", e.index, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("searching %s: %w", e.index, ErrIndexNotFound)
	}
	if res.IsError() {
		return nil, fmt.Errorf("searching %s: %s: %s", e.index, res.Status(), readBody(res))
	}
	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	out := &Result{
		Hits:  make([]movie.Record, 0, len(sr.Hits.Hits)),
		Total: sr.Hits.Total.Value,
	}
	for _, h := range sr.Hits.Hits {
		out.Hits = append(out.Hits, h.Source)
	}
	return out, nil
}

// buildSearchBody renders q as a bool query. The title clause is a
// case-insensitive wildcard on the keyword sub-field with the user input
// escaped, so the input is matched literally.
func buildSearchBody(q Query) map[string]any {
	var must []map[string]any
	if title := strings.TrimSpace(q.Title); title != "" {
		must = append(must, map[string]any{
			"wildcard": map[string]any{
				"title.lower": map[string]any{
					"value":            "*" + escapeWildcard(strings.ToLower(title)) + "*",
					"case_insensitive": true,
				},
			},
		})
	}
	if q.Year != 0 {
		must = append(must, map[string]any{"term": map[string]any{"year": q.Year}})
	}
	query := map[string]any{"match_all": map[string]any{}}
	if len(must) > 0 {
		query = map[string]any{"bool": map[string]any{"must": must}}
	}
	return map[string]any{
		"from":             q.Offset,
		"size":             q.Limit,
		"track_total_hits": true,
		"query":            query,
		"sort": []any{
			"_score",
			map[string]any{"external_id": "asc"},
		},
	}
}

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

func escapeWildcard(s string) string {
	return wildcardEscaper.Replace(s)
}

func (e *Elastic) Refresh(ctx context.Context) error {
	res, err := e.es.Indices.Refresh(
		e.es.Indices.Refresh.WithIndex(e.index),
		e.es.Indices.Refresh.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("refreshing %s: %w", e.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("refreshing %s: %s", e.index, res.Status())
	}
	return nil
}

func (e *Elastic) DeleteIndex(ctx context.Context) error {
	res, err := e.es.Indices.Delete([]string{e.index},
		e.es.Indices.Delete.WithIgnoreUnavailable(true),
		e.es.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("deleting index %s: %w", e.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("deleting index %s: %s: %s", e.index, res.Status(), readBody(res))
	}
	return nil
}

func (e *Elastic) Ping(ctx context.Context) error {
	res, err := e.es.Ping(e.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("pinging elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("pinging elasticsearch: %s", res.Status())
	}
	return nil
}

// Close is a no-op; the transport holds no resources that need releasing.
func (e *Elastic) Close() error {
	return nil
}

func readBody(res *esapi.Response) string {
	b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return strings.TrimSpace(string(b))
}
