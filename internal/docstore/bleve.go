package docstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/internal/movie"
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

// titleAnalyzerName indexes the whole title as one lowercased term so that
// substring matching works across word boundaries.
const titleAnalyzerName = "title_lower"

var storedFields = []string{"title", "year", "external_id"}

// Bleve is a Store backed by an embedded bleve index.
type Bleve struct {
	mu    sync.RWMutex
	path  string
	index bleve.Index
}

// NewBleve returns a store rooted at path; an empty path keeps the index in
// memory. The index is opened by EnsureIndex.
func NewBleve(path string) *Bleve {
	return &Bleve{path: path}
}

func buildMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	err := im.AddCustomAnalyzer(titleAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     single.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("adding title analyzer: %w", err)
	}

	title := bleve.NewTextFieldMapping()
	title.Analyzer = titleAnalyzerName
	title.Store = true

	year := bleve.NewNumericFieldMapping()
	year.Store = true

	externalID := bleve.NewTextFieldMapping()
	externalID.Analyzer = keyword.Name
	externalID.Store = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("title", title)
	doc.AddFieldMappingsAt("year", year)
	doc.AddFieldMappingsAt("external_id", externalID)

	im.DefaultMapping = doc
	return im, nil
}

func (b *Bleve) EnsureIndex(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index != nil {
		return nil
	}
	im, err := buildMapping()
	if err != nil {
		return err
	}
	var idx bleve.Index
	if b.path == "" {
		idx, err = bleve.NewMemOnly(im)
	} else {
		idx, err = bleve.Open(b.path)
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			idx, err = bleve.New(b.path, im)
		}
	}
	if err != nil {
		return fmt.Errorf("opening bleve index: %w", err)
	}
	b.index = idx
	return nil
}

func (b *Bleve) Upsert(ctx context.Context, rec movie.Record) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return ErrIndexNotFound
	}
	doc := map[string]interface{}{
		"title":       rec.Title,
		"year":        float64(rec.Year),
		"external_id": rec.ExternalID,
	}
	if err := b.index.Index(rec.ExternalID, doc); err != nil {
		return fmt.Errorf("indexing %s: %w", rec.ExternalID, err)
	}
	return nil
}

func (b *Bleve) Get(ctx context.Context, externalID string) (movie.Record, error) {
	res, err := b.search(ctx, bleve.NewDocIDQuery([]string{externalID}), 0, 1)
	if err != nil {
		return movie.Record{}, err
	}
	if len(res.Hits) == 0 {
		return movie.Record{}, fmt.Errorf("%s: %w", externalID, ErrNotFound)
	}
	return res.Hits[0], nil
}

func (b *Bleve) Search(ctx context.Context, q Query) (*Result, error) {
	if err := q.checkWindow(); err != nil {
		return nil, err
	}
	var clauses []query.Query
	if title := strings.TrimSpace(q.Title); title != "" {
		rq := bleve.NewRegexpQuery(".*" + regexp.QuoteMeta(strings.ToLower(title)) + ".*")
		rq.SetField("title")
		clauses = append(clauses, rq)
	}
	if q.Year != 0 {
		year := float64(q.Year)
		inclusive := true
		nq := bleve.NewNumericRangeInclusiveQuery(&year, &year, &inclusive, &inclusive)
		nq.SetField("year")
		clauses = append(clauses, nq)
	}

	var root query.Query
	switch len(clauses) {
	case 0:
		root = bleve.NewMatchAllQuery()
	case 1:
		root = clauses[0]
	default:
		root = bleve.NewConjunctionQuery(clauses...)
	}
	return b.search(ctx, root, q.Offset, q.Limit)
}

func (b *Bleve) search(ctx context.Context, q query.Query, offset, limit int) (*Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return nil, ErrIndexNotFound
	}
	req := bleve.NewSearchRequestOptions(q, limit, offset, false)
	req.Fields = storedFields
	req.SortBy([]string{"-_score", "_id"})

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}
	out := &Result{
		Hits:  make([]movie.Record, 0, len(res.Hits)),
		Total: int(res.Total),
	}
	for _, hit := range res.Hits {
		rec := movie.Record{ExternalID: hit.ID}
		if v, ok := hit.Fields["title"].(string); ok {
			rec.Title = v
		}
		if v, ok := hit.Fields["year"].(float64); ok {
			rec.Year = int(v)
		}
		out.Hits = append(out.Hits, rec)
	}
	return out, nil
}

// Refresh is a no-op: bleve writes are searchable once Index returns.
func (b *Bleve) Refresh(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return ErrIndexNotFound
	}
	return nil
}

func (b *Bleve) DeleteIndex(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index != nil {
		if err := b.index.Close(); err != nil {
			return fmt.Errorf("closing bleve index: %w", err)
		}
		b.index = nil
	}
	if b.path != "" {
		if err := os.RemoveAll(b.path); err != nil {
			return fmt.Errorf("removing bleve index: %w", err)
		}
	}
	return nil
}

// Ping always succeeds; the embedded index has no remote side.
func (b *Bleve) Ping(ctx context.Context) error {
	return nil
}

func (b *Bleve) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index == nil {
		return nil
	}
	err := b.index.Close()
	b.index = nil
	return err
}
