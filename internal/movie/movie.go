// Package movie defines the catalog record and the search request/response
// shapes shared by the ingestion and search paths.
package movie

// Record is one catalog entry as stored in the document store. ExternalID is
// the primary key; re-indexing a record overwrites it whole.
type Record struct {
	Title      string `json:"title"`
	Year       int    `json:"year"`
	ExternalID string `json:"external_id"`
}

// SearchParams are the validated inputs of a search. Year 0 means no year
// filter; an empty Title means no title filter.
type SearchParams struct {
	Title string
	Year  int
	Page  int
	Size  int
}

// Offset is the number of matches skipped before the requested page.
func (p SearchParams) Offset() int {
	return (p.Page - 1) * p.Size
}

// SearchResponse is the body returned by the search endpoint and the value
// stored in the response cache.
type SearchResponse struct {
	Movies       []Record `json:"movies"`
	TotalResults int      `json:"total_results"`
	Page         int      `json:"page"`
	Size         int      `json:"size"`
}
