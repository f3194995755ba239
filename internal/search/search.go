// Package search finds services for the chat assistant and keeps the
// Meilisearch index in sync, falling back to Postgres full-text search.
package search

import "context"

// Result is a single matching service.
type Result struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Price       string `json:"price"`
}

// Query describes a search request.
type Query struct {
	Text     string
	Category string // empty = all categories
	Limit    int
	Offset   int
}

// Response is the envelope returned to callers.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// ServiceRecord is the data we index for a service. Price is the decimal text.
type ServiceRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Price       string `json:"price"`
	ProviderID  string `json:"providerId"`
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}
