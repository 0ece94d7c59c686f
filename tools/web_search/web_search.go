// Package web_search holds the search contracts shared by the web_search tool and its providers.
package web_search

import "context"

const (
	DefaultTopK        = 5
	DefaultRecencyDays = 3650

	MinTopK = 1
	MaxTopK = 20

	// MaxRecencyDays is the widest window translated into a provider freshness filter.
	MaxRecencyDays = 365
)

// Query is a single web_search request as issued by the model.
type Query struct {
	Query       string
	TopK        int
	RecencyDays int
}

// Result is one search hit. Any field may be empty.
type Result struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Snippet     string `json:"snippet"`
	PublishedAt string `json:"published_at"`
}

// Response is the tool payload fed back to the model.
type Response struct {
	Results []Result `json:"results"`
}

// Empty returns a response whose results encode as [] rather than null.
func Empty() Response {
	return Response{Results: []Result{}}
}

// WebSearcher runs a query. Implementations absorb their own failures and
// always return a well-formed Response.
type WebSearcher interface {
	Search(ctx context.Context, q Query) Response
}

// ClampTopK bounds k into [MinTopK, MaxTopK].
func ClampTopK(k int) int {
	if k < MinTopK {
		return MinTopK
	}
	if k > MaxTopK {
		return MaxTopK
	}
	return k
}

// InFreshnessWindow reports whether days should become a freshness filter.
// Anything outside (0, MaxRecencyDays] disables filtering, including the
// DefaultRecencyDays "no limit" sentinel.
func InFreshnessWindow(days int) bool {
	return days > 0 && days <= MaxRecencyDays
}
