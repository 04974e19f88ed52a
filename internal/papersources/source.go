// Package papersources provides the search provider abstraction used to find
// related literature, together with a rate-limited HTTP client shared by
// provider implementations.
//
// Example usage:
//
//	source := arxiv.New(cfg, metrics, logger)
//	result, err := source.Search(ctx, papersources.SearchParams{
//		Query:      "graph neural networks",
//		MaxResults: 3,
//	})
package papersources

import (
	"context"
	"time"

	"github.com/helixir/paper-graph-service/internal/domain"
)

// SearchParams defines a single related-work query.
type SearchParams struct {
	// Query is the free-text search string (required). It is sent verbatim
	// after URL encoding; no query syntax is interpreted by the client.
	Query string

	// MaxResults limits the number of entries requested from the provider.
	// A value of 0 uses the source's configured default.
	MaxResults int
}

// SearchResult contains the outcome of one query against one provider.
type SearchResult struct {
	// Papers holds the parsed entries in provider order, each tagged with
	// the query that produced it.
	Papers []domain.RelatedPaper

	// Skipped counts malformed entries that were dropped while parsing.
	Skipped int

	// Source identifies which provider produced these results.
	Source domain.SourceType

	// SearchDuration is the time taken by the request including parsing.
	SearchDuration time.Duration
}

// PaperSource is a search provider for related literature.
type PaperSource interface {
	// Search runs one query. Implementations must respect context
	// cancellation and return an error for transport failures, non-200
	// responses and unparseable envelopes. Individual malformed entries are
	// skipped rather than failing the query.
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)

	// SourceType returns the type identifier for this source.
	SourceType() domain.SourceType

	// Name returns a human-readable name used in logs.
	Name() string
}
