// Package search is the evidence retrieval capability used by verification
// loops: a Tavily client plus caching and full-content enrichment wrappers.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/claimcheck/internal/model"
)

// Searcher runs one web search. Returned evidence carries title, snippet, URL
// and relevance score; Query and Iteration are left for the caller to fill.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]model.Evidence, error)
}

// SearcherFunc adapts a function to the Searcher interface
type SearcherFunc func(ctx context.Context, query string, maxResults int) ([]model.Evidence, error)

// Search calls f
func (f SearcherFunc) Search(ctx context.Context, query string, maxResults int) ([]model.Evidence, error) {
	return f(ctx, query, maxResults)
}

// New creates the searcher named by cfg.Provider
func New(cfg model.SearchConfig, httpCfg model.HTTPConfig) (Searcher, error) {
	switch strings.ToLower(cfg.Provider) {
	case "tavily", "":
		return NewTavilyClient(cfg, httpCfg)
	default:
		return nil, fmt.Errorf("unknown search provider: %s (supported: tavily)", cfg.Provider)
	}
}
