package search

import (
	"context"
	"log/slog"
	"sort"
	"unicode/utf8"

	"github.com/ppiankov/claimcheck/internal/fetch"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/model"
	"golang.org/x/sync/errgroup"
)

// maxContentChars caps the page text kept per evidence item
const maxContentChars = 8000

// PageFetcher fetches readable page text
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Page, error)
}

// Enricher fills in full page content for the most relevant results.
// Fetch failures leave the snippet in place and never fail the search.
type Enricher struct {
	next    Searcher
	fetcher PageFetcher
	topN    int
	logger  *slog.Logger
}

// NewEnricher wraps next so that the topN results by relevance get full content
func NewEnricher(next Searcher, fetcher PageFetcher, topN int, logger *slog.Logger) *Enricher {
	return &Enricher{next: next, fetcher: fetcher, topN: topN, logger: logging.OrDefault(logger)}
}

// Search delegates and then fetches page content concurrently
func (e *Enricher) Search(ctx context.Context, query string, maxResults int) ([]model.Evidence, error) {
	results, err := e.next.Search(ctx, query, maxResults)
	if err != nil || e.topN <= 0 || len(results) == 0 {
		return results, err
	}

	out := make([]model.Evidence, len(results))
	copy(out, results)

	order := make([]int, len(out))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return out[order[a]].Relevance > out[order[b]].Relevance })
	if len(order) > e.topN {
		order = order[:e.topN]
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, idx := range order {
		g.Go(func() error {
			page, err := e.fetcher.Fetch(gctx, out[idx].URL)
			if err != nil {
				e.logger.Debug("evidence enrichment skipped", "url", out[idx].URL, "error", err)
				return nil
			}
			out[idx].Content = clip(page.Text, maxContentChars)
			if out[idx].Title == "" {
				out[idx].Title = page.Title
			}
			return nil
		})
	}
	_ = g.Wait()

	return out, nil
}

// clip cuts s to at most n bytes without splitting a rune
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
