package search

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/claimcheck/internal/cache"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/metrics"
	"github.com/ppiankov/claimcheck/internal/model"
)

type cacheHitKey struct{}

// WithCacheReport returns a context in which a CachedSearcher sets *hit when it
// answers from the cache instead of calling the backend.
func WithCacheReport(ctx context.Context, hit *bool) context.Context {
	return context.WithValue(ctx, cacheHitKey{}, hit)
}

func reportHit(ctx context.Context) {
	if hit, ok := ctx.Value(cacheHitKey{}).(*bool); ok && hit != nil {
		*hit = true
	}
}

// CachedSearcher serves repeated queries from a cache. Failed searches are not cached.
type CachedSearcher struct {
	next   Searcher
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedSearcher wraps next with a response cache
func NewCachedSearcher(next Searcher, c cache.Cache, ttl time.Duration, logger *slog.Logger) *CachedSearcher {
	return &CachedSearcher{next: next, cache: c, ttl: ttl, logger: logging.OrDefault(logger)}
}

// Search returns the cached response for (query, maxResults) or delegates
func (s *CachedSearcher) Search(ctx context.Context, query string, maxResults int) ([]model.Evidence, error) {
	key := cache.Key("search", strings.ToLower(strings.TrimSpace(query)), strconv.Itoa(maxResults))
	if cached, ok := cache.GetJSON[[]model.Evidence](s.cache, key); ok {
		metrics.SearchCalls.WithLabelValues("cached").Inc()
		reportHit(ctx)
		return cached, nil
	}

	results, err := s.next.Search(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}

	if err := cache.SetJSON(s.cache, key, results, s.ttl); err != nil {
		s.logger.Debug("search cache write failed", "query", query, "error", err)
	}
	return results, nil
}
