package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/claimcheck/internal/cache"
	"github.com/ppiankov/claimcheck/internal/fetch"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTavily(t *testing.T, handler http.HandlerFunc) *TavilyClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewTavilyClient(model.SearchConfig{APIKey: "tvly-test", BaseURL: server.URL}, model.HTTPConfig{Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func TestTavilyClient_Search(t *testing.T) {
	c := newTavily(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer tvly-test", r.Header.Get("Authorization"))

		var req tavilyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "capital of France", req.Query)
		assert.Equal(t, 3, req.MaxResults)
		assert.Equal(t, "basic", req.SearchDepth)

		_ = json.NewEncoder(w).Encode(tavilyResponse{Results: []tavilyResult{
			{Title: " Paris ", URL: "https://en.wikipedia.org/wiki/Paris", Content: "Paris is the capital.", Score: 0.93},
			{Title: "no url", Content: "dropped"},
			{Title: "France", URL: "https://www.britannica.com/place/France", Content: "Capital: Paris", Score: 0.71},
		}})
	})

	results, err := c.Search(context.Background(), "capital of France", 3)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Paris", results[0].Title)
	assert.Equal(t, "Paris is the capital.", results[0].Snippet)
	assert.InDelta(t, 0.93, results[0].Relevance, 1e-9)
	assert.Equal(t, "https://www.britannica.com/place/France", results[1].URL)
}

func TestTavilyClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   resilience.Kind
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"detail": {"error": "Unauthorized: missing or invalid API key."}}`, kind: resilience.KindPermanent},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{}`, kind: resilience.KindTransient},
		{name: "server error", status: http.StatusBadGateway, body: `bad gateway`, kind: resilience.KindTransient},
		{name: "malformed", status: http.StatusOK, body: `{"results": [`, kind: resilience.KindMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTavily(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Search(context.Background(), "q", 5)
			require.Error(t, err)
			assert.Equal(t, tt.kind, resilience.KindOf(err))
		})
	}
}

func TestNewTavilyClient_RequiresKey(t *testing.T) {
	_, err := NewTavilyClient(model.SearchConfig{}, model.HTTPConfig{})
	assert.Error(t, err)
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(model.SearchConfig{Provider: "bing", APIKey: "k"}, model.HTTPConfig{})
	assert.Error(t, err)
}

func TestCachedSearcher(t *testing.T) {
	var calls atomic.Int32
	next := SearcherFunc(func(ctx context.Context, query string, maxResults int) ([]model.Evidence, error) {
		calls.Add(1)
		if query == "fail" {
			return nil, errors.New("boom")
		}
		return []model.Evidence{{URL: "https://example.com/" + query}}, nil
	})
	s := NewCachedSearcher(next, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute, nil)

	for i := 0; i < 3; i++ {
		results, err := s.Search(context.Background(), "Paris", 5)
		require.NoError(t, err)
		require.Len(t, results, 1)
	}
	_, err := s.Search(context.Background(), "  paris ", 5)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "normalized query should hit the cache")

	_, err = s.Search(context.Background(), "Paris", 10)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "different result count is a different entry")

	_, err = s.Search(context.Background(), "fail", 5)
	require.Error(t, err)
	_, err = s.Search(context.Background(), "fail", 5)
	require.Error(t, err)
	assert.Equal(t, int32(4), calls.Load(), "errors are not cached")
}

func TestCachedSearcher_ReportsHits(t *testing.T) {
	next := SearcherFunc(func(ctx context.Context, query string, maxResults int) ([]model.Evidence, error) {
		return []model.Evidence{{URL: "https://example.com/" + query}}, nil
	})
	s := NewCachedSearcher(next, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute, nil)

	var miss bool
	_, err := s.Search(WithCacheReport(context.Background(), &miss), "Paris", 5)
	require.NoError(t, err)
	assert.False(t, miss)

	var hit bool
	_, err = s.Search(WithCacheReport(context.Background(), &hit), "Paris", 5)
	require.NoError(t, err)
	assert.True(t, hit)

	_, err = s.Search(context.Background(), "Paris", 5)
	require.NoError(t, err, "a context without a report still works")
}

type stubFetcher struct {
	mu      sync.Mutex
	fetched []string
	pages   map[string]*fetch.Page
}

func (f *stubFetcher) Fetch(_ context.Context, rawURL string) (*fetch.Page, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, rawURL)
	f.mu.Unlock()
	if p, ok := f.pages[rawURL]; ok {
		return p, nil
	}
	return nil, errors.New("unreachable")
}

func TestEnricher_FetchesTopResults(t *testing.T) {
	next := SearcherFunc(func(ctx context.Context, query string, maxResults int) ([]model.Evidence, error) {
		return []model.Evidence{
			{URL: "https://a.example", Snippet: "a", Relevance: 0.2},
			{URL: "https://b.example", Snippet: "b", Relevance: 0.9},
			{URL: "https://c.example", Snippet: "c", Relevance: 0.5},
		}, nil
	})
	fetcher := &stubFetcher{pages: map[string]*fetch.Page{
		"https://b.example": {Text: "full text of b", Title: "B"},
	}}

	results, err := NewEnricher(next, fetcher, 2, nil).Search(context.Background(), "q", 3)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"https://b.example", "https://c.example"}, fetcher.fetched)
	assert.Equal(t, "full text of b", results[1].Content)
	assert.Equal(t, "B", results[1].Title)
	assert.Empty(t, results[2].Content, "failed fetch keeps the snippet only")
	assert.Equal(t, "c", results[2].Snippet)
	assert.Empty(t, results[0].Content)
}

func TestClip(t *testing.T) {
	assert.Equal(t, "abc", clip("abc", 5))
	assert.Equal(t, "ab", clip("abcdef", 2))
	assert.Equal(t, "a", clip("aé", 2), "must not split a multi-byte rune")
}
