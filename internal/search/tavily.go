package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/claimcheck/internal/metrics"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/resilience"
	"github.com/ppiankov/claimcheck/internal/util"
	"github.com/ppiankov/claimcheck/internal/worker"
)

const defaultTavilyURL = "https://api.tavily.com"

// TavilyClient calls the Tavily search API
type TavilyClient struct {
	apiKey     string
	baseURL    string
	depth      string
	httpClient *http.Client
	limiter    *worker.Limiter
}

type tavilyRequest struct {
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth,omitempty"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type tavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type tavilyResponse struct {
	Query   string         `json:"query"`
	Results []tavilyResult `json:"results"`
}

type tavilyError struct {
	Detail struct {
		Error string `json:"error"`
	} `json:"detail"`
}

// NewTavilyClient creates a Tavily client. API calls are capped client-side at
// cfg.RequestsPerSecond.
func NewTavilyClient(cfg model.SearchConfig, httpCfg model.HTTPConfig) (*TavilyClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Tavily API key is required (set TAVILY_API_KEY)")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultTavilyURL
	}
	depth := cfg.Depth
	if depth == "" {
		depth = "basic"
	}
	timeout := httpCfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &TavilyClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		depth:   depth,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(httpCfg.HTTPProxy, httpCfg.HTTPSProxy, httpCfg.NoProxy),
			},
		},
		limiter: worker.NewLimiter(cfg.RequestsPerSecond, 1),
	}, nil
}

// Search runs one query
func (c *TavilyClient) Search(ctx context.Context, query string, maxResults int) ([]model.Evidence, error) {
	if err := c.limiter.WaitKey(ctx, "tavily"); err != nil {
		return nil, err
	}

	results, err := c.search(ctx, query, maxResults)
	if err != nil {
		metrics.SearchCalls.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.SearchCalls.WithLabelValues("ok").Inc()
	return results, nil
}

func (c *TavilyClient) search(ctx context.Context, query string, maxResults int) ([]model.Evidence, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	body, err := json.Marshal(tavilyRequest{
		Query:       query,
		SearchDepth: c.depth,
		MaxResults:  maxResults,
	})
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.Transient(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr tavilyError
		msg := string(respBody)
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Detail.Error != "" {
			msg = apiErr.Detail.Error
		}
		return nil, resilience.ClassifyStatus(resp.StatusCode, fmt.Errorf("tavily API error (%d): %s", resp.StatusCode, msg))
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, resilience.Malformed(fmt.Errorf("unmarshal response: %w", err))
	}

	evidence := make([]model.Evidence, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.URL == "" {
			continue
		}
		evidence = append(evidence, model.Evidence{
			URL:       r.URL,
			Title:     strings.TrimSpace(r.Title),
			Snippet:   strings.TrimSpace(r.Content),
			Relevance: r.Score,
		})
	}
	return evidence, nil
}
