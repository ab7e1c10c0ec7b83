// Package fetch retrieves web pages for document input and evidence
// enrichment. Requests honor robots.txt and are rate-limited per domain.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/claimcheck/internal/cache"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/resilience"
	"github.com/ppiankov/claimcheck/internal/util"
	"github.com/ppiankov/claimcheck/internal/worker"
)

// ErrDisallowed is returned when robots.txt forbids fetching a URL
var ErrDisallowed = errors.New("disallowed by robots.txt")

// Page is a fetched document reduced to readable text
type Page struct {
	URL         string `json:"url"`
	FinalURL    string `json:"final_url"`
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	Text        string `json:"text"`
}

// Fetcher fetches pages and extracts their text
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *RobotsChecker
	limiter    *worker.Limiter
	cache      cache.Cache
	cacheTTL   time.Duration
	logger     *slog.Logger
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithCache stores extracted pages in c for ttl
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(f *Fetcher) {
		f.cache = c
		f.cacheTTL = ttl
	}
}

// WithLimiter replaces the per-domain limiter built from configuration
func WithLimiter(l *worker.Limiter) Option {
	return func(f *Fetcher) { f.limiter = l }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// NewFetcher creates a fetcher from the http configuration section
func NewFetcher(cfg model.HTTPConfig, opts ...Option) *Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 2 << 20
	}

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("stopped after 5 redirects")
			}
			return nil
		},
	}

	f := &Fetcher{
		httpClient: client,
		userAgent:  cfg.UserAgent,
		maxBytes:   maxBytes,
		limiter:    worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst),
		cache:      cache.Nop{},
	}
	if cfg.RespectRobots {
		f.robots = NewRobotsChecker(cfg.UserAgent, client, timeout)
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logging.OrDefault(f.logger)
	return f
}

// Fetch retrieves rawURL and returns its readable text. Failures are
// classified for the resilience executor: robots denial and 4xx responses
// are permanent, 429 and 5xx are transient.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	key := cache.Key("page", rawURL)
	if page, ok := cache.GetJSON[Page](f.cache, key); ok {
		return &page, nil
	}

	var delay time.Duration
	if f.robots != nil {
		allowed, crawlDelay, err := f.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return nil, resilience.Permanent(err)
		}
		if !allowed {
			return nil, resilience.Permanent(fmt.Errorf("%s: %w", rawURL, ErrDisallowed))
		}
		delay = crawlDelay
	}

	if err := f.limiter.WaitWithDelay(ctx, rawURL, delay); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resilience.ClassifyStatus(resp.StatusCode, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, resilience.Transient(fmt.Errorf("read body: %w", err))
	}

	page := &Page{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}

	if isPlainText(page.ContentType) {
		page.Text = strings.TrimSpace(string(body))
	} else {
		page.Title, page.Text, err = ExtractText(bytes.NewReader(body))
		if err != nil {
			return nil, resilience.Malformed(err)
		}
	}

	if err := cache.SetJSON(f.cache, key, page, f.cacheTTL); err != nil {
		f.logger.Debug("page cache write failed", "url", rawURL, "error", err)
	}
	return page, nil
}

func isPlainText(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "text/plain")
}
