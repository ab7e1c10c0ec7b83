package model

import (
	"errors"
	"fmt"
	"time"
)

// Config is the complete claimcheck configuration
type Config struct {
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Search       SearchConfig       `yaml:"search" mapstructure:"search"`
	Extraction   ExtractionConfig   `yaml:"extraction" mapstructure:"extraction"`
	Verification VerificationConfig `yaml:"verification" mapstructure:"verification"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" mapstructure:"orchestrator"`
	Retry        RetryConfig        `yaml:"retry" mapstructure:"retry"`
	Breaker      BreakerConfig      `yaml:"breaker" mapstructure:"breaker"`
	Authority    AuthorityConfig    `yaml:"authority" mapstructure:"authority"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Preprocess   PreprocessConfig   `yaml:"preprocess" mapstructure:"preprocess"`
	Logging      LoggingConfig      `yaml:"logging" mapstructure:"logging"`
}

// LLMConfig selects the inference provider
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"` // Voting stages need non-zero temperature
}

// SearchConfig selects the evidence retrieval service
type SearchConfig struct {
	Provider          string  `yaml:"provider" mapstructure:"provider"` // tavily
	APIKey            string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL           string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Depth             string  `yaml:"depth" mapstructure:"depth"`                             // basic or advanced
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"` // Client-side cap on search API calls
	FetchContent      bool    `yaml:"fetch_content" mapstructure:"fetch_content"`             // Fetch full page text for top results
	FetchTopN         int     `yaml:"fetch_top_n" mapstructure:"fetch_top_n"`
}

// ExtractionConfig controls the claim extraction pipeline
type ExtractionConfig struct {
	Votes         int     `yaml:"votes" mapstructure:"votes"`                   // Consensus vote count K
	Agreement     float64 `yaml:"agreement" mapstructure:"agreement"`           // Fraction of K that must agree
	NearMatch     float64 `yaml:"near_match" mapstructure:"near_match"`         // Similarity treated as textual equivalence
	ContextBefore int     `yaml:"context_before" mapstructure:"context_before"` // Preceding sentences shown to the model
	ContextAfter  int     `yaml:"context_after" mapstructure:"context_after"`   // Following sentences shown to the selector
	Concurrency   int     `yaml:"concurrency" mapstructure:"concurrency"`       // Candidates processed at once per stage
}

// VerificationConfig controls the verification loop stopping policy
type VerificationConfig struct {
	MaxIterations            int `yaml:"max_iterations" mapstructure:"max_iterations"`
	MinEvidence              int `yaml:"min_evidence" mapstructure:"min_evidence"`
	AuthoritativeMinEvidence int `yaml:"authoritative_min_evidence" mapstructure:"authoritative_min_evidence"`
	MaxResults               int `yaml:"max_results" mapstructure:"max_results"`                     // Results requested per search call
	EvidenceTokenBudget      int `yaml:"evidence_token_budget" mapstructure:"evidence_token_budget"` // Evidence tokens allowed in the evaluation prompt
}

// OrchestratorConfig controls verification fan-out
type OrchestratorConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"` // Simultaneously active verification loops
}

// RetryConfig is the per-call retry and timeout policy for external services
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"` // Per external call
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier" mapstructure:"multiplier"`
	Jitter         float64       `yaml:"jitter" mapstructure:"jitter"`
}

// BreakerConfig configures the shared circuit breaker
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown" mapstructure:"cooldown"`
}

// AuthorityConfig defines the authoritative-domain allow-list
type AuthorityConfig struct {
	PrimaryDomains   []string          `yaml:"primary_domains" mapstructure:"primary_domains"`
	SecondaryDomains []string          `yaml:"secondary_domains" mapstructure:"secondary_domains"`
	PrimarySuffixes  []string          `yaml:"primary_suffixes" mapstructure:"primary_suffixes"` // e.g. .gov, .edu
	DomainMap        map[string]string `yaml:"domain_map,omitempty" mapstructure:"domain_map"`   // host -> tier override
	PathPatterns     []PathPattern     `yaml:"path_patterns,omitempty" mapstructure:"path_patterns"`
}

// PathPattern assigns a tier to URLs whose path matches a regular expression
type PathPattern struct {
	Pattern string `yaml:"pattern" mapstructure:"pattern"`
	Tier    string `yaml:"tier" mapstructure:"tier"`
}

// HTTPConfig configures page fetching and shared transport settings
type HTTPConfig struct {
	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RespectRobots     bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"` // Per domain
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	HTTPProxy         string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy        string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy           string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CacheConfig configures the search response cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir,omitempty" mapstructure:"dir"` // Empty means $HOME/.claimcheck/cache
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// StoreConfig configures report history persistence
type StoreConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path,omitempty" mapstructure:"path"` // Empty means $HOME/.claimcheck/history.db
}

// PreprocessConfig configures input preprocessing
type PreprocessConfig struct {
	Translate          bool   `yaml:"translate" mapstructure:"translate"`
	TargetLanguage     string `yaml:"target_language" mapstructure:"target_language"`
	TranscriptionModel string `yaml:"transcription_model" mapstructure:"transcription_model"`
}

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			MaxTokens:   2000,
			Temperature: 0.2,
		},
		Search: SearchConfig{
			Provider:          "tavily",
			Depth:             "basic",
			RequestsPerSecond: 5,
			FetchContent:      false,
			FetchTopN:         2,
		},
		Extraction: ExtractionConfig{
			Votes:         3,
			Agreement:     2.0 / 3.0,
			NearMatch:     0.95,
			ContextBefore: 5,
			ContextAfter:  5,
			Concurrency:   8,
		},
		Verification: VerificationConfig{
			MaxIterations:            3,
			MinEvidence:              2,
			AuthoritativeMinEvidence: 3,
			MaxResults:               5,
			EvidenceTokenBudget:      6000,
		},
		Orchestrator: OrchestratorConfig{
			Concurrency: 4,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			Timeout:        60 * time.Second,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2.0,
			Jitter:         0.2,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
		},
		Authority: DefaultAuthorityConfig(),
		HTTP: HTTPConfig{
			UserAgent:         "claimcheck/0.1 (+https://github.com/ppiankov/claimcheck)",
			Timeout:           20 * time.Second,
			MaxBodyBytes:      2_000_000,
			RespectRobots:     true,
			RequestsPerSecond: 1,
			Burst:             2,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: time.Hour,
			DiskTTL:   24 * time.Hour,
		},
		Store: StoreConfig{
			Enabled: true,
		},
		Preprocess: PreprocessConfig{
			TargetLanguage:     "en",
			TranscriptionModel: "whisper-1",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultAuthorityConfig returns the built-in authoritative-domain allow-list
func DefaultAuthorityConfig() AuthorityConfig {
	return AuthorityConfig{
		PrimaryDomains: []string{
			"who.int", "un.org", "imf.org", "worldbank.org", "oecd.org", "europa.eu",
			"nasa.gov", "cdc.gov", "nih.gov", "census.gov", "doi.org", "ncbi.nlm.nih.gov",
		},
		SecondaryDomains: []string{
			"wikipedia.org", "britannica.com", "nature.com", "science.org", "nejm.org",
			"thelancet.com", "reuters.com", "apnews.com", "bbc.co.uk", "bbc.com",
			"nytimes.com", "theguardian.com", "ft.com", "economist.com", "wsj.com",
		},
		PrimarySuffixes: []string{".gov", ".edu", ".mil", ".int", ".gov.uk", ".ac.uk"},
		PathPatterns: []PathPattern{
			{Pattern: `^/doi/`, Tier: "primary"},
			{Pattern: `^/(legislation|statutes?|laws?)/`, Tier: "primary"},
		},
	}
}

// Validate checks that every option is usable
func (c *Config) Validate() error {
	var errs []error
	if c.Extraction.Votes <= 0 {
		errs = append(errs, fmt.Errorf("extraction.votes must be positive, got %d", c.Extraction.Votes))
	}
	if c.Extraction.Agreement <= 0 || c.Extraction.Agreement > 1 {
		errs = append(errs, fmt.Errorf("extraction.agreement must be in (0,1], got %g", c.Extraction.Agreement))
	}
	if c.Extraction.NearMatch <= 0 || c.Extraction.NearMatch > 1 {
		errs = append(errs, fmt.Errorf("extraction.near_match must be in (0,1], got %g", c.Extraction.NearMatch))
	}
	if c.Verification.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("verification.max_iterations must be positive, got %d", c.Verification.MaxIterations))
	}
	if c.Verification.MinEvidence < 0 {
		errs = append(errs, fmt.Errorf("verification.min_evidence must not be negative, got %d", c.Verification.MinEvidence))
	}
	if c.Verification.MaxResults <= 0 {
		errs = append(errs, fmt.Errorf("verification.max_results must be positive, got %d", c.Verification.MaxResults))
	}
	if c.Orchestrator.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("orchestrator.concurrency must be positive, got %d", c.Orchestrator.Concurrency))
	}
	if c.Breaker.FailureThreshold <= 0 {
		errs = append(errs, fmt.Errorf("breaker.failure_threshold must be positive, got %d", c.Breaker.FailureThreshold))
	}
	if c.Breaker.Cooldown <= 0 {
		errs = append(errs, fmt.Errorf("breaker.cooldown must be positive, got %s", c.Breaker.Cooldown))
	}
	if c.Retry.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("retry.timeout must be positive, got %s", c.Retry.Timeout))
	}
	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must not be negative, got %d", c.Retry.MaxAttempts))
	}
	return errors.Join(errs...)
}
