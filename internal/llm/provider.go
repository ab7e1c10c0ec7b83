package llm

import (
	"context"

	"github.com/ppiankov/claimcheck/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends one prompt and returns the raw completion with token counts.
	// Errors are classified with the resilience package so callers can decide
	// whether to retry.
	Complete(ctx context.Context, req Request) (*Response, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// Request is one completion request
type Request struct {
	// System is the system instruction
	System string

	// Prompt is the user message
	Prompt string

	// Model overrides the configured model
	Model string

	// MaxTokens limits the response length
	MaxTokens int

	// Temperature controls sampling; voting stages rely on it being non-zero
	Temperature float64

	// JSON asks the provider to constrain output to a JSON object
	JSON bool
}

// Response is the provider's completion
type Response struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for the underlying HTTP client, in seconds
	Timeout int

	// MaxTokens for response generation
	MaxTokens int

	// Temperature used when a request does not set one
	Temperature float64

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "openai",
		Timeout:     60,
		MaxTokens:   2000,
		Temperature: 0.2,
	}
}

// ConfigFromModel converts the llm and http configuration sections
func ConfigFromModel(c model.LLMConfig, h model.HTTPConfig, timeoutSeconds int) Config {
	return Config{
		Provider:    c.Provider,
		Model:       c.Model,
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		Timeout:     timeoutSeconds,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		HTTPProxy:   h.HTTPProxy,
		HTTPSProxy:  h.HTTPSProxy,
		NoProxy:     h.NoProxy,
	}
}

func (c Config) maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 2000
}

func (c Config) model(req Request, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	if c.Model != "" {
		return c.Model
	}
	return fallback
}
