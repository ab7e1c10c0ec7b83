package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/metrics"
	"github.com/ppiankov/claimcheck/internal/resilience"
	"github.com/ppiankov/claimcheck/internal/usage"
)

// Prompt is one stage-level inference request
type Prompt struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64 // 0 uses the client default
}

// Inferencer is the inference capability consumed by the extraction and
// verification stages.
//
// out is either a *string, which receives the raw completion, or a pointer to a
// struct decoded from the JSON answer. When out implements Validate() error and
// validation fails, the response is treated as malformed.
type Inferencer interface {
	Infer(ctx context.Context, stage string, p Prompt, out any) (usage.Record, error)
}

// validator is implemented by response schemas with semantic checks
type validator interface {
	Validate() error
}

// Client runs provider completions through a resilience executor and records usage.
//
// Thread Safety: Safe for concurrent use.
type Client struct {
	provider    Provider
	exec        *resilience.Executor
	model       string
	temperature float64
	logger      *slog.Logger
}

// NewClient creates an inference client. model is reported in usage records
// when the provider does not echo one back.
func NewClient(provider Provider, exec *resilience.Executor, model string, temperature float64, logger *slog.Logger) *Client {
	if exec == nil {
		exec = resilience.NewExecutor(nil, resilience.DefaultPolicy(), logger)
	}
	return &Client{
		provider:    provider,
		exec:        exec,
		model:       model,
		temperature: temperature,
		logger:      logging.OrDefault(logger),
	}
}

// Infer performs one logical inference call. Tokens of every attempt that
// reached the provider are counted, including attempts whose answer was rejected.
func (c *Client) Infer(ctx context.Context, stage string, p Prompt, out any) (usage.Record, error) {
	rec := usage.Record{Stage: stage, Model: c.model}
	_, wantText := out.(*string)

	temperature := p.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	req := Request{
		System:      p.System,
		Prompt:      p.User,
		MaxTokens:   p.MaxTokens,
		Temperature: temperature,
		JSON:        !wantText,
	}

	start := time.Now()
	err := c.exec.Do(ctx, "inference:"+stage, func(ctx context.Context) error {
		resp, err := c.provider.Complete(ctx, req)
		if err != nil {
			return err
		}
		rec.InferenceCalls++
		rec.PromptTokens += resp.PromptTokens
		rec.CompletionTokens += resp.CompletionTokens
		if resp.Model != "" {
			rec.Model = resp.Model
		}
		return decodeInto(resp.Text, out)
	})
	metrics.InferenceDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	metrics.Tokens.WithLabelValues(stage, "prompt").Add(float64(rec.PromptTokens))
	metrics.Tokens.WithLabelValues(stage, "completion").Add(float64(rec.CompletionTokens))

	if err != nil {
		metrics.InferenceCalls.WithLabelValues(stage, "error").Inc()
		c.logger.Debug("inference failed", "stage", stage, "provider", c.provider.Name(), "error", err)
		return rec, err
	}
	metrics.InferenceCalls.WithLabelValues(stage, "ok").Inc()
	return rec, nil
}

func decodeInto(text string, out any) error {
	switch v := out.(type) {
	case nil:
		return nil
	case *string:
		if text == "" {
			return resilience.Malformed(fmt.Errorf("empty completion"))
		}
		*v = text
		return nil
	}
	if err := DecodeJSON(text, out); err != nil {
		return err
	}
	if v, ok := out.(validator); ok {
		if err := v.Validate(); err != nil {
			return resilience.Malformed(fmt.Errorf("invalid response: %w", err))
		}
	}
	return nil
}
