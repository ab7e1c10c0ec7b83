package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	mu        sync.Mutex
	responses []*Response
	errs      []error
	requests  []Request
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) IsAvailable(context.Context) bool { return true }

func (p *scriptedProvider) Complete(_ context.Context, req Request) (*Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := len(p.requests)
	p.requests = append(p.requests, req)
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	if i < len(p.responses) {
		return p.responses[i], nil
	}
	return p.responses[len(p.responses)-1], nil
}

type queryAnswer struct {
	Query string `json:"query"`
}

func (a *queryAnswer) Validate() error {
	if a.Query == "" {
		return errors.New("empty query")
	}
	return nil
}

func testClient(p Provider) *Client {
	policy := resilience.Policy{MaxAttempts: 3, Timeout: time.Second, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1}
	exec := resilience.NewExecutor(resilience.NewBreaker(resilience.DefaultBreakerConfig()), policy, logging.Discard())
	return NewClient(p, exec, "gpt-4o-mini", 0.7, logging.Discard())
}

func TestClient_InferDecodesJSON(t *testing.T) {
	p := &scriptedProvider{responses: []*Response{
		{Text: "```json\n{\"query\": \"paris population\"}\n```", Model: "gpt-4o-mini", PromptTokens: 20, CompletionTokens: 5},
	}}
	c := testClient(p)

	var out queryAnswer
	rec, err := c.Infer(context.Background(), "query", Prompt{System: "s", User: "u"}, &out)
	require.NoError(t, err)

	assert.Equal(t, "paris population", out.Query)
	assert.Equal(t, "query", rec.Stage)
	assert.Equal(t, 1, rec.InferenceCalls)
	assert.Equal(t, 20, rec.PromptTokens)
	assert.Equal(t, 5, rec.CompletionTokens)
	require.Len(t, p.requests, 1)
	assert.True(t, p.requests[0].JSON)
	assert.InDelta(t, 0.7, p.requests[0].Temperature, 1e-9)
}

func TestClient_InferRawText(t *testing.T) {
	p := &scriptedProvider{responses: []*Response{{Text: "Bonjour", PromptTokens: 3, CompletionTokens: 1}}}
	c := testClient(p)

	var out string
	_, err := c.Infer(context.Background(), "translate", Prompt{User: "Hello", Temperature: 0.1}, &out)
	require.NoError(t, err)
	assert.Equal(t, "Bonjour", out)
	assert.False(t, p.requests[0].JSON)
	assert.InDelta(t, 0.1, p.requests[0].Temperature, 1e-9)
}

func TestClient_InvalidAnswerRetriedOnceAsMalformed(t *testing.T) {
	p := &scriptedProvider{responses: []*Response{
		{Text: `{"query": ""}`, PromptTokens: 10, CompletionTokens: 2},
		{Text: `{"query": "second try"}`, PromptTokens: 10, CompletionTokens: 3},
	}}
	c := testClient(p)

	var out queryAnswer
	rec, err := c.Infer(context.Background(), "query", Prompt{User: "u"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "second try", out.Query)
	assert.Equal(t, 2, rec.InferenceCalls)
	assert.Equal(t, 20, rec.PromptTokens)
	assert.Equal(t, 5, rec.CompletionTokens)
	assert.Equal(t, 0, c.exec.Breaker().Stats().ConsecutiveFailures)
}

func TestClient_TwoMalformedAnswersFail(t *testing.T) {
	p := &scriptedProvider{responses: []*Response{{Text: "no json here"}}}
	c := testClient(p)

	var out queryAnswer
	_, err := c.Infer(context.Background(), "query", Prompt{User: "u"}, &out)
	require.Error(t, err)

	var failure *resilience.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, resilience.KindMalformed, failure.Kind)
	assert.Equal(t, 2, failure.Attempts)
}

func TestClient_TransientErrorsRetried(t *testing.T) {
	p := &scriptedProvider{
		errs:      []error{resilience.Transient(errors.New("503")), nil},
		responses: []*Response{nil, {Text: `{"query": "ok"}`}},
	}
	c := testClient(p)

	var out queryAnswer
	rec, err := c.Infer(context.Background(), "query", Prompt{User: "u"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Query)
	assert.Equal(t, 1, rec.InferenceCalls)
	assert.Len(t, p.requests, 2)
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		wantErr bool
	}{
		{name: "plain", text: `{"query": "a"}`, want: "a"},
		{name: "fenced", text: "```json\n{\"query\": \"b\"}\n```", want: "b"},
		{name: "prose around", text: `Here you go: {"query": "c"} hope it helps`, want: "c"},
		{name: "no object", text: "nothing", wantErr: true},
		{name: "broken", text: `{"query": }`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out queryAnswer
			err := DecodeJSON(tt.text, &out)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, resilience.KindMalformed, resilience.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Query)
		})
	}
}

func TestNewProvider(t *testing.T) {
	_, err := NewProvider(Config{})
	assert.Error(t, err)

	_, err = NewProvider(Config{Provider: "mystery"})
	assert.Error(t, err)

	p, err := NewProvider(Config{Provider: "ollama", Model: "llama3.1"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())

	p, err = NewProvider(Config{Provider: "Claude", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())
}
