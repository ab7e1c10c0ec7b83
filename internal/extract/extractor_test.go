package extract

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/usage"
)

// stubInferencer answers by stage. n counts earlier calls with the same stage and prompt.
type stubInferencer struct {
	mu      sync.Mutex
	calls   map[string]int
	stages  map[string]int
	respond func(stage, user string, n int) (string, error)
}

func newStub(respond func(stage, user string, n int) (string, error)) *stubInferencer {
	return &stubInferencer{calls: map[string]int{}, stages: map[string]int{}, respond: respond}
}

func (s *stubInferencer) Infer(_ context.Context, stage string, p llm.Prompt, out any) (usage.Record, error) {
	s.mu.Lock()
	key := stage + "\x00" + p.User
	n := s.calls[key]
	s.calls[key]++
	s.stages[stage]++
	s.mu.Unlock()

	rec := usage.Inference(stage, "stub", 10, 5)
	text, err := s.respond(stage, p.User, n)
	if err != nil {
		return rec, err
	}
	if err := llm.DecodeJSON(text, out); err != nil {
		return rec, err
	}
	if v, ok := out.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

func (s *stubInferencer) count(stage string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stages[stage]
}

func testOptions() Options {
	return Options{
		Consensus:     Consensus{Votes: 3, Agreement: 2.0 / 3.0, NearMatch: DefaultNearMatch},
		ContextBefore: 5,
		ContextAfter:  5,
		Concurrency:   4,
	}
}

const parisInput = "Paris is the capital of France and it has 20 million residents."

func parisResponder(stage, user string, n int) (string, error) {
	switch stage {
	case StageSelect:
		return `{"selected":[{"index":1,"text":""}]}`, nil
	case StageDisambiguate:
		return `{"statement":"Paris is the capital of France and Paris has 20 million residents.","cannot_resolve":false}`, nil
	case StageDecompose:
		return "```json\n{\"claims\":[\"Paris is the capital of France.\",\"Paris has 20 million residents.\",\"paris is the capital of france\",\" \"],\"no_claims\":false}\n```", nil
	case StageValidate:
		return `{"checkable":true,"reason":"atomic and verifiable"}`, nil
	}
	return "", errors.New("unexpected stage " + stage)
}

func TestExtract_ParisScenario(t *testing.T) {
	stub := newStub(parisResponder)
	res, err := New(stub, testOptions(), nil).Extract(context.Background(), parisInput)
	require.NoError(t, err)

	require.Len(t, res.Claims, 2)
	assert.Equal(t, "Paris is the capital of France.", res.Claims[0].Text)
	assert.Equal(t, "Paris has 20 million residents.", res.Claims[1].Text)
	for _, c := range res.Claims {
		assert.Equal(t, 0, c.Sentence.Index)
		assert.Equal(t, 1.0, c.Confidence)
		assert.NotEmpty(t, c.ID)
		assert.Contains(t, c.Statement, "Paris has 20 million")
	}
	assert.NotEqual(t, res.Claims[0].ID, res.Claims[1].ID)

	assert.Equal(t, 1, stub.count(StageSelect))
	assert.Equal(t, 3, stub.count(StageDisambiguate))
	assert.Equal(t, 1, stub.count(StageDecompose))
	assert.Equal(t, 6, stub.count(StageValidate))
	assert.Equal(t, 11, res.Ledger.Len())
}

func TestExtract_Idempotent(t *testing.T) {
	first, err := New(newStub(parisResponder), testOptions(), nil).Extract(context.Background(), parisInput)
	require.NoError(t, err)
	second, err := New(newStub(parisResponder), testOptions(), nil).Extract(context.Background(), parisInput)
	require.NoError(t, err)

	assert.Equal(t, first.Claims, second.Claims)
}

func TestExtract_EmptyInputMakesNoCalls(t *testing.T) {
	stub := newStub(func(string, string, int) (string, error) {
		return "", errors.New("must not be called")
	})
	res, err := New(stub, testOptions(), nil).Extract(context.Background(), "  \n ")
	require.NoError(t, err)
	assert.Empty(t, res.Sentences)
	assert.Empty(t, res.Claims)
	assert.Zero(t, res.Ledger.Len())
}

func TestExtract_DisambiguationMajority(t *testing.T) {
	stub := newStub(func(stage, user string, n int) (string, error) {
		switch stage {
		case StageDisambiguate:
			if n == 2 {
				return `{"statement":"Lyon is the capital of France.","cannot_resolve":false}`, nil
			}
			return `{"statement":"Paris is the capital of France.","cannot_resolve":false}`, nil
		case StageDecompose:
			return `{"claims":["Paris is the capital of France."]}`, nil
		}
		return parisResponder(stage, user, n)
	})

	res, err := New(stub, testOptions(), nil).Extract(context.Background(), "It is the capital of France.")
	require.NoError(t, err)
	require.Len(t, res.Statements, 1)
	assert.Equal(t, "Paris is the capital of France.", res.Statements[0].Text)
	require.Len(t, res.Claims, 1)
}

func TestExtract_DisambiguationDivergentDropsCandidate(t *testing.T) {
	answers := []string{
		`{"statement":"Paris is the capital of France.","cannot_resolve":false}`,
		`{"statement":"Lyon is the largest city in France.","cannot_resolve":false}`,
		`{"statement":null,"cannot_resolve":true}`,
	}
	stub := newStub(func(stage, user string, n int) (string, error) {
		if stage == StageDisambiguate {
			return answers[n], nil
		}
		return parisResponder(stage, user, n)
	})

	res, err := New(stub, testOptions(), nil).Extract(context.Background(), "It is the capital.")
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 1)
	assert.Empty(t, res.Statements)
	assert.Empty(t, res.Claims)
	assert.Zero(t, stub.count(StageDecompose))
}

func TestExtract_ValidationRejectsSilently(t *testing.T) {
	stub := newStub(func(stage, user string, n int) (string, error) {
		if stage == StageValidate {
			if strings.Contains(user, "residents") {
				return `{"checkable":false,"reason":"vague"}`, nil
			}
			if n == 0 {
				return `{"checkable":false,"reason":"unsure"}`, nil
			}
			return `{"checkable":true,"reason":"ok"}`, nil
		}
		return parisResponder(stage, user, n)
	})

	res, err := New(stub, testOptions(), nil).Extract(context.Background(), parisInput)
	require.NoError(t, err)
	require.Len(t, res.Claims, 1)
	assert.Equal(t, "Paris is the capital of France.", res.Claims[0].Text)
	assert.InDelta(t, 2.0/3.0, res.Claims[0].Confidence, 1e-9)
}

func TestExtract_StageError(t *testing.T) {
	boom := errors.New("service unavailable")
	stub := newStub(func(stage, user string, n int) (string, error) {
		if stage == StageDecompose {
			return "", boom
		}
		return parisResponder(stage, user, n)
	})

	res, err := New(stub, testOptions(), nil).Extract(context.Background(), parisInput)
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageDecompose, stageErr.Stage)
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, res)
	assert.Empty(t, res.Claims)
	assert.Equal(t, 5, res.Ledger.Len(), "select, three votes and the failed decomposition")
}

func TestExtract_MalformedVoteFailsStage(t *testing.T) {
	stub := newStub(func(stage, user string, n int) (string, error) {
		if stage == StageDisambiguate {
			return `{"statement":"","cannot_resolve":false}`, nil
		}
		return parisResponder(stage, user, n)
	})

	_, err := New(stub, testOptions(), nil).Extract(context.Background(), parisInput)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageDisambiguate, stageErr.Stage)
}

func TestSelector_IgnoresUnknownAndRepeatedIndices(t *testing.T) {
	stub := newStub(func(string, string, int) (string, error) {
		return `{"selected":[{"index":0},{"index":3},{"index":2},{"index":2,"text":"ignored"},{"index":9}]}`, nil
	})
	sentences := Segment("One is here. Two is there. Three is everywhere.")
	require.Len(t, sentences, 3)

	candidates, rec, err := NewSelector(stub, 5, 5, nil).Select(context.Background(), sentences)
	require.NoError(t, err)
	assert.Equal(t, StageSelect, rec.Stage)
	require.Len(t, candidates, 2)
	assert.Equal(t, 1, candidates[0].Sentence.Index)
	assert.Equal(t, "Two is there.", candidates[0].Text)
	assert.Equal(t, 2, candidates[1].Sentence.Index)
}

func TestSelector_RewriteKeepsVerifiablePart(t *testing.T) {
	stub := newStub(func(string, string, int) (string, error) {
		return `{"selected":[{"index":1,"text":"There is a partnership between X and Y"}]}`, nil
	})
	sentences := Segment("The partnership between X and Y shows the power of innovation.")

	candidates, _, err := NewSelector(stub, 5, 5, nil).Select(context.Background(), sentences)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "There is a partnership between X and Y", candidates[0].Text)
	assert.Equal(t, sentences[0], candidates[0].Sentence)
}

func TestClaimID_Stable(t *testing.T) {
	assert.Equal(t, ClaimID(0, "Paris is the capital of France."), ClaimID(0, "Paris is the capital of France."))
	assert.NotEqual(t, ClaimID(0, "Paris is the capital of France."), ClaimID(1, "Paris is the capital of France."))
}
