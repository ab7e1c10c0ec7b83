package verify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/claimcheck/internal/model"
)

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 1, EstimateTokens("éééé"), "counts characters, not bytes")
}

func TestSelectEvidence(t *testing.T) {
	items := []model.Evidence{
		{URL: "https://a.example", Snippet: strings.Repeat("a", 400), Relevance: 0.5},
		{URL: "https://b.example", Snippet: strings.Repeat("b", 400), Relevance: 0.9},
		{URL: "https://c.example", Snippet: strings.Repeat("c", 400), Relevance: 0.5},
		{URL: "https://d.example", Snippet: strings.Repeat("d", 400), Relevance: 0.7},
	}

	t.Run("fits entirely", func(t *testing.T) {
		got := SelectEvidence(items, 10000)
		assert.Equal(t, []string{"https://b.example", "https://d.example", "https://a.example", "https://c.example"}, evidenceURLs(got))
	})

	t.Run("truncates lowest relevance", func(t *testing.T) {
		one := evidenceTokens(items[0])
		got := SelectEvidence(items, 2*one+one/2)
		assert.Equal(t, []string{"https://b.example", "https://d.example"}, evidenceURLs(got))
	})

	t.Run("always keeps top item", func(t *testing.T) {
		got := SelectEvidence(items, 1)
		assert.Equal(t, []string{"https://b.example"}, evidenceURLs(got))
	})

	t.Run("does not reorder input", func(t *testing.T) {
		SelectEvidence(items, 10000)
		assert.Equal(t, "https://a.example", items[0].URL)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, SelectEvidence(nil, 100))
	})
}

func TestEvaluationResponse(t *testing.T) {
	presented := []model.Evidence{{URL: "https://one.example"}, {URL: "https://two.example"}}

	resp := evaluationResponse{
		Verdict:            "Supported",
		Reasoning:          " Both sources agree. ",
		Confidence:         1.7,
		InfluentialSources: []int{2, 0, 2, 5, 1},
	}
	require.NoError(t, resp.Validate())

	v := resp.verdict("c1", presented)
	assert.Equal(t, model.VerdictSupported, v.Kind)
	assert.Equal(t, "Both sources agree.", v.Reasoning)
	assert.Equal(t, 1.0, v.Confidence)
	assert.Equal(t, []string{"https://two.example", "https://one.example"}, v.InfluentialURLs)
	assert.Equal(t, []string{"https://one.example", "https://two.example"}, v.EvidenceURLs)

	for _, label := range []string{"NOT_ENOUGH_INFO", "Insufficient Information", "conflicting evidence", "REFUTED"} {
		r := evaluationResponse{Verdict: label}
		assert.NoError(t, r.Validate(), label)
	}
	bad := evaluationResponse{Verdict: "PROBABLY"}
	assert.Error(t, bad.Validate())

	assert.Equal(t, 0.0, clamp01(-0.2))
	assert.Equal(t, 0.4, clamp01(0.4))
}

func TestQueryResponse_BlankIsInvalid(t *testing.T) {
	q := queryResponse{Query: "   "}
	assert.Error(t, q.Validate())

	q = queryResponse{Query: "  paris population 2024 "}
	require.NoError(t, q.Validate())
	assert.Equal(t, "paris population 2024", q.Query)
}
