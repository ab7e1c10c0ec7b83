package verify

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/claimcheck/internal/model"
)

// DefaultEvidenceTokenBudget bounds the evidence section of the evaluation prompt
const DefaultEvidenceTokenBudget = 6000

// EstimateTokens approximates the token count of s at four characters per token
func EstimateTokens(s string) int {
	return (utf8.RuneCountInString(s) + 3) / 4
}

func evidenceTokens(e model.Evidence) int {
	return EstimateTokens(e.URL) + EstimateTokens(e.Title) + EstimateTokens(e.Text()) + 8
}

// SelectEvidence ranks items by relevance, highest first with ties kept in
// accumulation order, and keeps the longest prefix of that ranking that fits
// budget tokens. The top item is always kept. The input is not modified.
func SelectEvidence(items []model.Evidence, budget int) []model.Evidence {
	if len(items) == 0 {
		return nil
	}
	ranked := make([]model.Evidence, len(items))
	copy(ranked, items)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Relevance > ranked[j].Relevance
	})
	if budget <= 0 {
		budget = DefaultEvidenceTokenBudget
	}

	used := evidenceTokens(ranked[0])
	n := 1
	for ; n < len(ranked); n++ {
		cost := evidenceTokens(ranked[n])
		if used+cost > budget {
			break
		}
		used += cost
	}
	return ranked[:n]
}

type queryResponse struct {
	Query string `json:"query"`
}

func (q *queryResponse) Validate() error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return errors.New("blank query")
	}
	return nil
}

type sufficiencyResponse struct {
	Sufficient     *bool    `json:"sufficient"`
	MissingAspects []string `json:"missing_aspects"`
}

func (s *sufficiencyResponse) Validate() error {
	if s.Sufficient == nil {
		return errors.New(`missing "sufficient"`)
	}
	return nil
}

type evaluationResponse struct {
	Verdict            string  `json:"verdict"`
	Reasoning          string  `json:"reasoning"`
	Confidence         float64 `json:"confidence"`
	InfluentialSources []int   `json:"influential_sources"`
	CorrectedClaim     string  `json:"corrected_claim"`
	Explanation        string  `json:"explanation"`

	kind model.VerdictKind
}

func (e *evaluationResponse) Validate() error {
	kind, ok := model.ParseVerdictKind(e.Verdict)
	if !ok {
		return fmt.Errorf("unknown verdict %q", e.Verdict)
	}
	e.kind = kind
	return nil
}

// verdict builds the verdict for an evaluation over presented evidence.
// Influential source numbers are 1-based; out-of-range numbers are ignored.
func (e *evaluationResponse) verdict(claimID string, presented []model.Evidence) model.Verdict {
	v := model.Verdict{
		ClaimID:        claimID,
		Kind:           e.kind,
		Reasoning:      strings.TrimSpace(e.Reasoning),
		Confidence:     clamp01(e.Confidence),
		EvidenceURLs:   evidenceURLs(presented),
		CorrectedClaim: strings.TrimSpace(e.CorrectedClaim),
		Explanation:    strings.TrimSpace(e.Explanation),
	}
	seen := make(map[int]bool, len(e.InfluentialSources))
	for _, n := range e.InfluentialSources {
		if n < 1 || n > len(presented) || seen[n] {
			continue
		}
		seen[n] = true
		v.InfluentialURLs = append(v.InfluentialURLs, presented[n-1].URL)
	}
	return v
}

func clamp01(f float64) float64 {
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
