// Package score computes the support index and diagnostic signals of a
// finished report. Scoring is deterministic and every signal carries the data
// it was derived from.
package score

import (
	"fmt"
	"math"

	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/validate"
)

const (
	insufficientWarnRate = 0.5
	authorityWarnShare   = 0.25
)

// Scorer calculates the support index and generates signals
type Scorer struct {
	authority *validate.AuthorityClassifier
}

// NewScorer creates a scorer. Cited URLs are classified with authority
// (nil means the default allow-list).
func NewScorer(authority *validate.AuthorityClassifier) *Scorer {
	if authority == nil {
		authority = validate.NewAuthorityClassifier(nil)
	}
	return &Scorer{authority: authority}
}

// Calculate scores the claim results of one report
func (s *Scorer) Calculate(results []model.ClaimResult) model.Score {
	if len(results) == 0 {
		return model.Score{
			Index:      0,
			Confidence: "low",
			Signals: []model.Signal{{
				Type:        model.SignalNoClaims,
				Severity:    model.SeverityCritical,
				Description: "No checkable claims were extracted",
				Data:        map[string]any{"claims": 0},
			}},
		}
	}

	summary := model.Summarize(results)
	var signals []model.Signal

	// 1. Support ratio (the index itself)
	index, supportSignal := s.calculateSupport(summary)
	signals = append(signals, supportSignal)

	// 2. Share of claims that could not be judged
	if sig, ok := s.detectInsufficient(summary); ok {
		signals = append(signals, sig)
	}

	// 3. Refuted and conflicting claims
	if sig, ok := s.detectRefuted(results, summary); ok {
		signals = append(signals, sig)
	}
	if sig, ok := s.detectConflicting(summary); ok {
		signals = append(signals, sig)
	}

	// 4. Authority of cited sources
	share, authoritySignal := s.calculateAuthority(results)
	signals = append(signals, authoritySignal)

	// 5. Loops that degraded after external failures
	if sig, ok := s.detectDegraded(summary); ok {
		signals = append(signals, sig)
	}

	return model.Score{
		Index:      index,
		Confidence: s.determineConfidence(summary, share),
		Signals:    signals,
	}
}

func decided(s model.Summary) int {
	return s.Supported + s.Refuted + s.Conflicting
}

// calculateSupport scores the supported share of decided claims (0-100)
func (s *Scorer) calculateSupport(summary model.Summary) (int, model.Signal) {
	n := decided(summary)
	if n == 0 {
		return 0, model.Signal{
			Type:        model.SignalSupportRatio,
			Severity:    model.SeverityWarning,
			Description: "No claim could be decided",
			Data: map[string]any{
				"claims":  summary.Total,
				"decided": 0,
			},
		}
	}

	ratio := float64(summary.Supported) / float64(n)
	index := int(math.Round(ratio * 100))

	severity := model.SeverityInfo
	switch {
	case ratio < 0.5:
		severity = model.SeverityCritical
	case ratio < 0.8:
		severity = model.SeverityWarning
	}

	return index, model.Signal{
		Type:        model.SignalSupportRatio,
		Severity:    severity,
		Description: fmt.Sprintf("%d of %d decided claims supported", summary.Supported, n),
		Data: map[string]any{
			"supported": summary.Supported,
			"decided":   n,
			"ratio":     ratio,
			"index":     index,
			"formula":   "round(supported / (supported + refuted + conflicting) * 100)",
		},
	}
}

func (s *Scorer) detectInsufficient(summary model.Summary) (model.Signal, bool) {
	rate := float64(summary.NotEnoughInfo) / float64(summary.Total)
	if rate < insufficientWarnRate {
		return model.Signal{}, false
	}
	return model.Signal{
		Type:        model.SignalInsufficientRate,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("%.0f%% of claims could not be judged from available evidence", rate*100),
		Data: map[string]any{
			"not_enough_info": summary.NotEnoughInfo,
			"claims":          summary.Total,
			"rate":            rate,
			"threshold":       insufficientWarnRate,
		},
	}, true
}

func (s *Scorer) detectRefuted(results []model.ClaimResult, summary model.Summary) (model.Signal, bool) {
	if summary.Refuted == 0 {
		return model.Signal{}, false
	}
	var refuted []string
	for _, r := range results {
		if r.Verdict.Kind == model.VerdictRefuted {
			refuted = append(refuted, r.Claim.Text)
		}
	}
	severity := model.SeverityWarning
	if summary.Refuted*2 >= decided(summary) {
		severity = model.SeverityCritical
	}
	return model.Signal{
		Type:        model.SignalRefutedClaims,
		Severity:    severity,
		Description: fmt.Sprintf("%d claim(s) contradicted by evidence", summary.Refuted),
		Data: map[string]any{
			"refuted": summary.Refuted,
			"claims":  refuted,
		},
	}, true
}

func (s *Scorer) detectConflicting(summary model.Summary) (model.Signal, bool) {
	if summary.Conflicting == 0 {
		return model.Signal{}, false
	}
	return model.Signal{
		Type:        model.SignalConflictingClaims,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("Sources disagree on %d claim(s)", summary.Conflicting),
		Data:        map[string]any{"conflicting": summary.Conflicting},
	}, true
}

// calculateAuthority returns the share of cited URLs on authoritative domains.
// Influential URLs count when present, otherwise every URL shown to the evaluator.
func (s *Scorer) calculateAuthority(results []model.ClaimResult) (float64, model.Signal) {
	total, primary, secondary := 0, 0, 0
	for _, r := range results {
		urls := r.Verdict.InfluentialURLs
		if len(urls) == 0 {
			urls = r.Verdict.EvidenceURLs
		}
		for _, u := range urls {
			total++
			switch s.authority.Classify(u) {
			case model.TierPrimary:
				primary++
			case model.TierSecondary:
				secondary++
			}
		}
	}

	if total == 0 {
		return 0, model.Signal{
			Type:        model.SignalAuthorityShare,
			Severity:    model.SeverityWarning,
			Description: "No sources were cited",
			Data:        map[string]any{"cited": 0},
		}
	}

	share := float64(primary+secondary) / float64(total)
	severity := model.SeverityInfo
	if share < authorityWarnShare {
		severity = model.SeverityWarning
	}
	return share, model.Signal{
		Type:        model.SignalAuthorityShare,
		Severity:    severity,
		Description: fmt.Sprintf("%.0f%% of cited sources are authoritative", share*100),
		Data: map[string]any{
			"cited":     total,
			"primary":   primary,
			"secondary": secondary,
			"share":     share,
			"threshold": authorityWarnShare,
		},
	}
}

func (s *Scorer) detectDegraded(summary model.Summary) (model.Signal, bool) {
	if summary.Degraded == 0 {
		return model.Signal{}, false
	}
	return model.Signal{
		Type:        model.SignalDegradedLoops,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("%d claim(s) could not be fully verified because an external service failed", summary.Degraded),
		Data:        map[string]any{"degraded": summary.Degraded, "claims": summary.Total},
	}, true
}

// determineConfidence rates how much the index can be trusted
func (s *Scorer) determineConfidence(summary model.Summary, authorityShare float64) string {
	n := decided(summary)
	switch {
	case n < 3 || summary.Degraded*2 >= summary.Total:
		return "low"
	case n >= 5 && authorityShare >= 0.5 && summary.Degraded == 0:
		return "high"
	default:
		return "medium"
	}
}
