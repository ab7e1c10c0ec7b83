package model

import "time"

// Report is the aggregated output handed to a report sink
type Report struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	Source    string        `json:"source"`             // Inline text, file path, URL, or audio path
	Language  string        `json:"language,omitempty"` // Detected input language when translation ran
	Claims    []Claim       `json:"claims"`
	Results   []ClaimResult `json:"results"` // One entry per claim, in claim order
	Usage     UsageSummary  `json:"usage"`
	Summary   Summary       `json:"summary"`
	Score     Score         `json:"score"`
}

// ClaimResult pairs a claim with its verdict
type ClaimResult struct {
	Claim   Claim   `json:"claim"`
	Verdict Verdict `json:"verdict"`
}

// Summary counts verdicts by kind
type Summary struct {
	Total         int `json:"total"`
	Supported     int `json:"supported"`
	Refuted       int `json:"refuted"`
	NotEnoughInfo int `json:"not_enough_info"`
	Conflicting   int `json:"conflicting"`
	Degraded      int `json:"degraded"` // Verdicts produced by the failure path
}

// Summarize counts the verdicts in results
func Summarize(results []ClaimResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Verdict.Kind {
		case VerdictSupported:
			s.Supported++
		case VerdictRefuted:
			s.Refuted++
		case VerdictNotEnoughInfo:
			s.NotEnoughInfo++
		case VerdictConflicting:
			s.Conflicting++
		}
		if r.Verdict.Degraded() {
			s.Degraded++
		}
	}
	return s
}

// UsageSummary aggregates per-call usage records
type UsageSummary struct {
	Stages           []StageUsage `json:"stages"`
	InferenceCalls   int          `json:"inference_calls"`
	SearchCalls      int          `json:"search_calls"`
	PromptTokens     int          `json:"prompt_tokens"`
	CompletionTokens int          `json:"completion_tokens"`
	TotalTokens      int          `json:"total_tokens"`
	EstimatedCostUSD float64      `json:"estimated_cost_usd"`
}

// StageUsage aggregates usage for one stage name
type StageUsage struct {
	Stage            string  `json:"stage"`
	InferenceCalls   int     `json:"inference_calls"`
	SearchCalls      int     `json:"search_calls"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
}

// Score represents the transparent scoring breakdown
type Score struct {
	Index      int      `json:"index"`      // Support index (0-100)
	Confidence string   `json:"confidence"` // "low", "medium", "high"
	Signals    []Signal `json:"signals"`    // Diagnostic signals with transparent data
}

// Signal represents a diagnostic signal with transparent scoring data
type Signal struct {
	Type        SignalType     `json:"type"`
	Severity    SignalSeverity `json:"severity"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalNoClaims          SignalType = "no_claims"          // Extraction produced nothing to verify
	SignalSupportRatio      SignalType = "support_ratio"      // Supported share among decided claims
	SignalInsufficientRate  SignalType = "insufficient_rate"  // Many claims could not be judged
	SignalRefutedClaims     SignalType = "refuted_claims"     // At least one claim contradicted by evidence
	SignalConflictingClaims SignalType = "conflicting_claims" // Sources disagree
	SignalAuthorityShare    SignalType = "authority_share"    // Share of cited URLs on authoritative domains
	SignalDegradedLoops     SignalType = "degraded_loops"     // Verdicts produced after external failures
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)
