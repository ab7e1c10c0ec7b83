package model

import "strings"

// VerdictKind is the terminal judgment on a claim
type VerdictKind string

const (
	VerdictSupported     VerdictKind = "SUPPORTED"
	VerdictRefuted       VerdictKind = "REFUTED"
	VerdictNotEnoughInfo VerdictKind = "NOT_ENOUGH_INFO"
	VerdictConflicting   VerdictKind = "CONFLICTING"
)

// VerdictKinds lists every defined kind in report order
var VerdictKinds = []VerdictKind{VerdictSupported, VerdictRefuted, VerdictNotEnoughInfo, VerdictConflicting}

// Valid reports whether k is one of the four defined kinds
func (k VerdictKind) Valid() bool {
	switch k {
	case VerdictSupported, VerdictRefuted, VerdictNotEnoughInfo, VerdictConflicting:
		return true
	}
	return false
}

// ParseVerdictKind accepts enum labels ("NOT_ENOUGH_INFO") and prose labels
// ("Insufficient Information", "Conflicting Evidence") case-insensitively.
func ParseVerdictKind(s string) (VerdictKind, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("_", " ", "-", " ").Replace(key)
	key = strings.Join(strings.Fields(key), " ")

	switch key {
	case "supported", "support", "true":
		return VerdictSupported, true
	case "refuted", "refute", "false":
		return VerdictRefuted, true
	case "not enough info", "not enough information", "insufficient information", "insufficient info", "insufficient evidence":
		return VerdictNotEnoughInfo, true
	case "conflicting", "conflicting evidence", "mixed":
		return VerdictConflicting, true
	}
	return "", false
}

// Verdict is the immutable output of one verification loop
type Verdict struct {
	ClaimID         string            `json:"claim_id"`
	Kind            VerdictKind       `json:"kind"`
	Reasoning       string            `json:"reasoning"`
	Confidence      float64           `json:"confidence"`
	EvidenceURLs    []string          `json:"evidence_urls"`               // Evidence presented to the evaluator
	InfluentialURLs []string          `json:"influential_urls,omitempty"`  // Sources the evaluator marked as decisive
	CorrectedClaim  string            `json:"corrected_claim,omitempty"`   // Evidence-based correction for refuted claims
	Explanation     string            `json:"explanation,omitempty"`       // Detailed analysis
	Queries         []string          `json:"queries,omitempty"`           // Every search query issued
	Iterations      int               `json:"iterations"`                  // Retrieval rounds performed
	Failure         string            `json:"failure,omitempty"`           // Set when the loop degraded after a failed external call
	Insufficient    *InsufficientInfo `json:"insufficient_info,omitempty"` // Only for NOT_ENOUGH_INFO
}

// Degraded reports whether the verdict came from the failure path
func (v Verdict) Degraded() bool {
	return v.Failure != ""
}

// InsufficientInfo explains why a claim could not be verified
type InsufficientInfo struct {
	Category    string   `json:"category"` // e.g. PROPRIETARY_DATA, TOO_SPECIFIC
	Label       string   `json:"label"`
	Explanation string   `json:"explanation"`
	Suggestions []string `json:"suggestions,omitempty"`
}
