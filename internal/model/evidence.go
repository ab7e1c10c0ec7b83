package model

// Evidence is one retrieved item within a verification loop
type Evidence struct {
	URL       string        `json:"url"`                 // Source URL, unique within a loop
	Title     string        `json:"title,omitempty"`     // Page title
	Snippet   string        `json:"snippet,omitempty"`   // Content snippet returned by search
	Content   string        `json:"content,omitempty"`   // Optional full page text
	Relevance float64       `json:"relevance"`           // Search relevance score
	Authority AuthorityTier `json:"authority,omitempty"` // Source authority classification
	Query     string        `json:"query,omitempty"`     // Query that retrieved it
	Iteration int           `json:"iteration"`           // Loop iteration that retrieved it (1-based)
}

// Text returns the content preferred for evaluation: full content when present, else the snippet
func (e Evidence) Text() string {
	if e.Content != "" {
		return e.Content
	}
	return e.Snippet
}

// AuthorityTier represents the classification of source authority
type AuthorityTier int

const (
	TierUnknown   AuthorityTier = 0 // Not yet classified
	TierPrimary   AuthorityTier = 1 // Government, education, intergovernmental, scholarly records
	TierSecondary AuthorityTier = 2 // Encyclopedias, journals, major press
	TierTertiary  AuthorityTier = 3 // Everything else
)

func (t AuthorityTier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierTertiary:
		return "tertiary"
	default:
		return "unknown"
	}
}

// Authoritative reports whether the tier belongs to the authoritative allow-list
func (t AuthorityTier) Authoritative() bool {
	return t == TierPrimary || t == TierSecondary
}
