package model

// Sentence is one unit of source text with its byte offsets in the original input
type Sentence struct {
	Index int    `json:"index"` // Position in the segmented sequence (0-based)
	Text  string `json:"text"`  // Sentence text, trimmed
	Start int    `json:"start"` // Byte offset of the first character in the source
	End   int    `json:"end"`   // Byte offset one past the last character
}

// Candidate is a sentence the selector flagged as carrying verifiable content
type Candidate struct {
	Sentence Sentence `json:"sentence"` // Provenance link back to the source
	Text     string   `json:"text"`     // Verifiable portion (equals Sentence.Text when unchanged)
}

// Statement is a candidate whose references were resolved by consensus.
// A statement with Unresolved set is a tombstone and never leaves the disambiguation stage.
type Statement struct {
	Candidate  Candidate `json:"candidate"`
	Text       string    `json:"text"`
	Unresolved bool      `json:"unresolved,omitempty"`
}

// Tombstone returns the marker for a candidate that could not be disambiguated
func Tombstone(c Candidate) Statement {
	return Statement{Candidate: c, Unresolved: true}
}

// Claim is an atomic, self-contained, checkable assertion.
// Claims are values: stages build new ones and never modify existing ones.
type Claim struct {
	ID         string   `json:"id"`                  // Stable identifier used to associate the verdict
	Text       string   `json:"text"`                // The atomic assertion
	Sentence   Sentence `json:"sentence"`            // Exactly one source sentence
	Statement  string   `json:"statement,omitempty"` // Disambiguated statement it was decomposed from
	Confidence float64  `json:"confidence"`          // Fraction of affirmative validation votes
}
