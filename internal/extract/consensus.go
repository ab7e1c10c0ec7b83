package extract

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DefaultNearMatch is the similarity at which two normalized texts count as the same answer
const DefaultNearMatch = 0.95

var folder = cases.Fold()

// Threshold returns the number of agreeing votes required out of k for the
// given agreement fraction, i.e. ceil(k*agreement). It is never below 1.
func Threshold(k int, agreement float64) int {
	n := int(math.Ceil(float64(k)*agreement - 1e-9))
	return max(n, 1)
}

// Normalize canonicalizes text for equivalence checks: NFKC, case folding,
// collapsed whitespace, and no surrounding quotes or trailing punctuation.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = folder.String(s)
	s = strings.Join(strings.Fields(s), " ")
	for {
		trimmed := strings.TrimRightFunc(s, func(r rune) bool {
			return unicode.IsPunct(r) && !isQuote(r) && r != ')' && r != ']'
		})
		trimmed = strings.TrimFunc(trimmed, isQuote)
		trimmed = strings.TrimSpace(trimmed)
		if trimmed == s {
			return s
		}
		s = trimmed
	}
}

func isQuote(r rune) bool {
	switch r {
	case '"', '\'', '“', '”', '‘', '’', '«', '»', '`':
		return true
	}
	return false
}

// Similarity returns 1 - levenshtein(a, b)/max(len(a), len(b)) over runes
func Similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// Equivalent reports whether two answers are the same after normalization,
// or close enough that their similarity reaches near.
func Equivalent(a, b string, near float64) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return true
	}
	if near <= 0 || near > 1 {
		near = DefaultNearMatch
	}
	return Similarity(na, nb) >= near
}

// TextVote is one free-text answer. Abstain marks an explicit "cannot resolve".
type TextVote struct {
	Text    string
	Abstain bool
}

// TextDecision is the aggregated outcome of a set of text votes
type TextDecision struct {
	Accepted bool
	Text     string // Earliest member of the winning cluster
	Support  int    // Size of the winning cluster
	Votes    int
}

// AggregateText clusters votes greedily in vote order: a vote joins the first
// cluster whose founding answer it is equivalent to, otherwise it founds a new
// one. Abstentions and blank answers never join a cluster. The largest cluster
// wins, the earliest on ties, and is accepted when it has at least required
// members.
func AggregateText(votes []TextVote, required int, near float64) TextDecision {
	type cluster struct {
		text string
		size int
	}
	var clusters []cluster

	for _, v := range votes {
		if v.Abstain || strings.TrimSpace(v.Text) == "" {
			continue
		}
		joined := false
		for i := range clusters {
			if Equivalent(clusters[i].text, v.Text, near) {
				clusters[i].size++
				joined = true
				break
			}
		}
		if !joined {
			clusters = append(clusters, cluster{text: strings.TrimSpace(v.Text), size: 1})
		}
	}

	d := TextDecision{Votes: len(votes)}
	best := -1
	for i, c := range clusters {
		if best < 0 || c.size > clusters[best].size {
			best = i
		}
	}
	if best < 0 {
		return d
	}
	d.Text = clusters[best].text
	d.Support = clusters[best].size
	d.Accepted = d.Support >= required
	return d
}

// BoolDecision is the aggregated outcome of a set of yes/no votes
type BoolDecision struct {
	Accepted   bool
	Yes        int
	Votes      int
	Confidence float64 // Fraction of affirmative votes
}

// AggregateBool accepts when at least required votes are affirmative
func AggregateBool(votes []bool, required int) BoolDecision {
	d := BoolDecision{Votes: len(votes)}
	for _, v := range votes {
		if v {
			d.Yes++
		}
	}
	if d.Votes > 0 {
		d.Confidence = float64(d.Yes) / float64(d.Votes)
	}
	d.Accepted = d.Votes > 0 && d.Yes >= required
	return d
}
