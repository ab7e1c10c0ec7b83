package extract

import (
	"strings"

	"github.com/ppiankov/claimcheck/internal/model"
)

const elision = "[...]"

// excerpt renders the sentences around index i: up to before preceding and
// after following sentences. An elision marker shows where the window stops
// short of the document edges.
func excerpt(sentences []model.Sentence, i, before, after int) string {
	lo := max(0, i-before)
	hi := min(len(sentences), i+after+1)

	parts := make([]string, 0, hi-lo+2)
	if lo > 0 {
		parts = append(parts, elision)
	}
	for _, s := range sentences[lo:hi] {
		parts = append(parts, s.Text)
	}
	if hi < len(sentences) {
		parts = append(parts, elision)
	}
	return strings.Join(parts, " ")
}

// preceding renders up to n sentences before index i, in order
func preceding(sentences []model.Sentence, i, n int) string {
	if i <= 0 || n <= 0 {
		return ""
	}
	lo := max(0, i-n)
	parts := make([]string, 0, i-lo+1)
	if lo > 0 {
		parts = append(parts, elision)
	}
	for _, s := range sentences[lo:i] {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, " ")
}
