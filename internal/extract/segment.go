package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/claimcheck/internal/model"
)

// titles and Latin shorthands whose period never ends a sentence
var titles = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true, "st": true, "gen": true,
	"sen": true, "rep": true, "rev": true, "hon": true, "capt": true, "lt": true, "col": true,
	"sgt": true, "e.g": true, "i.e": true, "vs": true, "cf": true,
}

// abbreviations that end a sentence unless lowercase text or a number follows
var abbreviations = map[string]bool{
	"sr": true, "jr": true, "etc": true, "inc": true, "ltd": true, "co": true, "corp": true,
	"fig": true, "approx": true, "est": true, "gov": true, "u.s": true, "u.k": true, "u.n": true,
	"jan": true, "feb": true, "mar": true, "apr": true, "jun": true, "jul": true,
	"aug": true, "sep": true, "sept": true, "oct": true, "nov": true, "dec": true,
}

// Segment splits text into sentences with byte offsets into text.
//
// A sentence ends at '.', '!' or '?' (plus any closing quotes or brackets)
// followed by whitespace or the end of input, unless the period belongs to a
// title, an abbreviation continued by lowercase text or a number, "No." before
// a number, or a single-letter initial inside a name. Line breaks always end a
// sentence, and list markers at the start of a line are dropped. Empty input
// yields no sentences.
func Segment(text string) []model.Sentence {
	var out []model.Sentence
	start := 0

	emit := func(from, to int) {
		s, e := trimSpan(text, from, to)
		s = skipListMarker(text, s, e)
		if s >= e {
			return
		}
		out = append(out, model.Sentence{Index: len(out), Text: text[s:e], Start: s, End: e})
	}

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		next := i + size

		switch {
		case r == '\n':
			emit(start, i)
			start = next

		case r == '.' || r == '!' || r == '?':
			end := next
			for end < len(text) {
				c, n := utf8.DecodeRuneInString(text[end:])
				if !isCloser(c) {
					break
				}
				end += n
			}
			if end < len(text) {
				c, _ := utf8.DecodeRuneInString(text[end:])
				if !unicode.IsSpace(c) {
					break
				}
			}
			if r == '.' && isAbbreviation(text[start:i], text[end:]) {
				break
			}
			emit(start, end)
			start = end
			next = end
		}

		i = next
	}
	emit(start, len(text))

	return out
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’', '»':
		return true
	}
	return false
}

// isAbbreviation reports whether the period after fragment belongs to its
// last word rather than ending the sentence. rest is the text after the period.
func isAbbreviation(fragment, rest string) bool {
	words := strings.Fields(fragment)
	if len(words) == 0 {
		return false
	}
	word := strings.TrimLeft(words[len(words)-1], "(\"'“‘")
	if word == "" {
		return false
	}
	// number of a numbered list item
	if len(words) == 1 && strings.Trim(word, "0123456789") == "" {
		return true
	}

	next := nextRune(rest)
	continued := unicode.IsLower(next) || unicode.IsDigit(next)
	lower := strings.ToLower(word)
	switch {
	case lower == "no":
		return unicode.IsDigit(next)
	case titles[lower]:
		return true
	case abbreviations[lower]:
		return continued
	case isInitial(word):
		if continued || len(words) == 1 {
			return true
		}
		// "J. R. R. Tolkien", "George W. Bush"
		prev := strings.TrimSuffix(words[len(words)-2], ".")
		return isInitial(prev) || startsUpper(prev)
	}
	return false
}

func isInitial(word string) bool {
	return utf8.RuneCountInString(word) == 1 && startsUpper(word)
}

func startsUpper(word string) bool {
	r, _ := utf8.DecodeRuneInString(word)
	return unicode.IsUpper(r)
}

// nextRune returns the first non-space rune of s, or 0
func nextRune(s string) rune {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return r
		}
	}
	return 0
}

func trimSpan(text string, s, e int) (int, int) {
	for s < e {
		r, n := utf8.DecodeRuneInString(text[s:e])
		if !unicode.IsSpace(r) {
			break
		}
		s += n
	}
	for e > s {
		r, n := utf8.DecodeLastRuneInString(text[s:e])
		if !unicode.IsSpace(r) {
			break
		}
		e -= n
	}
	return s, e
}

// skipListMarker moves s past a leading "-", "*", "•" or "1." / "1)" marker
func skipListMarker(text string, s, e int) int {
	line := text[s:e]
	marker := 0
	switch {
	case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
		marker = 2
	case strings.HasPrefix(line, "• "):
		marker = len("• ")
	default:
		digits := 0
		for digits < len(line) && line[digits] >= '0' && line[digits] <= '9' {
			digits++
		}
		if digits > 0 && digits+1 < len(line) && (line[digits] == '.' || line[digits] == ')') && line[digits+1] == ' ' {
			marker = digits + 2
		}
	}
	if marker == 0 {
		return s
	}
	s, _ = trimSpan(text, s+marker, e)
	return s
}
