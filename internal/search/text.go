// Package search provides the plain-text matching and excerpting helpers
// behind the read-side projection: case-insensitive substring search,
// highlight span computation, word counting, and bounded previews.
package search

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Span marks one highlighted match inside a string, as rune offsets
// [Start, End).
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ContainsFold reports whether sub occurs in s, case-insensitively.
// An empty sub never matches.
func ContainsFold(s, sub string) bool {
	if sub == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// AnyContainsFold reports whether sub occurs in any element of list,
// case-insensitively.
func AnyContainsFold(list []string, sub string) bool {
	for _, s := range list {
		if ContainsFold(s, sub) {
			return true
		}
	}
	return false
}

// Spans returns the rune-offset spans of every non-overlapping
// case-insensitive occurrence of term in text, in order. Term folding uses
// lowercase mapping, which keeps byte and rune alignment stable for the
// scripts journal text realistically contains.
func Spans(text, term string) []Span {
	if term == "" {
		return nil
	}
	lowerText := strings.ToLower(text)
	lowerTerm := strings.ToLower(term)
	termRunes := utf8.RuneCountInString(lowerTerm)

	var spans []Span
	runeOff := 0
	for rest := lowerText; ; {
		i := strings.Index(rest, lowerTerm)
		if i < 0 {
			break
		}
		runeOff += utf8.RuneCountInString(rest[:i])
		spans = append(spans, Span{Start: runeOff, End: runeOff + termRunes})
		runeOff += termRunes
		rest = rest[i+len(lowerTerm):]
	}
	return spans
}

// WordCount counts whitespace-separated words in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// Preview returns a bounded excerpt of s: whitespace collapsed, clipped to
// maxRunes at a word boundary where one exists, with a trailing ellipsis
// when clipped. maxRunes <= 0 returns the collapsed text unclipped.
func Preview(s string, maxRunes int) string {
	collapsed := strings.Join(strings.Fields(s), " ")
	if maxRunes <= 0 || utf8.RuneCountInString(collapsed) <= maxRunes {
		return collapsed
	}

	runes := []rune(collapsed)
	cut := maxRunes
	// back up to the nearest space, but not unreasonably far
	for i := maxRunes - 1; i > maxRunes/2; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}
	return strings.TrimRight(string(runes[:cut]), " ") + "…"
}
