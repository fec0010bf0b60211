// Package segment splits long passages into pieces that fit a single
// synthesis request.
package segment

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Len returns the length of s in characters. All budgets in the narration
// pipeline are measured with it.
func Len(s string) int {
	return utf8.RuneCountInString(s)
}

// Split breaks text into trimmed pieces of at most maxLength characters.
//
// Each cut prefers, in order: the last sentence end (. ! ?), the last clause
// end (, ; :), the last whitespace, and finally a hard cut at maxLength.
// Punctuation may be followed by a closing quote and only counts when
// whitespace or the end of the text follows it. Empty input yields no pieces.
func Split(text string, maxLength int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxLength < 1 {
		maxLength = 1
	}

	remaining := []rune(text)
	if len(remaining) <= maxLength {
		return []string{text}
	}

	var pieces []string
	for len(remaining) > 0 {
		if len(remaining) <= maxLength {
			pieces = append(pieces, string(remaining))
			break
		}

		cut := cutPoint(remaining, maxLength)
		if piece := strings.TrimSpace(string(remaining[:cut])); piece != "" {
			pieces = append(pieces, piece)
		}
		remaining = trimLeft(remaining[cut:])
	}

	return pieces
}

func cutPoint(remaining []rune, maxLength int) int {
	if cut := lastPunctuation(remaining, maxLength, isSentenceEnd); cut > 0 {
		return cut
	}
	if cut := lastPunctuation(remaining, maxLength, isClauseEnd); cut > 0 {
		return cut
	}
	if cut := lastSpace(remaining[:maxLength]); cut > 0 {
		return cut
	}
	return maxLength
}

// lastPunctuation returns the offset just after the last qualifying mark
// inside the first maxLength runes, or -1.
func lastPunctuation(remaining []rune, maxLength int, match func(rune) bool) int {
	for i := maxLength - 1; i >= 0; i-- {
		if !match(remaining[i]) {
			continue
		}
		end := i + 1
		if end < len(remaining) && isQuote(remaining[end]) {
			end++
		}
		if end > maxLength {
			continue
		}
		if end == len(remaining) || unicode.IsSpace(remaining[end]) {
			return end
		}
	}
	return -1
}

func lastSpace(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if unicode.IsSpace(window[i]) {
			return i
		}
	}
	return -1
}

func trimLeft(r []rune) []rune {
	for len(r) > 0 && unicode.IsSpace(r[0]) {
		r = r[1:]
	}
	return r
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isClauseEnd(r rune) bool {
	return r == ',' || r == ';' || r == ':'
}

func isQuote(r rune) bool {
	return r == '"' || r == '\''
}
