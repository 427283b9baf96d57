// SPDX-License-Identifier: Apache-2.0

package evidence

import (
	"fmt"
	"unicode/utf8"
)

// BudgetedText is DecodedText after the truncation policy was applied.
type BudgetedText struct {
	Text           string
	Truncated      bool
	OriginalLength int
}

// Length returns the length of s in characters.
func Length(s string) int {
	return utf8.RuneCountInString(s)
}

func elisionMarker(n int) string {
	return fmt.Sprintf("\n\n[TRUNCATED: %d chars removed from middle]\n\n", n)
}

// Truncate bounds text to capChars characters. Longer text keeps half the cap
// from the start and a quarter from the end around a marker stating how many
// characters were elided.
func Truncate(text string, capChars int) BudgetedText {
	n := Length(text)
	if n <= capChars {
		return BudgetedText{Text: text, OriginalLength: n}
	}
	if capChars <= 0 {
		return BudgetedText{Truncated: true, OriginalLength: n}
	}

	runes := []rune(text)
	head := capChars / 2
	tail := capChars / 4

	marker := elisionMarker(n - head - tail)
	if head+Length(marker)+tail > capChars {
		room := capChars - Length(elisionMarker(n))
		if room < 0 {
			room = 0
		}
		head = room * 2 / 3
		tail = room - head
		marker = elisionMarker(n - head - tail)
	}

	out := string(runes[:head]) + marker + string(runes[n-tail:])
	if Length(out) > capChars {
		out = string([]rune(out)[:capChars])
	}
	return BudgetedText{Text: out, Truncated: true, OriginalLength: n}
}

// Clip keeps the first keep characters of text when it exceeds limit and
// appends note. It reports whether anything was cut.
func Clip(text string, limit, keep int, note string) (string, bool) {
	if Length(text) <= limit {
		return text, false
	}
	return string([]rune(text)[:keep]) + note, true
}
