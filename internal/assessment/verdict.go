// SPDX-License-Identifier: Apache-2.0

package assessment

import (
	"strings"
	"unicode"
)

// Verdict is the YES/NO conclusion of a sufficiency assessment.
type Verdict string

const (
	VerdictYes     Verdict = "YES"
	VerdictNo      Verdict = "NO"
	VerdictUnknown Verdict = "UNKNOWN"
)

const conclusionLabel = "CONCLUSION:"

// ParseVerdict extracts the leading YES or NO token of an assessment, after
// an optional "CONCLUSION:" label. Markdown emphasis and brackets around the
// token are ignored.
func ParseVerdict(text string) Verdict {
	rest := strings.ToUpper(text)
	if i := strings.Index(rest, conclusionLabel); i >= 0 {
		rest = rest[i+len(conclusionLabel):]
	}
	rest = strings.TrimLeftFunc(rest, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune("*_[(`'\"", r)
	})

	end := strings.IndexFunc(rest, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if end < 0 {
		end = len(rest)
	}
	switch rest[:end] {
	case "YES":
		return VerdictYes
	case "NO":
		return VerdictNo
	}
	return VerdictUnknown
}
