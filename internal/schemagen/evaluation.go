package schemagen

import "strings"

// negativeMarkers must be checked before positiveMarkers: several of them
// ("invalid", "incorrect", "не соответствует") contain a positive marker
// as a substring ("valid", "correct", "соответствует").
var negativeMarkers = []string{
	"несоответствует",
	"doesnotmatch",
	"invalid",
	"incorrect",
}

var positiveMarkers = []string{
	"соответствует",
	"matches",
	"valid",
	"correct",
}

// ParseEvaluation interprets the self-evaluation model's response (spec
// §4.4). The response is lowercased and stripped of spaces/underscores so
// "does not match" and "does_not_match" parse identically. Negative
// markers are checked first since some contain a positive marker as a
// substring. Any response matching neither list is treated as negative.
func ParseEvaluation(response string) bool {
	compact := compactLower(response)

	for _, marker := range negativeMarkers {
		if strings.Contains(compact, marker) {
			return false
		}
	}
	for _, marker := range positiveMarkers {
		if strings.Contains(compact, marker) {
			return true
		}
	}
	return false
}

func compactLower(s string) string {
	lower := strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if r == ' ' || r == '_' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
