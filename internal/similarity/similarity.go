// Package similarity provides edit-distance scoring for provider name matching.
package similarity

import (
	"strings"

	"github.com/agext/levenshtein"
)

// Ratio returns the Levenshtein similarity of two strings on a 0-100 scale.
// Comparison is case-insensitive with surrounding whitespace ignored.
func Ratio(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" && b == "" {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}
	return levenshtein.Similarity(a, b, nil) * 100
}

// PartialRatio scores the shorter string against the best-matching window of
// the longer one. Full containment scores 100, so "AT&T" matches
// "AT&T Dedicated Internet" outright.
func PartialRatio(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" && b == "" {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}

	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if strings.Contains(longer, shorter) {
		return 100
	}

	best := 0.0
	n := len(shorter)
	for i := 0; i+n <= len(longer); i++ {
		score := levenshtein.Similarity(shorter, longer[i:i+n], nil) * 100
		if score > best {
			best = score
		}
	}
	return best
}

// Best returns the higher of Ratio and PartialRatio.
func Best(a, b string) float64 {
	r := Ratio(a, b)
	if p := PartialRatio(a, b); p > r {
		return p
	}
	return r
}
