// Package provider maps raw, human-typed provider text to canonical carrier
// names. The rule table is an explicit ordered list so that output never
// depends on map iteration order.
package provider

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/crestline-networks/circuit-cli/internal/similarity"
)

var (
	noisePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bIMEI\b[:#\s]*\d*`),
		regexp.MustCompile(`(?i)\b(?:S/N|SN|serial)\b[:#\s]*[\w-]*`),
		regexp.MustCompile(`(?i)\bport\b[:#\s]*\S*`),
		regexp.MustCompile(`(?i)\blocation\b[:#\s]*\S*`),
		regexp.MustCompile(`(?i)\bstatic\s*ip\b[:#\s]*`),
		regexp.MustCompile(`(?i)\bgateway\b[:#\s]*`),
		regexp.MustCompile(`(?i)\bsubnet\b[:#\s]*`),
		regexp.MustCompile(`(?i)\b(?:circuit|ckt)\s*(?:id)?\b[:#\s]*[\w/-]*`),
		// Bare IPs and CIDR blocks left behind by the phrases above.
		regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}(?:/\d{1,2})?\b`),
	}

	leadingPrefix  = regexp.MustCompile(`(?i)^\s*(?:NOT\s+DSR|DSR|AGG|--|-)\s*`)
	trailingSuffix = regexp.MustCompile(`(?i)\s+(?:extended\s+cable|dsl|fiber|adi|workplace)\s*$`)

	punct      = regexp.MustCompile(`[^A-Za-z0-9 .&|-]+`)
	multiSpace = regexp.MustCompile(`\s{2,}`)
)

// Normalizer resolves raw provider text to a canonical name.
type Normalizer struct {
	rules     []Rule
	threshold float64
	titler    cases.Caser
}

// New creates a Normalizer with the given rule table and fuzzy-match
// threshold (0-100 scale).
func New(rules []Rule, threshold float64) *Normalizer {
	return &Normalizer{
		rules:     rules,
		threshold: threshold,
		titler:    cases.Title(language.AmericanEnglish),
	}
}

// Normalize maps raw provider text to a canonical provider name. isDSR marks
// text sourced from order records, which is never downgraded to a cellular
// label. An empty result is valid and means "no provider".
func (n *Normalizer) Normalize(raw string, isDSR bool) string {
	cleaned := Clean(raw)
	if cleaned == "" {
		return ""
	}
	lower := strings.ToLower(cleaned)

	// Short-circuiting prefix/contains rules, in table order.
	for _, r := range n.rules {
		if r.SkipDSR && isDSR {
			continue
		}
		p := strings.ToLower(r.Pattern)
		switch r.Match {
		case MatchPrefix:
			if strings.HasPrefix(lower, p) {
				return r.Canonical
			}
		case MatchContains:
			if strings.Contains(lower, p) {
				return r.Canonical
			}
		}
	}

	// Fuzzy rules compete; the single best score above the threshold wins,
	// with table order breaking exact ties.
	bestScore := n.threshold
	bestCanonical := ""
	for _, r := range n.rules {
		if r.Match != MatchFuzzy || (r.SkipDSR && isDSR) {
			continue
		}
		if score := similarity.Best(cleaned, r.Pattern); score > bestScore {
			bestScore = score
			bestCanonical = r.Canonical
		}
	}
	if bestCanonical != "" {
		return bestCanonical
	}

	return n.display(cleaned)
}

// Clean strips noise phrases, feed prefixes, product suffixes, and stray
// punctuation from raw provider text.
func Clean(raw string) string {
	s := raw
	for _, re := range noisePatterns {
		s = re.ReplaceAllString(s, " ")
	}

	for {
		trimmed := leadingPrefix.ReplaceAllString(s, "")
		if trimmed == s {
			break
		}
		s = trimmed
	}
	s = trailingSuffix.ReplaceAllString(s, "")

	s = punct.ReplaceAllString(s, " ")
	s = multiSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// display renders an unmatched provider for output. All-caps free text gets
// title casing; anything with mixed case is left as the operator typed it.
func (n *Normalizer) display(s string) string {
	if len(s) > 4 && s == strings.ToUpper(s) && strings.ContainsFunc(s, unicode.IsLetter) {
		return n.titler.String(strings.ToLower(s))
	}
	return s
}
