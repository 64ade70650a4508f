// Package notes extracts per-interface provider and speed labels from the
// free-text notes stored on network appliances. Notes are human-typed and
// noisy; parsing never fails, it just yields empty strings.
package notes

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Label is the provider/speed text extracted for one WAN interface.
// Empty strings signal "nothing parsed".
type Label struct {
	Provider string
	Speed    string
}

// Parsed holds the labels for both WAN interfaces of a device.
type Parsed struct {
	WAN1 Label
	WAN2 Label
}

var (
	wan1Marker = regexp.MustCompile(`(?i)\bWAN\s?1\b[:\s]*`)
	wan2Marker = regexp.MustCompile(`(?i)\bWAN\s?2\b[:\s]*`)

	// <number><unit> x <number><unit>, unit in M/MB/G/GB.
	speedToken = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(M|MB|G|GB)\s*[xX]\s*(\d+(?:\.\d+)?)\s*(M|MB|G|GB)`)

	// Free-text noise that shows up next to provider names.
	noisePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bIMEI\b[:\s#]*\d*`),
		regexp.MustCompile(`(?i)\b(?:S/N|SN|serial)\b[:\s#]*[A-Za-z0-9-]*`),
		regexp.MustCompile(`(?i)\blocation\b[:\s]*\S*`),
		regexp.MustCompile(`(?i)\bgateway\b[:\s]*\d{1,3}(?:\.\d{1,3}){3}`),
	}

	disallowedRunes = regexp.MustCompile(`[^A-Za-z0-9 .&|-]+`)
	multiSpace      = regexp.MustCompile(`\s{2,}`)
)

// Parse splits a raw device note into per-interface labels. The text between
// the WAN1 marker and the WAN2 marker (or end of string) is the WAN1 segment,
// and likewise for WAN2. A note with no markers is treated as WAN1 only.
func Parse(raw string) Parsed {
	text := strings.Join(strings.Fields(raw), " ")
	if text == "" {
		return Parsed{}
	}

	var seg1, seg2 string
	loc1 := wan1Marker.FindStringIndex(text)
	loc2 := wan2Marker.FindStringIndex(text)

	switch {
	case loc1 != nil && loc2 != nil:
		if loc1[0] <= loc2[0] {
			seg1 = text[loc1[1]:loc2[0]]
			seg2 = text[loc2[1]:]
		} else {
			seg2 = text[loc2[1]:loc1[0]]
			seg1 = text[loc1[1]:]
		}
	case loc1 != nil:
		seg1 = text[loc1[1]:]
	case loc2 != nil:
		seg2 = text[loc2[1]:]
	default:
		seg1 = text
	}

	return Parsed{
		WAN1: parseSegment(seg1),
		WAN2: parseSegment(seg2),
	}
}

// parseSegment extracts the provider/speed pair from one interface's text.
func parseSegment(seg string) Label {
	seg = strings.TrimSpace(seg)
	if seg == "" {
		return Label{}
	}

	if m := speedToken.FindStringSubmatchIndex(seg); m != nil {
		speed := formatSpeed(
			seg[m[2]:m[3]], seg[m[4]:m[5]],
			seg[m[6]:m[7]], seg[m[8]:m[9]],
		)
		provider := cleanProviderText(seg[:m[0]])
		return Label{Provider: provider, Speed: speed}
	}

	return specialCase(seg)
}

// specialCase handles segments without a well-formed speed token.
func specialCase(seg string) Label {
	cleaned := cleanProviderText(seg)
	lower := strings.ToLower(cleaned)

	switch {
	case lower == "cell cell":
		return Label{Provider: "VZW Cell", Speed: "Cell"}
	case strings.HasSuffix(lower, " cell"):
		return Label{Provider: strings.TrimSpace(cleaned[:len(cleaned)-len(" cell")]), Speed: "Cell"}
	case strings.Contains(lower, "starlink") && strings.Contains(lower, "satellite"):
		return Label{Provider: "Starlink", Speed: "Satellite"}
	case strings.Contains(lower, "verizon business") && len(lower) <= 30:
		return Label{Provider: "Verizon Business", Speed: "Cell"}
	case strings.Contains(lower, "vz gateway"), strings.Contains(lower, "vzg"):
		return Label{Provider: "VZW Cell", Speed: "Cell"}
	}

	return Label{Provider: cleaned}
}

// formatSpeed converts both halves of a speed token to megabits and renders
// the canonical "{up:.1f}M x {down:.1f}M" form. G and GB scale by 1000.
func formatSpeed(up, upUnit, down, downUnit string) string {
	return fmt.Sprintf("%.1fM x %.1fM", toMegabits(up, upUnit), toMegabits(down, downUnit))
}

func toMegabits(num, unit string) float64 {
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	switch strings.ToUpper(unit) {
	case "G", "GB":
		return n * 1000
	default:
		return n
	}
}

// cleanProviderText strips noise phrases and collapses punctuation outside
// the provider-name alphabet to spaces.
func cleanProviderText(s string) string {
	for _, re := range noisePatterns {
		s = re.ReplaceAllString(s, " ")
	}
	s = disallowedRunes.ReplaceAllString(s, " ")
	s = multiSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
