package arin

import (
	"sort"
	"strings"

	"github.com/crestline-networks/circuit-cli/pkg/rdap"
)

// Roles that mark contact entities rather than the owning organization.
var contactRoles = []string{"administrative", "technical", "abuse", "noc"}

// boilerplatePrefixes are stripped from registry organization names before
// the collapse table is applied.
var boilerplatePrefixes = []string{
	"Private Customer -",
	"Private Customer",
	"Customer of",
}

// collapseTable folds the many legal-entity spellings of one carrier into a
// single display name. Matched case-insensitively by substring, in order.
var collapseTable = []struct {
	substr    string
	canonical string
}{
	{"cellco partnership", "Verizon Wireless"},
	{"verizon wireless", "Verizon Wireless"},
	{"mci communications", "Verizon Business"},
	{"verizon business", "Verizon Business"},
	{"comcast cable", "Comcast"},
	{"comcast business", "Comcast"},
	{"charter communications", "Spectrum"},
	{"time warner cable", "Spectrum"},
	{"cox communications", "Cox"},
	{"centurylink communications", "CenturyLink"},
	{"qwest communications", "CenturyLink"},
	{"level 3 parent", "CenturyLink"},
	{"level 3 communications", "CenturyLink"},
	{"at&t corp", "AT&T"},
	{"at&t services", "AT&T"},
	{"at&t internet services", "AT&T"},
	{"space exploration technologies", "Starlink"},
	{"t-mobile usa", "T-Mobile"},
	{"frontier communications", "Frontier"},
	{"windstream communications", "Windstream"},
	{"hughes network systems", "HughesNet"},
}

// networkNamePrefixes is the last-resort heuristic: well-known prefixes of
// RDAP network names when no usable entity exists.
var networkNamePrefixes = []struct {
	prefix string
	org    string
}{
	{"VZW", "Verizon Wireless"},
	{"VIS-BLOCK", "Verizon Business"},
	{"ATT-", "AT&T"},
	{"SIS-80", "AT&T"},
	{"TMO", "T-Mobile"},
	{"T-MOBILE", "T-Mobile"},
	{"CHARTER", "Spectrum"},
	{"TWC-", "Spectrum"},
	{"COMCAST", "Comcast"},
	{"CBC-", "Comcast"},
	{"COX-", "Cox"},
	{"CENTURYLINK", "CenturyLink"},
	{"EMBARQ", "CenturyLink"},
	{"SPACEX", "Starlink"},
	{"STARLINK", "Starlink"},
	{"HUGHES", "HughesNet"},
}

// corporate tokens used to tell company names from personal registrant names.
var corporateTokens = []string{
	"llc", "inc", "corp", "ltd", "l.p.", "lp", "co.", "company", "partnership",
	"communications", "network", "networks", "telecom", "wireless", "cable",
	"broadband", "internet", "technologies", "services", "systems", "fiber",
	"exchange", "dba", "d/b/a", "enterprises", "group", "holdings",
}

// ChooseOrganization picks the owning organization from an RDAP document.
// Returns empty string when no usable entity or network-name heuristic
// applies; the resolver maps that to the Unknown sentinel.
func ChooseOrganization(network *rdap.Network) string {
	if network == nil {
		return ""
	}

	candidates := collectOrgs(network.Entities)

	// Newest registration/last-changed event wins: ownership transfers leave
	// the stale party in the document, and the newest entity is the current
	// holder. Stable sort keeps document order for undated ties.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].LatestEventDate().After(candidates[j].LatestEventDate())
	})

	for _, e := range candidates {
		if name := CanonicalOrgName(e.FullName); name != "" {
			return name
		}
	}

	return orgFromNetworkName(network.Name)
}

// collectOrgs flattens the entity tree, keeping organization entities and
// dropping contact-role entities and personal registrants.
func collectOrgs(entities []rdap.Entity) []rdap.Entity {
	var out []rdap.Entity
	for _, e := range entities {
		if !isContact(e) && e.FullName != "" && !looksPersonal(e) {
			out = append(out, e)
		}
		out = append(out, collectOrgs(e.Entities)...)
	}
	return out
}

func isContact(e rdap.Entity) bool {
	for _, role := range contactRoles {
		if e.HasRole(role) {
			return true
		}
	}
	return false
}

// looksPersonal flags registrant entries that are a person, not a company.
// Organization-kind vcards are always kept.
func looksPersonal(e rdap.Entity) bool {
	if e.Kind == "org" {
		return false
	}
	if e.Kind == "individual" {
		return true
	}
	name := strings.ToLower(e.FullName)
	for _, tok := range corporateTokens {
		if strings.Contains(name, tok) {
			return false
		}
	}
	// Short all-letter names with no corporate token read as "First Last".
	words := strings.Fields(name)
	return len(words) > 0 && len(words) <= 3 && !strings.ContainsAny(name, "0123456789")
}

// CanonicalOrgName strips boilerplate and applies the collapse table to a
// raw registry organization name.
func CanonicalOrgName(name string) string {
	name = strings.TrimSpace(name)
	for _, p := range boilerplatePrefixes {
		if strings.HasPrefix(name, p) {
			name = strings.TrimSpace(strings.TrimPrefix(name, p))
		}
	}
	if name == "" {
		return ""
	}
	lower := strings.ToLower(name)
	for _, c := range collapseTable {
		if strings.Contains(lower, c.substr) {
			return c.canonical
		}
	}
	return name
}

func orgFromNetworkName(name string) string {
	upper := strings.ToUpper(strings.TrimSpace(name))
	if upper == "" {
		return ""
	}
	for _, p := range networkNamePrefixes {
		if strings.HasPrefix(upper, p.prefix) {
			return p.org
		}
	}
	return ""
}
