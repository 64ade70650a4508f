package arin

import "net/netip"

// knownRange maps a documented carrier CIDR to a fixed organization. These
// ranges are stable enough that a registry round-trip is wasted effort.
type knownRange struct {
	prefix netip.Prefix
	org    string
}

var knownRanges = []knownRange{
	// Verizon Wireless LTE/5G customer pool.
	{netip.MustParsePrefix("174.192.0.0/10"), "Verizon Wireless"},
	// T-Mobile cellular customer pool.
	{netip.MustParsePrefix("172.32.0.0/11"), "T-Mobile"},
}

// staticOwners is the curated allowlist for ambiguous or legacy IPs whose
// registry records point at the wrong party (resellers, stale transfers).
var staticOwners = map[string]string{
	"12.0.0.1":     "AT&T",
	"4.2.2.2":      "CenturyLink",
	"66.174.0.1":   "Verizon Wireless",
	"99.82.180.10": "AT&T",
}

// lookupKnownRange returns the fixed organization for a documented carrier
// range, if the IP falls in one.
func lookupKnownRange(addr netip.Addr) (string, bool) {
	for _, r := range knownRanges {
		if r.prefix.Contains(addr) {
			return r.org, true
		}
	}
	return "", false
}

// lookupStatic returns the curated owner for a specific IP, if listed.
func lookupStatic(ip string) (string, bool) {
	org, ok := staticOwners[ip]
	return org, ok
}
