package enrich

import (
	"regexp"

	"github.com/crestline-networks/circuit-cli/internal/model"
)

// Decision is the change gate's verdict for one device.
type Decision int

const (
	// FullRecompute runs the complete priority chain.
	FullRecompute Decision = iota
	// Skip leaves the persisted row untouched.
	Skip
	// SwapOnly exchanges the persisted WAN1/WAN2 fields without recomputing.
	SwapOnly
)

func (d Decision) String() string {
	switch d {
	case Skip:
		return "skip"
	case SwapOnly:
		return "swap"
	default:
		return "recompute"
	}
}

var canonicalSpeedRe = regexp.MustCompile(`^\d+(\.\d+)?M x \d+(\.\d+)?M$`)

// speedCanonical reports whether a stored speed is in one of the formats the
// engine emits. Legacy rows carry free-text speeds and must be recomputed.
func speedCanonical(s string) bool {
	if s == "Cell" || s == "Satellite" {
		return true
	}
	return canonicalSpeedRe.MatchString(s)
}

func ownershipUsable(org string) bool {
	return org != "" && org != model.OwnershipUnknown
}

// Evaluate decides whether a device needs re-enrichment. Unchanged IPs with
// usable ownership and canonical speeds skip entirely; IPs that merely
// exchanged positions get a pure field swap; everything else recomputes.
func Evaluate(dev model.DeviceWanState, existing *model.EnrichedCircuit) Decision {
	if existing == nil {
		return FullRecompute
	}

	if dev.WAN1IP == existing.WAN1.IP && dev.WAN2IP == existing.WAN2.IP {
		if ownershipUsable(existing.WAN1.ArinOrg) && ownershipUsable(existing.WAN2.ArinOrg) &&
			speedCanonical(existing.WAN1.Speed) && speedCanonical(existing.WAN2.Speed) {
			return Skip
		}
		return FullRecompute
	}

	if dev.WAN1IP != "" && dev.WAN2IP != "" &&
		dev.WAN1IP == existing.WAN2.IP && dev.WAN2IP == existing.WAN1.IP {
		return SwapOnly
	}

	return FullRecompute
}
