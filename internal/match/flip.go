package match

import (
	"go.uber.org/zap"

	"github.com/crestline-networks/circuit-cli/internal/model"
)

// FlipInput is the evidence considered by the flip detector for one device.
type FlipInput struct {
	WAN1IP  string
	WAN2IP  string
	WAN1Org string // registry-resolved provider for WAN1
	WAN2Org string // registry-resolved provider for WAN2

	Primary   *model.OrderCircuit
	Secondary *model.OrderCircuit
}

// FlipDetector decides whether a device's two WAN interfaces are cross-wired
// relative to the order records.
type FlipDetector struct {
	matcher   *DsrMatcher
	threshold int
}

// NewFlipDetector creates a detector. threshold is the minimum evidence
// score at which a swap is declared (2 in practice: one IP equality or two
// provider matches).
func NewFlipDetector(matcher *DsrMatcher, threshold int) *FlipDetector {
	return &FlipDetector{matcher: matcher, threshold: threshold}
}

// Detect scores the cross-wiring evidence. IP equality is worth 2 points per
// interface, a provider match 1 point. Both the Primary and Secondary order
// circuits must exist; with only one there is nothing to swap against.
func (d *FlipDetector) Detect(in FlipInput) bool {
	if in.Primary == nil || in.Secondary == nil {
		return false
	}

	score := 0
	if in.Primary.StartIP != "" && in.Primary.StartIP == in.WAN2IP {
		score += 2
	}
	if in.Secondary.StartIP != "" && in.Secondary.StartIP == in.WAN1IP {
		score += 2
	}
	if d.matcher.ProvidersMatch(in.WAN1Org, in.Secondary.ProviderName, true) {
		score++
	}
	if d.matcher.ProvidersMatch(in.WAN2Org, in.Primary.ProviderName, true) {
		score++
	}

	swapped := score >= d.threshold
	if swapped {
		zap.L().Debug("flip detected",
			zap.Int("score", score),
			zap.String("wan1_ip", in.WAN1IP),
			zap.String("wan2_ip", in.WAN2IP),
		)
	}
	return swapped
}
