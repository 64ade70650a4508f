// Package match pairs observed WAN interfaces with DSR order circuits and
// detects cross-wired interfaces.
package match

import (
	"github.com/crestline-networks/circuit-cli/internal/model"
	"github.com/crestline-networks/circuit-cli/internal/provider"
	"github.com/crestline-networks/circuit-cli/internal/similarity"
)

// DsrMatcher matches one WAN interface to an enabled order circuit for the
// same site.
type DsrMatcher struct {
	norm      *provider.Normalizer
	threshold float64
}

// NewDsrMatcher creates a matcher with the given fuzzy threshold (0-100).
func NewDsrMatcher(norm *provider.Normalizer, threshold float64) *DsrMatcher {
	return &DsrMatcher{norm: norm, threshold: threshold}
}

// Match returns the best-matching enabled circuit for an interface, or nil.
// An exact IP match wins outright, bypassing provider comparison. Otherwise
// the highest-scoring fuzzy provider match above the threshold wins, with
// candidate order breaking ties.
func (m *DsrMatcher) Match(providerText, ip string, candidates []model.OrderCircuit) *model.OrderCircuit {
	if ip != "" {
		for i := range candidates {
			if !candidates[i].Enabled() {
				continue
			}
			if candidates[i].StartIP == ip {
				return &candidates[i]
			}
		}
	}

	if providerText == "" {
		return nil
	}

	bestScore := m.threshold
	var best *model.OrderCircuit
	for i := range candidates {
		if !candidates[i].Enabled() {
			continue
		}
		candProvider := m.norm.Normalize(candidates[i].ProviderName, true)
		if candProvider == "" {
			continue
		}
		if score := similarity.Best(providerText, candProvider); score > bestScore {
			bestScore = score
			best = &candidates[i]
		}
	}
	return best
}

// ProvidersMatch reports whether two provider strings refer to the same
// carrier after normalization. dsr puts the comparison in order-record
// namespace: neither side is downgraded to a cellular label, so a
// registry-resolved Verizon org can still match a "Verizon Business"
// order record.
func (m *DsrMatcher) ProvidersMatch(a string, b string, dsr bool) bool {
	na := m.norm.Normalize(a, dsr)
	nb := m.norm.Normalize(b, dsr)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	return similarity.Best(na, nb) > m.threshold
}
