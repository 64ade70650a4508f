// Package enrich reconciles device state, order records, and registry data
// into enriched circuit rows.
package enrich

import (
	"context"
	"time"

	"github.com/crestline-networks/circuit-cli/internal/arin"
	"github.com/crestline-networks/circuit-cli/internal/match"
	"github.com/crestline-networks/circuit-cli/internal/model"
	"github.com/crestline-networks/circuit-cli/internal/notes"
	"github.com/crestline-networks/circuit-cli/internal/provider"
)

// OwnershipResolver resolves an IP to an owning organization or a sentinel.
type OwnershipResolver interface {
	Resolve(ctx context.Context, ip string, ddns arin.DDNSInfo) string
}

// Engine applies the per-interface priority chain to one device:
// Preserve, DSR-anchored, Notes-trusted, Ownership-trusted.
type Engine struct {
	norm     *provider.Normalizer
	resolver OwnershipResolver
	matcher  *match.DsrMatcher
	flips    *match.FlipDetector
}

// NewEngine creates an Engine.
func NewEngine(norm *provider.Normalizer, resolver OwnershipResolver, matcher *match.DsrMatcher, flips *match.FlipDetector) *Engine {
	return &Engine{norm: norm, resolver: resolver, matcher: matcher, flips: flips}
}

// Result is one device's reconciled row plus flip metadata for counters.
type Result struct {
	Circuit model.EnrichedCircuit
	Flipped bool
}

// Providers whose speed is always the cellular sentinel.
var cellularProviders = map[string]bool{
	"VZW Cell": true,
	"Digi":     true,
	"Inseego":  true,
}

// Enrich reconciles one device against its site's order circuits and the
// previously persisted row (nil on first sighting).
func (e *Engine) Enrich(ctx context.Context, siteName string, dev model.DeviceWanState, circuits []model.OrderCircuit, existing *model.EnrichedCircuit) Result {
	parsed := notes.Parse(dev.RawNotes)

	wan1Org := e.resolver.Resolve(ctx, dev.WAN1IP, arin.DDNSInfo{Enabled: true, NetworkName: dev.NetworkName, WAN: 1})
	wan2Org := e.resolver.Resolve(ctx, dev.WAN2IP, arin.DDNSInfo{Enabled: true, NetworkName: dev.NetworkName, WAN: 2})

	primary, secondary := splitByPurpose(circuits)
	flipped := e.flips.Detect(match.FlipInput{
		WAN1IP:    dev.WAN1IP,
		WAN2IP:    dev.WAN2IP,
		WAN1Org:   wan1Org,
		WAN2Org:   wan2Org,
		Primary:   primary,
		Secondary: secondary,
	})

	wan1Note := e.norm.Normalize(parsed.WAN1.Provider, false)
	wan2Note := e.norm.Normalize(parsed.WAN2.Provider, false)

	role1, role2 := model.PurposePrimary, model.PurposeSecondary
	if flipped {
		role1, role2 = role2, role1
	}

	out := model.EnrichedCircuit{
		SiteName:     siteName,
		DeviceSerial: dev.Serial,
		NetworkName:  dev.NetworkName,
		WAN1: e.decide(ifaceInput{
			ip: dev.WAN1IP, org: wan1Org, otherOrg: wan2Org,
			noteProvider: wan1Note, noteSpeed: parsed.WAN1.Speed,
			dsr:         e.matcher.Match(wan1Note, dev.WAN1IP, circuits),
			existing:    existingInterface(existing, 1),
			defaultRole: role1, flipped: flipped,
		}),
		WAN2: e.decide(ifaceInput{
			ip: dev.WAN2IP, org: wan2Org, otherOrg: wan1Org,
			noteProvider: wan2Note, noteSpeed: parsed.WAN2.Speed,
			dsr:         e.matcher.Match(wan2Note, dev.WAN2IP, circuits),
			existing:    existingInterface(existing, 2),
			defaultRole: role2, flipped: flipped,
		}),
		LastUpdated: time.Now().UTC(),
	}

	// Push state belongs to the confirm/push workflow; carry it through.
	if existing != nil {
		out.PushedToDevice = existing.PushedToDevice
		out.PushedDate = existing.PushedDate
	}

	return Result{Circuit: out, Flipped: flipped}
}

type ifaceInput struct {
	ip           string
	org          string
	otherOrg     string
	noteProvider string
	noteSpeed    string
	dsr          *model.OrderCircuit
	existing     *model.WanInterface
	defaultRole  string
	flipped      bool
}

// decide walks the priority chain for one interface.
func (e *Engine) decide(in ifaceInput) model.WanInterface {
	out := model.WanInterface{IP: in.ip, ArinOrg: in.org}

	// Preserve: a confirmed interface stays untouched as long as its stored
	// provider still matches the resolved ownership of either physical
	// interface (the opposite one under a detected flip).
	if in.existing != nil && in.existing.Confirmed {
		if e.matcher.ProvidersMatch(in.org, in.existing.Provider, false) ||
			(in.flipped && e.matcher.ProvidersMatch(in.otherOrg, in.existing.Provider, false)) {
			out.Provider = in.existing.Provider
			out.Speed = in.existing.Speed
			out.Role = in.existing.Role
			out.Confirmed = true
			return canonicalizeInterface(out)
		}
	}

	// DSR-anchored: the order record is authoritative when one matches.
	if in.dsr != nil {
		out.Provider = in.dsr.ProviderName
		out.Speed = in.dsr.Speed
		out.Role = in.dsr.Purpose
		out.Confirmed = true
		return canonicalizeInterface(out)
	}

	// Notes-trusted: ownership disagrees with what the note says.
	if in.noteProvider != "" && !e.matcher.ProvidersMatch(in.org, in.noteProvider, false) {
		out.Provider = in.noteProvider
		out.Speed = in.noteSpeed
		out.Role = in.defaultRole
		return canonicalizeInterface(out)
	}

	// Ownership-trusted.
	prov := in.org
	if prov == model.OwnershipUnknown || prov == model.OwnershipPrivateIP {
		prov = in.noteProvider
	}
	out.Provider = prov
	out.Speed = in.noteSpeed
	out.Role = in.defaultRole
	return canonicalizeInterface(out)
}

// canonicalizeInterface applies the cellular and satellite speed rules after
// any branch of the chain.
func canonicalizeInterface(w model.WanInterface) model.WanInterface {
	switch {
	case cellularProviders[w.Provider]:
		w.Speed = "Cell"
	case w.Provider == "Starlink":
		w.Speed = "Satellite"
	}
	if w.Speed == "Satellite" {
		w.Provider = "Starlink"
	}
	return w
}

func splitByPurpose(circuits []model.OrderCircuit) (primary, secondary *model.OrderCircuit) {
	for i := range circuits {
		if !circuits[i].Enabled() {
			continue
		}
		switch circuits[i].Purpose {
		case model.PurposePrimary:
			if primary == nil {
				primary = &circuits[i]
			}
		case model.PurposeSecondary:
			if secondary == nil {
				secondary = &circuits[i]
			}
		}
	}
	return primary, secondary
}

func existingInterface(e *model.EnrichedCircuit, wan int) *model.WanInterface {
	if e == nil {
		return nil
	}
	if wan == 1 {
		return &e.WAN1
	}
	return &e.WAN2
}
