package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestline-networks/circuit-cli/internal/arin"
	"github.com/crestline-networks/circuit-cli/internal/match"
	"github.com/crestline-networks/circuit-cli/internal/model"
	"github.com/crestline-networks/circuit-cli/internal/provider"
)

// stubResolver serves ownership answers from a fixed map.
type stubResolver struct {
	owners map[string]string
}

func (s stubResolver) Resolve(_ context.Context, ip string, _ arin.DDNSInfo) string {
	if org, ok := s.owners[ip]; ok {
		return org
	}
	if ip == "" {
		return model.OwnershipUnknown
	}
	return model.OwnershipUnknown
}

func newTestEngine(t *testing.T, owners map[string]string) *Engine {
	t.Helper()
	rules, err := provider.DefaultRules()
	require.NoError(t, err)
	norm := provider.New(rules, 70)
	matcher := match.NewDsrMatcher(norm, 70)
	return NewEngine(norm, stubResolver{owners: owners}, matcher, match.NewFlipDetector(matcher, 2))
}

func siteCircuits() []model.OrderCircuit {
	return []model.OrderCircuit{
		{SiteName: "Store 1042", ProviderName: "Comcast Business", Speed: "300M x 30M", Purpose: "Primary", Status: "Enabled", StartIP: "198.51.100.7"},
		{SiteName: "Store 1042", ProviderName: "Verizon Business", Speed: "Cell", Purpose: "Secondary", Status: "Enabled", StartIP: "203.0.113.44"},
	}
}

func TestEnrich_DsrAnchored(t *testing.T) {
	e := newTestEngine(t, map[string]string{
		"198.51.100.7": "Comcast",
		"203.0.113.44": "Verizon Wireless",
	})
	dev := model.DeviceWanState{
		Serial:      "Q2KN-AAAA-BBBB",
		NetworkName: "Store 1042 - Appliance",
		RawNotes:    "WAN1 Comcast 300M x 30M WAN2 VZW Cell",
		WAN1IP:      "198.51.100.7",
		WAN2IP:      "203.0.113.44",
	}

	res := e.Enrich(context.Background(), "Store 1042", dev, siteCircuits(), nil)
	require.False(t, res.Flipped)

	// Order record values are copied verbatim and confirmed.
	assert.Equal(t, "Comcast Business", res.Circuit.WAN1.Provider)
	assert.Equal(t, "300M x 30M", res.Circuit.WAN1.Speed)
	assert.Equal(t, "Primary", res.Circuit.WAN1.Role)
	assert.True(t, res.Circuit.WAN1.Confirmed)
	assert.Equal(t, "Comcast", res.Circuit.WAN1.ArinOrg)

	assert.Equal(t, "Verizon Business", res.Circuit.WAN2.Provider)
	assert.Equal(t, "Cell", res.Circuit.WAN2.Speed)
	assert.Equal(t, "Secondary", res.Circuit.WAN2.Role)
	assert.True(t, res.Circuit.WAN2.Confirmed)

	assert.Equal(t, "Q2KN-AAAA-BBBB", res.Circuit.DeviceSerial)
	assert.Equal(t, "Store 1042", res.Circuit.SiteName)
}

func TestEnrich_NotesTrustedWhenOwnershipDisagrees(t *testing.T) {
	e := newTestEngine(t, nil) // everything resolves Unknown
	dev := model.DeviceWanState{
		NetworkName: "Store 1042 - Appliance",
		RawNotes:    "WAN1 AT&T 100M x 20M WAN2 VZG IMEI: 123456",
		WAN1IP:      "192.0.2.10",
		WAN2IP:      "192.0.2.11",
	}

	res := e.Enrich(context.Background(), "Store 1042", dev, nil, nil)

	assert.Equal(t, "AT&T", res.Circuit.WAN1.Provider)
	assert.Equal(t, "100.0M x 20.0M", res.Circuit.WAN1.Speed)
	assert.False(t, res.Circuit.WAN1.Confirmed)

	assert.Equal(t, "VZW Cell", res.Circuit.WAN2.Provider)
	assert.Equal(t, "Cell", res.Circuit.WAN2.Speed)
	assert.False(t, res.Circuit.WAN2.Confirmed)
}

func TestEnrich_OwnershipTrustedWhenNotesEmpty(t *testing.T) {
	e := newTestEngine(t, map[string]string{"192.0.2.10": "Cox Communications"})
	dev := model.DeviceWanState{
		NetworkName: "Store 1042 - Appliance",
		WAN1IP:      "192.0.2.10",
	}

	res := e.Enrich(context.Background(), "Store 1042", dev, nil, nil)
	assert.Equal(t, "Cox Communications", res.Circuit.WAN1.Provider)
	assert.False(t, res.Circuit.WAN1.Confirmed)
	assert.Equal(t, "Primary", res.Circuit.WAN1.Role)

	// Nothing known about WAN2 at all.
	assert.Empty(t, res.Circuit.WAN2.Provider)
}

func TestEnrich_PreserveConfirmedBeatsDsr(t *testing.T) {
	e := newTestEngine(t, map[string]string{
		"198.51.100.7": "Comcast Cable Communications",
		"203.0.113.44": "Verizon Wireless",
	})
	dev := model.DeviceWanState{
		NetworkName: "Store 1042 - Appliance",
		WAN1IP:      "198.51.100.7",
		WAN2IP:      "203.0.113.44",
	}
	existing := &model.EnrichedCircuit{
		SiteName: "Store 1042",
		WAN1: model.WanInterface{
			Provider: "Comcast", Speed: "600.0M x 35.0M", Role: "Primary",
			Confirmed: true, IP: "198.51.100.7", ArinOrg: "Comcast",
		},
	}

	res := e.Enrich(context.Background(), "Store 1042", dev, siteCircuits(), existing)

	// The operator's answer survives even though the order record says
	// "Comcast Business" at a different speed.
	assert.Equal(t, "Comcast", res.Circuit.WAN1.Provider)
	assert.Equal(t, "600.0M x 35.0M", res.Circuit.WAN1.Speed)
	assert.True(t, res.Circuit.WAN1.Confirmed)
}

func TestEnrich_ConfirmedReplacedWhenOwnershipMoved(t *testing.T) {
	e := newTestEngine(t, map[string]string{
		"198.51.100.7": "Starlink",
	})
	dev := model.DeviceWanState{
		NetworkName: "Store 1042 - Appliance",
		WAN1IP:      "198.51.100.7",
	}
	existing := &model.EnrichedCircuit{
		SiteName: "Store 1042",
		WAN1: model.WanInterface{
			Provider: "Frontier", Speed: "20.0M x 2.0M", Role: "Primary",
			Confirmed: true, IP: "198.51.100.7", ArinOrg: "Frontier",
		},
	}

	res := e.Enrich(context.Background(), "Store 1042", dev, nil, existing)

	// The backing circuit changed carriers; preservation no longer applies.
	assert.Equal(t, "Starlink", res.Circuit.WAN1.Provider)
	assert.Equal(t, "Satellite", res.Circuit.WAN1.Speed)
	assert.False(t, res.Circuit.WAN1.Confirmed)
}

func TestEnrich_FlipSwapsRoles(t *testing.T) {
	e := newTestEngine(t, map[string]string{
		"203.0.113.44": "Verizon Wireless",
		"198.51.100.7": "Comcast",
	})
	// WAN1 carries the Secondary circuit's IP and vice versa.
	dev := model.DeviceWanState{
		NetworkName: "Store 1042 - Appliance",
		WAN1IP:      "203.0.113.44",
		WAN2IP:      "198.51.100.7",
	}

	res := e.Enrich(context.Background(), "Store 1042", dev, siteCircuits(), nil)
	require.True(t, res.Flipped)

	assert.Equal(t, "Secondary", res.Circuit.WAN1.Role)
	assert.Equal(t, "Verizon Business", res.Circuit.WAN1.Provider)
	assert.Equal(t, "Primary", res.Circuit.WAN2.Role)
	assert.Equal(t, "Comcast Business", res.Circuit.WAN2.Provider)
}

func TestEnrich_SpeedCanonicalization(t *testing.T) {
	tests := []struct {
		name         string
		rawNotes     string
		wantProvider string
		wantSpeed    string
	}{
		{"cellular forces cell", "WAN1 VZW Cell 100M x 20M", "VZW Cell", "Cell"},
		{"digi forces cell", "WAN1 Digi 50M x 5M", "Digi", "Cell"},
		{"inseego forces cell", "WAN1 Inseego 50M x 5M", "Inseego", "Cell"},
		{"starlink forces satellite", "WAN1 Starlink 220M x 25M", "Starlink", "Satellite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, nil)
			dev := model.DeviceWanState{NetworkName: "Store 1042", RawNotes: tt.rawNotes, WAN1IP: "192.0.2.10"}
			res := e.Enrich(context.Background(), "Store 1042", dev, nil, nil)
			assert.Equal(t, tt.wantProvider, res.Circuit.WAN1.Provider)
			assert.Equal(t, tt.wantSpeed, res.Circuit.WAN1.Speed)
		})
	}
}

func TestEnrich_SatelliteSpeedCanonicalizesProvider(t *testing.T) {
	w := canonicalizeInterface(model.WanInterface{Provider: "SpaceX Services", Speed: "Satellite"})
	assert.Equal(t, "Starlink", w.Provider)
	assert.Equal(t, "Satellite", w.Speed)
}

func TestEnrich_Idempotent(t *testing.T) {
	e := newTestEngine(t, map[string]string{
		"198.51.100.7": "Comcast",
		"203.0.113.44": "Verizon Wireless",
	})
	dev := model.DeviceWanState{
		Serial:      "Q2KN-AAAA-BBBB",
		NetworkName: "Store 1042 - Appliance",
		RawNotes:    "WAN1 Comcast 300M x 30M WAN2 VZW Cell",
		WAN1IP:      "198.51.100.7",
		WAN2IP:      "203.0.113.44",
	}

	first := e.Enrich(context.Background(), "Store 1042", dev, siteCircuits(), nil)
	second := e.Enrich(context.Background(), "Store 1042", dev, siteCircuits(), &first.Circuit)

	assert.Equal(t, first.Circuit.WAN1, second.Circuit.WAN1)
	assert.Equal(t, first.Circuit.WAN2, second.Circuit.WAN2)
	assert.True(t, sameReconciliation(first.Circuit, second.Circuit))
}
