// Package model defines the shared data types for the circuit enrichment pipeline.
package model

import "time"

// Circuit purpose values as they appear in DSR feed rows.
const (
	PurposePrimary   = "Primary"
	PurposeSecondary = "Secondary"
)

// OrderCircuit is a structured provisioning record from the DSR feed.
// Records are read-only to the enrichment engine; only Enabled rows
// participate in matching.
type OrderCircuit struct {
	SiteName     string    `json:"site_name"`
	ProviderName string    `json:"provider_name"`
	Speed        string    `json:"speed"`
	Purpose      string    `json:"purpose"`
	Status       string    `json:"status"`
	StartIP      string    `json:"start_ip"`
	MonthlyCost  float64   `json:"monthly_cost"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Enabled reports whether this circuit participates in matching.
func (c OrderCircuit) Enabled() bool { return c.Status == "Enabled" }

// DeviceWanState is one appliance's uplink state as reported by the vendor
// API. The raw note text is shared by both interfaces.
type DeviceWanState struct {
	Serial         string   `json:"serial"`
	NetworkName    string   `json:"network_name"`
	Model          string   `json:"model"`
	Tags           []string `json:"tags"`
	RawNotes       string   `json:"raw_notes"`
	WAN1IP         string   `json:"wan1_ip"`
	WAN1Assignment string   `json:"wan1_assignment"`
	WAN2IP         string   `json:"wan2_ip"`
	WAN2Assignment string   `json:"wan2_assignment"`
}

// Ownership sentinels. Empty string means "not yet resolved".
const (
	OwnershipUnknown   = "Unknown"
	OwnershipPrivateIP = "Private IP"
)

// IpOwnership is a cached IP -> owning organization mapping. Entries are
// never expired automatically; invalidation is a manual operation.
type IpOwnership struct {
	IP           string    `json:"ip"`
	Organization string    `json:"organization"`
	ViaDDNS      bool      `json:"via_ddns"`
	ResolvedAt   time.Time `json:"resolved_at"`
}

// WanInterface is one half of an EnrichedCircuit.
type WanInterface struct {
	Provider  string `json:"provider"`
	Speed     string `json:"speed"`
	Role      string `json:"circuit_role"`
	Confirmed bool   `json:"confirmed"`
	IP        string `json:"ip"`
	ArinOrg   string `json:"arin_org"`
}

// EnrichedCircuit is the reconciled per-site record combining order, notes,
// and registry data. It is the system of record for this engine; a confirmed
// interface is never overwritten by automated reconciliation unless its IP
// or backing circuit actually changed.
type EnrichedCircuit struct {
	SiteName       string       `json:"site_name"`
	DeviceSerial   string       `json:"device_serial"`
	NetworkName    string       `json:"network_name"`
	WAN1           WanInterface `json:"wan1"`
	WAN2           WanInterface `json:"wan2"`
	PushedToDevice bool         `json:"pushed_to_meraki"`
	PushedDate     *time.Time   `json:"pushed_date,omitempty"`
	LastUpdated    time.Time    `json:"last_updated"`
}

// SwapInterfaces exchanges the WAN1 and WAN2 halves in place. Swapping twice
// restores the original assignment.
func (e *EnrichedCircuit) SwapInterfaces() {
	e.WAN1, e.WAN2 = e.WAN2, e.WAN1
}

// ChangeHistoryEntry records one detected change to an OrderCircuit field.
// Entries are append-only and deduplicated by (site, date, change type, field).
type ChangeHistoryEntry struct {
	ID         string    `json:"id"`
	SiteName   string    `json:"site_name"`
	ChangeDate time.Time `json:"change_date"`
	ChangeType string    `json:"change_type"`
	Field      string    `json:"field"`
	OldValue   string    `json:"old_value"`
	NewValue   string    `json:"new_value"`
	SourceFile string    `json:"source_file"`
}

// RunCounts summarizes a batch enrichment run.
type RunCounts struct {
	Updated   int `json:"updated"`
	Inserted  int `json:"inserted"`
	Preserved int `json:"preserved"`
	Flipped   int `json:"flipped"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}
