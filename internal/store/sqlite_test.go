package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestline-networks/circuit-cli/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "circuits.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLite_OrderCircuitRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	circuits := []model.OrderCircuit{
		{SiteName: "Store 1042", ProviderName: "Comcast Business", Speed: "300M x 30M", Purpose: "Primary", Status: "Enabled", StartIP: "198.51.100.7", MonthlyCost: 189.99},
		{SiteName: "Store 1042", ProviderName: "Verizon Business", Speed: "Cell", Purpose: "Secondary", Status: "Enabled", StartIP: "203.0.113.44"},
		{SiteName: "Store 1043", ProviderName: "Cox", Speed: "100M x 10M", Purpose: "Primary", Status: "Disabled"},
	}
	n, err := s.UpsertOrderCircuits(ctx, circuits)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	bySite, err := s.OrderCircuitsBySite(ctx, "Store 1042")
	require.NoError(t, err)
	require.Len(t, bySite, 2)
	assert.Equal(t, "Comcast Business", bySite[0].ProviderName)
	assert.Equal(t, 189.99, bySite[0].MonthlyCost)

	// Re-upserting the same key updates in place instead of duplicating.
	circuits[0].Speed = "600M x 35M"
	_, err = s.UpsertOrderCircuits(ctx, circuits[:1])
	require.NoError(t, err)

	all, err := s.ListOrderCircuits(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	bySite, err = s.OrderCircuitsBySite(ctx, "Store 1042")
	require.NoError(t, err)
	assert.Equal(t, "600M x 35M", bySite[0].Speed)
}

func TestSQLite_EnrichedMergeSemantics(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	first := sampleEnriched()
	require.NoError(t, s.UpsertEnrichedBatch(ctx, []model.EnrichedCircuit{first}))

	// A refresh with empty text fields must not clobber stored values.
	refresh := model.EnrichedCircuit{
		SiteName:    "Store 1042",
		WAN1:        model.WanInterface{Confirmed: true},
		WAN2:        model.WanInterface{},
		LastUpdated: time.Now().UTC(),
	}
	require.NoError(t, s.UpsertEnrichedBatch(ctx, []model.EnrichedCircuit{refresh}))

	got, err := s.GetEnriched(ctx, "Store 1042")
	require.NoError(t, err)
	assert.Equal(t, "Comcast", got.WAN1.Provider)
	assert.Equal(t, "300.0M x 30.0M", got.WAN1.Speed)
	assert.Equal(t, "VZW Cell", got.WAN2.Provider)
	assert.True(t, got.WAN1.Confirmed)
	assert.False(t, got.WAN2.Confirmed)
	assert.Equal(t, "Q2KN-XXXX-YYYY", got.DeviceSerial)

	// Non-empty new values do overwrite.
	update := first
	update.WAN1.Provider = "Spectrum"
	require.NoError(t, s.UpsertEnrichedBatch(ctx, []model.EnrichedCircuit{update}))
	got, err = s.GetEnriched(ctx, "Store 1042")
	require.NoError(t, err)
	assert.Equal(t, "Spectrum", got.WAN1.Provider)
}

func TestSQLite_GetEnrichedNotFound(t *testing.T) {
	s := newTestSQLite(t)
	_, err := s.GetEnriched(context.Background(), "Store 9999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ConfirmPushReset(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	e := sampleEnriched()
	e.WAN1.Confirmed = false
	require.NoError(t, s.UpsertEnrichedBatch(ctx, []model.EnrichedCircuit{e}))

	require.NoError(t, s.Confirm(ctx, "Store 1042", true, true))
	got, err := s.GetEnriched(ctx, "Store 1042")
	require.NoError(t, err)
	assert.True(t, got.WAN1.Confirmed)
	assert.True(t, got.WAN2.Confirmed)

	at := time.Date(2026, 8, 15, 9, 30, 0, 0, time.UTC)
	require.NoError(t, s.MarkPushed(ctx, "Store 1042", at))
	got, err = s.GetEnriched(ctx, "Store 1042")
	require.NoError(t, err)
	assert.True(t, got.PushedToDevice)
	require.NotNil(t, got.PushedDate)
	assert.WithinDuration(t, at, *got.PushedDate, time.Second)

	require.NoError(t, s.ResetConfirmation(ctx, "Store 1042"))
	got, err = s.GetEnriched(ctx, "Store 1042")
	require.NoError(t, err)
	assert.False(t, got.WAN1.Confirmed)
	assert.False(t, got.WAN2.Confirmed)
	assert.False(t, got.PushedToDevice)
	assert.Nil(t, got.PushedDate)

	assert.ErrorIs(t, s.Confirm(ctx, "Store 9999", true, false), ErrNotFound)
	assert.ErrorIs(t, s.MarkPushed(ctx, "Store 9999", at), ErrNotFound)
	assert.ErrorIs(t, s.ResetConfirmation(ctx, "Store 9999"), ErrNotFound)
}

func TestSQLite_ChangeHistoryDedupe(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	entry := model.ChangeHistoryEntry{
		SiteName:   "Store 1042",
		ChangeDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		ChangeType: "provider_change",
		Field:      "provider_name",
		OldValue:   "Frontier",
		NewValue:   "Comcast Business",
		SourceFile: "dsr_2026-08-01.xlsx",
	}
	require.NoError(t, s.InsertChangeHistory(ctx, entry))

	// Identical duplicate is a no-op.
	require.NoError(t, s.InsertChangeHistory(ctx, entry))

	// Same key with differing values is dropped, keeping the first entry.
	conflicting := entry
	conflicting.NewValue = "Cox"
	require.NoError(t, s.InsertChangeHistory(ctx, conflicting))

	got, err := s.ListChangeHistory(ctx, "Store 1042")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Comcast Business", got[0].NewValue)
	assert.NotEmpty(t, got[0].ID)
}

func TestSQLite_PruneEnriched(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	a := sampleEnriched()
	b := sampleEnriched()
	b.SiteName = "Store 1043"
	b.DeviceSerial = "Q2KN-GONE-ZZZZ"
	require.NoError(t, s.UpsertEnrichedBatch(ctx, []model.EnrichedCircuit{a, b}))

	// Empty inventory must not wipe the table.
	n, err := s.PruneEnriched(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.PruneEnriched(ctx, []string{"Q2KN-XXXX-YYYY"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.GetEnriched(ctx, "Store 1043")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetEnriched(ctx, "Store 1042")
	assert.NoError(t, err)
}

func TestSQLite_IPOwnership(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.PutIPOwnership(ctx, model.IpOwnership{IP: "198.51.100.7", Organization: "Comcast"}))
	require.NoError(t, s.PutIPOwnership(ctx, model.IpOwnership{IP: "10.0.1.2", Organization: "Verizon Wireless", ViaDDNS: true}))

	// Re-resolving overwrites the prior owner.
	require.NoError(t, s.PutIPOwnership(ctx, model.IpOwnership{IP: "198.51.100.7", Organization: "Comcast Cable"}))

	got, err := s.ListIPOwnership(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	byIP := map[string]model.IpOwnership{}
	for _, e := range got {
		byIP[e.IP] = e
	}
	assert.Equal(t, "Comcast Cable", byIP["198.51.100.7"].Organization)
	assert.True(t, byIP["10.0.1.2"].ViaDDNS)
	assert.False(t, byIP["198.51.100.7"].ResolvedAt.IsZero())
}
