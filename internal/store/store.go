// Package store persists order circuits, enriched circuits, the IP ownership
// cache, and the change history.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/crestline-networks/circuit-cli/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for the enrichment engine.
type Store interface {
	// Order circuits (DSR feed, read-only to enrichment)
	UpsertOrderCircuits(ctx context.Context, circuits []model.OrderCircuit) (int64, error)
	ListOrderCircuits(ctx context.Context) ([]model.OrderCircuit, error)
	OrderCircuitsBySite(ctx context.Context, siteName string) ([]model.OrderCircuit, error)

	// Enriched circuits
	GetEnriched(ctx context.Context, siteName string) (*model.EnrichedCircuit, error)
	ListEnriched(ctx context.Context) ([]model.EnrichedCircuit, error)
	UpsertEnrichedBatch(ctx context.Context, rows []model.EnrichedCircuit) error
	PruneEnriched(ctx context.Context, activeSerials []string) (int64, error)

	// IP ownership cache
	PutIPOwnership(ctx context.Context, entry model.IpOwnership) error
	ListIPOwnership(ctx context.Context) ([]model.IpOwnership, error)

	// Change history (append-only)
	InsertChangeHistory(ctx context.Context, entry model.ChangeHistoryEntry) error
	ListChangeHistory(ctx context.Context, siteName string) ([]model.ChangeHistoryEntry, error)

	// Confirm / push state
	Confirm(ctx context.Context, siteName string, wan1, wan2 bool) error
	MarkPushed(ctx context.Context, siteName string, at time.Time) error
	ResetConfirmation(ctx context.Context, siteName string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
