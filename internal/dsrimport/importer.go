package dsrimport

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/crestline-networks/circuit-cli/internal/model"
	"github.com/crestline-networks/circuit-cli/internal/store"
)

// Stats summarizes one feed import.
type Stats struct {
	RowsRead int
	Upserted int64
	Added    int
	Changed  int
}

// Importer loads a feed file into the order-circuit table and records the
// differences against the previous feed as change history.
type Importer struct {
	store store.Store
	now   func() time.Time
	log   *zap.Logger
}

func NewImporter(st store.Store) *Importer {
	return &Importer{
		store: st,
		now:   time.Now,
		log:   zap.L().With(zap.String("component", "dsrimport")),
	}
}

// circuitKey matches the order-circuit table's primary key.
type circuitKey struct {
	site, purpose, provider string
}

func keyOf(c model.OrderCircuit) circuitKey {
	return circuitKey{site: c.SiteName, purpose: c.Purpose, provider: c.ProviderName}
}

// Run imports one feed file. History entries are keyed by the import date
// and the feed's base filename; re-importing the same file on the same day
// produces no new history.
func (im *Importer) Run(ctx context.Context, path string) (Stats, error) {
	incoming, err := ReadFile(path)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{RowsRead: len(incoming)}

	existing, err := im.store.ListOrderCircuits(ctx)
	if err != nil {
		return stats, eris.Wrap(err, "dsrimport: list existing circuits")
	}
	existingByKey := make(map[circuitKey]model.OrderCircuit, len(existing))
	existingByPurpose := make(map[circuitKey]model.OrderCircuit, len(existing))
	for _, c := range existing {
		existingByKey[keyOf(c)] = c
		existingByPurpose[circuitKey{site: c.SiteName, purpose: c.Purpose}] = c
	}

	changeDate := im.now().UTC().Truncate(24 * time.Hour)
	sourceFile := filepath.Base(path)
	record := func(site, changeType, field, oldVal, newVal string) error {
		return im.store.InsertChangeHistory(ctx, model.ChangeHistoryEntry{
			SiteName:   site,
			ChangeDate: changeDate,
			ChangeType: changeType,
			Field:      field,
			OldValue:   oldVal,
			NewValue:   newVal,
			SourceFile: sourceFile,
		})
	}

	for _, c := range incoming {
		prev, ok := existingByKey[keyOf(c)]
		if !ok {
			// A new key with a known (site, purpose) slot is a carrier
			// change, not a new circuit.
			if slot, moved := existingByPurpose[circuitKey{site: c.SiteName, purpose: c.Purpose}]; moved {
				if err := record(c.SiteName, "circuit_updated", "provider_name", slot.ProviderName, c.ProviderName); err != nil {
					return stats, eris.Wrap(err, "dsrimport: record provider change")
				}
				stats.Changed++
				continue
			}
			if err := record(c.SiteName, "circuit_added", "provider_name", "", c.ProviderName); err != nil {
				return stats, eris.Wrap(err, "dsrimport: record addition")
			}
			stats.Added++
			continue
		}
		changed := false
		for _, d := range diffCircuit(prev, c) {
			if err := record(c.SiteName, "circuit_updated", d.field, d.oldVal, d.newVal); err != nil {
				return stats, eris.Wrap(err, "dsrimport: record change")
			}
			changed = true
		}
		if changed {
			stats.Changed++
		}
	}

	n, err := im.store.UpsertOrderCircuits(ctx, incoming)
	if err != nil {
		return stats, eris.Wrap(err, "dsrimport: upsert circuits")
	}
	stats.Upserted = n

	im.log.Info("feed imported",
		zap.String("file", sourceFile),
		zap.Int("rows", stats.RowsRead),
		zap.Int("added", stats.Added),
		zap.Int("changed", stats.Changed),
	)
	return stats, nil
}

type fieldDiff struct {
	field, oldVal, newVal string
}

func diffCircuit(prev, next model.OrderCircuit) []fieldDiff {
	var diffs []fieldDiff
	add := func(field, oldVal, newVal string) {
		if oldVal != newVal {
			diffs = append(diffs, fieldDiff{field: field, oldVal: oldVal, newVal: newVal})
		}
	}
	add("speed", prev.Speed, next.Speed)
	add("status", prev.Status, next.Status)
	add("start_ip", prev.StartIP, next.StartIP)
	add("monthly_cost", formatCost(prev.MonthlyCost), formatCost(next.MonthlyCost))
	return diffs
}

func formatCost(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
