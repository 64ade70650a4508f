package enrich

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/crestline-networks/circuit-cli/internal/model"
	"github.com/crestline-networks/circuit-cli/internal/store"
)

// Runner executes a batch enrichment run over the full device inventory.
// Concurrent runs are not supported; scheduling must serialize them.
type Runner struct {
	store       store.Store
	engine      *Engine
	concurrency int
	batchSize   int
}

// NewRunner creates a Runner. concurrency bounds the worker pool, batchSize
// the number of rows per database transaction.
func NewRunner(st store.Store, engine *Engine, concurrency, batchSize int) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	if batchSize < 1 {
		batchSize = 50
	}
	return &Runner{store: st, engine: engine, concurrency: concurrency, batchSize: batchSize}
}

// SiteFromNetwork derives the DSR site name from a device network name.
// Network names carry a suffix after the site ("Store 1042 - Appliance").
func SiteFromNetwork(networkName string) string {
	if i := strings.Index(networkName, " - "); i > 0 {
		return strings.TrimSpace(networkName[:i])
	}
	return strings.TrimSpace(networkName)
}

// Run enriches every device and persists the results in per-batch
// transactions. A failed batch is logged and counted; the run continues.
func (r *Runner) Run(ctx context.Context, devices []model.DeviceWanState) (model.RunCounts, error) {
	log := zap.L().With(zap.String("component", "enrich.runner"))

	circuits, err := r.store.ListOrderCircuits(ctx)
	if err != nil {
		return model.RunCounts{}, eris.Wrap(err, "enrich: list order circuits")
	}
	circuitsBySite := make(map[string][]model.OrderCircuit)
	for _, c := range circuits {
		circuitsBySite[c.SiteName] = append(circuitsBySite[c.SiteName], c)
	}

	existingRows, err := r.store.ListEnriched(ctx)
	if err != nil {
		return model.RunCounts{}, eris.Wrap(err, "enrich: list enriched")
	}
	existingBySite := make(map[string]*model.EnrichedCircuit, len(existingRows))
	for i := range existingRows {
		existingBySite[existingRows[i].SiteName] = &existingRows[i]
	}

	var (
		mu      sync.Mutex
		counts  model.RunCounts
		results []model.EnrichedCircuit
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, dev := range devices {
		g.Go(func() error {
			site := SiteFromNetwork(dev.NetworkName)
			existing := existingBySite[site]

			switch Evaluate(dev, existing) {
			case Skip:
				mu.Lock()
				counts.Skipped++
				mu.Unlock()
				return nil
			case SwapOnly:
				row := *existing
				row.SwapInterfaces()
				row.LastUpdated = time.Now().UTC()
				mu.Lock()
				counts.Flipped++
				counts.Updated++
				results = append(results, row)
				mu.Unlock()
				return nil
			}

			res := r.engine.Enrich(gctx, site, dev, circuitsBySite[site], existing)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case existing == nil:
				counts.Inserted++
			case sameReconciliation(*existing, res.Circuit):
				counts.Preserved++
				return nil
			default:
				counts.Updated++
			}
			if res.Flipped {
				counts.Flipped++
			}
			results = append(results, res.Circuit)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return counts, eris.Wrap(err, "enrich: worker pool")
	}

	// Deterministic write order regardless of worker scheduling.
	sort.Slice(results, func(i, j int) bool { return results[i].SiteName < results[j].SiteName })

	for start := 0; start < len(results); start += r.batchSize {
		end := min(start+r.batchSize, len(results))
		batch := results[start:end]
		if err := r.store.UpsertEnrichedBatch(ctx, batch); err != nil {
			log.Error("enrich: batch write failed, continuing with next batch",
				zap.String("first_site", batch[0].SiteName),
				zap.String("last_site", batch[len(batch)-1].SiteName),
				zap.Int("rows", len(batch)),
				zap.Error(err),
			)
			counts.Failed += len(batch)
		}
	}

	serials := make([]string, 0, len(devices))
	for _, dev := range devices {
		if dev.Serial != "" {
			serials = append(serials, dev.Serial)
		}
	}
	if pruned, err := r.store.PruneEnriched(ctx, serials); err != nil {
		log.Warn("enrich: prune failed", zap.Error(err))
	} else if pruned > 0 {
		log.Info("enrich: pruned rows for devices gone from inventory", zap.Int64("rows", pruned))
	}

	if mr, ok := r.engine.resolver.(interface{ Missing() []string }); ok {
		if missing := mr.Missing(); len(missing) > 0 {
			log.Warn("enrich: unresolved ips, will retry next run",
				zap.Int("count", len(missing)),
				zap.Strings("ips", missing),
			)
		}
	}

	log.Info("enrichment run complete",
		zap.Int("updated", counts.Updated),
		zap.Int("inserted", counts.Inserted),
		zap.Int("preserved", counts.Preserved),
		zap.Int("flipped", counts.Flipped),
		zap.Int("skipped", counts.Skipped),
		zap.Int("failed", counts.Failed),
	)
	return counts, nil
}

// sameReconciliation reports whether a recompute produced the same answer as
// the stored row, ignoring timestamps and push state.
func sameReconciliation(a, b model.EnrichedCircuit) bool {
	return a.WAN1 == b.WAN1 && a.WAN2 == b.WAN2 &&
		a.DeviceSerial == b.DeviceSerial && a.NetworkName == b.NetworkName
}
