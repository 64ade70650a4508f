// Package push implements the operator confirm/push/reset workflow: a
// confirmed reconciliation is written back onto the appliance as free-text
// notes and the push state is recorded.
package push

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/crestline-networks/circuit-cli/internal/model"
	"github.com/crestline-networks/circuit-cli/internal/store"
	"github.com/crestline-networks/circuit-cli/pkg/meraki"
)

var (
	// ErrNotConfirmed means the site has no confirmed interface to push.
	ErrNotConfirmed = eris.New("push: no confirmed interfaces")
	// ErrNoDevice means the enriched row has no device serial to address.
	ErrNoDevice = eris.New("push: no device serial recorded")
)

// Workflow drives confirm, push, and reset for one site at a time.
type Workflow struct {
	store  store.Store
	client meraki.Client
	now    func() time.Time
	log    *zap.Logger
}

func NewWorkflow(st store.Store, client meraki.Client) *Workflow {
	return &Workflow{
		store:  st,
		client: client,
		now:    time.Now,
		log:    zap.L().With(zap.String("component", "push")),
	}
}

// Confirm marks one or both interfaces as operator-validated. Provider and
// speed are left untouched.
func (w *Workflow) Confirm(ctx context.Context, siteName string, wan1, wan2 bool) error {
	if !wan1 && !wan2 {
		return eris.New("push: confirm requires at least one interface")
	}
	if err := w.store.Confirm(ctx, siteName, wan1, wan2); err != nil {
		return eris.Wrapf(err, "push: confirm %s", siteName)
	}
	w.log.Info("confirmed interfaces",
		zap.String("site", siteName), zap.Bool("wan1", wan1), zap.Bool("wan2", wan2))
	return nil
}

// Push writes the confirmed interfaces to the device notes and records the
// push. Re-pushing an unchanged record writes the same text again; that is
// not an error. The note text sent is returned for display.
func (w *Workflow) Push(ctx context.Context, siteName string) (string, error) {
	enriched, err := w.store.GetEnriched(ctx, siteName)
	if err != nil {
		return "", eris.Wrapf(err, "push: load %s", siteName)
	}

	notes := NoteText(*enriched)
	if notes == "" {
		return "", ErrNotConfirmed
	}
	if enriched.DeviceSerial == "" {
		return "", ErrNoDevice
	}

	if err := w.client.SetDeviceNotes(ctx, enriched.DeviceSerial, notes); err != nil {
		return "", eris.Wrapf(err, "push: write notes for %s", siteName)
	}
	if err := w.store.MarkPushed(ctx, siteName, w.now().UTC()); err != nil {
		return "", eris.Wrapf(err, "push: record push for %s", siteName)
	}

	w.log.Info("pushed notes to device",
		zap.String("site", siteName), zap.String("serial", enriched.DeviceSerial))
	return notes, nil
}

// Reset clears confirmation and push state for both interfaces.
func (w *Workflow) Reset(ctx context.Context, siteName string) error {
	if err := w.store.ResetConfirmation(ctx, siteName); err != nil {
		return eris.Wrapf(err, "push: reset %s", siteName)
	}
	w.log.Info("reset confirmation", zap.String("site", siteName))
	return nil
}

// NoteText builds the canonical device note from the confirmed interfaces:
// a "WAN {n}" header line followed by provider and speed, one line each,
// WAN2's block appended after WAN1's. Unconfirmed interfaces are omitted;
// an empty string means nothing is pushable.
func NoteText(e model.EnrichedCircuit) string {
	var lines []string
	if e.WAN1.Confirmed {
		lines = append(lines, "WAN 1", e.WAN1.Provider, e.WAN1.Speed)
	}
	if e.WAN2.Confirmed {
		lines = append(lines, "WAN 2", e.WAN2.Provider, e.WAN2.Speed)
	}
	return strings.Join(lines, "\n")
}
