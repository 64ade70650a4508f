// Package inventory assembles per-device WAN state from the dashboard API.
package inventory

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/crestline-networks/circuit-cli/internal/model"
	"github.com/crestline-networks/circuit-cli/pkg/meraki"
)

// Collector pulls appliance devices, their networks, and live uplink state
// and joins them into one record per appliance.
type Collector struct {
	client meraki.Client
	log    *zap.Logger
}

func NewCollector(client meraki.Client) *Collector {
	return &Collector{
		client: client,
		log:    zap.L().With(zap.String("component", "inventory")),
	}
}

// Collect returns the WAN state of every appliance in the organization.
// Devices without a network are skipped; there is no site to attribute
// them to.
func (c *Collector) Collect(ctx context.Context) ([]model.DeviceWanState, error) {
	devices, err := c.client.ListApplianceDevices(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "inventory: list devices")
	}
	networks, err := c.client.ListNetworks(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "inventory: list networks")
	}
	statuses, err := c.client.ListUplinkStatuses(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "inventory: list uplink statuses")
	}

	networkNames := make(map[string]string, len(networks))
	for _, n := range networks {
		networkNames[n.ID] = n.Name
	}
	uplinksBySerial := make(map[string][]meraki.Uplink, len(statuses))
	for _, s := range statuses {
		uplinksBySerial[s.Serial] = s.Uplinks
	}

	out := make([]model.DeviceWanState, 0, len(devices))
	for _, d := range devices {
		name, ok := networkNames[d.NetworkID]
		if !ok {
			c.log.Debug("skipping device without a network", zap.String("serial", d.Serial))
			continue
		}
		state := model.DeviceWanState{
			Serial:      d.Serial,
			NetworkName: name,
			Model:       d.Model,
			Tags:        d.Tags,
			RawNotes:    d.Notes,
		}
		for _, u := range uplinksBySerial[d.Serial] {
			switch u.Interface {
			case "wan1":
				state.WAN1IP = uplinkIP(u)
				state.WAN1Assignment = u.IPAssignedBy
			case "wan2":
				state.WAN2IP = uplinkIP(u)
				state.WAN2Assignment = u.IPAssignedBy
			}
		}
		out = append(out, state)
	}

	c.log.Info("collected appliance inventory",
		zap.Int("devices", len(out)),
		zap.Int("networks", len(networks)),
	)
	return out, nil
}

// uplinkIP prefers the public IP; NAT'd uplinks report a private interface
// address that is useless for ownership lookups.
func uplinkIP(u meraki.Uplink) string {
	if u.PublicIP != "" {
		return u.PublicIP
	}
	return u.IP
}
