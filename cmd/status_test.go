package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crestline-networks/circuit-cli/internal/model"
)

func TestFormatStatus(t *testing.T) {
	enriched := []model.EnrichedCircuit{
		{SiteName: "Store 1042", WAN1: model.WanInterface{Confirmed: true}, PushedToDevice: true},
		{SiteName: "Store 1043"},
	}
	ownership := []model.IpOwnership{
		{IP: "198.51.100.7", Organization: "Comcast"},
		{IP: "203.0.113.9", Organization: model.OwnershipUnknown},
		{IP: "192.0.2.77", Organization: model.OwnershipUnknown},
	}

	var sb strings.Builder
	formatStatus(&sb, enriched, ownership, true)
	out := sb.String()

	lines := strings.Split(out, "\n")
	assert.Contains(t, lines[0], "ENRICHED")
	assert.Equal(t, []string{"2", "1", "1", "3", "2"}, strings.Fields(lines[1]))
	// Unresolved IPs listed in sorted order.
	assert.Less(t, strings.Index(out, "192.0.2.77"), strings.Index(out, "203.0.113.9"))
	assert.NotContains(t, out, "198.51.100.7")
}

func TestFormatStatus_Empty(t *testing.T) {
	var sb strings.Builder
	formatStatus(&sb, nil, nil, false)
	assert.Equal(t, []string{"0", "0", "0", "0", "0"}, strings.Fields(strings.Split(sb.String(), "\n")[1]))
}
