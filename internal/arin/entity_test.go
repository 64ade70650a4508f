package arin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/crestline-networks/circuit-cli/pkg/rdap"
)

func dated(y int) []rdap.Event {
	return []rdap.Event{{Action: "last changed", Date: time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC)}}
}

func TestChooseOrganization_NewestEntityWins(t *testing.T) {
	n := &rdap.Network{
		Name: "NET-1",
		Entities: []rdap.Entity{
			{FullName: "Old Carrier Holdings LLC", Kind: "org", Events: dated(2009)},
			{FullName: "Charter Communications Inc", Kind: "org", Events: dated(2021)},
		},
	}
	assert.Equal(t, "Spectrum", ChooseOrganization(n))
}

func TestChooseOrganization_DropsContactRoles(t *testing.T) {
	n := &rdap.Network{
		Name: "NET-1",
		Entities: []rdap.Entity{
			{FullName: "Abuse Desk Inc", Kind: "org", Roles: []string{"abuse"}, Events: dated(2024)},
			{FullName: "NOC Group", Kind: "org", Roles: []string{"noc"}, Events: dated(2024)},
			{FullName: "Cox Communications Inc.", Kind: "org", Roles: []string{"registrant"}, Events: dated(2015)},
		},
	}
	assert.Equal(t, "Cox", ChooseOrganization(n))
}

func TestChooseOrganization_DropsPersonalNames(t *testing.T) {
	n := &rdap.Network{
		Name: "NET-1",
		Entities: []rdap.Entity{
			{FullName: "Jane Smith", Kind: "individual", Events: dated(2024)},
			{FullName: "Robert Jones", Events: dated(2023)},
			{FullName: "Granite Telecommunications LLC", Kind: "org", Events: dated(2012)},
		},
	}
	assert.Equal(t, "Granite Telecommunications LLC", ChooseOrganization(n))
}

func TestChooseOrganization_NestedEntities(t *testing.T) {
	n := &rdap.Network{
		Name: "NET-1",
		Entities: []rdap.Entity{{
			FullName: "MCI Communications Services, Inc. d/b/a Verizon Business",
			Kind:     "org",
			Roles:    []string{"registrant"},
			Events:   dated(2018),
			Entities: []rdap.Entity{
				{FullName: "Tech Contact", Roles: []string{"technical"}, Events: dated(2024)},
			},
		}},
	}
	assert.Equal(t, "Verizon Business", ChooseOrganization(n))
}

func TestChooseOrganization_NetworkNameFallback(t *testing.T) {
	n := &rdap.Network{Name: "VZW-NORTHEAST-7"}
	assert.Equal(t, "Verizon Wireless", ChooseOrganization(n))

	n = &rdap.Network{Name: "SPACEX-STARLINK"}
	assert.Equal(t, "Starlink", ChooseOrganization(n))

	n = &rdap.Network{Name: "TOTALLY-OBSCURE"}
	assert.Equal(t, "", ChooseOrganization(n))
}

func TestChooseOrganization_Nil(t *testing.T) {
	assert.Equal(t, "", ChooseOrganization(nil))
}

func TestCanonicalOrgName_BoilerplateAndCollapse(t *testing.T) {
	assert.Equal(t, "Verizon Wireless", CanonicalOrgName("Cellco Partnership DBA Verizon Wireless"))
	assert.Equal(t, "Comcast", CanonicalOrgName("Comcast Cable Communications, LLC"))
	assert.Equal(t, "CenturyLink", CanonicalOrgName("Level 3 Parent, LLC"))
	assert.Equal(t, "AT&T", CanonicalOrgName("AT&T Services, Inc."))
	assert.Equal(t, "Starlink", CanonicalOrgName("Space Exploration Technologies Corp"))
	assert.Equal(t, "Acme Fiber Co.", CanonicalOrgName("Private Customer - Acme Fiber Co."))
	assert.Equal(t, "", CanonicalOrgName("  "))
}

func TestLookupKnownRange(t *testing.T) {
	org, ok := lookupKnownRange(mustAddr(t, "174.200.1.1"))
	assert.True(t, ok)
	assert.Equal(t, "Verizon Wireless", org)

	_, ok = lookupKnownRange(mustAddr(t, "8.8.8.8"))
	assert.False(t, ok)
}

func TestDDNSHostname(t *testing.T) {
	assert.Equal(t, "store-1042-1.dynamic-m.com", DDNSHostname("Store 1042", 1, "dynamic-m.com"))
	assert.Equal(t, "store-1042-2.dynamic-m.com", DDNSHostname("  Store  1042 ", 2, "dynamic-m.com"))
	assert.Equal(t, "", DDNSHostname("Store 1042", 1, ""))
	assert.Equal(t, "", DDNSHostname("###", 1, "dynamic-m.com"))
}
