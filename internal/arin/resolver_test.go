package arin

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestline-networks/circuit-cli/internal/model"
	"github.com/crestline-networks/circuit-cli/pkg/rdap"
)

// fakeRDAP returns a canned network per IP and counts lookups.
type fakeRDAP struct {
	mu       sync.Mutex
	calls    map[string]int
	networks map[string]*rdap.Network
	err      error
}

func newFakeRDAP() *fakeRDAP {
	return &fakeRDAP{calls: make(map[string]int), networks: make(map[string]*rdap.Network)}
}

func (f *fakeRDAP) IPNetwork(ctx context.Context, ip string) (*rdap.Network, error) {
	f.mu.Lock()
	f.calls[ip]++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if n, ok := f.networks[ip]; ok {
		return n, nil
	}
	return &rdap.Network{Name: "UNALLOCATED"}, nil
}

func (f *fakeRDAP) callCount(ip string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[ip]
}

func orgNetwork(name, org string, when time.Time) *rdap.Network {
	return &rdap.Network{
		Name: name,
		Entities: []rdap.Entity{{
			FullName: org,
			Kind:     "org",
			Roles:    []string{"registrant"},
			Events:   []rdap.Event{{Action: "last changed", Date: when}},
		}},
	}
}

func TestResolve_CacheHitSkipsRegistry(t *testing.T) {
	f := newFakeRDAP()
	cache := NewCache(nil)
	cache.Put(context.Background(), model.IpOwnership{IP: "198.51.100.7", Organization: "Comcast"})

	r := NewResolver(cache, f)
	got := r.Resolve(context.Background(), "198.51.100.7", DDNSInfo{})
	assert.Equal(t, "Comcast", got)
	assert.Equal(t, 0, f.callCount("198.51.100.7"))
}

func TestResolve_KnownRange(t *testing.T) {
	f := newFakeRDAP()
	r := NewResolver(NewCache(nil), f)

	got := r.Resolve(context.Background(), "174.192.10.5", DDNSInfo{})
	assert.Equal(t, "Verizon Wireless", got)
	assert.Equal(t, 0, f.callCount("174.192.10.5"))

	// Cached for the rest of the run.
	_, ok := r.cache.Get("174.192.10.5")
	assert.True(t, ok)
}

func TestResolve_StaticTable(t *testing.T) {
	f := newFakeRDAP()
	r := NewResolver(NewCache(nil), f)
	got := r.Resolve(context.Background(), "4.2.2.2", DDNSInfo{})
	assert.Equal(t, "CenturyLink", got)
	assert.Equal(t, 0, f.callCount("4.2.2.2"))
}

func TestResolve_RegistryLookup(t *testing.T) {
	f := newFakeRDAP()
	f.networks["198.51.100.7"] = orgNetwork("CABLE-1", "Comcast Cable Communications, LLC", time.Now())

	r := NewResolver(NewCache(nil), f)
	got := r.Resolve(context.Background(), "198.51.100.7", DDNSInfo{})
	assert.Equal(t, "Comcast", got)
	assert.Equal(t, 1, f.callCount("198.51.100.7"))

	// Second resolve is a cache hit.
	got = r.Resolve(context.Background(), "198.51.100.7", DDNSInfo{})
	assert.Equal(t, "Comcast", got)
	assert.Equal(t, 1, f.callCount("198.51.100.7"))
}

func TestResolve_ConcurrentWorkersSingleLookup(t *testing.T) {
	f := newFakeRDAP()
	f.networks["198.51.100.7"] = orgNetwork("CABLE-1", "Comcast Cable Communications, LLC", time.Now())

	r := NewResolver(NewCache(nil), f)

	var wg sync.WaitGroup
	var mismatches atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := r.Resolve(context.Background(), "198.51.100.7", DDNSInfo{}); got != "Comcast" {
				mismatches.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(0), mismatches.Load())
	assert.Equal(t, 1, f.callCount("198.51.100.7"), "concurrent workers must share one flight")
}

func TestResolve_LookupFailureDegradesToUnknown(t *testing.T) {
	f := newFakeRDAP()
	f.err = assert.AnError

	r := NewResolver(NewCache(nil), f)
	got := r.Resolve(context.Background(), "203.0.113.9", DDNSInfo{})
	assert.Equal(t, model.OwnershipUnknown, got)
	assert.Equal(t, []string{"203.0.113.9"}, r.Missing())

	// Failures are not cached; the next run retries.
	_, ok := r.cache.Get("203.0.113.9")
	assert.False(t, ok)
}

func TestResolve_PrivateIPWithoutDDNS(t *testing.T) {
	f := newFakeRDAP()
	r := NewResolver(NewCache(nil), f)
	got := r.Resolve(context.Background(), "192.168.1.22", DDNSInfo{})
	assert.Equal(t, model.OwnershipPrivateIP, got)
}

// fakeDNS maps hostnames to fixed addresses.
type fakeDNS map[string][]string

func (f fakeDNS) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	ips, ok := f[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	var out []net.IPAddr
	for _, ip := range ips {
		out = append(out, net.IPAddr{IP: net.ParseIP(ip)})
	}
	return out, nil
}

func TestResolve_PrivateIPViaDDNS(t *testing.T) {
	f := newFakeRDAP()
	f.networks["198.51.100.40"] = orgNetwork("CABLE-1", "Charter Communications Inc", time.Now())

	dns := fakeDNS{"store-1042-2.dynamic-m.com": {"198.51.100.40"}}
	r := NewResolver(NewCache(nil), f,
		WithDNS(dns),
		WithDDNS("dynamic-m.com", time.Second),
	)

	got := r.Resolve(context.Background(), "10.0.4.2",
		DDNSInfo{Enabled: true, NetworkName: "Store 1042", WAN: 2})
	assert.Equal(t, "Spectrum", got)

	// Both the private and public entries land in the cache, the private
	// one tagged as resolved via DDNS.
	priv, ok := r.cache.Get("10.0.4.2")
	require.True(t, ok)
	assert.True(t, priv.ViaDDNS)
	assert.Equal(t, "Spectrum", priv.Organization)

	pub, ok := r.cache.Get("198.51.100.40")
	require.True(t, ok)
	assert.False(t, pub.ViaDDNS)
}

func TestResolve_DDNSFailureFallsBackToPrivate(t *testing.T) {
	f := newFakeRDAP()
	r := NewResolver(NewCache(nil), f,
		WithDNS(fakeDNS{}),
		WithDDNS("dynamic-m.com", time.Second),
	)
	got := r.Resolve(context.Background(), "10.0.4.2",
		DDNSInfo{Enabled: true, NetworkName: "Store 1042", WAN: 2})
	assert.Equal(t, model.OwnershipPrivateIP, got)
}

func TestResolve_EmptyAndInvalidIP(t *testing.T) {
	r := NewResolver(NewCache(nil), newFakeRDAP())
	assert.Equal(t, model.OwnershipUnknown, r.Resolve(context.Background(), "", DDNSInfo{}))
	assert.Equal(t, model.OwnershipUnknown, r.Resolve(context.Background(), "not-an-ip", DDNSInfo{}))
}
