// Package arin resolves public IPs to owning organizations through a layered
// pipeline: cache, documented carrier ranges, curated static entries, DDNS
// fallback for private IPs, and finally an RDAP registry lookup.
package arin

import (
	"context"
	"net"
	"net/netip"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/crestline-networks/circuit-cli/internal/model"
	"github.com/crestline-networks/circuit-cli/pkg/rdap"
)

// DDNSInfo carries the dynamic-DNS parameters for one interface, used when
// the interface only exposes a private IP.
type DDNSInfo struct {
	Enabled     bool
	NetworkName string
	WAN         int
}

// Resolver resolves IP ownership. Safe for concurrent use by a worker pool;
// registry lookups for the same IP are collapsed to a single flight.
type Resolver struct {
	cache       *Cache
	rdap        rdap.Client
	dns         HostResolver
	ddnsDomain  string
	ddnsTimeout time.Duration

	flight singleflight.Group

	mu      sync.Mutex
	missing map[string]struct{}
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithDNS sets the DDNS host resolver. Defaults to net.DefaultResolver.
func WithDNS(r HostResolver) ResolverOption {
	return func(res *Resolver) { res.dns = r }
}

// WithDDNS sets the dynamic-DNS domain and per-lookup timeout.
func WithDDNS(domain string, timeout time.Duration) ResolverOption {
	return func(res *Resolver) {
		res.ddnsDomain = domain
		res.ddnsTimeout = timeout
	}
}

// NewResolver creates a Resolver backed by the given cache and RDAP client.
func NewResolver(cache *Cache, rdapClient rdap.Client, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		cache:       cache,
		rdap:        rdapClient,
		dns:         net.DefaultResolver,
		ddnsTimeout: 5 * time.Second,
		missing:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the owning organization for an IP, or one of the
// sentinels. Lookup failures degrade to Unknown and are recorded in the
// missing set for the next scheduled run; they never fail the batch.
func (r *Resolver) Resolve(ctx context.Context, ip string, ddns DDNSInfo) string {
	if ip == "" {
		return model.OwnershipUnknown
	}

	if e, ok := r.cache.Get(ip); ok {
		return e.Organization
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		zap.L().Debug("arin: unparseable ip", zap.String("ip", ip))
		r.recordMissing(ip)
		return model.OwnershipUnknown
	}

	if org, ok := lookupKnownRange(addr); ok {
		r.cache.Put(ctx, model.IpOwnership{IP: ip, Organization: org})
		return org
	}

	if org, ok := lookupStatic(ip); ok {
		r.cache.Put(ctx, model.IpOwnership{IP: ip, Organization: org})
		return org
	}

	if addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() {
		return r.resolvePrivate(ctx, ip, ddns)
	}

	return r.lookupPublic(ctx, ip, false)
}

// resolvePrivate runs the two-stage DDNS pipeline: resolve the interface's
// dynamic hostname to its public IP, then look that IP up. Both the private
// and the public entry are cached on success, the private one tagged as
// resolved via DDNS.
func (r *Resolver) resolvePrivate(ctx context.Context, ip string, ddns DDNSInfo) string {
	if !ddns.Enabled || r.ddnsDomain == "" {
		return model.OwnershipPrivateIP
	}

	hostname := DDNSHostname(ddns.NetworkName, ddns.WAN, r.ddnsDomain)
	publicIP, err := ResolvePublicIP(ctx, r.dns, hostname, r.ddnsTimeout)
	if err != nil {
		zap.L().Debug("arin: ddns fallback failed",
			zap.String("ip", ip), zap.String("hostname", hostname), zap.Error(err))
		return model.OwnershipPrivateIP
	}

	org := r.Resolve(ctx, publicIP, DDNSInfo{})
	if isSentinel(org) {
		return model.OwnershipPrivateIP
	}
	r.cache.Put(ctx, model.IpOwnership{IP: ip, Organization: org, ViaDDNS: true})
	return org
}

// lookupPublic performs the registry lookup, collapsed per IP so a batch of
// workers asking about the same address issues one query.
func (r *Resolver) lookupPublic(ctx context.Context, ip string, viaDDNS bool) string {
	v, _, _ := r.flight.Do(ip, func() (any, error) {
		// Another flight may have populated the cache while we queued.
		if e, ok := r.cache.Get(ip); ok {
			return e.Organization, nil
		}

		network, err := r.rdap.IPNetwork(ctx, ip)
		if err != nil {
			zap.L().Warn("arin: registry lookup failed", zap.String("ip", ip), zap.Error(err))
			r.recordMissing(ip)
			return model.OwnershipUnknown, nil
		}

		org := ChooseOrganization(network)
		if org == "" {
			r.recordMissing(ip)
			return model.OwnershipUnknown, nil
		}

		r.cache.Put(ctx, model.IpOwnership{IP: ip, Organization: org, ViaDDNS: viaDDNS})
		return org, nil
	})
	return v.(string)
}

func isSentinel(org string) bool {
	return org == "" || org == model.OwnershipUnknown || org == model.OwnershipPrivateIP
}

func (r *Resolver) recordMissing(ip string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.missing[ip] = struct{}{}
}

// Missing returns the IPs that could not be resolved this run, sorted, for
// operator visibility. They are retried on the next scheduled run.
func (r *Resolver) Missing() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.missing))
	for ip := range r.missing {
		out = append(out, ip)
	}
	sort.Strings(out)
	return out
}
