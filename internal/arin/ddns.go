package arin

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// HostResolver resolves a DDNS hostname to its public IP. Satisfied by
// *net.Resolver.
type HostResolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

var hostnameClean = regexp.MustCompile(`[^a-z0-9-]+`)

// DDNSHostname derives the dynamic-DNS hostname for one WAN interface from
// the device's network name, e.g. "Store 1042" wan2 -> "store-1042-2.<domain>".
func DDNSHostname(networkName string, wan int, domain string) string {
	base := strings.ToLower(strings.TrimSpace(networkName))
	base = hostnameClean.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")
	if base == "" || domain == "" {
		return ""
	}
	return fmt.Sprintf("%s-%d.%s", base, wan, domain)
}

// ResolvePublicIP looks up a DDNS hostname with a bounded timeout and
// returns the first public IPv4 address. This is the first stage of the
// private-IP fallback pipeline; the ownership lookup on the returned IP is
// a separate step.
func ResolvePublicIP(ctx context.Context, r HostResolver, hostname string, timeout time.Duration) (string, error) {
	if hostname == "" {
		return "", eris.New("arin: empty ddns hostname")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addrs, err := r.LookupIPAddr(ctx, hostname)
	if err != nil {
		return "", eris.Wrapf(err, "arin: resolve ddns host %s", hostname)
	}
	for _, a := range addrs {
		ip := a.IP.To4()
		if ip == nil {
			continue
		}
		if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
			continue
		}
		return ip.String(), nil
	}
	return "", eris.Errorf("arin: ddns host %s has no public IPv4 address", hostname)
}
