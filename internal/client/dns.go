package client

import (
	"context"
	"errors"
	"net"
	"time"
)

// DNSResolver resolves a hostname's IPv4 address records
type DNSResolver struct {
	timeout  time.Duration
	resolver *net.Resolver
}

// NewDNSResolver creates a resolver using the system's DNS configuration
func NewDNSResolver(timeout time.Duration) *DNSResolver {
	return &DNSResolver{
		timeout:  timeout,
		resolver: net.DefaultResolver,
	}
}

// LookupA returns the IPv4 addresses the name currently resolves to
func (r *DNSResolver) LookupA(ctx context.Context, name string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ips, err := r.resolver.LookupIP(ctx, "ip4", name)
	if err != nil {
		return nil, err
	}

	addrs := make([]string, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, ip.String())
	}
	return addrs, nil
}

// IsNotFound reports whether err means the name does not resolve yet
// (NXDOMAIN or no data). That is an expected state while DNS propagates,
// not a failure.
func IsNotFound(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsNotFound
	}
	return false
}
