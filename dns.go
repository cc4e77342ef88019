package s3transfer

import (
	"context"
	"net"
)

// DNSResolver reports how many addresses a host resolves to. The Client
// holds one, but neither the request path nor the VIP estimate
// (idealVIPCount) calls it.
type DNSResolver interface {
	// HostAddressCount returns the number of distinct addresses the
	// host currently resolves to.
	HostAddressCount(ctx context.Context, host string) (int, error)
}

type netResolver struct {
	r *net.Resolver
}

func newDefaultDNSResolver() DNSResolver {
	return &netResolver{r: net.DefaultResolver}
}

func (n *netResolver) HostAddressCount(ctx context.Context, host string) (int, error) {
	addrs, err := n.r.LookupHost(ctx, host)
	if err != nil {
		return 0, err
	}
	return len(addrs), nil
}
