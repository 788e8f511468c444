package discovery

import (
	"context"
	stderrors "errors"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/anstrom/lanscan/internal/errors"
)

// Identity is the naming information learned for one address.
type Identity struct {
	ReverseName     string
	HardwareAddress string
}

// IdentityResolver looks up the reverse name and hardware address of a host.
// It returns whatever it found together with the joined errors of the
// lookups that failed.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, addr string) (Identity, error)
}

// NameResolver performs one kind of reverse name lookup.
type NameResolver interface {
	ReverseName(ctx context.Context, addr string) (string, error)
}

// DNSResolver issues PTR queries directly with miekg/dns.
type DNSResolver struct {
	client  *dns.Client
	servers []string
}

// NewDNSResolver creates a PTR resolver. An empty server uses the
// nameservers from /etc/resolv.conf. A server without a port gets 53.
func NewDNSResolver(server string, timeout time.Duration) (*DNSResolver, error) {
	var servers []string
	if server != "" {
		if _, _, err := net.SplitHostPort(server); err != nil {
			server = net.JoinHostPort(server, "53")
		}
		servers = []string{server}
	} else {
		cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil {
			return nil, errors.ErrToolUnavailable("reverse_lookup", "resolv.conf", err)
		}
		for _, s := range cfg.Servers {
			servers = append(servers, net.JoinHostPort(s, cfg.Port))
		}
	}
	if len(servers) == 0 {
		return nil, errors.NewScanError(errors.CodeConfiguration, "reverse_lookup", "", "no nameservers configured")
	}

	return &DNSResolver{
		client:  &dns.Client{Timeout: timeout},
		servers: servers,
	}, nil
}

// Servers returns the nameservers queried, in order.
func (r *DNSResolver) Servers() []string {
	return slices.Clone(r.servers)
}

// ReverseName implements NameResolver.
func (r *DNSResolver) ReverseName(ctx context.Context, addr string) (string, error) {
	arpa, err := dns.ReverseAddr(addr)
	if err != nil {
		return "", errors.WrapScanError(errors.CodeTargetInvalid, "reverse_lookup", addr, err)
	}

	msg := new(dns.Msg)
	msg.SetQuestion(arpa, dns.TypePTR)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		in, _, err := r.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = err
			continue
		}
		if in.Rcode != dns.RcodeSuccess {
			return "", errors.NewScanError(errors.CodeNoResult, "reverse_lookup", addr, dns.RcodeToString[in.Rcode])
		}
		for _, rr := range in.Answer {
			if ptr, ok := rr.(*dns.PTR); ok {
				return strings.TrimSuffix(ptr.Ptr, "."), nil
			}
		}
		return "", errors.NewScanError(errors.CodeNoResult, "reverse_lookup", addr, "no PTR record")
	}

	if ctx.Err() != nil {
		return "", errors.WrapScanError(errors.CodeTimeout, "reverse_lookup", addr, ctx.Err())
	}
	return "", errors.WrapScanError(errors.CodeHostUnreachable, "reverse_lookup", addr, lastErr)
}

// SystemNameResolver uses the operating system resolver and only accepts
// a name whose forward lookup includes the original address. This covers
// names from /etc/hosts and other local sources that DNS does not.
type SystemNameResolver struct {
	resolver *net.Resolver
}

// NewSystemNameResolver creates a resolver backed by net.DefaultResolver.
func NewSystemNameResolver() *SystemNameResolver {
	return &SystemNameResolver{resolver: net.DefaultResolver}
}

// ReverseName implements NameResolver.
func (r *SystemNameResolver) ReverseName(ctx context.Context, addr string) (string, error) {
	names, err := r.resolver.LookupAddr(ctx, addr)
	if err != nil || len(names) == 0 {
		if ctx.Err() != nil {
			return "", errors.WrapScanError(errors.CodeTimeout, "reverse_lookup", addr, ctx.Err())
		}
		return "", errors.NewScanError(errors.CodeNoResult, "reverse_lookup", addr, "no name from system resolver")
	}

	for _, name := range names {
		name = strings.TrimSuffix(name, ".")
		if name == "" || name == addr {
			continue
		}
		addrs, err := r.resolver.LookupHost(ctx, name)
		if err != nil {
			continue
		}
		if slices.Contains(addrs, addr) {
			return name, nil
		}
	}
	return "", errors.NewScanError(errors.CodeNoResult, "reverse_lookup", addr, "name not forward-confirmed")
}

// HostIdentityResolver combines name resolvers with a neighbor table.
type HostIdentityResolver struct {
	names     []NameResolver
	neighbors NeighborTable
	timeout   time.Duration
}

// NewHostIdentityResolver creates an identity resolver. Name resolvers are
// tried in order until one returns a name. A zero timeout means no limit
// beyond ctx.
func NewHostIdentityResolver(neighbors NeighborTable, timeout time.Duration, names ...NameResolver) *HostIdentityResolver {
	return &HostIdentityResolver{
		names:     names,
		neighbors: neighbors,
		timeout:   timeout,
	}
}

// ResolveIdentity implements IdentityResolver. Empty fields mean the
// attribute could not be determined.
func (r *HostIdentityResolver) ResolveIdentity(ctx context.Context, addr string) (Identity, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var id Identity
	var errs []error

	for _, resolver := range r.names {
		name, err := resolver.ReverseName(ctx, addr)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if name != "" && name != addr {
			id.ReverseName = name
			errs = nil
			break
		}
	}

	if r.neighbors != nil {
		mac, err := r.neighbors.HardwareAddr(ctx, addr)
		if err != nil {
			errs = append(errs, err)
		} else {
			id.HardwareAddress = NormalizeMAC(mac)
		}
	}

	return id, stderrors.Join(errs...)
}
