package discovery

import (
	"net/netip"
	"slices"
	"strings"

	"github.com/anstrom/lanscan/internal/errors"
)

// ParseRange parses an IPv4 network in prefix notation. Host bits are
// allowed and masked off; a bare address is treated as a /32.
func ParseRange(cidr string) (netip.Prefix, error) {
	s := strings.TrimSpace(cidr)
	if s == "" {
		return netip.Prefix{}, errors.ErrInvalidTarget(cidr)
	}

	if !strings.Contains(s, "/") {
		addr, err := netip.ParseAddr(s)
		if err != nil || !addr.Is4() {
			return netip.Prefix{}, errors.ErrInvalidTarget(cidr)
		}
		return netip.PrefixFrom(addr, 32), nil
	}

	prefix, err := netip.ParsePrefix(s)
	if err != nil || !prefix.Addr().Is4() {
		return netip.Prefix{}, errors.ErrInvalidTarget(cidr)
	}
	return prefix.Masked(), nil
}

// ValidateRange reports whether cidr is an acceptable IPv4 range.
func ValidateRange(cidr string) error {
	_, err := ParseRange(cidr)
	return err
}

// HostAddresses lists the usable host addresses of prefix in ascending
// order, excluding the network and broadcast addresses for prefixes
// shorter than /31. A limit above zero caps the number returned.
func HostAddresses(prefix netip.Prefix, limit int) []string {
	prefix = prefix.Masked()
	bits := prefix.Bits()

	first := prefix.Addr()
	last := lastAddr(prefix)
	if bits < 31 {
		first = first.Next()
		last = last.Prev()
	}

	var out []string
	for addr := first; addr.IsValid() && addr.Compare(last) <= 0; addr = addr.Next() {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, addr.String())
	}
	return out
}

// HostCount returns the number of usable host addresses in prefix.
func HostCount(prefix netip.Prefix) int {
	bits := prefix.Bits()
	switch {
	case bits >= 32:
		return 1
	case bits == 31:
		return 2
	default:
		return 1<<(32-bits) - 2
	}
}

func lastAddr(prefix netip.Prefix) netip.Addr {
	a := prefix.Masked().Addr().As4()
	hostBits := 32 - prefix.Bits()
	v := uint32(a[0])<<24 | uint32(a[1])<<16 | uint32(a[2])<<8 | uint32(a[3])
	if hostBits > 0 {
		v |= 1<<hostBits - 1
	}
	return netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}

// SortAddresses orders IPv4 address strings numerically. Unparseable
// entries sort last in lexical order.
func SortAddresses(addrs []string) {
	slices.SortFunc(addrs, func(a, b string) int {
		pa, errA := netip.ParseAddr(a)
		pb, errB := netip.ParseAddr(b)
		switch {
		case errA == nil && errB == nil:
			return pa.Compare(pb)
		case errA == nil:
			return -1
		case errB == nil:
			return 1
		default:
			return strings.Compare(a, b)
		}
	})
}
