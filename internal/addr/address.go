// Package addr holds the IPv4/IPv6 address and network primitives shared by
// the loaders, the reconciliation graph and the network reservation.
package addr

import (
	"cmp"
	"fmt"
	"iter"
	"net/netip"
	"slices"
	"strings"
)

// Address — IP address with a prefix length. A host address carries the full
// mask (/32 or /128). The zero value is invalid.
type Address struct {
	p netip.Prefix
}

var cgnat = netip.MustParsePrefix("100.64.0.0/10")

// Parse accepts "a.b.c.d", "a.b.c.d/len" and the IPv6 equivalents.
// Host bits of a network are cleared.
func Parse(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, fmt.Errorf("empty address")
	}
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return Address{}, err
		}
		return Address{p: p.Masked()}, nil
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return Address{}, err
	}
	return FromAddr(a), nil
}

// MustParse is Parse for literals in tables and tests.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// New builds the network of ip with the given mask length, e.g.
// New("10.0.0.5", 24) is 10.0.0.0/24.
func New(ip string, bits int) (Address, error) {
	a, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return Address{}, err
	}
	a = a.Unmap()
	p, err := a.Prefix(bits)
	if err != nil {
		return Address{}, err
	}
	return Address{p: p}, nil
}

// FromAddr wraps a bare address as a host address.
func FromAddr(a netip.Addr) Address {
	a = a.Unmap()
	return Address{p: netip.PrefixFrom(a, a.BitLen())}
}

func (a Address) IsValid() bool        { return a.p.IsValid() }
func (a Address) Addr() netip.Addr     { return a.p.Addr() }
func (a Address) Bits() int            { return a.p.Bits() }
func (a Address) Is4() bool            { return a.p.Addr().Is4() }
func (a Address) Prefix() netip.Prefix { return a.p }

// IsHost reports whether the mask covers the whole address.
func (a Address) IsHost() bool {
	return a.p.IsValid() && a.p.Bits() == a.p.Addr().BitLen()
}

// Host returns the bare address of a as a host address.
func (a Address) Host() Address { return FromAddr(a.p.Addr()) }

// Contains reports whether b lies inside the network a.
func (a Address) Contains(b Address) bool {
	if !a.IsValid() || !b.IsValid() || a.Is4() != b.Is4() {
		return false
	}
	return b.Bits() >= a.Bits() && a.p.Contains(b.p.Addr())
}

// Compare orders by mask length, then address.
func (a Address) Compare(b Address) int {
	if c := cmp.Compare(a.Bits(), b.Bits()); c != 0 {
		return c
	}
	return a.p.Addr().Compare(b.p.Addr())
}

// Routable is false for private (RFC 1918 / ULA), link-local, loopback,
// CGNAT, multicast and unspecified addresses.
func (a Address) Routable() bool {
	ip := a.p.Addr()
	switch {
	case !ip.IsValid(),
		ip.IsPrivate(),
		ip.IsLoopback(),
		ip.IsLinkLocalUnicast(),
		ip.IsLinkLocalMulticast(),
		ip.IsMulticast(),
		ip.IsUnspecified():
		return false
	case ip.Is4() && cgnat.Contains(ip):
		return false
	}
	return true
}

// Hosts yields every address of the network a as host addresses.
func (a Address) Hosts() iter.Seq[Address] {
	return func(yield func(Address) bool) {
		if !a.IsValid() {
			return
		}
		for ip := a.p.Addr(); ip.IsValid() && a.p.Contains(ip); ip = ip.Next() {
			if !yield(FromAddr(ip)) {
				return
			}
		}
	}
}

// String prints hosts without mask and networks as CIDR.
func (a Address) String() string {
	if !a.IsValid() {
		return "invalid"
	}
	if a.IsHost() {
		return a.p.Addr().String()
	}
	return a.p.String()
}

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Sort orders addresses in place by Compare.
func Sort(as []Address) {
	slices.SortFunc(as, Address.Compare)
}

// SortByValue orders addresses by value only, the order the graph walks ips in.
func SortByValue(as []Address) {
	slices.SortFunc(as, func(a, b Address) int {
		if c := a.p.Addr().Compare(b.p.Addr()); c != 0 {
			return c
		}
		return cmp.Compare(a.Bits(), b.Bits())
	})
}
