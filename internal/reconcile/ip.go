package reconcile

import (
	"fmt"

	"ffconvert/internal/addr"
	"ffconvert/internal/source"
)

// IP is one redeemer ip row. It is consumed once, when the interface that
// owns it is created.
type IP struct {
	source.IP
	Addr addr.Address
	done bool
}

func newIP(row source.IP) (*IP, error) {
	a, err := addr.Parse(row.IP)
	if err != nil {
		return nil, err
	}
	return &IP{IP: row, Addr: a.Host()}, nil
}

// Network is the ip/cidr block the row declares.
func (ip *IP) Network() (addr.Address, error) {
	bits := ip.CIDR
	if bits <= 0 {
		bits = ip.Addr.Addr().BitLen()
	}
	return addr.New(ip.Addr.Addr().String(), bits)
}

func (ip *IP) Done() bool { return ip.done }

func (ip *IP) MarkDone() error {
	if ip.done {
		return fmt.Errorf("%s (row %d): %w", ip.Addr, ip.ID, ErrIPDone)
	}
	ip.done = true
	return nil
}
