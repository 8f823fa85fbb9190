package reconcile

import (
	"fmt"
	"maps"
	"slices"

	"ffconvert/internal/addr"
	"ffconvert/internal/models"
	"ffconvert/internal/source"
)

// Device is a canonical device built from one or more redeemer devices.
// It is live until merged into another device; then it only forwards.
type Device struct {
	ID     int
	Name   string
	NodeID int

	raw        map[int]*source.Device
	interfaces map[addr.Address]*Interface
	into       *Device
	merged     []*Device
	ifIdx      int

	// MIDIP is the MID key ip that reached this device, if any.
	MIDIP addr.Address
	HNA   bool

	created bool
	net     *models.NetDevice
}

func newDevice(rd *source.Device) *Device {
	return &Device{
		ID:         rd.ID,
		Name:       rd.Name,
		NodeID:     rd.IDNodes,
		raw:        map[int]*source.Device{rd.ID: rd},
		interfaces: map[addr.Address]*Interface{},
	}
}

func (d *Device) String() string { return fmt.Sprintf("dev %d %q", d.ID, d.Name) }

// Raw returns the redeemer row the device was created from. ok is false
// once the device was merged away and its rows moved to the target.
func (d *Device) Raw() (rec *source.Device, ok bool) {
	rec, ok = d.raw[d.ID]
	return rec, ok
}

// RawIDs lists every redeemer device id the device owns.
func (d *Device) RawIDs() []int {
	return slices.Sorted(maps.Keys(d.raw))
}

func (d *Device) Merged() bool        { return d.into != nil }
func (d *Device) MergedInto() *Device { return d.into }
func (d *Device) MergedDevs() []*Device {
	return d.merged
}

// Canonical follows the forwarding chain to the live device.
func (d *Device) Canonical() (*Device, error) {
	seen := map[*Device]bool{}
	for c := d; ; c = c.into {
		if seen[c] {
			return nil, fmt.Errorf("%s: %w", d, ErrMergeCycle)
		}
		seen[c] = true
		if c.into == nil {
			return c, nil
		}
	}
}

// IPCount is the number of redeemer ips the device was given at build time.
func (d *Device) IPCount() int { return d.ifIdx }

// Interfaces returns the live interfaces ordered by their identifying ip.
func (d *Device) Interfaces() []*Interface {
	keys := slices.Collect(maps.Keys(d.interfaces))
	addr.SortByValue(keys)
	out := make([]*Interface, 0, len(keys))
	for _, k := range keys {
		out = append(out, d.interfaces[k])
	}
	return out
}

// Interface returns the live interface identified by ip.
func (d *Device) Interface(ip addr.Address) (*Interface, bool) {
	i, ok := d.interfaces[ip]
	return i, ok
}

// IPs returns every ip owned by the live interfaces, ascending.
func (d *Device) IPs() []addr.Address {
	var out []addr.Address
	for _, i := range d.interfaces {
		for a := range i.ips {
			out = append(out, a)
		}
	}
	addr.SortByValue(out)
	return out
}

func (d *Device) addIP(ip *IP) error {
	if len(d.merged) > 0 {
		return fmt.Errorf("%s: ip %s after merge: %w", d, ip.Addr, ErrInvariant)
	}
	if _, dup := d.interfaces[ip.Addr]; dup {
		return fmt.Errorf("%s: ip %s twice: %w", d, ip.Addr, ErrInvariant)
	}
	d.interfaces[ip.Addr] = newInterface(d, ip, d.ifIdx)
	d.ifIdx++
	return nil
}

// Merge moves the raw rows and interfaces of other into d. other then
// forwards to d.
func (d *Device) Merge(other *Device) error {
	switch {
	case other == d:
		return fmt.Errorf("%s: %w", d, ErrSelfMerge)
	case other.into != nil:
		return fmt.Errorf("%s to %s: %w", other, other.into, ErrAlreadyMerged)
	case d.into != nil:
		return fmt.Errorf("target %s to %s: %w", d, d.into, ErrAlreadyMerged)
	}
	for id, r := range other.raw {
		d.raw[id] = r
	}
	for ip, i := range other.interfaces {
		i.dev = d
		d.interfaces[ip] = i
	}
	other.raw = nil
	other.interfaces = nil
	other.into = d
	d.merged = append(d.merged, other)
	return nil
}

// ShortestName is the shortest name among d and the devices merged into it.
func (d *Device) ShortestName() string {
	sn := d.Name
	for _, m := range d.merged {
		if len(m.Name) < len(sn) {
			sn = m.Name
		}
	}
	return sn
}

// NetDevice is the emitted device, nil before Create.
func (d *Device) NetDevice() *models.NetDevice { return d.net }
