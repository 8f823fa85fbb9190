package reconcile

import (
	"fmt"
	"maps"
	"slices"

	"ffconvert/internal/addr"
	"ffconvert/internal/models"
	"ffconvert/internal/source"
)

// Interface is identified by the first ip it was created for. Spider data
// may fold several of them into one.
type Interface struct {
	ip  addr.Address
	idx int
	// dev owns the interface now, idxDev created it and names it.
	dev    *Device
	idxDev *Device

	ips    map[addr.Address]*IP
	into   *Interface
	merged []*Interface

	isWLAN   bool
	wlan     *source.WLANInfo
	names    []string
	spiderIP addr.Address

	net *models.NetInterface
}

func newInterface(d *Device, ip *IP, idx int) *Interface {
	return &Interface{
		ip:     ip.Addr,
		idx:    idx,
		dev:    d,
		idxDev: d,
		ips:    map[addr.Address]*IP{ip.Addr: ip},
	}
}

func (i *Interface) String() string { return fmt.Sprintf("iface %s", i.ip) }

func (i *Interface) IP() addr.Address       { return i.ip }
func (i *Interface) Device() *Device        { return i.dev }
func (i *Interface) Merged() bool           { return i.into != nil }
func (i *Interface) MergedInto() *Interface { return i.into }
func (i *Interface) IsWLAN() bool           { return i.isWLAN }
func (i *Interface) WLAN() *source.WLANInfo { return i.wlan }
func (i *Interface) Names() []string        { return i.names }
func (i *Interface) SpiderIP() addr.Address { return i.spiderIP }

func (i *Interface) NetInterface() *models.NetInterface { return i.net }

// IPs returns the owned redeemer ips, ascending.
func (i *Interface) IPs() []*IP {
	keys := slices.Collect(maps.Keys(i.ips))
	addr.SortByValue(keys)
	out := make([]*IP, 0, len(keys))
	for _, k := range keys {
		out = append(out, i.ips[k])
	}
	return out
}

// Name is the name of the device that created the interface.
func (i *Interface) Name() string { return i.idxDev.Name }

// IPName is Name, suffixed with the index when that device had several ips.
func (i *Interface) IPName() string {
	if i.idxDev.ifIdx > 1 {
		return fmt.Sprintf("%s-%d", i.Name(), i.idx)
	}
	return i.Name()
}

// IfName prefers the first spider interface name.
func (i *Interface) IfName() string {
	if len(i.names) > 0 {
		return i.names[0]
	}
	return i.IPName()
}

// Merge folds other, an interface of the same device, into i.
func (i *Interface) Merge(other *Interface) error {
	switch {
	case other == i:
		return fmt.Errorf("%s: %w", i, ErrSelfMerge)
	case other.dev != i.dev:
		return fmt.Errorf("%s (%s) into %s (%s): %w", other, other.dev, i, i.dev, ErrForeignIface)
	case other.into != nil:
		return fmt.Errorf("%s to %s: %w", other, other.into, ErrAlreadyMerged)
	case i.into != nil:
		return fmt.Errorf("target %s to %s: %w", i, i.into, ErrAlreadyMerged)
	}
	for a, ip := range other.ips {
		i.ips[a] = ip
	}
	delete(other.dev.interfaces, other.ip)
	other.ips = nil
	other.into = i
	i.merged = append(i.merged, other)
	return nil
}

// applySpider copies what the spider knows about the physical interface.
func (i *Interface) applySpider(sif *source.SpiderInterface) {
	if sif.IsWLAN {
		i.isWLAN = true
		i.wlan = sif.WLAN
	}
	i.names = slices.Clone(sif.Names)
	if sif.Device != nil {
		i.spiderIP = sif.Device.MainIP
	}
}
