package source

import (
	"ffconvert/internal/addr"
	"ffconvert/internal/logs"
)

// SpiderIndex maps every routable address seen by the spider to the device
// and the interface that answered on it.
type SpiderIndex struct {
	Devs   map[addr.Address]*SpiderDevice
	Ifaces map[addr.Address]*SpiderInterface
}

// IndexSpider builds the address index. ignore maps a main ip to sub-ips that
// must not be indexed for it. Failed probes are skipped.
func IndexSpider(snap Snapshot, ignore map[string][]string) *SpiderIndex {
	ix := &SpiderIndex{
		Devs:   map[addr.Address]*SpiderDevice{},
		Ifaces: map[addr.Address]*SpiderInterface{},
	}
	keys := make([]addr.Address, 0, len(snap))
	byKey := map[addr.Address]*SpiderDevice{}
	for s, dev := range snap {
		a, err := addr.Parse(s)
		if err != nil {
			logs.Event(logs.EvSpider).WithField("ip", s).Warnf("spider: bad main ip %q", s)
			continue
		}
		keys = append(keys, a)
		byKey[a] = dev
	}
	addr.SortByValue(keys)

	for _, ip := range keys {
		dev := byKey[ip]
		if dev.Error != "" {
			logs.Logger.Debugf("spider: %s failed: %s", ip, dev.Error)
			continue
		}
		dev.MainIP = ip
		skip := map[string]bool{}
		for _, s := range ignore[ip.String()] {
			skip[s] = true
		}
		for _, iface := range dev.SortedInterfaces() {
			iface.Device = dev
			if len(iface.Names) == 0 {
				iface.Names = []string{iface.Name}
			}
			ix.indexInterface(dev, iface, skip)
		}
		if _, ok := ix.Devs[ip]; !ok {
			logs.Event(logs.EvSpider).WithField("ip", ip.String()).Warnf("ip %s not in dev", ip)
			const name = "unknown"
			if dev.Interfaces == nil {
				dev.Interfaces = map[string]*SpiderInterface{}
			}
			iface := dev.Interfaces[name]
			if iface == nil {
				iface = &SpiderInterface{Name: name, Names: []string{name}, Device: dev}
				dev.Interfaces[name] = iface
			}
			iface.Inet4 = append(iface.Inet4, Inet4{IP: ip.String()})
			ix.Ifaces[ip] = iface
			ix.Devs[ip] = dev
		}
	}
	return ix
}

func (ix *SpiderIndex) indexInterface(dev *SpiderDevice, iface *SpiderInterface, skip map[string]bool) {
	for _, in4 := range iface.Inet4 {
		i4, err := addr.Parse(in4.IP)
		if err != nil || !i4.Routable() {
			continue
		}
		i4 = i4.Host()
		if skip[i4.String()] {
			logs.Event(logs.EvSpider).Infof("Ignoring %s/%s", dev.MainIP, i4)
			continue
		}
		if other, ok := ix.Devs[i4]; ok && other != dev {
			logs.Event(logs.EvSpider).WithField("ip", i4.String()).
				Warnf("Device %s/%s not equal to device %s", dev.MainIP, i4, other.MainIP)
			continue
		}
		target := iface
		if spif, ok := ix.Ifaces[i4]; ok && spif != iface {
			logs.Event(logs.EvSpider).WithField("ip", i4.String()).
				Warnf("Interfaces %s/%s of dev-ip %s share ip %s", iface.Name, spif.Name, dev.MainIP, i4)
			spif.Names = append(spif.Names, iface.Name)
			if iface.IsWLAN {
				spif.IsWLAN = true
				spif.WLAN = iface.WLAN
			}
			target = spif
		}
		ix.Devs[i4] = dev
		ix.Ifaces[i4] = target
	}
}

// Addresses returns the indexed addresses of dev in ascending order.
func (ix *SpiderIndex) Addresses(dev *SpiderDevice) []addr.Address {
	var out []addr.Address
	for a, d := range ix.Devs {
		if d == dev {
			out = append(out, a)
		}
	}
	addr.SortByValue(out)
	return out
}

// Devices returns every indexed device once, ordered by its lowest address.
func (ix *SpiderIndex) Devices() []*SpiderDevice {
	keys := make([]addr.Address, 0, len(ix.Devs))
	for a := range ix.Devs {
		keys = append(keys, a)
	}
	addr.SortByValue(keys)
	seen := map[*SpiderDevice]bool{}
	var out []*SpiderDevice
	for _, k := range keys {
		d := ix.Devs[k]
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}
