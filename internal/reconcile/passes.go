package reconcile

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"ffconvert/internal/addr"
	"ffconvert/internal/logs"
	"ffconvert/internal/source"
)

// spiderGroup is node id -> device id -> ips of one spider device.
type spiderGroup map[int]map[int][]addr.Address

// spiderPass merges devices a single spider device answered for, then
// folds their interfaces along the spider's physical interfaces.
func (g *Graph) spiderPass() error {
	for _, sdev := range g.spider.Devices() {
		nodes := spiderGroup{}
		for _, a := range g.spider.Addresses(sdev) {
			ip, ok := g.ByIP[a]
			if !ok {
				logs.Event(logs.EvSpider).WithField("ip", a.String()).Warnf("ip %s from spider not in redeemer", a)
				continue
			}
			if ip.IDDevices == 0 {
				logs.Event(logs.EvSpider).WithField("ip", a.String()).Errorf("ip %s from spider has no device", a)
				continue
			}
			d, ok := g.Devices[ip.IDDevices]
			if !ok {
				continue
			}
			if nodes[d.NodeID] == nil {
				nodes[d.NodeID] = map[int][]addr.Address{}
			}
			nodes[d.NodeID][d.ID] = append(nodes[d.NodeID][d.ID], a)
		}
		if len(nodes) == 0 {
			continue
		}
		nids := slices.Sorted(maps.Keys(nodes))
		if len(nodes) > 1 {
			names := make([]string, 0, len(nids))
			for _, n := range nids {
				names = append(names, g.NodeName(n))
			}
			logs.Event(logs.EvSpider).WithField("ip", sdev.MainIP.String()).
				Warnf("spider device %s expands to %d nodes: %s", sdev.MainIP, len(nodes), strings.Join(names, ", "))
		}
		for _, n := range nids {
			if err := g.spiderMergeNode(sdev, nodes[n]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Graph) spiderMergeNode(sdev *source.SpiderDevice, devs map[int][]addr.Address) error {
	var dev1 *Device
	sifs := map[*source.SpiderInterface][]addr.Address{}
	var order []*source.SpiderInterface
	for _, id := range slices.Sorted(maps.Keys(devs)) {
		d := g.Devices[id]
		if d.Merged() {
			logs.Event(logs.EvMerge).WithField("dev", d.ID).
				Errorf("%s already merged to %s", d, d.MergedInto())
			continue
		}
		if dev1 == nil {
			dev1 = d
		} else {
			g.logMerge("Spider", sdev.MainIP, d, dev1)
			if err := dev1.Merge(d); err != nil {
				return err
			}
		}
		for _, a := range devs[id] {
			sif := g.spider.Ifaces[a]
			if _, ok := sifs[sif]; !ok {
				order = append(order, sif)
			}
			sifs[sif] = append(sifs[sif], a)
		}
	}
	if dev1 == nil {
		return nil
	}
	for _, sif := range order {
		ips := sifs[sif]
		addr.SortByValue(ips)
		var if1 *Interface
		for _, a := range ips {
			ifc, ok := dev1.Interface(a)
			if !ok {
				return fmt.Errorf("spider ip %s has no interface on %s: %w", a, dev1, ErrInvariant)
			}
			if if1 == nil {
				if1 = ifc
				if1.applySpider(sif)
				continue
			}
			logs.Event(logs.EvMerge).WithField("dev", dev1.ID).WithField("ip", a.String()).
				Infof("Spider %-15s: Merging iface %s.%s:%s to %s.%s:%s",
					sdev.MainIP, g.NodeName(dev1.NodeID), ifc.Name(), a,
					g.NodeName(dev1.NodeID), if1.Name(), if1.IP())
			if err := if1.Merge(ifc); err != nil {
				return err
			}
		}
	}
	return nil
}

// midPass merges the devices behind one MID entry per node. Devices already
// merged elsewhere are reported and left alone.
func (g *Graph) midPass() error {
	for _, key := range g.midKeys() {
		nodes := map[int]*Device{}
		if d := g.deviceOf(key); d != nil {
			d.MIDIP = key
			nodes[d.NodeID] = d
		} else {
			logs.Event(logs.EvMID).WithField("ip", key.String()).Errorf("key %s from mid has no device", key)
		}
		aliases := slices.Clone(g.mid[key])
		addr.SortByValue(aliases)
		for _, a := range aliases {
			d := g.deviceOf(a)
			if d == nil {
				logs.Event(logs.EvMID).WithField("ip", a.String()).Errorf("%s from mid %s has no device", a, key)
				continue
			}
			d.MIDIP = key
			nd, ok := nodes[d.NodeID]
			if !ok {
				nodes[d.NodeID] = d
				continue
			}
			if d == nd {
				continue
			}
			if d.Merged() {
				if d.MergedInto() != nd {
					logs.Event(logs.EvMerge).WithField("dev", d.ID).
						Errorf("%s already merged to %s not merging to %s", d, d.MergedInto(), nd)
				}
				continue
			}
			if nd.Merged() {
				logs.Event(logs.EvMerge).WithField("dev", nd.ID).Errorf("%s already merged", nd)
				continue
			}
			g.logMerge("MID", key, d, nd)
			if err := nd.Merge(d); err != nil {
				return err
			}
		}
		if len(nodes) > 1 {
			logs.Event(logs.EvMID).WithField("ip", key.String()).Warnf("mid %s expands to %d nodes", key, len(nodes))
		}
	}
	return nil
}

// deviceOf is the redeemer device of ip a, nil when the row has none.
func (g *Graph) deviceOf(a addr.Address) *Device {
	ip, ok := g.ByIP[a]
	if !ok || ip.IDDevices == 0 {
		return nil
	}
	return g.Devices[ip.IDDevices]
}
