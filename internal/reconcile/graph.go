package reconcile

import (
	"fmt"
	"maps"
	"slices"

	"ffconvert/internal/addr"
	"ffconvert/internal/logs"
	"ffconvert/internal/source"

	"github.com/sirupsen/logrus"
)

// Graph holds the consolidated devices and the lookup tables the merge
// passes work on.
type Graph struct {
	Devices    map[int]*Device
	DevsByNode map[int][]*Device
	Nodes      map[int]*source.Node
	ByIP       map[addr.Address]*IP

	// IP4Nets are the known IPv4 networks with their comment; networks
	// first seen in ip rows are added with an empty comment.
	IP4Nets map[addr.Address]string
	// ReservedNets collects HNA destinations that need a reservation.
	ReservedNets map[addr.Address]bool

	olsrNodes map[addr.Address]bool
	mid       map[addr.Address][]addr.Address
	revMID    map[addr.Address]bool
	hna       map[addr.Address][]addr.Address
	spider    *source.SpiderIndex
	rows      []source.IP
}

// New prepares a graph over the loaded sources. olsr and spider may be nil.
func New(ds *source.Dataset, olsr *source.OLSR, spider *source.SpiderIndex, ip4nets map[addr.Address]string) *Graph {
	g := &Graph{
		Devices:      map[int]*Device{},
		DevsByNode:   map[int][]*Device{},
		Nodes:        map[int]*source.Node{},
		ByIP:         map[addr.Address]*IP{},
		IP4Nets:      maps.Clone(ip4nets),
		ReservedNets: map[addr.Address]bool{},
		olsrNodes:    map[addr.Address]bool{},
		mid:          map[addr.Address][]addr.Address{},
		revMID:       map[addr.Address]bool{},
		hna:          map[addr.Address][]addr.Address{},
		spider:       spider,
	}
	if g.IP4Nets == nil {
		g.IP4Nets = map[addr.Address]string{}
	}
	if g.spider == nil {
		g.spider = &source.SpiderIndex{
			Devs:   map[addr.Address]*source.SpiderDevice{},
			Ifaces: map[addr.Address]*source.SpiderInterface{},
		}
	}
	if olsr != nil {
		g.olsrNodes = olsr.Nodes()
		for k, v := range olsr.MID {
			g.mid[k] = slices.Clone(v)
			for _, a := range v {
				g.revMID[a] = true
			}
		}
		g.hna = olsr.HNA
	}
	if ds != nil {
		for i := range ds.Nodes {
			g.Nodes[ds.Nodes[i].ID] = &ds.Nodes[i]
		}
		for i := range ds.Devices {
			rd := &ds.Devices[i]
			if _, dup := g.Devices[rd.ID]; dup {
				logs.Event(logs.EvDevice).WithField("dev", rd.ID).Warnf("duplicate device row %d ignored", rd.ID)
				continue
			}
			d := newDevice(rd)
			g.Devices[rd.ID] = d
			g.DevsByNode[rd.IDNodes] = append(g.DevsByNode[rd.IDNodes], d)
		}
		g.rows = ds.IPs
	}
	return g
}

// NodeName is the redeemer name of node id, or its number.
func (g *Graph) NodeName(id int) string {
	if n, ok := g.Nodes[id]; ok {
		return n.Name
	}
	return fmt.Sprint(id)
}

// SortedDevices returns every device, merged ones included, by id.
func (g *Graph) SortedDevices() []*Device {
	ids := slices.Sorted(maps.Keys(g.Devices))
	out := make([]*Device, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.Devices[id])
	}
	return out
}

// BuildDeviceStructure attaches the ip rows, checks the OLSR tables against
// them and runs the spider and MID merge passes.
func (g *Graph) BuildDeviceStructure() error {
	if err := g.attachIPs(); err != nil {
		return err
	}
	if err := g.checkOLSR(); err != nil {
		return err
	}
	if err := g.spiderPass(); err != nil {
		return err
	}
	return g.midPass()
}

func (g *Graph) attachIPs() error {
	for _, row := range g.rows {
		ip, err := newIP(row)
		if err != nil {
			logs.Event(logs.EvNetwork).WithField("ip", row.IP).Warnf("ip row %d: %v", row.ID, err)
			continue
		}
		log := logs.Event(logs.EvNetwork).WithField("ip", ip.Addr.String())
		if prev, dup := g.ByIP[ip.Addr]; dup {
			log.Warnf("IP %s: row %d duplicates row %d, ignored", ip.Addr, row.ID, prev.ID)
			continue
		}
		g.ByIP[ip.Addr] = ip
		if row.IDNodes != 0 {
			log.WithField("node", row.IDNodes).Warnf("IP %s %d has node ID %d", ip.Addr, row.ID, row.IDNodes)
		}
		if row.IDMembers != 0 && row.IDMembers != 1 {
			log.WithField("member", row.IDMembers).Warnf("IP %s %d has member ID %d", ip.Addr, row.ID, row.IDMembers)
		}
		if row.IDDevices != 0 {
			d, ok := g.Devices[row.IDDevices]
			if !ok {
				log.WithField("dev", row.IDDevices).Errorf("IP %s: device %d not found", ip.Addr, row.IDDevices)
			} else if err := d.addIP(ip); err != nil {
				return err
			}
		}
		net, err := ip.Network()
		if err != nil {
			log.Warnf("IP %s: bad cidr %d", ip.Addr, row.CIDR)
			continue
		}
		if _, ok := g.IP4Nets[net]; !ok {
			log.Warnf("Adding network reservation: %s", net)
			g.IP4Nets[net] = ""
		}
	}
	return nil
}

func (g *Graph) checkOLSR() error {
	topo := slices.Collect(maps.Keys(g.olsrNodes))
	addr.SortByValue(topo)
	for _, a := range topo {
		if _, ok := g.ByIP[a]; !ok {
			logs.Event(logs.EvOLSR).WithField("ip", a.String()).Warnf("ip %s from olsr topo not in ips", a)
			delete(g.olsrNodes, a)
		}
	}

	var missing []addr.Address
	for _, k := range g.midKeys() {
		if _, ok := g.ByIP[k]; !ok {
			logs.Event(logs.EvMID).WithField("ip", k.String()).Warnf("key ip %s from olsr mid not in ips", k)
			missing = append(missing, k)
		}
		kept := g.mid[k][:0]
		for _, a := range g.mid[k] {
			if _, ok := g.ByIP[a]; !ok {
				logs.Event(logs.EvMID).WithField("ip", a.String()).Warnf("ip %s from olsr mid not in ips", a)
				continue
			}
			kept = append(kept, a)
		}
		g.mid[k] = kept
	}
	if len(missing) > 0 {
		return fmt.Errorf("mid keys %v not in ips: %w", missing, ErrInvariant)
	}
	return nil
}

func (g *Graph) midKeys() []addr.Address {
	keys := slices.Collect(maps.Keys(g.mid))
	addr.SortByValue(keys)
	return keys
}

// OLSRNode reports whether a survived the topology check.
func (g *Graph) OLSRNode(a addr.Address) bool { return g.olsrNodes[a] }

func (g *Graph) logMerge(pass string, via addr.Address, from, to *Device) {
	logs.Event(logs.EvMerge).WithFields(logrus.Fields{
		"pass": pass,
		"via":  via.String(),
		"dev":  from.ID,
		"into": to.ID,
	}).Infof("%s %-15s: Merging device %s.%s to %s.%s",
		pass, via, g.NodeName(from.NodeID), from.Name, g.NodeName(to.NodeID), to.Name)
}
