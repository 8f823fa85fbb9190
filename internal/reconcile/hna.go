package reconcile

import (
	"fmt"
	"maps"
	"slices"

	"ffconvert/internal/addr"
	"ffconvert/internal/logs"
)

// HNAPass looks at every HNA destination inside one of the known IPv4
// networks. Host routes outside the topology flag their device; everything
// else ends up in ReservedNets.
func (g *Graph) HNAPass() error {
	dests := slices.Collect(maps.Keys(g.hna))
	addr.Sort(dests)
	for _, dest := range dests {
		if !g.insideIP4Nets(dest) {
			logs.Logger.Debugf("HNA: %s not in our networks", dest)
			continue
		}
		log := logs.Event(logs.EvHNA).WithField("ip", dest.String())
		if dest.IsHost() {
			if g.olsrNodes[dest] {
				continue
			}
			_, ok := g.ByIP[dest]
			dev := g.deviceOf(dest)
			switch {
			case !ok:
				log.Warnf("IP %s not in DB", dest)
			case dev != nil:
				d, err := dev.Canonical()
				if err != nil {
					return err
				}
				d.HNA = true
			default:
				g.ReservedNets[dest] = true
			}
			continue
		}
		g.ReservedNets[dest] = true
		for h := range dest.Hosts() {
			if g.olsrNodes[h] {
				log.Warnf("IP %s from hna-range %s also in olsr nodes", h, dest)
			}
			if g.revMID[h] {
				return fmt.Errorf("hna range %s: %s is a mid alias: %w", dest, h, ErrInvariant)
			}
		}
	}
	for _, n := range g.ReservedHNA() {
		logs.Logger.Debugf("HNA route to: %s", n)
	}
	return nil
}

func (g *Graph) insideIP4Nets(a addr.Address) bool {
	for n := range g.IP4Nets {
		if n.Contains(a) {
			return true
		}
	}
	return false
}

// ReservedHNA returns ReservedNets broadest first.
func (g *Graph) ReservedHNA() []addr.Address {
	out := slices.Collect(maps.Keys(g.ReservedNets))
	addr.Sort(out)
	return out
}
