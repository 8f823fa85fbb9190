package source

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"ffconvert/internal/addr"
	"ffconvert/internal/logs"
)

// Topology — forward (last hop -> dests) и reverse (dest -> last hops).
type Topology struct {
	Forward map[addr.Address]map[addr.Address]bool
	Reverse map[addr.Address]map[addr.Address]bool
}

// OLSR — разобранный txtinfo дамп.
type OLSR struct {
	Topo Topology
	// MID key ip -> alias ips
	MID map[addr.Address][]addr.Address
	// HNA destination network -> gateways
	HNA map[addr.Address][]addr.Address
}

func newOLSR() *OLSR {
	return &OLSR{
		Topo: Topology{
			Forward: map[addr.Address]map[addr.Address]bool{},
			Reverse: map[addr.Address]map[addr.Address]bool{},
		},
		MID: map[addr.Address][]addr.Address{},
		HNA: map[addr.Address][]addr.Address{},
	}
}

// Nodes returns every address seen in the topology table.
func (o *OLSR) Nodes() map[addr.Address]bool {
	out := map[addr.Address]bool{}
	for k := range o.Topo.Forward {
		out[k] = true
	}
	for k := range o.Topo.Reverse {
		out[k] = true
	}
	return out
}

// ParseOLSR reads olsrd txtinfo output ("Table: Topology", "Table: MID",
// "Table: HNA"); other tables and HTTP headers are ignored.
func ParseOLSR(r io.Reader) (*OLSR, error) {
	o := newOLSR()
	sc := bufio.NewScanner(r)
	table := ""
	header := false
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.HasPrefix(line, "Table: ") {
			table = strings.TrimSpace(strings.TrimPrefix(line, "Table: "))
			header = true
			continue
		}
		if strings.TrimSpace(line) == "" {
			if !header {
				table = ""
			}
			continue
		}
		if header {
			header = false
			continue
		}
		f := strings.Fields(line)
		var err error
		switch table {
		case "Topology":
			err = o.addTopo(f)
		case "MID":
			err = o.addMID(f)
		case "HNA":
			err = o.addHNA(f)
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("olsr line %d: %w", lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read olsr: %w", err)
	}
	return o, nil
}

func (o *OLSR) addTopo(f []string) error {
	if len(f) < 2 {
		return fmt.Errorf("topology: short line")
	}
	dst, err := addr.Parse(f[0])
	if err != nil {
		return err
	}
	hop, err := addr.Parse(f[1])
	if err != nil {
		return err
	}
	if o.Topo.Forward[hop] == nil {
		o.Topo.Forward[hop] = map[addr.Address]bool{}
	}
	o.Topo.Forward[hop][dst] = true
	if o.Topo.Reverse[dst] == nil {
		o.Topo.Reverse[dst] = map[addr.Address]bool{}
	}
	o.Topo.Reverse[dst][hop] = true
	return nil
}

func (o *OLSR) addMID(f []string) error {
	if len(f) < 2 {
		return fmt.Errorf("mid: short line")
	}
	key, err := addr.Parse(f[0])
	if err != nil {
		return err
	}
	for _, a := range strings.Split(strings.Join(f[1:], ";"), ";") {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		ip, err := addr.Parse(a)
		if err != nil {
			return err
		}
		o.MID[key] = append(o.MID[key], ip)
	}
	return nil
}

func (o *OLSR) addHNA(f []string) error {
	if len(f) < 2 {
		return fmt.Errorf("hna: short line")
	}
	// older olsrd prints "net<TAB>mask<TAB>gw"
	dest := f[0]
	gw := f[1]
	if !strings.Contains(dest, "/") && len(f) >= 3 {
		dest = dest + "/" + maskBits(f[1])
		gw = f[2]
	}
	d, err := addr.Parse(dest)
	if err != nil {
		return err
	}
	g, err := addr.Parse(gw)
	if err != nil {
		return err
	}
	o.HNA[d] = append(o.HNA[d], g)
	return nil
}

func maskBits(mask string) string {
	m, err := addr.Parse(mask)
	if err != nil || !m.Is4() {
		return mask
	}
	bits := 0
	for _, b := range m.Addr().As4() {
		for ; b&0x80 != 0; b <<= 1 {
			bits++
		}
	}
	return fmt.Sprint(bits)
}

// CheckMID validates the MID table against the topology: a key outside the
// topology is warned, an alias listed under two keys is an error.
func (o *OLSR) CheckMID() error {
	nodes := o.Nodes()
	seen := map[addr.Address]addr.Address{}
	for k, aliases := range o.MID {
		if !nodes[k] {
			logs.Event(logs.EvOLSR).WithField("ip", k.String()).
				Warnf("MID %s: not in OLSR topology", k)
		}
		for _, a := range aliases {
			if other, dup := seen[a]; dup && other != k {
				return fmt.Errorf("mid alias %s listed under %s and %s", a, other, k)
			}
			seen[a] = k
		}
	}
	return nil
}
