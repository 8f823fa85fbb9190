package reconcile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"ffconvert/internal/ipam"
	"ffconvert/internal/logs"
	"ffconvert/internal/models"
	"ffconvert/internal/repo"
)

// DeviceTypeGeneric is the only device type the converter knows.
const DeviceTypeGeneric = "Generic"

var wlanModes = map[string]string{
	"ad-hoc":  "AdHoc",
	"adhoc":   "AdHoc",
	"managed": "Client",
	"client":  "Client",
	"master":  "AP",
	"ap":      "AP",
}

// Emitter writes canonical devices into the store. Nodes maps redeemer
// node ids to the nodes created for them.
type Emitter struct {
	Store repo.Store
	Nets  *ipam.Repo
	Nodes map[int]*models.Node

	devType *models.NetDeviceType
}

func NewEmitter(s repo.Store, nodes map[int]*models.Node) (*Emitter, error) {
	e := &Emitter{Store: s, Nets: ipam.NewRepo(s), Nodes: nodes}
	t := &models.NetDeviceType{}
	ok, err := s.Instance(t, "name = ?", DeviceTypeGeneric)
	if err != nil {
		return nil, err
	}
	if !ok {
		t = &models.NetDeviceType{Name: DeviceTypeGeneric}
		if err := s.Create(t); err != nil {
			return nil, err
		}
	}
	e.devType = t
	return e, nil
}

// CreateIPsAndDevices emits every live device once. Merged devices are
// reached through their targets only.
func (g *Graph) CreateIPsAndDevices(e *Emitter) (int, error) {
	n := 0
	for _, d := range g.SortedDevices() {
		if d.Merged() {
			continue
		}
		nd, err := d.Create(e)
		if err != nil {
			return n, err
		}
		if nd != nil {
			n++
		}
	}
	return n, nil
}

// Create materializes d with its interfaces and ip bindings. It returns
// nil without error when the node of d was not created.
func (d *Device) Create(e *Emitter) (*models.NetDevice, error) {
	if d.created {
		return nil, fmt.Errorf("%s: %w", d, ErrAlreadyCreated)
	}
	if d.into != nil {
		return nil, fmt.Errorf("%s to %s: %w", d, d.into, ErrMergedAway)
	}
	d.created = true
	log := logs.Event(logs.EvDevice).WithField("dev", d.ID)

	node, ok := e.Nodes[d.NodeID]
	if !ok {
		log.WithField("node", d.NodeID).Errorf("%s: node %d not created, device skipped", d, d.NodeID)
		return nil, nil
	}
	if d.ifIdx > 1 {
		log.Warnf("dev %s.%s has %d ips in redeemer", node.Name, d.Name, d.ifIdx)
	}
	for _, m := range d.merged {
		if m.ifIdx > 1 {
			log.WithField("merged", m.ID).Warnf("dev %s.%s has %d ips in redeemer", node.Name, m.Name, m.ifIdx)
		}
	}

	nd := &models.NetDevice{
		TypeID:    e.devType.ID,
		NodeID:    node.ID,
		Name:      d.ShortestName(),
		HNA:       d.HNA,
		LegacyIDs: joinIDs(d.RawIDs()),
	}
	if rd, ok := d.Raw(); ok {
		var desc []string
		for _, kv := range [][2]string{
			{"Hardware", rd.Hardware},
			{"Antenne", rd.Antenna},
			{"Kommentar", rd.Comment},
		} {
			if kv[1] != "" {
				desc = append(desc, kv[0]+": "+kv[1])
			}
		}
		nd.Desc = strings.Join(desc, "\n")
		nd.CreatedAt = rd.Created
		nd.UpdatedAt = rd.Changed
		if nd.UpdatedAt.IsZero() {
			nd.UpdatedAt = rd.Created
		}
		if rd.IDMembers != 0 {
			log.WithField("member", rd.IDMembers).Warnf("%s has member %d", d, rd.IDMembers)
		}
	}
	logs.Logger.Debugf("dev: %d %s", d.ID, nd.Name)
	if err := e.Store.Create(nd); err != nil {
		return nil, err
	}
	d.net = nd

	for _, i := range d.Interfaces() {
		if err := i.create(e, nd, node.ManagerID); err != nil {
			return nil, err
		}
	}
	return nd, e.Store.Commit()
}

func joinIDs(ids []int) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = strconv.Itoa(id)
	}
	return strings.Join(s, ",")
}

func (i *Interface) create(e *Emitter, dev *models.NetDevice, manager uint) error {
	if i.into != nil {
		return fmt.Errorf("%s: %w", i, ErrMergedAway)
	}
	if i.net != nil {
		return fmt.Errorf("%s: %w", i, ErrAlreadyCreated)
	}
	var desc []string
	if len(i.names) > 0 {
		desc = append(desc, "Spider Interfaces: "+strings.Join(i.names, ", "))
	}
	if i.spiderIP.IsValid() {
		desc = append(desc, "Spider IP: "+i.spiderIP.String())
	}
	ni := &models.NetInterface{
		DeviceID: dev.ID,
		Kind:     models.InterfaceWired,
		Name:     i.IfName(),
		Desc:     strings.Join(desc, "\n"),
	}
	var chanNo string
	if i.isWLAN {
		ni.Kind = models.InterfaceWireless
		if w := i.wlan; w != nil {
			if w.Standard != "" {
				std, err := e.standard(w.Standard)
				if err != nil {
					return err
				}
				ni.StandardID = &std.ID
			}
			if w.Mode != "" {
				m, ok := wlanModes[strings.ToLower(w.Mode)]
				if !ok {
					logs.Event(logs.EvDevice).WithField("ip", i.ip.String()).Warnf("unknown wlan mode %q", w.Mode)
				}
				ni.Mode = m
			}
			if w.BSSID != "" {
				if len(strings.Split(w.BSSID, ":")) == 6 {
					ni.BSSID = w.BSSID
				} else {
					logs.Event(logs.EvDevice).Infof("Ignoring bssid: %s", w.BSSID)
				}
			}
			if w.SSID != "" {
				ssid := strings.ReplaceAll(w.SSID, `\x09`, "\t")
				if utf8.RuneCountInString(ssid) > 32 {
					logs.Event(logs.EvDevice).WithField("ip", i.ip.String()).Warnf("Ignoring long ssid %s", ssid)
				} else {
					ni.ESSID = ssid
				}
			}
			chanNo = w.Channel
		}
	}
	if err := e.Store.Create(ni); err != nil {
		return err
	}
	i.net = ni
	if chanNo != "" {
		ch, err := e.channel(ni.StandardID, chanNo)
		if err != nil {
			return err
		}
		if err := e.Store.Create(&models.InterfaceChannel{InterfaceID: ni.ID, ChannelID: ch.ID}); err != nil {
			return err
		}
	}

	for _, ip := range i.IPs() {
		logs.Logger.Debugf("Adding IP %s to iface: %s/%s (of dev %s)", ip.Addr, i.Name(), i.idxDev.Name, i.dev.Name)
		if err := ip.MarkDone(); err != nil {
			return err
		}
		if err := e.bind(ni, ip, i.IPName(), manager); err != nil {
			return err
		}
		if err := repo.CommitOver(e.Store, 10); err != nil {
			return err
		}
	}
	return nil
}

// bind reserves the host address of ip in its network and attaches it to ni.
func (e *Emitter) bind(ni *models.NetInterface, ip *IP, name string, manager uint) error {
	network, err := e.network(ip)
	if err != nil {
		return err
	}
	host := network
	if network.MaskLen != ip.Addr.Bits() {
		owner := manager
		host, err = e.Nets.ReserveHost(network, ip.Addr, &owner)
	}
	if errors.Is(err, ipam.ErrAlreadyReserved) {
		logs.Event(logs.EvNetwork).WithField("ip", ip.Addr.String()).Warnf("IP %s reserved twice, not bound to %s", ip.Addr, name)
		return nil
	}
	if err != nil {
		return err
	}
	return e.Store.Create(&models.InterfaceInNetwork{
		InterfaceID: ni.ID,
		NetworkID:   host.ID,
		Address:     ip.Addr.String(),
		MaskLen:     32,
		Name:        name,
	})
}

func (e *Emitter) network(ip *IP) (*models.IPNetwork, error) {
	if net, err := ip.Network(); err == nil {
		nw, err := e.Nets.Instance(net)
		if err != nil {
			return nil, err
		}
		if nw != nil {
			return nw, nil
		}
	}
	nw, err := e.Nets.Enclosing(ip.Addr)
	if err != nil {
		return nil, err
	}
	if nw == nil {
		return nil, fmt.Errorf("ip %s: no reserved network", ip.Addr)
	}
	return nw, nil
}

func (e *Emitter) standard(name string) (*models.WirelessStandard, error) {
	std := &models.WirelessStandard{}
	ok, err := e.Store.Instance(std, "name = ?", name)
	if err != nil || ok {
		return std, err
	}
	std = &models.WirelessStandard{Name: name}
	return std, e.Store.Create(std)
}

func (e *Emitter) channel(std *uint, number string) (*models.WirelessChannel, error) {
	ch := &models.WirelessChannel{}
	var (
		ok  bool
		err error
	)
	if std == nil {
		ok, err = e.Store.Instance(ch, "standard_id IS NULL AND number = ?", number)
	} else {
		ok, err = e.Store.Instance(ch, "standard_id = ? AND number = ?", *std, number)
	}
	if err != nil || ok {
		return ch, err
	}
	ch = &models.WirelessChannel{StandardID: std, Number: number}
	return ch, e.Store.Create(ch)
}
