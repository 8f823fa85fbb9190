package reconcile

import (
	"testing"
	"time"

	"ffconvert/internal/db"
	"ffconvert/internal/ipam"
	"ffconvert/internal/logs"
	"ffconvert/internal/models"
	"ffconvert/internal/repo"
	"ffconvert/internal/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *repo.Scope {
	t.Helper()
	d, err := db.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(d))
	s, err := repo.NewScope(d)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// emitterFor reserves the graph's networks and creates its nodes.
func emitterFor(t *testing.T, s *repo.Scope, g *Graph) *Emitter {
	t.Helper()
	require.NoError(t, ipam.NewRepo(s).ReserveNets(g.IP4Nets, nil))
	nodes := map[int]*models.Node{}
	for id, n := range g.Nodes {
		node := &models.Node{Name: n.Name, LegacyID: id, OwnerID: 1, ManagerID: 1}
		require.NoError(t, s.Create(node))
		nodes[id] = node
	}
	e, err := NewEmitter(s, nodes)
	require.NoError(t, err)
	return e
}

func twoDeviceGraph(t *testing.T) *Graph {
	created := time.Date(2009, 5, 1, 10, 0, 0, 0, time.UTC)
	ds := &source.Dataset{
		Nodes: []source.Node{{ID: 10, Name: "kirche"}},
		Devices: []source.Device{
			{ID: 1, Name: "omni", IDNodes: 10, Hardware: "WRT54GL", Comment: "am Dach", Created: created},
			{ID: 2, Name: "sektor", IDNodes: 10},
		},
		IPs: []source.IP{
			ipRow(1, "193.238.158.1", 1),
			ipRow(2, "193.238.158.2", 2),
		},
	}
	snap := source.Snapshot{
		"193.238.158.1": {Interfaces: map[string]*source.SpiderInterface{
			"eth0": {Inet4: []source.Inet4{{IP: "193.238.158.1"}}},
			"wlan0": {IsWLAN: true,
				WLAN:  &source.WLANInfo{Mode: "Ad-Hoc", Standard: "802.11g", Channel: "6", SSID: `wien\x09funkfeuer`, BSSID: "02:ca:ff:ee:ba:be"},
				Inet4: []source.Inet4{{IP: "193.238.158.2"}}},
		}},
	}
	return New(ds, nil, spiderOf(t, snap), testNets)
}

func TestEndToEndSpiderMerge(t *testing.T) {
	h := capture(t)
	s := newStore(t)
	g := twoDeviceGraph(t)
	require.NoError(t, g.BuildDeviceStructure())
	require.NoError(t, g.HNAPass())
	e := emitterFor(t, s, g)

	n, err := g.CreateIPsAndDevices(e)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	merges := events(h, logs.EvMerge)
	require.Len(t, merges, 1)
	assert.Equal(t, 2, merges[0].Data["dev"])
	assert.Equal(t, 1, merges[0].Data["into"])
	assert.Contains(t, merges[0].Message, "Merging device kirche.sektor to kirche.omni")

	var devs []models.NetDevice
	require.NoError(t, s.Query(&devs, "", nil))
	require.Len(t, devs, 1)
	assert.Equal(t, "omni", devs[0].Name)
	assert.Equal(t, "Hardware: WRT54GL\nKommentar: am Dach", devs[0].Desc)
	assert.Equal(t, "1,2", devs[0].LegacyIDs)
	assert.True(t, devs[0].CreatedAt.Equal(time.Date(2009, 5, 1, 10, 0, 0, 0, time.UTC)))

	var binds []models.InterfaceInNetwork
	require.NoError(t, s.Query(&binds, "address", nil))
	require.Len(t, binds, 2)
	assert.Equal(t, "193.238.158.1", binds[0].Address)
	assert.Equal(t, 32, binds[0].MaskLen)

	var ifs []models.NetInterface
	require.NoError(t, s.Query(&ifs, "name", nil))
	require.Len(t, ifs, 2)
	assert.Equal(t, "eth0", ifs[0].Name)
	assert.Equal(t, models.InterfaceWired, ifs[0].Kind)
	w := ifs[1]
	assert.Equal(t, "wlan0", w.Name)
	assert.Equal(t, models.InterfaceWireless, w.Kind)
	assert.Equal(t, "AdHoc", w.Mode)
	assert.Equal(t, "wien\tfunkfeuer", w.ESSID)
	assert.Equal(t, "02:ca:ff:ee:ba:be", w.BSSID)
	assert.Equal(t, "Spider Interfaces: wlan0\nSpider IP: 193.238.158.1", w.Desc)
	require.NotNil(t, w.StandardID)

	var chans []models.InterfaceChannel
	require.NoError(t, s.Query(&chans, "", "interface_id = ?", w.ID))
	assert.Len(t, chans, 1)

	// host reservations hang below the ip's network
	net, err := e.Nets.Instance(mustNet(t, "193.238.158.0/24"))
	require.NoError(t, err)
	require.NotNil(t, net)
	kids, err := e.Nets.Children(net.ID)
	require.NoError(t, err)
	assert.Len(t, kids, 2)

	for _, ip := range g.ByIP {
		assert.True(t, ip.Done())
	}
}

func TestCreateTwiceFails(t *testing.T) {
	capture(t)
	s := newStore(t)
	g := twoDeviceGraph(t)
	require.NoError(t, g.BuildDeviceStructure())
	e := emitterFor(t, s, g)

	_, err := g.CreateIPsAndDevices(e)
	require.NoError(t, err)
	_, err = g.Devices[1].Create(e)
	assert.ErrorIs(t, err, ErrAlreadyCreated)
	_, err = g.Devices[2].Create(e)
	assert.ErrorIs(t, err, ErrMergedAway)
}

func TestCreateWithoutNodeIsSkipped(t *testing.T) {
	h := capture(t)
	s := newStore(t)
	g := New(&source.Dataset{
		Devices: []source.Device{{ID: 1, Name: "lost", IDNodes: 99}},
		IPs:     []source.IP{ipRow(1, "193.238.158.1", 1)},
	}, nil, nil, testNets)
	require.NoError(t, g.BuildDeviceStructure())
	e := emitterFor(t, s, g)

	n, err := g.CreateIPsAndDevices(e)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NotEmpty(t, events(h, logs.EvDevice))
	assert.False(t, g.ByIP[mustNet(t, "193.238.158.1")].Done())
}

func TestLongSSIDAndBadBSSIDAreDropped(t *testing.T) {
	capture(t)
	s := newStore(t)
	g := twoDeviceGraph(t)
	g.spider.Ifaces[mustNet(t, "193.238.158.2")].WLAN = &source.WLANInfo{
		SSID:  "this-ssid-is-much-longer-than-thirty-two-chars",
		BSSID: "02:ca:ff",
	}
	require.NoError(t, g.BuildDeviceStructure())
	e := emitterFor(t, s, g)
	_, err := g.CreateIPsAndDevices(e)
	require.NoError(t, err)

	var w models.NetInterface
	ok, err := s.Instance(&w, "kind = ?", models.InterfaceWireless)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, w.ESSID)
	assert.Empty(t, w.BSSID)
	assert.Nil(t, w.StandardID)
}
