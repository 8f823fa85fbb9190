package reconcile

import (
	"testing"

	"ffconvert/internal/addr"
	"ffconvert/internal/logs"
	"ffconvert/internal/source"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *test.Hook {
	t.Helper()
	logs.Discard()
	h := test.NewLocal(logs.Logger)
	t.Cleanup(func() { logs.Logger.ReplaceHooks(logrus.LevelHooks{}) })
	return h
}

func events(h *test.Hook, ev string) []*logrus.Entry {
	var out []*logrus.Entry
	for _, e := range h.AllEntries() {
		if e.Data["event"] == ev {
			out = append(out, e)
		}
	}
	return out
}

var testNets = map[addr.Address]string{addr.MustParse("193.238.156.0/22"): "Funkfeuer Wien"}

func ipRow(id int, ip string, dev int) source.IP {
	return source.IP{ID: id, IP: ip, CIDR: 24, IDDevices: dev, IDMembers: 1}
}

func TestBuildAttachesIPs(t *testing.T) {
	h := capture(t)
	ds := &source.Dataset{
		Nodes:   []source.Node{{ID: 10, Name: "kirche"}},
		Devices: []source.Device{{ID: 1, Name: "omni", IDNodes: 10}},
		IPs: []source.IP{
			ipRow(1, "193.238.158.1", 1),
			ipRow(2, "193.238.158.2", 1),
			{ID: 3, IP: "193.238.159.9", CIDR: 24, IDNodes: 10, IDMembers: 7},
			ipRow(4, "193.238.158.1", 1),
		},
	}
	g := New(ds, nil, nil, testNets)
	require.NoError(t, g.BuildDeviceStructure())

	d := g.Devices[1]
	assert.Equal(t, 2, d.IPCount())
	assert.Len(t, g.ByIP, 3)
	assert.Contains(t, g.IP4Nets, addr.MustParse("193.238.158.0/24"))
	assert.Contains(t, g.IP4Nets, addr.MustParse("193.238.159.0/24"))
	assert.Equal(t, "Funkfeuer Wien", g.IP4Nets[addr.MustParse("193.238.156.0/22")])

	var msgs []string
	for _, e := range events(h, logs.EvNetwork) {
		msgs = append(msgs, e.Message)
	}
	assert.Contains(t, msgs, "Adding network reservation: 193.238.158.0/24")
	assert.Contains(t, msgs, "IP 193.238.159.9 3 has node ID 10")
	assert.Contains(t, msgs, "IP 193.238.159.9 3 has member ID 7")
	assert.Contains(t, msgs, "IP 193.238.158.1: row 4 duplicates row 1, ignored")
}

func olsrOf(topo []string, mid map[string][]string) *source.OLSR {
	o := &source.OLSR{
		Topo: source.Topology{
			Forward: map[addr.Address]map[addr.Address]bool{},
			Reverse: map[addr.Address]map[addr.Address]bool{},
		},
		MID: map[addr.Address][]addr.Address{},
		HNA: map[addr.Address][]addr.Address{},
	}
	for _, s := range topo {
		o.Topo.Forward[addr.MustParse(s)] = map[addr.Address]bool{}
	}
	for k, v := range mid {
		for _, a := range v {
			o.MID[addr.MustParse(k)] = append(o.MID[addr.MustParse(k)], addr.MustParse(a))
		}
	}
	return o
}

func TestConsistencyCheck(t *testing.T) {
	h := capture(t)
	ds := &source.Dataset{
		Devices: []source.Device{{ID: 1, Name: "a", IDNodes: 10}},
		IPs:     []source.IP{ipRow(1, "193.238.158.1", 1)},
	}
	o := olsrOf([]string{"193.238.158.1", "193.238.158.77"},
		map[string][]string{"193.238.158.1": {"193.238.158.88"}})
	g := New(ds, o, nil, testNets)
	require.NoError(t, g.BuildDeviceStructure())

	assert.True(t, g.OLSRNode(addr.MustParse("193.238.158.1")))
	assert.False(t, g.OLSRNode(addr.MustParse("193.238.158.77")), "dropped from topology")
	assert.Empty(t, g.mid[addr.MustParse("193.238.158.1")], "unknown alias removed")
	assert.Len(t, events(h, logs.EvOLSR), 1)
	assert.Len(t, events(h, logs.EvMID), 1)
}

func TestMissingMIDKeyIsFatal(t *testing.T) {
	capture(t)
	ds := &source.Dataset{
		Devices: []source.Device{{ID: 1, Name: "a", IDNodes: 10}},
		IPs:     []source.IP{ipRow(1, "193.238.158.1", 1)},
	}
	o := olsrOf(nil, map[string][]string{"193.238.158.99": {"193.238.158.1"}})
	err := New(ds, o, nil, testNets).BuildDeviceStructure()
	assert.ErrorIs(t, err, ErrInvariant)
}

func midDataset() *source.Dataset {
	return &source.Dataset{
		Nodes: []source.Node{{ID: 20, Name: "sued"}, {ID: 21, Name: "west"}},
		Devices: []source.Device{
			{ID: 3, Name: "sued-a", IDNodes: 20},
			{ID: 4, Name: "sued-b", IDNodes: 20},
			{ID: 5, Name: "west", IDNodes: 21},
			{ID: 6, Name: "sued-c", IDNodes: 20},
		},
		IPs: []source.IP{
			ipRow(3, "193.238.158.3", 3),
			ipRow(4, "193.238.158.4", 4),
			ipRow(5, "193.238.158.5", 5),
			ipRow(6, "193.238.158.6", 6),
		},
	}
}

func TestMIDPass(t *testing.T) {
	h := capture(t)
	o := olsrOf([]string{"193.238.158.3"},
		map[string][]string{"193.238.158.3": {"193.238.158.4", "193.238.158.5"}})
	g := New(midDataset(), o, nil, testNets)
	require.NoError(t, g.BuildDeviceStructure())

	assert.Same(t, g.Devices[3], g.Devices[4].MergedInto())
	assert.False(t, g.Devices[5].Merged(), "other node is not merged")
	for _, id := range []int{3, 4, 5} {
		assert.Equal(t, addr.MustParse("193.238.158.3"), g.Devices[id].MIDIP)
	}
	merges := events(h, logs.EvMerge)
	require.Len(t, merges, 1)
	assert.Equal(t, 4, merges[0].Data["dev"])
	assert.Equal(t, 3, merges[0].Data["into"])

	var warned bool
	for _, e := range events(h, logs.EvMID) {
		warned = warned || e.Message == "mid 193.238.158.3 expands to 2 nodes"
	}
	assert.True(t, warned)
}

func TestMIDPassSkipsMergedElsewhere(t *testing.T) {
	h := capture(t)
	o := olsrOf(nil, map[string][]string{"193.238.158.3": {"193.238.158.4"}})
	g := New(midDataset(), o, nil, testNets)
	require.NoError(t, g.attachIPs())
	require.NoError(t, g.checkOLSR())
	require.NoError(t, g.Devices[6].Merge(g.Devices[4]))

	require.NoError(t, g.midPass())
	assert.Same(t, g.Devices[6], g.Devices[4].MergedInto(), "left where it was")
	assert.Empty(t, g.Devices[3].MergedDevs())

	var reported bool
	for _, e := range events(h, logs.EvMerge) {
		reported = reported || e.Level == logrus.ErrorLevel
	}
	assert.True(t, reported)
}

func spiderOf(t *testing.T, snap source.Snapshot) *source.SpiderIndex {
	t.Helper()
	for _, d := range snap {
		for name, sif := range d.Interfaces {
			sif.Name = name
		}
	}
	return source.IndexSpider(snap, nil)
}

func TestSpiderPassFoldsInterfaces(t *testing.T) {
	capture(t)
	ds := &source.Dataset{
		Nodes: []source.Node{{ID: 10, Name: "kirche"}},
		Devices: []source.Device{
			{ID: 1, Name: "omni", IDNodes: 10},
			{ID: 2, Name: "omni-5ghz", IDNodes: 10},
			{ID: 3, Name: "sektor", IDNodes: 10},
		},
		IPs: []source.IP{
			ipRow(1, "193.238.158.1", 1),
			ipRow(2, "193.238.158.2", 2),
			ipRow(3, "193.238.158.3", 3),
		},
	}
	snap := source.Snapshot{
		"193.238.158.1": {Interfaces: map[string]*source.SpiderInterface{
			"eth0": {Inet4: []source.Inet4{{IP: "193.238.158.1"}}},
			"wlan0": {IsWLAN: true, WLAN: &source.WLANInfo{Mode: "Ad-Hoc", Channel: "6"},
				Inet4: []source.Inet4{{IP: "193.238.158.2"}, {IP: "193.238.158.3"}}},
		}},
	}
	g := New(ds, nil, spiderOf(t, snap), testNets)
	require.NoError(t, g.BuildDeviceStructure())

	d := g.Devices[1]
	assert.True(t, g.Devices[2].Merged())
	assert.True(t, g.Devices[3].Merged())
	ifs := d.Interfaces()
	require.Len(t, ifs, 2)

	assert.Equal(t, []string{"eth0"}, ifs[0].Names())
	assert.False(t, ifs[0].IsWLAN())

	w := ifs[1]
	assert.Equal(t, addr.MustParse("193.238.158.2"), w.IP())
	assert.True(t, w.IsWLAN())
	assert.Equal(t, "6", w.WLAN().Channel)
	assert.Len(t, w.IPs(), 2)
	assert.Equal(t, addr.MustParse("193.238.158.1"), w.SpiderIP())
	assert.Equal(t, "wlan0", w.IfName())
	assert.Equal(t, "omni-5ghz", w.Name())
	assert.Equal(t, "omni", d.ShortestName())
}

func TestHNAPass(t *testing.T) {
	capture(t)
	ds := &source.Dataset{
		Devices: []source.Device{{ID: 7, Name: "gw", IDNodes: 10}},
		IPs:     []source.IP{ipRow(7, "193.238.158.7", 7)},
	}
	o := olsrOf(nil, nil)
	o.HNA[addr.MustParse("193.238.158.7/32")] = nil
	o.HNA[addr.MustParse("193.238.159.16/28")] = nil
	o.HNA[addr.MustParse("0.0.0.0/0")] = nil
	g := New(ds, o, nil, testNets)
	require.NoError(t, g.BuildDeviceStructure())
	require.NoError(t, g.HNAPass())

	assert.True(t, g.Devices[7].HNA)
	assert.Equal(t, []addr.Address{addr.MustParse("193.238.159.16/28")}, g.ReservedHNA())
}

func TestHNARangeWithMIDAliasIsFatal(t *testing.T) {
	capture(t)
	ds := &source.Dataset{
		Devices: []source.Device{{ID: 1, Name: "a", IDNodes: 10}, {ID: 2, Name: "b", IDNodes: 10}},
		IPs:     []source.IP{ipRow(1, "193.238.158.1", 1), ipRow(2, "193.238.159.17", 2)},
	}
	o := olsrOf(nil, map[string][]string{"193.238.158.1": {"193.238.159.17"}})
	o.HNA[addr.MustParse("193.238.159.16/28")] = nil
	g := New(ds, o, nil, testNets)
	require.NoError(t, g.BuildDeviceStructure())
	assert.ErrorIs(t, g.HNAPass(), ErrInvariant)
}

func mustNet(t *testing.T, s string) addr.Address {
	t.Helper()
	a, err := addr.Parse(s)
	require.NoError(t, err)
	return a
}
