package source

import (
	"bytes"
	"strings"
	"testing"

	"ffconvert/internal/addr"
	"ffconvert/internal/logs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSpider = `{
  "193.238.158.8": {
    "interfaces": {
      "eth0": {"inet4": [{"ip": "193.238.158.8"}, {"ip": "10.0.0.1"}]},
      "wlan0": {"is_wlan": true, "wlan_info": {"mode": "Ad-Hoc", "channel": "6", "ssid": "wien.funkfeuer.at"},
                "inet4": [{"ip": "193.238.158.9"}]},
      "br0": {"inet4": [{"ip": "193.238.158.9"}, {"ip": "193.238.158.10"}]}
    }
  },
  "193.238.158.30": {"interfaces": {"eth0": {"inet4": [{"ip": "193.238.158.31"}, {"ip": "193.238.158.8"}]}}},
  "193.238.158.99": {"error": "timeout"}
}`

func TestLoadSpiderPlainAndSnappy(t *testing.T) {
	snap, err := LoadSpider(strings.NewReader(sampleSpider))
	require.NoError(t, err)
	require.Len(t, snap, 3)
	assert.Equal(t, "wlan0", snap["193.238.158.8"].Interfaces["wlan0"].Name)

	var buf bytes.Buffer
	require.NoError(t, WriteSpider(&buf, snap, true))
	again, err := LoadSpider(&buf)
	require.NoError(t, err)
	assert.Len(t, again, 3)
	assert.True(t, again["193.238.158.8"].Interfaces["wlan0"].IsWLAN)
}

func TestIndexSpider(t *testing.T) {
	logs.Discard()
	snap, err := LoadSpider(strings.NewReader(sampleSpider))
	require.NoError(t, err)
	ix := IndexSpider(snap, map[string][]string{"193.238.158.8": {"193.238.158.10"}})

	main := snap["193.238.158.8"]
	other := snap["193.238.158.30"]

	// unroutable and ignored addresses are not indexed
	assert.NotContains(t, ix.Devs, addr.MustParse("10.0.0.1"))
	assert.NotContains(t, ix.Devs, addr.MustParse("193.238.158.10"))

	// br0 sorts before wlan0 and claims .9 first; wlan0 folds into it
	br0 := ix.Ifaces[addr.MustParse("193.238.158.9")]
	assert.Equal(t, "br0", br0.Name)
	assert.Equal(t, []string{"br0", "wlan0"}, br0.Names)
	assert.True(t, br0.IsWLAN)
	require.NotNil(t, br0.WLAN)
	assert.Equal(t, "6", br0.WLAN.Channel)

	// .8 belongs to the first device; the second one does not get it
	assert.Same(t, main, ix.Devs[addr.MustParse("193.238.158.8")])

	// the second device's main ip is on none of its interfaces
	assert.Same(t, other, ix.Devs[addr.MustParse("193.238.158.30")])
	assert.Equal(t, "unknown", ix.Ifaces[addr.MustParse("193.238.158.30")].Name)

	assert.NotContains(t, ix.Devs, addr.MustParse("193.238.158.99"))
	assert.Equal(t, []*SpiderDevice{main, other}, ix.Devices())
	assert.Equal(t,
		[]addr.Address{addr.MustParse("193.238.158.8"), addr.MustParse("193.238.158.9")},
		ix.Addresses(main))
}
