package source

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"ffconvert/internal/addr"

	"github.com/golang/snappy"
)

// snappy framing format stream identifier
var snappyMagic = []byte("\xff\x06\x00\x00sNaPpY")

type WLANInfo struct {
	Mode     string `json:"mode,omitempty"`
	Standard string `json:"standard,omitempty"`
	Channel  string `json:"channel,omitempty"`
	SSID     string `json:"ssid,omitempty"`
	BSSID    string `json:"bssid,omitempty"`
}

type Inet4 struct {
	IP        string `json:"ip"`
	Netmask   string `json:"netmask,omitempty"`
	Broadcast string `json:"bcast,omitempty"`
}

// SpiderInterface — интерфейс, как его увидел паук. Names копит имена
// интерфейсов того же устройства с общим адресом.
type SpiderInterface struct {
	Name   string    `json:"name"`
	IsWLAN bool      `json:"is_wlan,omitempty"`
	WLAN   *WLANInfo `json:"wlan_info,omitempty"`
	Inet4  []Inet4   `json:"inet4,omitempty"`

	Names  []string      `json:"-"`
	Device *SpiderDevice `json:"-"`
}

// SpiderDevice — устройство из снапшота. Error непустой: опрос не удался.
type SpiderDevice struct {
	Interfaces map[string]*SpiderInterface `json:"interfaces,omitempty"`
	Error      string                      `json:"error,omitempty"`

	MainIP addr.Address `json:"-"`
}

// SortedInterfaces by name.
func (d *SpiderDevice) SortedInterfaces() []*SpiderInterface {
	names := make([]string, 0, len(d.Interfaces))
	for n := range d.Interfaces {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]*SpiderInterface, 0, len(names))
	for _, n := range names {
		out = append(out, d.Interfaces[n])
	}
	return out
}

// Snapshot — main ip -> device.
type Snapshot map[string]*SpiderDevice

// LoadSpider reads a JSON snapshot, optionally in snappy framing.
func LoadSpider(r io.Reader) (Snapshot, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(len(snappyMagic))
	var src io.Reader = br
	if bytes.Equal(head, snappyMagic) {
		src = snappy.NewReader(br)
	}
	var snap Snapshot
	if err := json.NewDecoder(src).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode spider snapshot: %w", err)
	}
	for ip, d := range snap {
		if d == nil {
			delete(snap, ip)
			continue
		}
		for name, sif := range d.Interfaces {
			if sif.Name == "" {
				sif.Name = name
			}
		}
	}
	return snap, nil
}

// WriteSpider writes snap as JSON, snappy framed when compress is set.
func WriteSpider(w io.Writer, snap Snapshot, compress bool) error {
	if !compress {
		return json.NewEncoder(w).Encode(snap)
	}
	sw := snappy.NewBufferedWriter(w)
	if err := json.NewEncoder(sw).Encode(snap); err != nil {
		return err
	}
	return sw.Close()
}
