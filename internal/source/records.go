package source

import (
	"fmt"
	"strconv"
	"time"
)

// Table names of the redeemer export.
const (
	TableNodes   = "nodes"
	TableDevices = "devices"
	TableIPs     = "ips"
	TableMembers = "members"
)

var TableNames = []string{TableNodes, TableDevices, TableIPs, TableMembers}

func (r Row) Int(col string) int {
	switch v := r[col].(type) {
	case int64:
		return int(v)
	case int32:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	case []byte:
		n, _ := strconv.Atoi(string(v))
		return n
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

func (r Row) Str(col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Float is nil for NULL.
func (r Row) Float(col string) *float64 {
	var f float64
	switch v := r[col].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int64:
		f = float64(v)
	case int32:
		f = float64(v)
	case int:
		f = float64(v)
	case []byte:
		x, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return nil
		}
		f = x
	case string:
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil
		}
		f = x
	default:
		return nil
	}
	return &f
}

func (r Row) Bool(col string) bool {
	switch v := r[col].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case string:
		b, _ := strconv.ParseBool(v)
		return b || v == "t"
	}
	return false
}

// Time is zero for NULL; aware values are made naive in UTC.
func (r Row) Time(col string) time.Time {
	if v, ok := r[col].(time.Time); ok {
		return v.UTC()
	}
	return time.Time{}
}

type Node struct {
	ID        int
	Name      string
	IDMembers int
	IDTechC   int
	LatDeg    *float64
	LatMin    *float64
	LatSec    *float64
	LonDeg    *float64
	LonMin    *float64
	LonSec    *float64
	Map       bool
	Created   time.Time
	Changed   time.Time
}

type Device struct {
	ID        int
	Name      string
	IDNodes   int
	IDMembers int
	Hardware  string
	Antenna   string
	Comment   string
	Created   time.Time
	Changed   time.Time
}

type IP struct {
	ID        int
	IP        string
	CIDR      int
	IDDevices int
	IDNodes   int
	IDMembers int
}

type Member struct {
	ID          int
	FirstName   string
	LastName    string
	Email       string
	Fax         string
	Telephone   string
	MobilePhone string
	Street      string
	HouseNumber string
	Zip         string
	Town        string
	Nickname    string
	Homepage    string
	IMNick      string
	MentorID    int // 0: none
	Created     time.Time
	Changed     time.Time
}

// Dataset — типизированное содержимое выгрузки redeemer.
type Dataset struct {
	Nodes   []Node
	Devices []Device
	IPs     []IP
	Members []Member
}

// FromTables types the four redeemer tables. Missing tables are empty.
func FromTables(t Tables) *Dataset {
	ds := &Dataset{}
	for _, r := range t[TableNodes] {
		ds.Nodes = append(ds.Nodes, Node{
			ID:        r.Int("id"),
			Name:      r.Str("name"),
			IDMembers: r.Int("id_members"),
			IDTechC:   r.Int("id_tech_c"),
			LatDeg:    r.Float("gps_lat_deg"),
			LatMin:    r.Float("gps_lat_min"),
			LatSec:    r.Float("gps_lat_sec"),
			LonDeg:    r.Float("gps_lon_deg"),
			LonMin:    r.Float("gps_lon_min"),
			LonSec:    r.Float("gps_lon_sec"),
			Map:       r.Bool("map"),
			Created:   r.Time("created"),
			Changed:   r.Time("changed"),
		})
	}
	for _, r := range t[TableDevices] {
		ds.Devices = append(ds.Devices, Device{
			ID:        r.Int("id"),
			Name:      r.Str("name"),
			IDNodes:   r.Int("id_nodes"),
			IDMembers: r.Int("id_members"),
			Hardware:  r.Str("hardware"),
			Antenna:   r.Str("antenna"),
			Comment:   r.Str("comment"),
			Created:   r.Time("created"),
			Changed:   r.Time("changed"),
		})
	}
	for _, r := range t[TableIPs] {
		ds.IPs = append(ds.IPs, IP{
			ID:        r.Int("id"),
			IP:        r.Str("ip"),
			CIDR:      r.Int("cidr"),
			IDDevices: r.Int("id_devices"),
			IDNodes:   r.Int("id_nodes"),
			IDMembers: r.Int("id_members"),
		})
	}
	for _, r := range t[TableMembers] {
		ds.Members = append(ds.Members, Member{
			ID:          r.Int("id"),
			FirstName:   r.Str("firstname"),
			LastName:    r.Str("lastname"),
			Email:       r.Str("email"),
			Fax:         r.Str("fax"),
			Telephone:   r.Str("telephone"),
			MobilePhone: r.Str("mobilephone"),
			Street:      r.Str("street"),
			HouseNumber: r.Str("housenumber"),
			Zip:         r.Str("zip"),
			Town:        r.Str("town"),
			Nickname:    r.Str("nickname"),
			Homepage:    r.Str("homepage"),
			IMNick:      r.Str("instant_messenger_nick"),
			MentorID:    r.Int("mentor_id"),
			Created:     r.Time("created"),
			Changed:     r.Time("changed"),
		})
	}
	return ds
}
