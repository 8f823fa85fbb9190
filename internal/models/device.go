package models

import "gorm.io/gorm"

// NetDeviceType — тип железа; конвертер создаёт только "Generic".
type NetDeviceType struct {
	gorm.Model
	Name string `gorm:"size:64;uniqueIndex"`
}

// NetDevice — каноническое устройство после слияния redeemer-записей.
type NetDevice struct {
	gorm.Model
	TypeID uint `gorm:"index"`
	NodeID uint `gorm:"index"`
	Name   string
	Desc   string
	HNA    bool `gorm:"column:hna"`
	// redeemer device ids merged into this device, comma separated
	LegacyIDs string `gorm:"column:legacy_ids"`
}

const (
	InterfaceWired    = "wired"
	InterfaceWireless = "wireless"
)

type NetInterface struct {
	gorm.Model
	DeviceID   uint   `gorm:"index"`
	Kind       string `gorm:"type:varchar(16);index"`
	Name       string
	Desc       string
	Mode       string `gorm:"type:varchar(16)"`
	ESSID      string `gorm:"column:essid;type:varchar(32)"`
	BSSID      string `gorm:"column:bssid;type:varchar(17)"`
	StandardID *uint  `gorm:"index"`
}

type WirelessStandard struct {
	gorm.Model
	Name string `gorm:"size:32;uniqueIndex"`
}

type WirelessChannel struct {
	gorm.Model
	StandardID *uint  `gorm:"index:idx_chan,priority:1"`
	Number     string `gorm:"size:16;index:idx_chan,priority:2"`
}

type InterfaceChannel struct {
	gorm.Model
	InterfaceID uint `gorm:"index"`
	ChannelID   uint `gorm:"index"`
}
