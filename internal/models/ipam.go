package models

import "gorm.io/gorm"

// IPNetwork — блок адресов в дереве резервирования. Хост-резервирование
// (/32, /128) тоже IPNetwork, дочерний к своей сети.
type IPNetwork struct {
	gorm.Model
	CIDR     string `gorm:"column:cidr;type:varchar(64);uniqueIndex"`
	Family   string `gorm:"type:varchar(8);index"`
	MaskLen  int    `gorm:"index"`
	ParentID *uint  `gorm:"index"`
	OwnerID  *uint  `gorm:"index"`
	Desc     string `gorm:"type:varchar(80)"`
}

const (
	FamilyIPv4 = "ipv4"
	FamilyIPv6 = "ipv6"
)

// InterfaceInNetwork — привязка адреса к интерфейсу.
type InterfaceInNetwork struct {
	gorm.Model
	InterfaceID uint   `gorm:"index"`
	NetworkID   uint   `gorm:"uniqueIndex"` // host network, one binding each
	Address     string `gorm:"type:varchar(45);uniqueIndex"`
	MaskLen     int
	Name        string
}
