package models

import "gorm.io/gorm"

type Node struct {
	gorm.Model
	Name      string `gorm:"index"`
	Lat       string
	Lon       string
	ShowInMap bool
	OwnerID   uint `gorm:"index"`
	ManagerID uint `gorm:"index"`
	LegacyID  int  `gorm:"index"`
}
