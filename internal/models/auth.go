package models

import "gorm.io/gorm"

type Account struct {
	gorm.Model
	Name         string `gorm:"uniqueIndex"`
	Enabled      bool
	Suspended    bool
	Superuser    bool
	PasswordHash string
}

type AuthGroup struct {
	gorm.Model
	Name string `gorm:"size:64;uniqueIndex"`
}

type AccountInGroup struct {
	gorm.Model
	AccountID uint `gorm:"index"`
	GroupID   uint `gorm:"index"`
}

type PersonHasAccount struct {
	gorm.Model
	PersonID  uint `gorm:"index"`
	AccountID uint `gorm:"uniqueIndex"`
}

// All returns every model the converter writes, in migration order.
func All() []any {
	return []any{
		&Account{}, &AuthGroup{}, &AccountInGroup{}, &PersonHasAccount{},
		&Subject{}, &Email{}, &Phone{}, &Address{}, &IMHandle{}, &Nickname{}, &URL{},
		&SubjectProperty{}, &PersonInGroup{}, &PersonMentorsPerson{}, &PersonActsForLegalEntity{},
		&Node{}, &NetDeviceType{}, &NetDevice{}, &NetInterface{},
		&WirelessStandard{}, &WirelessChannel{}, &InterfaceChannel{},
		&IPNetwork{}, &InterfaceInNetwork{},
	}
}
