package models

import "gorm.io/gorm"

const (
	SubjectPerson      = "person"
	SubjectCompany     = "company"
	SubjectAssociation = "association"
)

// Subject — человек или юрлицо (компания, ассоциация).
type Subject struct {
	gorm.Model
	Kind      string `gorm:"type:varchar(16);index"`
	FirstName string
	LastName  string
	Name      string // legal entities only
	LegacyID  int    `gorm:"index"`
}

// DisplayName of a subject independent of its kind.
func (s Subject) DisplayName() string {
	if s.Kind == SubjectPerson {
		return s.FirstName + " " + s.LastName
	}
	return s.Name
}

type Email struct {
	gorm.Model
	Address string `gorm:"uniqueIndex"`
	Desc    string
}

type Phone struct {
	gorm.Model
	CountryCode string `gorm:"size:8;uniqueIndex:idx_phone,priority:1"`
	AreaCode    string `gorm:"size:16;uniqueIndex:idx_phone,priority:2"`
	Number      string `gorm:"size:32;uniqueIndex:idx_phone,priority:3"`
}

type Address struct {
	gorm.Model
	Street  string `gorm:"uniqueIndex:idx_address,priority:1"`
	Zip     string `gorm:"size:16;uniqueIndex:idx_address,priority:2"`
	City    string `gorm:"uniqueIndex:idx_address,priority:3"`
	Country string `gorm:"size:64;uniqueIndex:idx_address,priority:4"`
}

type IMHandle struct {
	gorm.Model
	Address string `gorm:"column:address"`
}

type Nickname struct {
	gorm.Model
	Name string
}

type URL struct {
	gorm.Model
	Value string `gorm:"uniqueIndex"`
	Desc  string
}

const (
	PropEmail    = "email"
	PropPhone    = "phone"
	PropAddress  = "address"
	PropIM       = "im_handle"
	PropNickname = "nickname"
	PropURL      = "url"
)

// SubjectProperty — связь субъекта с контактной сущностью.
type SubjectProperty struct {
	gorm.Model
	SubjectID  uint   `gorm:"index:idx_subj_prop,priority:1"`
	Kind       string `gorm:"type:varchar(16);index:idx_subj_prop,priority:2"`
	PropertyID uint   `gorm:"index:idx_subj_prop,priority:3"`
	Desc       string // phone category: Festnetz, Mobil, Fax
}

type PersonInGroup struct {
	gorm.Model
	PersonID uint `gorm:"index"`
	GroupID  uint `gorm:"index"` // legal entity subject
}

type PersonMentorsPerson struct {
	gorm.Model
	MentorID uint `gorm:"index"`
	PersonID uint `gorm:"index"`
}

type PersonActsForLegalEntity struct {
	gorm.Model
	PersonID      uint `gorm:"index"`
	LegalEntityID uint `gorm:"index"`
}
