package persons

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"ffconvert/internal/logs"
	"ffconvert/internal/models"
	"ffconvert/internal/repo"
	"ffconvert/internal/source"

	"github.com/sirupsen/logrus"
)

// FunkfeuerID is the member standing for the association itself.
const FunkfeuerID = 1

// Converter turns members into subjects. After CreatePersons it answers
// owner and manager lookups for node creation.
type Converter struct {
	s         repo.Store
	t         *Tables
	full      *Tables
	anonymize bool

	members   map[int]*source.Member
	byID      map[int]*models.Subject
	managerBy map[int]*models.Subject
	emailIDs  map[string]int
	phoneIDs  map[string]int
	mentor    map[int]int // person -> mentor

	FF *models.Subject
}

func New(s repo.Store, t *Tables, anonymize bool) *Converter {
	return &Converter{
		s:         s,
		t:         t,
		full:      t,
		anonymize: anonymize,
		members:   map[int]*source.Member{},
		byID:      map[int]*models.Subject{},
		managerBy: map[int]*models.Subject{},
		emailIDs:  map[string]int{},
		phoneIDs:  map[string]int{},
		mentor:    map[int]int{},
	}
}

// Resolve maps a dupe member id to its canonical id.
func (c *Converter) Resolve(id int) int { return c.t.Resolve(id) }

// Subject returns the subject created for member id (not dupe resolved).
func (c *Converter) Subject(id int) (*models.Subject, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// Manager returns the person managing legal entity id.
func (c *Converter) Manager(id int) (*models.Subject, bool) {
	s, ok := c.managerBy[id]
	return s, ok
}

// Count is the number of members that got a subject.
func (c *Converter) Count() int { return len(c.byID) }

func memberLog(m *source.Member) *logrus.Entry {
	return logs.Event(logs.EvPerson).WithField("member", m.ID)
}

// CreatePersons creates one subject per surviving member, then merges the
// dupes into their canonical subjects and links actors and mentors.
func (c *Converter) CreatePersons(members []source.Member) error {
	known := map[int]bool{}
	for i := range members {
		known[members[i].ID] = true
	}
	c.t = c.full.Prune(known)

	sorted := make([]*source.Member, 0, len(members))
	for i := range members {
		sorted = append(sorted, &members[i])
		c.members[members[i].ID] = &members[i]
	}
	slices.SortFunc(sorted, func(a, b *source.Member) int { return a.ID - b.ID })

	for _, m := range sorted {
		if err := repo.CommitOver(c.s, 10); err != nil {
			return err
		}
		if err := c.createMember(m); err != nil {
			return fmt.Errorf("member %d: %w", m.ID, err)
		}
	}
	if c.anonymize {
		return nil
	}
	if err := c.linkActors(); err != nil {
		return err
	}
	if err := c.mergeDupes(); err != nil {
		return err
	}
	return c.linkMentors()
}

func (c *Converter) createMember(m *source.Member) error {
	if m.ID == 309 && strings.HasPrefix(m.Street, "'") {
		m.Street = m.Street[1:]
	}
	log := memberLog(m)
	_, dupe := c.t.Dupes[m.ID]
	switch {
	case c.t.Removed[m.ID]:
		log.Infof("removing person %d %s %s", m.ID, m.FirstName, m.LastName)
		return nil
	case dupe:
		log.Infof("skipping person %d (duplicate of %d)", m.ID, c.t.Dupes[m.ID])
		return nil
	case m.FirstName == "" && m.LastName == "":
		log.Warnf("skipping person, no name: %d", m.ID)
		return nil
	case m.LastName == "":
		log.Warnf("skipping person, no lastname: %d", m.ID)
		return nil
	}
	if strings.HasPrefix(m.FirstName, `Armin"/><script`) {
		m.FirstName = "Armin"
	}

	name := m.FirstName + " " + m.LastName
	subj := &models.Subject{Kind: models.SubjectPerson, FirstName: m.FirstName, LastName: m.LastName, LegacyID: m.ID}
	if _, ok := c.t.CompanyActor[m.ID]; ok {
		subj = &models.Subject{Kind: models.SubjectCompany, Name: name, LegacyID: m.ID}
	} else if _, ok := c.t.AssociationActor[m.ID]; ok {
		subj = &models.Subject{Kind: models.SubjectAssociation, Name: name, LegacyID: m.ID}
	}
	if c.anonymize {
		subj = &models.Subject{Kind: models.SubjectPerson, FirstName: strconv.Itoa(m.ID), LastName: "Funkfeuer", LegacyID: m.ID}
	}
	created, changed := c.mergedTimes(m)
	setTimes(subj, created, changed)
	logs.Logger.Debugf("Creating %s: %q", subj.Kind, name)
	if err := c.s.Create(subj); err != nil {
		return err
	}
	if m.ID == FunkfeuerID {
		c.FF = subj
	}
	c.byID[m.ID] = subj
	if c.anonymize {
		return nil
	}

	if err := c.insertContacts(subj, m, false); err != nil {
		return err
	}
	if m.MentorID != 0 && m.MentorID != m.ID {
		c.mentor[m.ID] = m.MentorID
	}
	if c.t.Companies[m.ID] || c.t.Associations[m.ID] {
		return c.createLegalEntity(subj, m, name)
	}
	return nil
}

// insertContacts adds everything but the mentor edge. For dupes only the
// address is gated by the merge-address list.
func (c *Converter) insertContacts(subj *models.Subject, m *source.Member, dupe bool) error {
	if !dupe || c.t.MergeAddress[m.ID] {
		if err := c.tryInsertAddress(subj, m); err != nil {
			return err
		}
	}
	if m.Email != "" {
		if err := c.tryInsertEmail(subj, m, m.Email, dupe); err != nil {
			return err
		}
	}
	if !dupe && strings.Contains(m.Fax, "@") {
		memberLog(m).Infof("Using email %s in fax field as email", m.Fax)
		if err := c.tryInsertEmail(subj, m, m.Fax, false); err != nil {
			return err
		}
	}
	if m.IMNick != "" {
		if err := c.tryInsertIM(subj, m); err != nil {
			return err
		}
	}
	for _, p := range []struct{ val, kind string }{
		{m.Telephone, "Festnetz"},
		{m.MobilePhone, "Mobil"},
		{m.Fax, "Fax"},
	} {
		if err := c.tryInsertPhone(subj, m, p.val, p.kind); err != nil {
			return err
		}
	}
	if m.Nickname != "" {
		nick := &models.Nickname{Name: m.Nickname}
		if err := c.s.Create(nick); err != nil {
			return err
		}
		if err := c.link(subj, models.PropNickname, nick.ID, ""); err != nil {
			return err
		}
	}
	if m.Homepage != "" {
		return c.tryInsertURL(subj, m)
	}
	return nil
}

func (c *Converter) createLegalEntity(person *models.Subject, m *source.Member, name string) error {
	kind := models.SubjectCompany
	if c.t.Associations[m.ID] {
		kind = models.SubjectAssociation
	}
	logs.Event(logs.EvPerson).WithField("member", m.ID).Infof("Creating %s: %q", kind, name)
	legal := &models.Subject{Kind: kind, Name: name, LegacyID: m.ID}
	if err := c.s.Create(legal); err != nil {
		return err
	}
	var props []models.SubjectProperty
	if err := c.s.Query(&props, "", "subject_id = ?", person.ID); err != nil {
		return err
	}
	for _, p := range props {
		if err := c.link(legal, p.Kind, p.PropertyID, p.Desc); err != nil {
			return err
		}
	}
	if err := c.s.Create(&models.PersonInGroup{PersonID: person.ID, GroupID: legal.ID}); err != nil {
		return err
	}
	c.managerBy[m.ID] = person
	return nil
}

func (c *Converter) linkActors() error {
	all := map[int]int{}
	for l, p := range c.t.CompanyActor {
		all[l] = p
	}
	for l, p := range c.t.AssociationActor {
		all[l] = p
	}
	for _, l := range sortedKeys(all) {
		person, okP := c.byID[all[l]]
		legal, okL := c.byID[l]
		if !okP || !okL {
			logs.Event(logs.EvPerson).WithField("member", l).Warnf("actor %d for %d not created", all[l], l)
			continue
		}
		if err := c.s.Create(&models.PersonInGroup{PersonID: person.ID, GroupID: legal.ID}); err != nil {
			return err
		}
		c.managerBy[l] = person
	}
	return nil
}

func (c *Converter) mergeDupes() error {
	for _, dupe := range sortedKeys(c.t.Dupes) {
		id := c.t.Dupes[dupe]
		person, ok := c.byID[id]
		if !ok {
			continue
		}
		d, m := c.members[dupe], c.members[id]
		memberLog(d).Infof("Handling dupe: %d->%d %s %s", dupe, id, d.FirstName, d.LastName)

		if d.MentorID != 0 && d.MentorID != d.ID && d.MentorID != id && d.MentorID != c.t.MentorException {
			return fmt.Errorf("mentor of dupe %d->%d is %d: %w", d.ID, id, d.MentorID, ErrInvariant)
		}
		if d.MentorID != 0 && d.MentorID != d.ID {
			if _, ok := c.mentor[m.ID]; !ok {
				c.mentor[m.ID] = d.MentorID
			}
		}
		if err := c.insertContacts(person, d, true); err != nil {
			return fmt.Errorf("dupe %d: %w", dupe, err)
		}
	}
	return nil
}

// linkMentors writes the mentor edges. A legal entity on the member side
// is represented by its actor; a mentor that is a legal entity makes the
// member act for it.
func (c *Converter) linkMentors() error {
	for _, pid := range sortedKeys(c.mentor) {
		mid := c.mentor[pid]
		if mid == pid {
			continue
		}
		mid, pid := c.t.Resolve(mid), c.t.Resolve(pid)
		if a, ok := c.t.Actor(pid); ok {
			pid = a
		}
		if mid == pid {
			continue
		}
		mentor, okM := c.byID[mid]
		person, okP := c.byID[pid]
		if !okM || !okP {
			logs.Event(logs.EvPerson).WithField("member", pid).Warnf("mentor %d of %d not created", mid, pid)
			continue
		}
		if _, legal := c.t.Actor(mid); legal {
			var af models.PersonActsForLegalEntity
			ok, err := c.s.Instance(&af, "person_id = ? AND legal_entity_id = ?", person.ID, mentor.ID)
			if err != nil {
				return err
			}
			if !ok {
				if err := c.s.Create(&models.PersonActsForLegalEntity{PersonID: person.ID, LegalEntityID: mentor.ID}); err != nil {
					return err
				}
			}
			continue
		}
		if err := c.s.Create(&models.PersonMentorsPerson{MentorID: mentor.ID, PersonID: person.ID}); err != nil {
			return err
		}
	}
	return nil
}

func (c *Converter) link(subj *models.Subject, kind string, id uint, desc string) error {
	ok, err := c.linked(subj, kind, id)
	if err != nil || ok {
		return err
	}
	return c.s.Create(&models.SubjectProperty{SubjectID: subj.ID, Kind: kind, PropertyID: id, Desc: desc})
}

func (c *Converter) linked(subj *models.Subject, kind string, id uint) (bool, error) {
	var sp models.SubjectProperty
	return c.s.Instance(&sp, "subject_id = ? AND kind = ? AND property_id = ?", subj.ID, kind, id)
}

// mergedTimes spans the timestamps of m and every dupe of m.
func (c *Converter) mergedTimes(m *source.Member) (created, changed time.Time) {
	created, changed = m.Created, m.Changed
	if !c.t.IsCanonical(m.ID) {
		return created, changed
	}
	for d, id := range c.t.Dupes {
		if id != m.ID {
			continue
		}
		dm := c.members[d]
		created = minTime(created, dm.Created)
		changed = maxTime(changed, dm.Changed, created, dm.Created)
	}
	return created, changed
}

func setTimes(s *models.Subject, created, changed time.Time) {
	s.CreatedAt = created
	s.UpdatedAt = changed
	if changed.IsZero() {
		s.UpdatedAt = created
	}
}

func minTime(ts ...time.Time) time.Time {
	var out time.Time
	for _, t := range ts {
		if !t.IsZero() && (out.IsZero() || t.Before(out)) {
			out = t
		}
	}
	return out
}

func maxTime(ts ...time.Time) time.Time {
	var out time.Time
	for _, t := range ts {
		if t.After(out) {
			out = t
		}
	}
	return out
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
