package persons

import (
	"fmt"
	"regexp"
	"strings"

	"ffconvert/internal/logs"
	"ffconvert/internal/models"
	"ffconvert/internal/source"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
)

const (
	countryAustria = "Austria"
	countryItaly   = "Italy"
	defaultCity    = "Wien"
	defaultRegion  = "AT"
)

var imHash = regexp.MustCompile(`^[0-9a-f]{32}$`)

func contactLog(m *source.Member) *logrus.Entry {
	return logs.Event(logs.EvContact).WithField("member", m.ID)
}

// emailKey is the identity of an e-mail address.
func emailKey(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

func (c *Converter) tryInsertAddress(subj *models.Subject, m *source.Member) error {
	street := strings.TrimSpace(strings.Join(nonEmpty(m.Street, m.HouseNumber), " "))
	town, zip := m.Town, m.Zip
	if street == "" && town == "" && zip == "" {
		return nil
	}
	log := memberLog(m)
	country := countryAustria
	if town == "" {
		log.Infof("no city (setting to %q): %d/%d", defaultCity, m.ID, subj.ID)
		town = defaultCity
	}
	switch {
	case zip == "":
		if z, ok := c.t.ZipFallback[m.ID]; ok {
			zip = z
		} else {
			log.Infof("no zip: %d/%d", m.ID, subj.ID)
		}
	case strings.HasPrefix(zip, "I-"):
		zip = zip[2:]
		country = countryItaly
	}
	if street == "" && zip == "" && town == defaultCity {
		return nil
	}
	if street == "" {
		log.Infof("no street: %d/%d", m.ID, subj.ID)
		return nil
	}
	return c.addAddress(subj, models.Address{Street: street, Zip: zip, City: town, Country: country})
}

func (c *Converter) addAddress(subj *models.Subject, a models.Address) error {
	adr := &models.Address{}
	ok, err := c.s.Instance(adr, "street = ? AND zip = ? AND city = ? AND country = ?", a.Street, a.Zip, a.City, a.Country)
	if err != nil {
		return err
	}
	if !ok {
		adr = &a
		if err := c.s.Create(adr); err != nil {
			return err
		}
	}
	return c.link(subj, models.PropAddress, adr.ID, "")
}

func (c *Converter) tryInsertEmail(subj *models.Subject, m *source.Member, mail string, second bool) error {
	key := emailKey(mail)
	if key == "" {
		return nil
	}
	log := memberLog(m)
	email := &models.Email{}
	ok, err := c.s.Instance(email, "address = ?", key)
	if err != nil {
		return err
	}
	if ok {
		linked, err := c.linked(subj, models.PropEmail, email.ID)
		if err != nil || linked {
			return err
		}
		eid := c.emailIDs[key]
		other := c.byID[eid]
		var otherID uint
		if other != nil {
			otherID = other.ID
		}
		contactLog(m).Warnf("%d/%d %d/%d: Duplicate email: %s", eid, otherID, m.ID, subj.ID, mail)
		return nil
	}
	email = &models.Email{Address: key}
	if second {
		email.Desc = "von 2. Account"
		log.Infof("Second email for %d/%d: %s", m.ID, subj.ID, mail)
	}
	c.emailIDs[key] = m.ID
	if err := c.s.Create(email); err != nil {
		return err
	}
	if err := c.link(subj, models.PropEmail, email.ID, ""); err != nil {
		return err
	}
	if _, actor := c.t.CompanyActor[m.ID]; actor {
		return nil
	}
	if _, actor := c.t.AssociationActor[m.ID]; actor {
		return nil
	}
	return c.addAccount(subj, m, key)
}

// addAccount gives the person a suspended account with a random password.
// Accounts seeded before the conversion are reused.
func (c *Converter) addAccount(subj *models.Subject, m *source.Member, name string) error {
	acc := &models.Account{}
	ok, err := c.s.Instance(acc, "name = ?", name)
	if err != nil {
		return err
	}
	if !ok {
		hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.MinCost)
		if err != nil {
			return fmt.Errorf("password for %s: %w", name, err)
		}
		acc = &models.Account{
			Name:         name,
			Enabled:      !c.t.Disabled[m.ID],
			Suspended:    true,
			PasswordHash: string(hash),
		}
		if err := c.s.Create(acc); err != nil {
			return err
		}
	}
	var pa models.PersonHasAccount
	ok, err = c.s.Instance(&pa, "account_id = ?", acc.ID)
	if err != nil || ok {
		return err
	}
	return c.s.Create(&models.PersonHasAccount{PersonID: subj.ID, AccountID: acc.ID})
}

func (c *Converter) tryInsertIM(subj *models.Subject, m *source.Member) error {
	nick := m.IMNick
	log := memberLog(m)
	switch {
	case strings.HasSuffix(nick, "@aon.at"):
		return c.tryInsertEmail(subj, m, nick, false)
	case strings.HasPrefix(nick, "alt/falsch"), strings.HasPrefix(nick, "housing"):
		return nil
	case imHash.MatchString(nick):
		log.Warnf("Got hash in nick: %s", nick)
		return nil
	case strings.HasPrefix(nick, "Wohnadresse:"):
		_, adr, _ := strings.Cut(nick, ":")
		// the delimiter is a literal backslash followed by n
		street, rest, ok := strings.Cut(strings.TrimSpace(adr), `\n`)
		f := strings.Fields(rest)
		if !ok || len(f) != 2 {
			log.Warnf("cannot parse address in nick: %s", nick)
			return nil
		}
		return c.addAddress(subj, models.Address{Street: street, Zip: f[0], City: f[1], Country: countryAustria})
	}
	log.Infof("Instant messenger nickname: %s", nick)
	im := &models.IMHandle{Address: nick}
	if err := c.s.Create(im); err != nil {
		return err
	}
	return c.link(subj, models.PropIM, im.ID, "")
}

// phoneOf normalizes x for region AT. The key is the E.164 form.
func phoneOf(x string) (models.Phone, string, error) {
	num, err := phonenumbers.Parse(x, defaultRegion)
	if err != nil {
		return models.Phone{}, "", err
	}
	if !phonenumbers.IsPossibleNumber(num) {
		return models.Phone{}, "", fmt.Errorf("impossible number %q", x)
	}
	nsn := phonenumbers.GetNationalSignificantNumber(num)
	n := phonenumbers.GetLengthOfGeographicalAreaCode(num)
	if n == 0 {
		n = phonenumbers.GetLengthOfNationalDestinationCode(num)
	}
	if n > len(nsn) {
		n = 0
	}
	p := models.Phone{
		CountryCode: fmt.Sprint(num.GetCountryCode()),
		AreaCode:    nsn[:n],
		Number:      nsn[n:],
	}
	return p, phonenumbers.Format(num, phonenumbers.E164), nil
}

func (c *Converter) tryInsertPhone(subj *models.Subject, m *source.Member, x, kind string) error {
	x = strings.TrimSpace(x)
	if x == "" || strings.Contains(x, "@") {
		return nil
	}
	log := memberLog(m)
	if c.t.PhoneBogus[x] {
		log.Infof("ignoring bogus phone %q", x)
		return nil
	}
	p, key, err := phoneOf(x)
	if err != nil {
		contactLog(m).Warnf("%d: phone %q: %v", m.ID, x, err)
		return nil
	}
	phone := &models.Phone{}
	ok, err := c.s.Instance(phone, "country_code = ? AND area_code = ? AND number = ?", p.CountryCode, p.AreaCode, p.Number)
	if err != nil {
		return err
	}
	if ok {
		eid := c.phoneIDs[key]
		if other := c.byID[eid]; other != nil && other.ID == subj.ID {
			return nil
		}
		linked, err := c.linked(subj, models.PropPhone, phone.ID)
		if err != nil || linked {
			return err
		}
		contactLog(m).Warnf("%d %d/%d: Duplicate phone: %s", eid, m.ID, subj.ID, x)
	} else {
		phone = &p
		if err := c.s.Create(phone); err != nil {
			return err
		}
		c.phoneIDs[key] = m.ID
	}
	return c.link(subj, models.PropPhone, phone.ID, kind)
}

func (c *Converter) tryInsertURL(subj *models.Subject, m *source.Member) error {
	hp := strings.TrimSpace(m.Homepage)
	if !strings.HasPrefix(hp, "http") {
		hp = "http://" + hp
	}
	hp = strings.ToLower(hp)
	url := &models.URL{}
	ok, err := c.s.Instance(url, "value = ?", hp)
	if err != nil || ok {
		return err
	}
	url = &models.URL{Value: hp, Desc: "Homepage"}
	if err := c.s.Create(url); err != nil {
		return err
	}
	return c.link(subj, models.PropURL, url.ID, "")
}

func nonEmpty(ss ...string) []string {
	var out []string
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
