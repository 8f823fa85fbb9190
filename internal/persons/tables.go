// Package persons creates the person, company and association subjects of
// the redeemer members, merges curated duplicates and links mentors and
// legal entity actors.
package persons

import (
	_ "embed"
	"errors"
	"fmt"
	"maps"

	"github.com/goccy/go-yaml"
)

// ErrInvariant marks curated data that contradicts the export.
var ErrInvariant = errors.New("person invariant violated")

//go:embed tables.yaml
var tablesYAML []byte

type tablesFile struct {
	Dupes []struct {
		Dupe      int    `yaml:"dupe"`
		Canonical int    `yaml:"canonical"`
		Note      string `yaml:"note"`
	} `yaml:"dupes"`
	MergeAddress     []int      `yaml:"merge_address"`
	PhoneBogus       []string   `yaml:"phone_bogus"`
	Companies        []int      `yaml:"companies"`
	Associations     []int      `yaml:"associations"`
	CompanyActor     []actorRow `yaml:"company_actor"`
	AssociationActor []actorRow `yaml:"association_actor"`
	PersonDisable    []int      `yaml:"person_disable"`
	PersonRemove     []int      `yaml:"person_remove"`
	MentorException  int        `yaml:"mentor_exception"`
	ZipFallback      []struct {
		Member int    `yaml:"member"`
		Zip    string `yaml:"zip"`
	} `yaml:"zip_fallback"`
}

type actorRow struct {
	Entity int `yaml:"entity"`
	Actor  int `yaml:"actor"`
}

// Tables is the curated lookup data. It is never modified; Prune returns a
// trimmed copy.
type Tables struct {
	Dupes            map[int]int // dupe -> canonical
	MergeAddress     map[int]bool
	PhoneBogus       map[string]bool
	Companies        map[int]bool
	Associations     map[int]bool
	CompanyActor     map[int]int // legal entity -> acting person
	AssociationActor map[int]int
	Disabled         map[int]bool
	Removed          map[int]bool
	MentorException  int
	ZipFallback      map[int]string
}

// DefaultTables parses the embedded tables.
func DefaultTables() (*Tables, error) {
	return ParseTables(tablesYAML)
}

func ParseTables(data []byte) (*Tables, error) {
	var f tablesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("person tables: %w", err)
	}
	t := &Tables{
		Dupes:            map[int]int{},
		MergeAddress:     set(f.MergeAddress),
		PhoneBogus:       map[string]bool{},
		Companies:        set(f.Companies),
		Associations:     set(f.Associations),
		CompanyActor:     actors(f.CompanyActor),
		AssociationActor: actors(f.AssociationActor),
		Disabled:         set(f.PersonDisable),
		Removed:          set(f.PersonRemove),
		MentorException:  f.MentorException,
		ZipFallback:      map[int]string{},
	}
	for _, d := range f.Dupes {
		if _, dup := t.Dupes[d.Dupe]; dup {
			return nil, fmt.Errorf("dupe %d listed twice: %w", d.Dupe, ErrInvariant)
		}
		t.Dupes[d.Dupe] = d.Canonical
	}
	for _, p := range f.PhoneBogus {
		t.PhoneBogus[p] = true
	}
	for _, z := range f.ZipFallback {
		t.ZipFallback[z.Member] = z.Zip
	}
	return t, t.validate()
}

// validate rejects chains: a canonical id must not itself be a dupe.
func (t *Tables) validate() error {
	for d, c := range t.Dupes {
		if d == c {
			return fmt.Errorf("dupe %d points to itself: %w", d, ErrInvariant)
		}
		if _, chained := t.Dupes[c]; chained {
			return fmt.Errorf("dupe %d -> %d -> %d: %w", d, c, t.Dupes[c], ErrInvariant)
		}
	}
	return nil
}

// Prune drops dupe and actor entries referring to ids missing from known.
func (t *Tables) Prune(known map[int]bool) *Tables {
	p := *t
	p.Dupes = map[int]int{}
	for d, c := range t.Dupes {
		if known[d] && known[c] {
			p.Dupes[d] = c
		}
	}
	p.CompanyActor = pruneActors(t.CompanyActor, known)
	p.AssociationActor = pruneActors(t.AssociationActor, known)
	return &p
}

// Resolve maps a dupe id to its canonical id.
func (t *Tables) Resolve(id int) int {
	if c, ok := t.Dupes[id]; ok {
		return c
	}
	return id
}

// IsCanonical reports whether some dupe points at id.
func (t *Tables) IsCanonical(id int) bool {
	for _, c := range t.Dupes {
		if c == id {
			return true
		}
	}
	return false
}

// Actor returns the person acting for legal entity id, if any.
func (t *Tables) Actor(id int) (int, bool) {
	if a, ok := t.CompanyActor[id]; ok {
		return a, true
	}
	a, ok := t.AssociationActor[id]
	return a, ok
}

func set(ids []int) map[int]bool {
	m := make(map[int]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func actors(rows []actorRow) map[int]int {
	m := make(map[int]int, len(rows))
	for _, r := range rows {
		m[r.Entity] = r.Actor
	}
	return m
}

func pruneActors(in map[int]int, known map[int]bool) map[int]int {
	out := maps.Clone(in)
	maps.DeleteFunc(out, func(id, act int) bool { return !known[id] || !known[act] })
	return out
}
