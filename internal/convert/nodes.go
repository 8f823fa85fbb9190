package convert

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"ffconvert/internal/logs"
	"ffconvert/internal/models"
	"ffconvert/internal/persons"
	"ffconvert/internal/repo"
	"ffconvert/internal/source"
)

// keptNegativeNode is the one node with a negative id that is converted.
const keptNegativeNode = -803

var errPartialPosition = errors.New("partial gps position")

// nodeMaker creates the nodes of the export once persons exist.
type nodeMaker struct {
	s         repo.Store
	pc        *persons.Converter
	anonymize bool
	// hasDevices reports whether a node carries devices.
	hasDevices func(id int) bool
}

func (nm *nodeMaker) createNodes(nodes []source.Node) (map[int]*models.Node, error) {
	sorted := slices.Clone(nodes)
	slices.SortFunc(sorted, func(a, b source.Node) int { return a.ID - b.ID })

	out := make(map[int]*models.Node, len(sorted))
	for i := range sorted {
		n := &sorted[i]
		log := logs.Event(logs.EvNode).WithField("node", n.ID)
		if n.ID < 0 && n.ID != keptNegativeNode {
			log.Warnf("Ignoring Node %s/%d", n.Name, n.ID)
			continue
		}
		name := n.Name
		if name == "-803" {
			name = "n-803"
		}
		logs.Logger.Debugf("Processing Node: %s", name)
		if err := repo.CommitOver(nm.s, 100); err != nil {
			return nil, err
		}

		lat, lon, err := position(n, nm.anonymize)
		if err != nil {
			log.Warnf("Node %s: %v, position dropped", name, err)
			lat, lon = "", ""
		}
		owner, manager := nm.ownerOf(n)
		if owner == nil && nm.hasDevices(n.ID) {
			owner, _ = nm.pc.Subject(persons.FunkfeuerID)
			manager = owner
			if m, ok := nm.pc.Manager(persons.FunkfeuerID); ok {
				manager = m
			}
			log.WithField("member", n.IDMembers).
				Warnf("Node %d: member %d not found, using %d", n.ID, n.IDMembers, persons.FunkfeuerID)
		}
		if owner == nil {
			log.WithField("member", n.IDMembers).Errorf("Node %d: member %d not found", n.ID, n.IDMembers)
			continue
		}
		if manager == nil {
			manager = owner
		}

		node := &models.Node{
			Name:      name,
			Lat:       lat,
			Lon:       lon,
			ShowInMap: n.Map,
			OwnerID:   owner.ID,
			ManagerID: manager.ID,
			LegacyID:  n.ID,
		}
		node.CreatedAt = n.Created
		node.UpdatedAt = n.Changed
		if node.UpdatedAt.IsZero() {
			node.UpdatedAt = n.Created
		}
		if err := nm.s.Create(node); err != nil {
			return nil, fmt.Errorf("node %d: %w", n.ID, err)
		}
		out[n.ID] = node
	}
	return out, nil
}

// ownerOf resolves the owner and the manager of n. Legal entities are
// managed by their manager, persons by the tech contact when one is given.
func (nm *nodeMaker) ownerOf(n *source.Node) (owner, manager *models.Subject) {
	id := nm.pc.Resolve(n.IDMembers)
	owner, ok := nm.pc.Subject(id)
	if !ok {
		return nil, nil
	}
	log := logs.Event(logs.EvNode).WithField("node", n.ID)
	switch {
	case nm.anonymize:
		return owner, owner
	case owner.Kind != models.SubjectPerson:
		if m, ok := nm.pc.Manager(id); ok {
			return owner, m
		}
		log.Warnf("Node %d: no manager for %s %d", n.ID, owner.Kind, id)
		return owner, owner
	case n.IDTechC != 0 && n.IDTechC != n.IDMembers:
		tid := nm.pc.Resolve(n.IDTechC)
		tech, ok := nm.pc.Subject(tid)
		if !ok {
			log.WithField("member", n.IDTechC).Warnf("Node %d: tech contact %d not found", n.ID, n.IDTechC)
			return owner, owner
		}
		logs.Event(logs.EvNode).Infof("Tech contact found: %d", n.IDTechC)
		if tech.Kind != models.SubjectPerson {
			if m, ok := nm.pc.Manager(tid); ok {
				return owner, m
			}
		}
		return owner, tech
	}
	return owner, owner
}

// position formats the gps columns of n. Degrees alone give decimal
// degrees, degrees with minutes give "D d M m [S s]". Anonymized positions
// are rounded to two decimals.
func position(n *source.Node, anonymize bool) (lat, lon string, err error) {
	decimal := func(v float64) string {
		if anonymize {
			return fmt.Sprintf("%2.2f", v)
		}
		return fmt.Sprintf("%f", v)
	}
	switch {
	case n.LatDeg == nil:
		if n.LatMin != nil || n.LatSec != nil || n.LonDeg != nil || n.LonMin != nil || n.LonSec != nil {
			return "", "", errPartialPosition
		}
		return "", "", nil
	case n.LonDeg == nil:
		return "", "", errPartialPosition
	case n.LatMin == nil:
		if n.LatSec != nil || n.LonMin != nil || n.LonSec != nil {
			return "", "", errPartialPosition
		}
		return decimal(*n.LatDeg), decimal(*n.LonDeg), nil
	case *n.LatMin == 0 && n.LatSec != nil && *n.LatSec == 0:
		if nonZero(n.LonMin) || nonZero(n.LonSec) {
			return "", "", errPartialPosition
		}
		return decimal(*n.LatDeg), decimal(*n.LonDeg), nil
	}
	if n.LonMin == nil || !integral(*n.LatDeg) || !integral(*n.LatMin) || !integral(*n.LonDeg) || !integral(*n.LonMin) {
		return "", "", fmt.Errorf("%w: fractional degrees or minutes", errPartialPosition)
	}
	if anonymize {
		return decimal(degrees(n.LatDeg, n.LatMin, n.LatSec)), decimal(degrees(n.LonDeg, n.LonMin, n.LonSec)), nil
	}
	return dms(n.LatDeg, n.LatMin, n.LatSec), dms(n.LonDeg, n.LonMin, n.LonSec), nil
}

func dms(deg, mins, sec *float64) string {
	s := fmt.Sprintf("%d d %d m", int(*deg), int(*mins))
	if sec != nil {
		s += fmt.Sprintf(" %f s", *sec)
	}
	return s
}

func degrees(deg, mins, sec *float64) float64 {
	v := *deg + *mins/60
	if sec != nil {
		v += *sec / 3600
	}
	return v
}

func integral(v float64) bool { return v == math.Trunc(v) }
func nonZero(v *float64) bool  { return v != nil && *v != 0 }
