package ipam

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"ffconvert/internal/addr"
	"ffconvert/internal/logs"
	"ffconvert/internal/models"
	"ffconvert/internal/repo"
)

var (
	ErrNotContained    = errors.New("network not inside parent")
	ErrAlreadyReserved = errors.New("address already reserved")
)

const maxDesc = 80

type Repo struct{ s repo.Store }

func NewRepo(s repo.Store) *Repo { return &Repo{s: s} }

func family(a addr.Address) string {
	if a.Is4() {
		return models.FamilyIPv4
	}
	return models.FamilyIPv6
}

// Instance — блок с точно таким адресом или nil.
func (r *Repo) Instance(n addr.Address) (*models.IPNetwork, error) {
	var p models.IPNetwork
	ok, err := r.s.Instance(&p, "cidr = ?", n.Prefix().String())
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

// Enclosing — самый специфичный блок, содержащий n (включая сам n), или nil.
func (r *Repo) Enclosing(n addr.Address) (*models.IPNetwork, error) {
	var cands []models.IPNetwork
	if err := r.s.Query(&cands, "mask_len DESC, id ASC", "family = ? AND mask_len <= ?", family(n), n.Bits()); err != nil {
		return nil, err
	}
	for i := range cands {
		c, err := addr.Parse(cands[i].CIDR)
		if err != nil {
			continue
		}
		if c.Contains(n) {
			return &cands[i], nil
		}
	}
	return nil, nil
}

// CreateRoot — регистрирует блок верхнего уровня (без родителя).
func (r *Repo) CreateRoot(n addr.Address, owner *uint) (*models.IPNetwork, error) {
	if p, err := r.Instance(n); err != nil || p != nil {
		return p, err
	}
	p := &models.IPNetwork{CIDR: n.Prefix().String(), Family: family(n), MaskLen: n.Bits(), OwnerID: owner}
	return p, r.s.Create(p)
}

// Reserve subdivides parent: n becomes a child block of parent. Reserving
// the parent itself, or a block that already exists, returns the existing one.
func (r *Repo) Reserve(parent *models.IPNetwork, n addr.Address, owner *uint) (*models.IPNetwork, error) {
	pn, err := addr.Parse(parent.CIDR)
	if err != nil {
		return nil, fmt.Errorf("parent %d: %w", parent.ID, err)
	}
	if !pn.Contains(n) {
		return nil, fmt.Errorf("%s in %s: %w", n, pn, ErrNotContained)
	}
	if pn == n {
		return parent, nil
	}
	if p, err := r.Instance(n); err != nil || p != nil {
		return p, err
	}
	pid := parent.ID
	child := &models.IPNetwork{
		CIDR:     n.Prefix().String(),
		Family:   family(n),
		MaskLen:  n.Bits(),
		ParentID: &pid,
		OwnerID:  owner,
	}
	return child, r.s.Create(child)
}

// ReserveHost reserves a single address of network for owner. Every
// address is reserved at most once.
func (r *Repo) ReserveHost(network *models.IPNetwork, ip addr.Address, owner *uint) (*models.IPNetwork, error) {
	h := ip.Host()
	if p, err := r.Instance(h); err != nil {
		return nil, err
	} else if p != nil {
		return nil, fmt.Errorf("%s: %w", h, ErrAlreadyReserved)
	}
	return r.Reserve(network, h, owner)
}

type reservation struct {
	net     addr.Address
	comment string
}

// ReserveNets reserves every network broadest first (mask length, address,
// comment), each under the most specific block already known, or as a new
// top-level block. Non-empty comments become the (truncated) description.
func (r *Repo) ReserveNets(nets map[addr.Address]string, owner *uint) error {
	list := make([]reservation, 0, len(nets))
	for n, c := range nets {
		list = append(list, reservation{net: n, comment: c})
	}
	slices.SortFunc(list, func(a, b reservation) int {
		if c := a.net.Compare(b.net); c != 0 {
			return c
		}
		return cmp.Compare(a.comment, b.comment)
	})
	return r.reserveInOrder(list, owner)
}

func (r *Repo) reserveInOrder(list []reservation, owner *uint) error {
	for _, it := range list {
		logs.Logger.Debugf("reserve %s %s", it.net, it.comment)
		parent, err := r.Enclosing(it.net)
		if err != nil {
			return err
		}
		var nw *models.IPNetwork
		if parent != nil {
			nw, err = r.Reserve(parent, it.net, owner)
		} else {
			nw, err = r.CreateRoot(it.net, owner)
		}
		if err != nil {
			return fmt.Errorf("reserve %s: %w", it.net, err)
		}
		if it.comment != "" {
			nw.Desc = truncate(it.comment, maxDesc)
			if err := r.s.Save(nw); err != nil {
				return err
			}
		}
	}
	return nil
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if len(rs) > n {
		return string(rs[:n])
	}
	return s
}

// Children — дочерние блоки.
func (r *Repo) Children(parentID uint) ([]models.IPNetwork, error) {
	var out []models.IPNetwork
	err := r.s.Query(&out, "mask_len ASC, cidr ASC", "parent_id = ?", parentID)
	return out, err
}

// Roots — блоки верхнего уровня.
func (r *Repo) Roots() ([]models.IPNetwork, error) {
	var out []models.IPNetwork
	err := r.s.Query(&out, "family ASC, mask_len ASC, cidr ASC", "parent_id IS NULL")
	return out, err
}

// GetNetwork — блок по ID.
func (r *Repo) GetNetwork(id uint) (*models.IPNetwork, error) {
	var p models.IPNetwork
	ok, err := r.s.Instance(&p, "id = ?", id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("network %d not found", id)
	}
	return &p, nil
}
