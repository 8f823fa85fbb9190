package convert

import (
	"fmt"

	"ffconvert/internal/models"
	"ffconvert/internal/repo"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	GroupFFW   = "FFW"
	GroupAdmin = "FFW-admin"
)

// Seed creates the standard auth groups and the admin accounts of a new
// store. Existing rows are kept.
func Seed(s repo.Store, admins []string) error {
	groups := map[string]*models.AuthGroup{}
	for _, name := range []string{GroupFFW, GroupAdmin} {
		g := &models.AuthGroup{}
		ok, err := s.Instance(g, "name = ?", name)
		if err != nil {
			return err
		}
		if !ok {
			g = &models.AuthGroup{Name: name}
			if err := s.Create(g); err != nil {
				return err
			}
		}
		groups[name] = g
	}
	for _, name := range admins {
		acc := &models.Account{}
		ok, err := s.Instance(acc, "name = ?", name)
		if err != nil {
			return err
		}
		if !ok {
			hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("password for %s: %w", name, err)
			}
			acc = &models.Account{Name: name, Enabled: true, Superuser: true, PasswordHash: string(hash)}
			if err := s.Create(acc); err != nil {
				return err
			}
		}
		var aig models.AccountInGroup
		ok, err = s.Instance(&aig, "account_id = ? AND group_id = ?", acc.ID, groups[GroupAdmin].ID)
		if err != nil {
			return err
		}
		if !ok {
			if err := s.Create(&models.AccountInGroup{AccountID: acc.ID, GroupID: groups[GroupAdmin].ID}); err != nil {
				return err
			}
		}
	}
	return s.Commit()
}
