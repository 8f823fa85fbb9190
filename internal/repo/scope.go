package repo

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Store — контракт хранилища, с которым работает конвертер: create,
// instance (existing-or-nil), query, commit и счётчик незакоммиченного.
type Store interface {
	Create(v any) error
	Save(v any) error
	Instance(dst any, query any, args ...any) (bool, error)
	Query(dst any, order string, query any, args ...any) error
	Commit() error
	Uncommitted() int
}

// Scope wraps one open transaction. Commit ends it and opens the next, so
// callers batch by checking Uncommitted.
type Scope struct {
	db      *gorm.DB
	tx      *gorm.DB
	pending int
	commits int
}

var ErrClosed = errors.New("scope closed")

func NewScope(db *gorm.DB) (*Scope, error) {
	if db == nil {
		return nil, errors.New("scope: nil db")
	}
	s := &Scope{db: db}
	if err := s.begin(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scope) begin() error {
	tx := s.db.Begin()
	if tx.Error != nil {
		return fmt.Errorf("begin: %w", tx.Error)
	}
	s.tx = tx
	return nil
}

func (s *Scope) Create(v any) error {
	if s.tx == nil {
		return ErrClosed
	}
	if err := s.tx.Create(v).Error; err != nil {
		return fmt.Errorf("create %T: %w", v, err)
	}
	s.pending++
	return nil
}

func (s *Scope) Save(v any) error {
	if s.tx == nil {
		return ErrClosed
	}
	if err := s.tx.Save(v).Error; err != nil {
		return fmt.Errorf("save %T: %w", v, err)
	}
	s.pending++
	return nil
}

// Instance loads the first row matching query into dst. Not found is
// (false, nil).
func (s *Scope) Instance(dst any, query any, args ...any) (bool, error) {
	if s.tx == nil {
		return false, ErrClosed
	}
	err := s.tx.Where(query, args...).First(dst).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Query loads all rows matching query in the given order ("" keeps id order).
func (s *Scope) Query(dst any, order string, query any, args ...any) error {
	if s.tx == nil {
		return ErrClosed
	}
	if order == "" {
		order = "id"
	}
	q := s.tx.Order(order)
	if query != nil {
		q = q.Where(query, args...)
	}
	return q.Find(dst).Error
}

func (s *Scope) Commit() error {
	if s.tx == nil {
		return ErrClosed
	}
	if err := s.tx.Commit().Error; err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.pending = 0
	s.commits++
	return s.begin()
}

func (s *Scope) Uncommitted() int { return s.pending }
func (s *Scope) Commits() int     { return s.commits }

// DB exposes the open transaction for queries the Store contract lacks.
func (s *Scope) DB() *gorm.DB { return s.tx }

// Close commits what is pending and releases the connection pool.
func (s *Scope) Close() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit().Error
	s.tx = nil
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Rollback drops the pending batch and releases the connection pool.
// Batches committed earlier stay.
func (s *Scope) Rollback() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback().Error
	s.tx = nil
	s.pending = 0
	sqlDB, derr := s.db.DB()
	if derr != nil {
		return derr
	}
	if cerr := sqlDB.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// CommitOver is the batching rule shared by all writers: commit once more
// than n changes are pending.
func CommitOver(s Store, n int) error {
	if s.Uncommitted() > n {
		return s.Commit()
	}
	return nil
}
