package repo

import (
	"path/filepath"
	"testing"

	"ffconvert/internal/db"
	"ffconvert/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScope(t *testing.T) *Scope {
	t.Helper()
	d, err := db.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(d))
	s, err := NewScope(d)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestScopeBatching(t *testing.T) {
	s := newScope(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Create(&models.Nickname{Name: "n"}))
	}
	assert.Equal(t, 3, s.Uncommitted())

	require.NoError(t, CommitOver(s, 5))
	assert.Equal(t, 0, s.Commits())

	require.NoError(t, CommitOver(s, 2))
	assert.Equal(t, 1, s.Commits())
	assert.Equal(t, 0, s.Uncommitted())

	var got []models.Nickname
	require.NoError(t, s.Query(&got, "", nil))
	assert.Len(t, got, 3)
}

func TestScopeInstance(t *testing.T) {
	s := newScope(t)
	require.NoError(t, s.Create(&models.Email{Address: "a@example.org"}))

	var e models.Email
	ok, err := s.Instance(&e, "address = ?", "a@example.org")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotZero(t, e.ID)

	var missing models.Email
	ok, err = s.Instance(&missing, "address = ?", "b@example.org")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScopeClosed(t *testing.T) {
	s := newScope(t)
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Create(&models.Nickname{}), ErrClosed)
	assert.NoError(t, s.Close())
}

func TestScopeRollbackKeepsCommitted(t *testing.T) {
	file := filepath.Join(t.TempDir(), "scope.db")
	d, err := db.Open("sqlite", file)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(d))
	s, err := NewScope(d)
	require.NoError(t, err)

	require.NoError(t, s.Create(&models.Nickname{Name: "kept"}))
	require.NoError(t, s.Commit())
	require.NoError(t, s.Create(&models.Nickname{Name: "dropped"}))
	require.NoError(t, s.Rollback())
	assert.Equal(t, 0, s.Uncommitted())
	assert.ErrorIs(t, s.Create(&models.Nickname{}), ErrClosed)
	assert.NoError(t, s.Rollback())

	d, err = db.Open("sqlite", file)
	require.NoError(t, err)
	var names []string
	require.NoError(t, d.Model(&models.Nickname{}).Pluck("name", &names).Error)
	assert.Equal(t, []string{"kept"}, names)
	sqlDB, err := d.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}
