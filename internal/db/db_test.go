package db

import (
	"testing"

	"ffconvert/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMigrateReset(t *testing.T) {
	d, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, Migrate(d))
	assert.True(t, d.Migrator().HasTable(&models.IPNetwork{}))
	assert.True(t, d.Migrator().HasIndex("ip_networks", "idx_ip_networks_lookup"))
	// ipam queries address the block by this column name
	assert.True(t, d.Migrator().HasColumn("ip_networks", "cidr"))

	// second run is a no-op
	require.NoError(t, Migrate(d))

	require.NoError(t, Reset(d))
	assert.False(t, d.Migrator().HasTable(&models.IPNetwork{}))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "x")
	assert.Error(t, err)
}
