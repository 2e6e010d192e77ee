package db_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/food-facility-search/internal/core/config"
	"github.com/mohammed-shakir/food-facility-search/internal/core/model"
	"github.com/mohammed-shakir/food-facility-search/internal/db"
)

func TestOpen_SQLiteMigratesPermitTable(t *testing.T) {
	h, err := db.Open(context.Background(), config.DBCfg{
		Driver: "sqlite",
		File:   "file:db_open_test?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	require.NoError(t, h.Ping(context.Background()))
	assert.True(t, h.Gorm.Migrator().HasTable(&model.Permit{}))
	assert.True(t, h.Gorm.Migrator().HasTable("mobile_food_facility_permit"))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := db.Open(context.Background(), config.DBCfg{Driver: "oracle"})
	require.Error(t, err)
}

func TestMigrationsAreEmbedded(t *testing.T) {
	names, err := db.MigrationNames()
	require.NoError(t, err)
	assert.Contains(t, names, "0001_create_permits.up.sql")
	assert.Contains(t, names, "0001_create_permits.down.sql")
}
