package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"departure-board-backend/config"
	"departure-board-backend/internal/model"
)

func TestDialector(t *testing.T) {
	testCases := []struct {
		dsn  string
		want string
	}{
		{"postgres://user:pw@localhost:5432/boards", "postgres"},
		{"host=localhost user=boards dbname=boards sslmode=disable", "postgres"},
		{"file::memory:", "sqlite"},
		{"./boards.db", "sqlite"},
	}

	for _, tc := range testCases {
		t.Run(tc.dsn, func(t *testing.T) {
			assert.Equal(t, tc.want, Dialector(tc.dsn).Name())
		})
	}
}

func TestInit_SQLite(t *testing.T) {
	gdb, err := Init(&config.DatabaseConfig{DSN: filepath.Join(t.TempDir(), "boards.db")}, false)
	require.NoError(t, err)

	for _, m := range Models {
		assert.True(t, gdb.Migrator().HasTable(m))
	}
	assert.True(t, gdb.Migrator().HasTable("subscription_route_mapping"))

	require.NoError(t, gdb.Create(&model.Route{ID: "wok", Name: "Woking", StationCRS: "WOK", DestinationCRS: "ALL"}).Error)
}
