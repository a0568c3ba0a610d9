package migration

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/erp/ledger/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add payments index", "add_payments_index"},
		{"Add-Payments-Index", "add_payments_index"},
		{"ADD__PAYMENTS__INDEX", "add_payments_index"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	mf, err := createMigrationAt(dir, "add payment method index", "speeds up method filters", now)
	require.NoError(t, err)

	assert.Equal(t, "20240501093000", mf.Version)
	assert.Equal(t, filepath.Join(dir, "20240501093000_add_payment_method_index.up.sql"), mf.UpPath)
	assert.Equal(t, filepath.Join(dir, "20240501093000_add_payment_method_index.down.sql"), mf.DownPath)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Migration: add payment method index")
	assert.Contains(t, string(up), "-- Description: speeds up method filters")

	_, err = createMigrationAt(dir, "other", "", now)
	assert.Error(t, err, "same version twice")

	_, err = createMigrationAt(dir, "!!!", "", now.Add(time.Second))
	assert.Error(t, err)
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"20240502000000_b.up.sql":   {},
		"20240502000000_b.down.sql": {},
		"20240501000000_a.up.sql":   {},
		"20240501000000_a.down.sql": {},
		"README.md":                 {},
		"nested/x.up.sql":           {},
	}

	names, err := ListMigrations(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"20240501000000_a", "20240502000000_b"}, names)

	versions, err := ListVersions(fsys)
	require.NoError(t, err)
	assert.Equal(t, []uint{20240501000000, 20240502000000}, versions)

	_, err = ListVersions(fstest.MapFS{"init.up.sql": {}})
	assert.Error(t, err)
}

func TestListMigrations_MissingDir(t *testing.T) {
	names, err := ListMigrations(os.DirFS(filepath.Join(t.TempDir(), "missing")))
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	names, err := ListMigrations(migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, names)

	for _, name := range names {
		_, err := migrations.FS.Open(name + ".down.sql")
		assert.NoError(t, err, "%s has no down migration", name)
	}
	_, err = ListVersions(migrations.FS)
	assert.NoError(t, err)
}
