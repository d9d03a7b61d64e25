package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marianozunino/ezyshare/internal/config"
	"github.com/marianozunino/ezyshare/internal/db"
	"github.com/marianozunino/ezyshare/internal/storage"
)

// Config returns a default config pointing the database and local storage at
// fresh temp directories.
func Config(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Database.DSN = filepath.Join(dir, "test.db")
	cfg.Storage.LocalPath = filepath.Join(dir, "storage")
	cfg.Storage.SigningKey = "test-signing-key"
	cfg.Expiration.Enabled = false
	return cfg
}

// NewTestDB opens a migrated SQLite database that is closed with the test.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	conn, err := db.NewDB(config.DatabaseConfig{
		Driver: config.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

// NewTestStore creates a local object store under a temp directory.
func NewTestStore(t *testing.T) *storage.LocalStore {
	t.Helper()

	store, err := storage.NewLocalStore(t.TempDir(), "http://localhost:3002/", []byte("test-signing-key"))
	require.NoError(t, err)
	return store
}
