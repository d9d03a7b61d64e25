package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/marianozunino/ezyshare/internal/config"
)

//go:embed migrations/*.sql
var MigrationsFS embed.FS

// Manager handles database migrations
type Manager struct {
	migrator *migrate.Migrate
}

// NewManagerWithDB creates a new migration manager using an existing database connection
func NewManagerWithDB(db *sql.DB, driver string) (*Manager, error) {
	var (
		dbDriver database.Driver
		err      error
	)

	switch driver {
	case config.DriverSQLite:
		dbDriver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	case config.DriverPostgres:
		dbDriver, err = pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	default:
		return nil, fmt.Errorf("unsupported migration driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	sourceDriver, err := iofs.New(MigrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, driver, dbDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return &Manager{migrator: migrator}, nil
}

// Run applies all pending migrations on db.
func Run(db *sql.DB, driver string) error {
	m, err := NewManagerWithDB(db, driver)
	if err != nil {
		return err
	}
	return m.Up()
}

// Up runs all pending migrations
func (m *Manager) Up() error {
	err := m.migrator.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		slog.Debug("no new migrations to run")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("migrations completed successfully")
	return nil
}

// Down rolls back the last migration
func (m *Manager) Down() error {
	err := m.migrator.Steps(-1)
	if errors.Is(err, migrate.ErrNoChange) {
		slog.Info("no migrations to rollback")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	slog.Info("migration rollback completed successfully")
	return nil
}

// Force sets the migration version without running migrations
func (m *Manager) Force(version int) error {
	if err := m.migrator.Force(version); err != nil {
		return fmt.Errorf("failed to force migration version: %w", err)
	}

	slog.Info("migration version forced", "version", version)
	return nil
}

// Version returns the current migration version
func (m *Manager) Version() (uint, bool, error) {
	version, dirty, err := m.migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}

	return version, dirty, nil
}
