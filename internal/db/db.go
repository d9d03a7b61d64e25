package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/marianozunino/ezyshare/internal/config"
	"github.com/marianozunino/ezyshare/internal/migration"
	"github.com/marianozunino/ezyshare/internal/model"
)

// ErrNotFound is returned when no live row matches.
var ErrNotFound = errors.New("share not found")

type DB struct {
	*sqlx.DB
	driver string
}

// NewDB opens the configured database, checks the connection and applies migrations.
func NewDB(cfg config.DatabaseConfig) (*DB, error) {
	if cfg.Driver == config.DriverSQLite {
		if dir := filepath.Dir(sqlitePath(cfg.DSN)); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	}

	conn, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.Driver == config.DriverSQLite {
		// One writer at a time keeps SQLite away from SQLITE_BUSY.
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migration.Run(conn.DB, cfg.Driver); err != nil {
		conn.Close()
		return nil, err
	}

	slog.Info("database connected", "driver", cfg.Driver)
	return &DB{DB: conn, driver: cfg.Driver}, nil
}

func sqlitePath(dsn string) string {
	dsn = strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		dsn = dsn[:i]
	}
	return dsn
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// Driver returns the database/sql driver name in use.
func (db *DB) Driver() string {
	return db.driver
}

// dbTime normalises timestamps so SQLite text comparison and Postgres
// microsecond precision agree.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// InsertShare stores a new share row.
func (db *DB) InsertShare(ctx context.Context, s *model.Share) error {
	query := db.Rebind(`INSERT INTO shares
		(id, kind, display_name, size_bytes, content_type, storage_locator, inline_text, pin, created_at, expires_at, download_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := db.ExecContext(ctx, query,
		s.ID,
		string(s.Kind),
		s.DisplayName,
		s.SizeBytes,
		s.ContentType,
		s.StorageLocator,
		s.InlineText,
		s.Pin,
		dbTime(s.CreatedAt),
		dbTime(s.ExpiresAt),
		s.DownloadCount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert share %s: %w", s.ID, err)
	}
	return nil
}

// ShareByID returns the share with the given id if it is live at now.
func (db *DB) ShareByID(ctx context.Context, id string, now time.Time) (*model.Share, error) {
	var s model.Share
	query := db.Rebind(`SELECT * FROM shares WHERE id = ? AND expires_at > ?`)

	err := db.GetContext(ctx, &s, query, id, dbTime(now))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get share %s: %w", id, err)
	}
	return &s, nil
}

// ShareByPin returns the most recently created live share carrying pin.
// Older shares that happen to use the same PIN are shadowed.
func (db *DB) ShareByPin(ctx context.Context, pin string, now time.Time) (*model.Share, error) {
	var s model.Share
	query := db.Rebind(`SELECT * FROM shares
		WHERE pin = ? AND expires_at > ?
		ORDER BY created_at DESC
		LIMIT 1`)

	err := db.GetContext(ctx, &s, query, pin, dbTime(now))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find share by pin: %w", err)
	}
	return &s, nil
}

// IncrementDownloadCount bumps the counter of a share by one.
func (db *DB) IncrementDownloadCount(ctx context.Context, id string) error {
	query := db.Rebind(`UPDATE shares SET download_count = download_count + 1 WHERE id = ?`)

	res, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment download count for %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpiredShares lists up to limit shares whose expiry is at or before now,
// skipping the first offset of them.
func (db *DB) ExpiredShares(ctx context.Context, now time.Time, limit, offset int) ([]model.Share, error) {
	var shares []model.Share
	query := db.Rebind(`SELECT * FROM shares WHERE expires_at <= ? ORDER BY expires_at, id LIMIT ? OFFSET ?`)

	if err := db.SelectContext(ctx, &shares, query, dbTime(now), limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list expired shares: %w", err)
	}
	return shares, nil
}

// DeleteShare removes a share row.
func (db *DB) DeleteShare(ctx context.Context, id string) error {
	query := db.Rebind(`DELETE FROM shares WHERE id = ?`)

	if _, err := db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete share %s: %w", id, err)
	}
	return nil
}

// CountShares returns the number of rows, expired ones included.
func (db *DB) CountShares(ctx context.Context) (int, error) {
	var n int
	if err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM shares`); err != nil {
		return 0, fmt.Errorf("failed to count shares: %w", err)
	}
	return n, nil
}
