package cache

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

// IndexFile is the database name inside the cache directory.
const IndexFile = "index.db"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Index records cached files with their size and last access time.
type Index struct {
	db *sql.DB
}

func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Index{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("sqlite driver: %w", err)
	}

	d, err := iofs.New(embeddedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Touch marks name as used. With created set the entry is inserted or its
// size replaced, keeping the original creation time.
func (x *Index) Touch(ctx context.Context, name string, size int64, created bool) error {
	now := time.Now().UnixNano()
	if created {
		_, err := x.db.ExecContext(ctx, `INSERT OR REPLACE INTO file_cache(name,bytes,accessed_at,created_at) VALUES (?,?,?,COALESCE((SELECT created_at FROM file_cache WHERE name=?),?))`,
			name, size, now, name, now)
		return err
	}
	_, err := x.db.ExecContext(ctx, `UPDATE file_cache SET accessed_at=? WHERE name=?`, now, name)
	return err
}

func (x *Index) Remove(ctx context.Context, name string) error {
	_, err := x.db.ExecContext(ctx, `DELETE FROM file_cache WHERE name=?`, name)
	return err
}

func (x *Index) TotalBytes(ctx context.Context) (int64, error) {
	row := x.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(bytes),0) FROM file_cache`)
	var v int64
	if err := row.Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

// Oldest returns the least recently used entry, or sql.ErrNoRows.
func (x *Index) Oldest(ctx context.Context) (string, error) {
	row := x.db.QueryRowContext(ctx, `SELECT name FROM file_cache ORDER BY accessed_at ASC LIMIT 1`)
	var name string
	if err := row.Scan(&name); err != nil {
		return "", err
	}
	return name, nil
}

func (x *Index) Count(ctx context.Context) (int, error) {
	row := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM file_cache`)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (x *Index) Close() error {
	return x.db.Close()
}
