package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"
	_ "modernc.org/sqlite"          // registers "sqlite"
)

type sqlBackend struct {
	db     *sql.DB
	driver string
	table  string
}

func openSQL(ctx context.Context, driver string, o Options) (Backend, error) {
	if err := os.MkdirAll(o.Dir, 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, filepath.Join(o.Dir, dbFilename))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	// go-sqlite3 built without cgo only fails once it is used
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (key TEXT PRIMARY KEY NOT NULL, value BLOB NOT NULL)", o.Name)); err != nil {
		db.Close()
		return nil, err
	}

	return &sqlBackend{
		db:     db,
		driver: driver,
		table:  o.Name,
	}, nil
}

func openSQLite3(ctx context.Context, o Options) (Backend, error) {
	return openSQL(ctx, DriverSQLite3, o)
}

func openSQLite(ctx context.Context, o Options) (Backend, error) {
	return openSQL(ctx, DriverSQLite, o)
}

func (b *sqlBackend) Name() string {
	return b.driver
}

func (b *sqlBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	switch err := b.db.QueryRowContext(ctx, fmt.Sprintf("SELECT value FROM %s WHERE key = ?", b.table), key).Scan(&value); err {
	case sql.ErrNoRows:
		return nil, ErrNotExist
	case nil:
		return value, nil
	default:
		return nil, err
	}
}

func (b *sqlBackend) Set(ctx context.Context, key string, value []byte) error {
	if _, err := b.db.ExecContext(ctx, fmt.Sprintf("INSERT OR REPLACE INTO %s (key, value) VALUES (?, ?)", b.table), key, value); err != nil {
		return err
	}
	return nil
}

func (b *sqlBackend) Delete(ctx context.Context, key string) error {
	if _, err := b.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE key = ?", b.table), key); err != nil {
		return err
	}
	return nil
}

func (b *sqlBackend) Close() error {
	return b.db.Close()
}
