package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/baechuer/real-time-ressys/client-core/internal/infrastructure/kv"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// Backend keeps key-value pairs in a single SQLite table. It is the durable
// on-device store.
type Backend struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database file and ensures the schema exists.
func Open(ctx context.Context, path string) (*Backend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single writer; sqlite serializes anyway
	db.SetMaxOpenConns(1)

	b := NewWithDB(db)
	if err := b.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func NewWithDB(db *sql.DB) *Backend {
	return &Backend{db: db, now: time.Now}
}

func (b *Backend) Migrate(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create kv table: %w", err)
	}
	return nil
}

func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *Backend) Get(ctx context.Context, key string) (string, bool, error) {
	if b.db == nil {
		return "", false, kv.ErrNotConfigured
	}
	var v string
	err := b.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (b *Backend) Set(ctx context.Context, key, value string) error {
	if b.db == nil {
		return kv.ErrNotConfigured
	}
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, b.now().UTC().Format(time.RFC3339Nano))
	return err
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	if b.db == nil {
		return kv.ErrNotConfigured
	}
	_, err := b.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}

func (b *Backend) Clear(ctx context.Context) error {
	if b.db == nil {
		return kv.ErrNotConfigured
	}
	_, err := b.db.ExecContext(ctx, `DELETE FROM kv`)
	return err
}
