package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/wcharczuk/observatory/internal/observatory"
)

// MemoryDSN opens a private in-memory sqlite database.
const MemoryDSN = ":memory:"

var _ observatory.Store = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) and migrates a sqlite database at a given path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == MemoryDSN || strings.Contains(path, "mode=memory") {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := migrate(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return NewSQLite(db), nil
}

// NewSQLite returns a store over an already opened and migrated database.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

// SQLite is an [observatory.Store] backed by a single sqlite table.
type SQLite struct {
	db *sql.DB
}

// Get implements [observatory.Store].
func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// Set implements [observatory.Store].
func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Remove implements [observatory.Store].
func (s *SQLite) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
			return fmt.Errorf("remove %q: %w", key, err)
		}
	}
	return tx.Commit()
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
