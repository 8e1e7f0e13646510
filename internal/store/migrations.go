package store

import (
	"context"
	"database/sql"
	"fmt"
)

// schema holds the statements that bring a database from one version to the
// next; schema[i] upgrades a database at user_version i to i+1.
//
// Steps are append only.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

// migrate enables WAL and applies the schema steps the database is missing,
// recording progress in the sqlite user_version.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	version, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if version > len(schema) {
		return fmt.Errorf("schema version %d is newer than supported version %d", version, len(schema))
	}
	for ; version < len(schema); version++ {
		if err := migrateStep(ctx, db, version); err != nil {
			return fmt.Errorf("migrate to schema version %d: %w", version+1, err)
		}
	}
	return nil
}

func schemaVersion(ctx context.Context, db *sql.DB) (version int, err error) {
	if err = db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		err = fmt.Errorf("read schema version: %w", err)
	}
	return
}

func migrateStep(ctx context.Context, db *sql.DB, version int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, schema[version]); err != nil {
		return err
	}
	// pragmas do not take bound parameters
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version+1)); err != nil {
		return err
	}
	return tx.Commit()
}
