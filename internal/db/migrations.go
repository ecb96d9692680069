package db

import (
	"context"
	"fmt"
)

// migrations are applied in order; the schema version stored in
// PRAGMA user_version is the number of migrations already applied.
var migrations = []func() string{
	createImportsTable,
	createRecordsTable,
	func() string {
		return `ALTER TABLE imports ADD COLUMN warning_count INTEGER NOT NULL DEFAULT 0;`
	},
}

// SchemaVersion returns the applied migration count.
func (db *DB) SchemaVersion() (int, error) {
	var v int
	if err := db.QueryRowContext(context.Background(), "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// migrate brings the schema up to date. Each step runs in its own
// transaction together with the version bump.
func (db *DB) migrate() error {
	current, err := db.SchemaVersion()
	if err != nil {
		return err
	}
	if current > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than this build (%d)", current, len(migrations))
	}

	ctx := context.Background()
	for i := current; i < len(migrations); i++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to apply migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", i+1, err)
		}
	}
	return nil
}
