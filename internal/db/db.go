// Package db manages the database connection
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	// Import modernc.org/sqlite as a blank import to register the driver
	_ "modernc.org/sqlite"

	"github.com/j-veylop/policy-analytics-tui/internal/models"
)

// DB wraps the SQL database connection with application-specific methods.
type DB struct {
	*sql.DB
	path string
}

// New creates a new database connection and initializes the schema.
func New(path string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.PingContext(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{
		DB:   sqlDB,
		path: path,
	}

	if err := db.configure(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	if err := db.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// configure sets up database pragmas for optimal performance.
func (db *DB) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-64000", // 64MB cache
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(context.Background(), pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return nil
}

func createImportsTable() string {
	return `
	CREATE TABLE IF NOT EXISTS imports (
		id TEXT PRIMARY KEY,
		source_path TEXT NOT NULL,
		checksum TEXT NOT NULL,
		row_count INTEGER NOT NULL DEFAULT 0,
		rejected_count INTEGER NOT NULL DEFAULT 0,
		imported_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_imports_source ON imports(source_path);
	`
}

// createRecordsTable builds the records DDL from the field catalogue so the
// table always has one column per dimension and measure.
func createRecordsTable() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS records (\n")
	b.WriteString("\tid INTEGER PRIMARY KEY AUTOINCREMENT,\n")
	b.WriteString("\timport_id TEXT NOT NULL REFERENCES imports(id) ON DELETE CASCADE,\n")
	for _, d := range models.AllDimensions() {
		typ := "TEXT"
		if d.Kind() != models.KindString {
			typ = "INTEGER"
		}
		fmt.Fprintf(&b, "\t%s %s,\n", d, typ)
	}
	for i, m := range models.AllMeasures() {
		sep := ","
		if i == models.NumMeasures-1 {
			sep = ""
		}
		fmt.Fprintf(&b, "\t%s REAL NOT NULL DEFAULT 0%s\n", m, sep)
	}
	b.WriteString(");\n")
	b.WriteString("CREATE INDEX IF NOT EXISTS idx_records_import ON records(import_id);\n")
	b.WriteString("CREATE INDEX IF NOT EXISTS idx_records_week ON records(policy_start_year, week_number);\n")
	return b.String()
}

// Close closes the database connection gracefully.
func (db *DB) Close() error {
	// Checkpoint WAL before closing
	_, _ = db.ExecContext(context.Background(), "PRAGMA wal_checkpoint(TRUNCATE)")
	return db.DB.Close()
}

// Vacuum rebuilds the file so pages freed by deleted imports are returned
// to the filesystem.
func (db *DB) Vacuum() error {
	if _, err := db.ExecContext(context.Background(), "VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum %s: %w", db.path, err)
	}
	return nil
}
