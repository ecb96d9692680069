package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/j-veylop/policy-analytics-tui/internal/models"
)

const timeLayout = "2006-01-02 15:04:05"

var timeFormats = []string{
	timeLayout,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

func parseTimeString(s string) (time.Time, bool) {
	for _, format := range timeFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// recordColumns lists the data columns of the records table in field order.
var recordColumns = func() []string {
	cols := make([]string, 0, models.NumDimensions+models.NumMeasures)
	for _, d := range models.AllDimensions() {
		cols = append(cols, d.String())
	}
	for _, m := range models.AllMeasures() {
		cols = append(cols, m.String())
	}
	return cols
}()

var insertRecordSQL = fmt.Sprintf("INSERT INTO records (import_id, %s) VALUES (?%s)",
	strings.Join(recordColumns, ", "), strings.Repeat(", ?", len(recordColumns)))

var selectRecordSQL = fmt.Sprintf("SELECT %s FROM records ORDER BY id", strings.Join(recordColumns, ", "))

// InsertImport stores an import batch and its records in one transaction.
// A missing batch ID is filled with a new UUID.
func (db *DB) InsertImport(batch *models.ImportBatch, records []models.Record) error {
	return db.withTx(func(tx *sql.Tx) error {
		return insertImport(tx, batch, records)
	})
}

// ReplaceImport removes earlier batches from the same source path and stores
// the new batch, atomically.
func (db *DB) ReplaceImport(batch *models.ImportBatch, records []models.Record) error {
	return db.withTx(func(tx *sql.Tx) error {
		ctx := context.Background()
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM records WHERE import_id IN (SELECT id FROM imports WHERE source_path = ?)",
			batch.SourcePath); err != nil {
			return fmt.Errorf("failed to remove previous records: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM imports WHERE source_path = ?", batch.SourcePath); err != nil {
			return fmt.Errorf("failed to remove previous import: %w", err)
		}
		return insertImport(tx, batch, records)
	})
}

func insertImport(tx *sql.Tx, batch *models.ImportBatch, records []models.Record) error {
	ctx := context.Background()
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	if batch.ImportedAt.IsZero() {
		batch.ImportedAt = time.Now()
	}
	batch.RowCount = len(records)

	_, err := tx.ExecContext(ctx, `
		INSERT INTO imports (id, source_path, checksum, row_count, rejected_count, warning_count, imported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		batch.ID,
		batch.SourcePath,
		batch.Checksum,
		batch.RowCount,
		batch.RejectedCount,
		batch.WarningCount,
		batch.ImportedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert import: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertRecordSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	args := make([]any, 1+len(recordColumns))
	args[0] = batch.ID
	for i := range records {
		fillRecordArgs(args[1:], &records[i])
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", i+1, err)
		}
	}
	return nil
}

func fillRecordArgs(args []any, r *models.Record) {
	for i, v := range r.Dims {
		switch v.Kind {
		case models.KindString:
			args[i] = v.Str
		case models.KindInt:
			args[i] = v.Int
		case models.KindBool:
			args[i] = v.Bool
		default:
			args[i] = nil
		}
	}
	for i, v := range r.Amounts {
		args[models.NumDimensions+i] = v
	}
}

// LoadRecords returns every stored record in insertion order.
func (db *DB) LoadRecords() ([]models.Record, error) {
	rows, err := db.QueryContext(context.Background(), selectRecordSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		records = []models.Record{}
		strs    [models.NumDimensions]sql.NullString
		ints    [models.NumDimensions]sql.NullInt64
		dest    = make([]any, len(recordColumns))
		rec     models.Record
	)
	for i, d := range models.AllDimensions() {
		if d.Kind() == models.KindString {
			dest[i] = &strs[i]
		} else {
			dest[i] = &ints[i]
		}
	}
	for i := range models.NumMeasures {
		dest[models.NumDimensions+i] = &rec.Amounts[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		for i, d := range models.AllDimensions() {
			rec.Dims[i] = scanValue(d, strs[i], ints[i])
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}

func scanValue(d models.Dimension, s sql.NullString, i sql.NullInt64) models.DimensionValue {
	switch d.Kind() {
	case models.KindString:
		if s.Valid {
			return models.StringValue(s.String)
		}
	case models.KindInt:
		if i.Valid {
			return models.IntValue(i.Int64)
		}
	case models.KindBool:
		if i.Valid {
			return models.BoolValue(i.Int64 != 0)
		}
	}
	return models.NullValue()
}

// CountRecords returns the number of stored records.
func (db *DB) CountRecords() (int, error) {
	var n int
	if err := db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM records").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// ListImports returns import batches, newest first.
func (db *DB) ListImports() ([]models.ImportBatch, error) {
	rows, err := db.QueryContext(context.Background(), `
		SELECT id, source_path, checksum, row_count, rejected_count, warning_count, imported_at
		FROM imports
		ORDER BY imported_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query imports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var batches []models.ImportBatch
	for rows.Next() {
		b, err := scanImport(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, *b)
	}
	return batches, rows.Err()
}

// LastImportFor returns the most recent batch imported from path, or nil.
func (db *DB) LastImportFor(path string) (*models.ImportBatch, error) {
	row := db.QueryRowContext(context.Background(), `
		SELECT id, source_path, checksum, row_count, rejected_count, warning_count, imported_at
		FROM imports
		WHERE source_path = ?
		ORDER BY imported_at DESC, rowid DESC
		LIMIT 1
	`, path)
	b, err := scanImport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImport(s scanner) (*models.ImportBatch, error) {
	var b models.ImportBatch
	var importedAt string
	err := s.Scan(&b.ID, &b.SourcePath, &b.Checksum, &b.RowCount, &b.RejectedCount, &b.WarningCount, &importedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan import: %w", err)
	}
	if t, ok := parseTimeString(importedAt); ok {
		b.ImportedAt = t
	}
	return &b, nil
}

// DeleteImport removes a batch and its records. Records are deleted
// explicitly since foreign_keys is a per-connection pragma.
func (db *DB) DeleteImport(id string) error {
	return db.withTx(func(tx *sql.Tx) error {
		ctx := context.Background()
		if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE import_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete import records: %w", err)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM imports WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete import: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("import %s not found", id)
		}
		return nil
	})
}

// ClearRecords removes every import and record.
func (db *DB) ClearRecords() error {
	return db.withTx(func(tx *sql.Tx) error {
		ctx := context.Background()
		if _, err := tx.ExecContext(ctx, "DELETE FROM records"); err != nil {
			return fmt.Errorf("failed to clear records: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM imports"); err != nil {
			return fmt.Errorf("failed to clear imports: %w", err)
		}
		return nil
	})
}

func (db *DB) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
