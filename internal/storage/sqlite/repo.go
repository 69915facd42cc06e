// Package sqlite implements storage.Repository on SQLite via the pure-Go
// modernc.org/sqlite driver.
//
// This is the default backend and the one that supports the file-per-sheet
// database layout: each sheet's repository points at its own .db file, so
// sheets never contend for a writer.
//
// SQLite stores datetimes with TEXT affinity, so time values are written as
// strings: date-only ("2006-01-02") when the time of day is midnight,
// RFC 3339 otherwise. That keeps round-trips reliable and the files easy to
// inspect.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"sheetetl/internal/storage"
)

// insertChunkRows bounds multi-row INSERT size so the statement stays well
// under SQLite's bound-variable limit even for wide tables.
const insertChunkRows = 200

type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

// New opens (creating if needed) the SQLite database at cfg.DSN.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// ReplaceTable drops, recreates, and loads a table in one transaction.
// SQLite DDL is transactional, so a failed load leaves any prior version of
// the table untouched.
func (r *Repo) ReplaceTable(ctx context.Context, spec storage.TableSpec, rows [][]any) (int64, error) {
	createSQL, err := buildCreateTableSQL(spec)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", storage.ErrWriteFailed, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %v", storage.ErrWriteFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+sqlIdent(spec.Name)); err != nil {
		return 0, fmt.Errorf("%w: drop %s: %v", storage.ErrWriteFailed, spec.Name, err)
	}
	if _, err := tx.ExecContext(ctx, createSQL); err != nil {
		return 0, fmt.Errorf("%w: create %s: %v", storage.ErrWriteFailed, spec.Name, err)
	}

	var written int64
	for start := 0; start < len(rows); start += insertChunkRows {
		end := start + insertChunkRows
		if end > len(rows) {
			end = len(rows)
		}
		n, err := insertChunk(ctx, tx, spec, rows[start:end])
		if err != nil {
			return 0, fmt.Errorf("%w: insert into %s: %v", storage.ErrWriteFailed, spec.Name, err)
		}
		written += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit %s: %v", storage.ErrWriteFailed, spec.Name, err)
	}
	return written, nil
}

// Tables lists user tables, skipping SQLite's internal bookkeeping tables.
func (r *Repo) Tables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Describe reads a table's columns via PRAGMA table_info, mapping declared
// SQL types back onto the canonical type names.
func (r *Repo) Describe(ctx context.Context, table string) ([]storage.ColumnSpec, error) {
	rows, err := r.db.QueryContext(ctx, "PRAGMA table_info("+sqlIdent(table)+")")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.ColumnSpec
	for rows.Next() {
		var (
			cid     int
			name    string
			sqlType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &sqlType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		out = append(out, storage.ColumnSpec{
			Name:     name,
			Type:     canonicalType(sqlType),
			Nullable: notNull == 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("sqlite: no such table %q", table)
	}
	return out, nil
}

func buildCreateTableSQL(spec storage.TableSpec) (string, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return "", fmt.Errorf("table name is empty")
	}
	if len(spec.Columns) == 0 {
		return "", fmt.Errorf("table %s has no columns", spec.Name)
	}

	parts := make([]string, 0, len(spec.Columns))
	for _, c := range spec.Columns {
		col := sqlIdent(c.Name) + " " + sqlType(c.Type)
		if !c.Nullable {
			col += " NOT NULL"
		}
		parts = append(parts, col)
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", sqlIdent(spec.Name), strings.Join(parts, ",\n  ")), nil
}

func insertChunk(ctx context.Context, tx *sql.Tx, spec storage.TableSpec, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	colList := make([]string, 0, len(spec.Columns))
	for _, c := range spec.Columns {
		colList = append(colList, sqlIdent(c.Name))
	}
	placeholders := "(" + strings.TrimRight(strings.Repeat("?,", len(spec.Columns)), ",") + ")"

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlIdent(spec.Name))
	b.WriteString(" (")
	b.WriteString(strings.Join(colList, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(spec.Columns))
	for i, row := range rows {
		if len(row) != len(spec.Columns) {
			return 0, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(spec.Columns))
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		for _, v := range row {
			args = append(args, bindValue(v))
		}
	}

	res, err := tx.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// bindValue adapts coerced values to what the driver stores best: times
// become text, everything else passes through.
func bindValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return formatTime(t)
	}
	return v
}

// formatTime renders a timestamp as a date when the time of day is
// midnight, and as RFC 3339 otherwise.
func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}

func sqlType(canonical string) string {
	switch canonical {
	case storage.TypeInteger:
		return "INTEGER"
	case storage.TypeReal:
		return "REAL"
	case storage.TypeBoolean:
		return "BOOLEAN"
	case storage.TypeDateTime:
		return "DATETIME"
	default:
		return "TEXT"
	}
}

func canonicalType(sqlType string) string {
	switch strings.ToUpper(strings.TrimSpace(sqlType)) {
	case "INTEGER", "INT", "BIGINT":
		return storage.TypeInteger
	case "REAL", "FLOAT", "DOUBLE":
		return storage.TypeReal
	case "BOOLEAN", "BOOL":
		return storage.TypeBoolean
	case "DATETIME", "TIMESTAMP", "DATE":
		return storage.TypeDateTime
	default:
		return storage.TypeText
	}
}

func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
