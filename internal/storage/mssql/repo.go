// Package mssql implements storage.Repository on SQL Server.
//
// Inserts are batched to stay under the server's 2100 bound-parameter limit.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"sheetetl/internal/storage"
)

// maxParamsPerStmt leaves headroom under SQL Server's 2100-parameter cap.
const maxParamsPerStmt = 2000

type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("mssql", New)
}

// New connects with the sqlserver driver using cfg.DSN.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
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

	chunk := maxParamsPerStmt / len(spec.Columns)
	if chunk < 1 {
		chunk = 1
	}

	var written int64
	for start := 0; start < len(rows); start += chunk {
		end := start + chunk
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

// Tables lists base tables in the dbo schema.
func (r *Repo) Tables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		 WHERE TABLE_SCHEMA = 'dbo' AND TABLE_TYPE = 'BASE TABLE'
		 ORDER BY TABLE_NAME`)
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

// Describe reads a table's columns from INFORMATION_SCHEMA.COLUMNS.
func (r *Repo) Describe(ctx context.Context, table string) ([]storage.ColumnSpec, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE FROM INFORMATION_SCHEMA.COLUMNS
		 WHERE TABLE_SCHEMA = 'dbo' AND TABLE_NAME = @p1
		 ORDER BY ORDINAL_POSITION`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.ColumnSpec
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return nil, err
		}
		out = append(out, storage.ColumnSpec{
			Name:     name,
			Type:     canonicalType(dataType),
			Nullable: strings.EqualFold(nullable, "YES"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("mssql: no such table %q", table)
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

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlIdent(spec.Name))
	b.WriteString(" (")
	b.WriteString(strings.Join(colList, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(spec.Columns))
	p := 1
	for i, row := range rows {
		if len(row) != len(spec.Columns) {
			return 0, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(spec.Columns))
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j, v := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "@p%d", p)
			p++
			args = append(args, v)
		}
		b.WriteString(")")
	}

	res, err := tx.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func sqlType(canonical string) string {
	switch canonical {
	case storage.TypeInteger:
		return "BIGINT"
	case storage.TypeReal:
		return "FLOAT"
	case storage.TypeBoolean:
		return "BIT"
	case storage.TypeDateTime:
		return "DATETIME2"
	default:
		return "NVARCHAR(MAX)"
	}
}

func canonicalType(dataType string) string {
	switch strings.ToLower(strings.TrimSpace(dataType)) {
	case "bigint", "int", "smallint", "tinyint":
		return storage.TypeInteger
	case "float", "real", "decimal", "numeric":
		return storage.TypeReal
	case "bit":
		return storage.TypeBoolean
	case "datetime2", "datetime", "date", "datetimeoffset":
		return storage.TypeDateTime
	default:
		return storage.TypeText
	}
}

func sqlIdent(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}
