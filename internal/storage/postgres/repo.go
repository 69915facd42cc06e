// Package postgres implements storage.Repository on PostgreSQL via pgx.
//
// All sheets of a workbook land in one database: each sheet becomes a table
// in the public schema, loaded with the COPY protocol.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sheetetl/internal/storage"
)

type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

// New connects to the database named by cfg.DSN (a pgx connection string or
// URL) and verifies the connection.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

func (r *Repo) Close() { r.pool.Close() }

// ReplaceTable drops, recreates, and bulk-loads a table in one transaction
// using CopyFrom.
func (r *Repo) ReplaceTable(ctx context.Context, spec storage.TableSpec, rows [][]any) (int64, error) {
	createSQL, err := buildCreateTableSQL(spec)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", storage.ErrWriteFailed, err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %v", storage.ErrWriteFailed, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+pgx.Identifier{spec.Name}.Sanitize()); err != nil {
		return 0, fmt.Errorf("%w: drop %s: %v", storage.ErrWriteFailed, spec.Name, err)
	}
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, fmt.Errorf("%w: create %s: %v", storage.ErrWriteFailed, spec.Name, err)
	}

	var written int64
	if len(rows) > 0 {
		cols := make([]string, 0, len(spec.Columns))
		for _, c := range spec.Columns {
			cols = append(cols, c.Name)
		}
		written, err = tx.CopyFrom(ctx, pgx.Identifier{spec.Name}, cols, pgx.CopyFromRows(rows))
		if err != nil {
			return 0, fmt.Errorf("%w: copy into %s: %v", storage.ErrWriteFailed, spec.Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: commit %s: %v", storage.ErrWriteFailed, spec.Name, err)
	}
	return written, nil
}

// Tables lists base tables in the public schema.
func (r *Repo) Tables(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		 ORDER BY table_name`)
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

// Describe reads a table's columns from information_schema.
func (r *Repo) Describe(ctx context.Context, table string) ([]storage.ColumnSpec, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT column_name, data_type, is_nullable FROM information_schema.columns
		 WHERE table_schema = 'public' AND table_name = $1
		 ORDER BY ordinal_position`, table)
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
		return nil, fmt.Errorf("postgres: no such table %q", table)
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
		col := pgx.Identifier{c.Name}.Sanitize() + " " + sqlType(c.Type)
		if !c.Nullable {
			col += " NOT NULL"
		}
		parts = append(parts, col)
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);",
		pgx.Identifier{spec.Name}.Sanitize(), strings.Join(parts, ",\n  ")), nil
}

func sqlType(canonical string) string {
	switch canonical {
	case storage.TypeInteger:
		return "BIGINT"
	case storage.TypeReal:
		return "DOUBLE PRECISION"
	case storage.TypeBoolean:
		return "BOOLEAN"
	case storage.TypeDateTime:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func canonicalType(dataType string) string {
	switch strings.ToLower(strings.TrimSpace(dataType)) {
	case "bigint", "integer", "smallint":
		return storage.TypeInteger
	case "double precision", "real", "numeric":
		return storage.TypeReal
	case "boolean":
		return storage.TypeBoolean
	case "timestamp without time zone", "timestamp with time zone", "date":
		return storage.TypeDateTime
	default:
		return storage.TypeText
	}
}
