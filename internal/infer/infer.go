// Package infer assigns a relational type to every cleaned column and
// coerces cell values to match.
//
// Inference is a pure, total function: it never fails, because text is the
// universal fallback. A whole column must qualify for a type: one value
// that fails to parse rejects the type for the column, never just for the
// row. That rule is what guarantees the same cleaned table always yields
// the same schema.
package infer

import (
	"math"
	"strconv"
	"strings"

	"sheetetl/internal/cleaner"
	"sheetetl/internal/workbook"
)

// Type is the closed set of column types the pipeline can produce.
type Type string

const (
	TypeBoolean  Type = "boolean"
	TypeInteger  Type = "integer"
	TypeReal     Type = "real"
	TypeDateTime Type = "datetime"
	TypeText     Type = "text"
)

// ColumnSchema is the inferred shape of one column.
type ColumnSchema struct {
	Name     string
	Type     Type
	Nullable bool
}

// Infer examines each column of a cleaned table independently and returns
// one schema per column plus the row values coerced to their inferred types.
//
// Priority order per column, over the non-empty values only:
// boolean → integer → real → datetime → text. A column with no values at
// all is text and nullable. A column is nullable when any row has an empty
// cell for it.
//
// Coerced values are bool, int64, float64, time.Time, or string; empty
// cells coerce to nil.
func Infer(t *cleaner.Table) ([]ColumnSchema, [][]any) {
	schemas := make([]ColumnSchema, len(t.Columns))

	for col, name := range t.Columns {
		var values []string
		nullable := false
		for _, row := range t.Rows {
			cell := row[col]
			if cell.IsEmpty() {
				nullable = true
				continue
			}
			values = append(values, cell.Value)
		}

		schemas[col] = ColumnSchema{
			Name:     name,
			Type:     inferColumn(values),
			Nullable: nullable || len(values) == 0,
		}
	}

	rows := make([][]any, len(t.Rows))
	for i, row := range t.Rows {
		out := make([]any, len(row))
		for col, cell := range row {
			out[col] = coerce(cell, schemas[col].Type)
		}
		rows[i] = out
	}

	return schemas, rows
}

// inferColumn picks the highest-priority type every value qualifies for.
func inferColumn(values []string) Type {
	if len(values) == 0 {
		return TypeText
	}
	if all(values, isBool) {
		return TypeBoolean
	}
	if all(values, isInteger) {
		return TypeInteger
	}
	if all(values, isReal) {
		return TypeReal
	}
	if all(values, isDateTime) {
		return TypeDateTime
	}
	return TypeText
}

func all(values []string, ok func(string) bool) bool {
	for _, v := range values {
		if !ok(v) {
			return false
		}
	}
	return true
}

func isBool(s string) bool {
	_, ok := workbook.ParseBoolLiteral(s)
	return ok
}

func isInteger(s string) bool {
	_, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return err == nil
}

func isReal(s string) bool {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil && !math.IsInf(f, 0) && !math.IsNaN(f)
}

func isDateTime(s string) bool {
	if _, _, ok := workbook.ParseDate(s); ok {
		return true
	}
	_, _, ok := workbook.ParseTimestamp(s)
	return ok
}

// coerce converts one cell to the column's inferred type. Inference already
// proved the value parses, so parse errors here would be programming errors;
// coerce falls back to the raw text rather than panic.
func coerce(cell workbook.Cell, t Type) any {
	if cell.IsEmpty() {
		return nil
	}
	v := cell.Value

	switch t {
	case TypeBoolean:
		if b, ok := workbook.ParseBoolLiteral(v); ok {
			return b
		}
	case TypeInteger:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
	case TypeReal:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	case TypeDateTime:
		if ts, _, ok := workbook.ParseDate(v); ok {
			return ts
		}
		if ts, _, ok := workbook.ParseTimestamp(v); ok {
			return ts
		}
	}
	return v
}
