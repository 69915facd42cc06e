// Package cleaner turns one raw sheet grid plus its config entry into a
// rectangular table of named columns.
//
// Clean is a pure function of (grid, entry): no I/O, no shared state. The
// same inputs always produce the same table, which is what makes ingestion
// idempotent end to end.
package cleaner

import (
	"errors"
	"fmt"
	"strings"

	"sheetetl/internal/config"
	"sheetetl/internal/workbook"
)

// ErrNoColumnsSurvived marks a degenerate or misconfigured sheet where
// header merging drops every column.
var ErrNoColumnsSurvived = errors.New("no columns survived header merge")

// ErrNoHeaderRows marks an entry with no header rows, which leaves nothing
// to name columns from.
var ErrNoHeaderRows = errors.New("entry has no header rows")

// headerSep joins non-empty header cells when a column name spans several
// header rows.
const headerSep = " "

// MetadataColumn is the name of the synthetic column carrying pre-header
// metadata when an entry opts in.
const MetadataColumn = "extra_info"

// Table is a cleaned, rectangular sheet: uniquely named columns and
// homogeneous rows. Every row has exactly len(Columns) cells and no row is
// entirely empty.
type Table struct {
	Columns []string
	Rows    [][]workbook.Cell

	// Meta is the collapsed pre-header metadata string, empty unless the
	// entry enabled capture and the sheet had any.
	Meta string
}

// Clean applies a config entry to a sheet grid.
//
// The algorithm, in order:
//  1. Excluded rows and columns are removed from consideration entirely;
//     they contribute to neither headers nor data.
//  2. Column names are built by merging the header rows top-to-bottom per
//     column; a column whose header cells are all empty is dropped.
//  3. Duplicate names get numeric suffixes (name, name_2, ...) left to right.
//  4. Rows strictly after the last header row become data rows in original
//     order; cells pass through verbatim; fully blank rows are dropped.
//
// Rows above the first header row become the Meta string when the entry's
// CaptureMetadata is set, and the table gains an extra_info column holding
// it on every row.
//
// A column-mode entry transposes the grid first; every rule above then
// applies to the transposed grid, so header rows and exclusions index into
// it.
func Clean(g workbook.Grid, e config.Entry) (*Table, error) {
	if len(e.HeaderRows) == 0 {
		return nil, fmt.Errorf("%w: sheet %q", ErrNoHeaderRows, e.Sheet)
	}
	if e.Transposed() {
		g = g.Transpose()
	}

	excludedRows := e.ExcludedRows.Expand()
	excludedCols := make(map[int]struct{})
	for _, c := range e.ExcludedColumns {
		excludedCols[c] = struct{}{}
	}

	// Merge headers per surviving column.
	type column struct {
		index int
		name  string
	}
	var cols []column
	for c := 0; c < g.Cols(); c++ {
		if _, ok := excludedCols[c]; ok {
			continue
		}
		var parts []string
		for _, h := range e.HeaderRows {
			if cell := g.Cell(h, c); !cell.IsEmpty() {
				parts = append(parts, strings.TrimSpace(cell.Value))
			}
		}
		name := strings.Join(parts, headerSep)
		if name == "" {
			// Empty header span: the column does not survive.
			continue
		}
		cols = append(cols, column{index: c, name: name})
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: sheet %q", ErrNoColumnsSurvived, e.Sheet)
	}

	// Pre-header metadata, gathered before dedupe so the synthetic column
	// participates in uniqueness.
	meta := ""
	if e.CaptureMetadata {
		meta = collapseMetadata(g, e, excludedRows, excludedCols)
	}

	names := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		names = append(names, c.name)
	}
	if meta != "" {
		names = append(names, MetadataColumn)
	}
	names = dedupeNames(names)

	// Data rows: everything strictly after the last header row.
	last := e.HeaderRows[0]
	for _, h := range e.HeaderRows[1:] {
		if h > last {
			last = h
		}
	}

	var rows [][]workbook.Cell
	for r := last + 1; r < g.Rows(); r++ {
		if _, ok := excludedRows[r]; ok {
			continue
		}
		row := make([]workbook.Cell, 0, len(names))
		blank := true
		for _, c := range cols {
			cell := g.Cell(r, c.index)
			if !cell.IsEmpty() {
				blank = false
			}
			row = append(row, cell)
		}
		if blank {
			continue
		}
		if meta != "" {
			row = append(row, workbook.Cell{Kind: workbook.Text, Value: meta})
		}
		rows = append(rows, row)
	}

	return &Table{Columns: names, Rows: rows, Meta: meta}, nil
}

// dedupeNames resolves duplicate column names by appending _2, _3, ... in
// left-to-right order. The first occurrence keeps the bare name. Suffixed
// results that collide with later originals keep counting up until unique.
func dedupeNames(names []string) []string {
	seen := make(map[string]int, len(names))
	out := make([]string, len(names))
	for i, n := range names {
		if _, dup := seen[n]; !dup {
			seen[n] = 1
			out[i] = n
			continue
		}
		for {
			seen[n]++
			candidate := fmt.Sprintf("%s_%d", n, seen[n])
			if _, taken := seen[candidate]; !taken {
				seen[candidate] = 1
				out[i] = candidate
				break
			}
		}
	}
	return out
}

// collapseMetadata flattens the non-excluded rows above the first header row
// into a single string: non-empty cells joined by spaces within a row, rows
// joined by " | ".
func collapseMetadata(g workbook.Grid, e config.Entry, excludedRows map[int]struct{}, excludedCols map[int]struct{}) string {
	first := e.HeaderRows[0]
	for _, h := range e.HeaderRows[1:] {
		if h < first {
			first = h
		}
	}

	var lines []string
	for r := 0; r < first && r < g.Rows(); r++ {
		if _, ok := excludedRows[r]; ok {
			continue
		}
		var parts []string
		for c := 0; c < g.Cols(); c++ {
			if _, ok := excludedCols[c]; ok {
				continue
			}
			if cell := g.Cell(r, c); !cell.IsEmpty() {
				parts = append(parts, strings.TrimSpace(strings.ReplaceAll(cell.Value, "\n", " ")))
			}
		}
		if line := strings.Join(parts, " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, " | ")
}
