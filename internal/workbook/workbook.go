// Package workbook opens spreadsheet documents and exposes their sheets as
// grids of tagged cell values.
//
// The package is the only place that touches the spreadsheet file format.
// Everything downstream (config validation, cleaning, inference, storage)
// operates on the Grid/Cell model, which keeps the rest of the pipeline
// independent of excelize and trivially testable with in-memory fixtures.
//
// Design constraints:
//   - Reading is strictly side-effect free; a workbook is never mutated.
//   - Row/column indices are 0-based and stable across repeated loads.
//   - Dynamic cell values are tagged exactly once, at this boundary.
package workbook

import (
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ErrWorkbookUnreadable marks a workbook that cannot be opened or parsed
// (corrupt, unsupported format, locked). It aborts the whole run: no sheet
// can be processed without a readable workbook.
var ErrWorkbookUnreadable = errors.New("workbook unreadable")

// ErrEmptyWorkbook marks a workbook with zero sheets.
var ErrEmptyWorkbook = errors.New("workbook contains no sheets")

// Grid is a sheet's 2-D cell matrix. Rows may be ragged as loaded; use Cell
// for bounds-safe access, which treats out-of-range positions as empty.
type Grid [][]Cell

// Rows returns the number of rows in the grid.
func (g Grid) Rows() int { return len(g) }

// Cols returns the widest row's length. Spreadsheet rows are ragged at the
// source, so the grid's logical width is the maximum observed width.
func (g Grid) Cols() int {
	max := 0
	for _, r := range g {
		if len(r) > max {
			max = len(r)
		}
	}
	return max
}

// Cell returns the cell at (row, col), or an empty Cell when the position is
// outside the grid. Negative indices are also empty.
func (g Grid) Cell(row, col int) Cell {
	if row < 0 || row >= len(g) {
		return Cell{Kind: Empty}
	}
	r := g[row]
	if col < 0 || col >= len(r) {
		return Cell{Kind: Empty}
	}
	return r[col]
}

// Transpose returns a new grid with rows and columns swapped. Ragged source
// rows pad out with empty cells, so the result is rectangular. Sheets
// authored sideways, headers running down a column, transpose into the
// row-headed shape the rest of the pipeline expects.
func (g Grid) Transpose() Grid {
	rows, cols := g.Rows(), g.Cols()
	out := make(Grid, cols)
	for c := 0; c < cols; c++ {
		row := make([]Cell, rows)
		for r := 0; r < rows; r++ {
			row[r] = g.Cell(r, c)
		}
		out[c] = row
	}
	return out
}

// Source is the read-only sheet access the scanner and the ingestion
// orchestrator consume. *File implements it against a real spreadsheet;
// tests implement it with in-memory grids.
type Source interface {
	// SheetNames returns sheet names in workbook order.
	SheetNames() []string
	// Grid loads one sheet's full cell matrix.
	Grid(name string) (Grid, error)
}

// File is a spreadsheet document opened for reading.
type File struct {
	path string
	xl   *excelize.File
}

// Open opens a workbook file. Parse failures are wrapped in
// ErrWorkbookUnreadable; a parseable file with zero sheets returns
// ErrEmptyWorkbook.
func Open(path string) (*File, error) {
	xl, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrWorkbookUnreadable, path, err)
	}
	if len(xl.GetSheetList()) == 0 {
		_ = xl.Close()
		return nil, fmt.Errorf("%w: %s", ErrEmptyWorkbook, path)
	}
	return &File{path: path, xl: xl}, nil
}

// Close releases the underlying file handle.
func (f *File) Close() error { return f.xl.Close() }

// Path returns the path the workbook was opened from.
func (f *File) Path() string { return f.path }

// SheetNames returns sheet names in workbook order.
func (f *File) SheetNames() []string { return f.xl.GetSheetList() }

// Grid loads one sheet as a classified cell matrix. Sheets with zero rows
// (header-only or fully empty) load without error as an empty Grid.
func (f *File) Grid(name string) (Grid, error) {
	rows, err := f.xl.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("%w: sheet %q: %v", ErrWorkbookUnreadable, name, err)
	}

	g := make(Grid, len(rows))
	for i, row := range rows {
		cells := make([]Cell, len(row))
		for j, raw := range row {
			cells[j] = Classify(raw)
		}
		g[i] = cells
	}
	return g, nil
}

// MemoryBook is an in-memory Source. It backs tests and any caller that
// already holds sheet data.
type MemoryBook struct {
	Names   []string
	Grids   map[string]Grid
	GridErr map[string]error
}

// SheetNames returns the configured sheet order.
func (m *MemoryBook) SheetNames() []string { return m.Names }

// Grid returns the configured grid or error for a sheet.
func (m *MemoryBook) Grid(name string) (Grid, error) {
	if err, ok := m.GridErr[name]; ok {
		return nil, err
	}
	g, ok := m.Grids[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown sheet %q", ErrWorkbookUnreadable, name)
	}
	return g, nil
}

// GridFromStrings builds a Grid from raw string rows, classifying every cell.
// Intended for fixtures and for callers that parse sheets themselves.
func GridFromStrings(rows [][]string) Grid {
	g := make(Grid, len(rows))
	for i, row := range rows {
		cells := make([]Cell, len(row))
		for j, raw := range row {
			cells[j] = Classify(raw)
		}
		g[i] = cells
	}
	return g
}
