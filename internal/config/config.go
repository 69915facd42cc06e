// Package config defines the declarative per-sheet ingestion rules and their
// JSON persistence.
//
// A config file is the single source of truth for how a workbook's sheets are
// interpreted: which rows form the header, which rows and columns are
// excluded, and whether a sheet participates at all. The pipeline never
// mutates a loaded model; only the configuration authority (a human editing
// the file, or the scanner's starter-config generator) writes it.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Model is one workbook's complete ingestion configuration.
type Model struct {
	// Workbook is the source spreadsheet path the config was written for.
	Workbook string `json:"workbook"`
	// Sheets holds one entry per sheet, in the order they were authored.
	Sheets []Entry `json:"sheets"`
}

// Header orientation values for Entry.HeaderMode.
const (
	// HeaderModeRow is the default: headers run across header rows.
	HeaderModeRow = "row"
	// HeaderModeColumn transposes the sheet before any other rule applies,
	// for sheets authored sideways with headers running down a column.
	// HeaderRows and row/column exclusions then index into the transposed
	// grid.
	HeaderModeColumn = "column"
)

// Entry describes how one sheet must be interpreted.
type Entry struct {
	Sheet    string `json:"sheet"`
	Included bool   `json:"included"`

	// HeaderMode selects the header orientation, "row" or "column". Empty
	// means row.
	HeaderMode string `json:"header_mode,omitempty"`

	// HeaderRows are the 0-based row indices whose cells are merged
	// top-to-bottom into column names. Order is significant.
	HeaderRows []int `json:"header_rows"`

	// ExcludedRows lists 0-based data-area row indices to drop entirely.
	// Accepts single indices and "start-end" ranges.
	ExcludedRows RowSet `json:"excluded_rows,omitempty"`

	// ExcludedColumns lists 0-based column indices to drop entirely.
	ExcludedColumns []int `json:"excluded_columns,omitempty"`

	// CaptureMetadata, when set, collapses non-excluded rows above the first
	// header row into a metadata string carried on every output row as an
	// extra_info column.
	CaptureMetadata bool `json:"capture_metadata,omitempty"`
}

// Transposed reports whether the entry reads headers down a column.
func (e Entry) Transposed() bool { return e.HeaderMode == HeaderModeColumn }

// Find returns the entry for a sheet name, if present.
func (m Model) Find(sheet string) (Entry, bool) {
	for _, e := range m.Sheets {
		if e.Sheet == sheet {
			return e, true
		}
	}
	return Entry{}, false
}

// Load reads and decodes a model from a JSON file.
func Load(path string) (Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return Model{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var m Model
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return Model{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return m, nil
}

// Save writes the model as indented JSON. Saving a loaded model reproduces
// every field value; RowSet preserves the authored index/range forms.
func (m Model) Save(path string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// RowSet is an ordered collection of row indices authored as single numbers
// or inclusive "start-end" ranges. The authored form survives a
// marshal/unmarshal round-trip; Expand flattens it for lookups.
type RowSet struct {
	items []rowItem
}

type rowItem struct {
	start, end int
	isRange    bool
}

// Rows builds a RowSet from single indices.
func Rows(idx ...int) RowSet {
	rs := RowSet{}
	for _, i := range idx {
		rs.items = append(rs.items, rowItem{start: i, end: i})
	}
	return rs
}

// AddRange appends an inclusive range and returns the extended set.
func (rs RowSet) AddRange(start, end int) RowSet {
	rs.items = append(rs.items, rowItem{start: start, end: end, isRange: true})
	return rs
}

// Len returns the number of authored items (not expanded rows).
func (rs RowSet) Len() int { return len(rs.items) }

// Expand returns the full set of row indices the items cover.
func (rs RowSet) Expand() map[int]struct{} {
	out := make(map[int]struct{})
	for _, it := range rs.items {
		for i := it.start; i <= it.end; i++ {
			out[i] = struct{}{}
		}
	}
	return out
}

// Contains reports whether a row index is covered.
func (rs RowSet) Contains(row int) bool {
	for _, it := range rs.items {
		if row >= it.start && row <= it.end {
			return true
		}
	}
	return false
}

// MarshalJSON emits single indices as numbers and ranges as "start-end"
// strings, preserving authored order.
func (rs RowSet) MarshalJSON() ([]byte, error) {
	out := make([]any, 0, len(rs.items))
	for _, it := range rs.items {
		if it.isRange {
			out = append(out, fmt.Sprintf("%d-%d", it.start, it.end))
		} else {
			out = append(out, it.start)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts an array of numbers and "start-end" strings.
// Malformed items are configuration errors, not warnings: the set is the
// source of truth for what gets dropped.
func (rs *RowSet) UnmarshalJSON(b []byte) error {
	var raw []any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		rs.items = nil
		return nil
	}

	items := make([]rowItem, 0, len(raw))
	for _, v := range raw {
		switch t := v.(type) {
		case float64:
			if t != float64(int(t)) || t < 0 {
				return fmt.Errorf("excluded_rows: %v is not a row index", t)
			}
			items = append(items, rowItem{start: int(t), end: int(t)})
		case string:
			start, end, err := parseRange(t)
			if err != nil {
				return err
			}
			items = append(items, rowItem{start: start, end: end, isRange: true})
		default:
			return fmt.Errorf("excluded_rows: unsupported item %v", v)
		}
	}
	rs.items = items
	return nil
}

func parseRange(s string) (start, end int, err error) {
	lo, hi, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return 0, 0, fmt.Errorf("excluded_rows: %q is not a range", s)
	}
	start, err = strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return 0, 0, fmt.Errorf("excluded_rows: range %q: %v", s, err)
	}
	end, err = strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return 0, 0, fmt.Errorf("excluded_rows: range %q: %v", s, err)
	}
	if start < 0 || end < start {
		return 0, 0, fmt.Errorf("excluded_rows: range %q is inverted or negative", s)
	}
	return start, end, nil
}
