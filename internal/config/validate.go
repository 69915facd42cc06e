package config

import (
	"fmt"
	"sort"
)

// Severity classifies a validation finding.
type Severity string

const (
	// SeverityError findings make an entry unusable; the sheet is skipped.
	SeverityError Severity = "error"
	// SeverityWarn findings are surfaced but do not block ingestion.
	SeverityWarn Severity = "warn"
)

// Issue is one validation finding against a config entry.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// HasError reports whether any issue is fatal for the entry.
func HasError(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// EntryError wraps fatal validation issues as an error for reporting.
type EntryError struct {
	Sheet  string
	Issues []Issue
}

func (e *EntryError) Error() string {
	for _, iss := range e.Issues {
		if iss.Severity == SeverityError {
			return fmt.Sprintf("config entry %q: %s: %s", e.Sheet, iss.Path, iss.Message)
		}
	}
	return fmt.Sprintf("config entry %q is invalid", e.Sheet)
}

// ValidateEntry checks one entry against the shape of the sheet it targets
// (rows and cols as loaded; for a column-mode entry the caller passes the
// transposed shape). It returns findings rather than a single error so
// warnings can ride along with fatal problems.
//
// Fatal findings:
//   - unknown header mode
//   - included entry with no header rows
//   - header row or excluded row/column outside the sheet
//   - a header row that is also excluded
//   - every column excluded
//
// Warning findings:
//   - no data rows remain after exclusion (ingestion still runs and
//     produces an empty table)
func ValidateEntry(e Entry, rows, cols int) []Issue {
	if !e.Included {
		return nil
	}

	var issues []Issue
	path := fmt.Sprintf("sheets[%s]", e.Sheet)

	switch e.HeaderMode {
	case "", HeaderModeRow, HeaderModeColumn:
	default:
		issues = append(issues, Issue{SeverityError, path + ".header_mode",
			fmt.Sprintf("unknown mode %q (want %q or %q)", e.HeaderMode, HeaderModeRow, HeaderModeColumn)})
		return issues
	}

	if len(e.HeaderRows) == 0 {
		issues = append(issues, Issue{SeverityError, path + ".header_rows", "must not be empty for an included sheet"})
		return issues
	}

	excluded := e.ExcludedRows.Expand()
	for _, h := range e.HeaderRows {
		if h < 0 || h >= rows {
			issues = append(issues, Issue{SeverityError, path + ".header_rows",
				fmt.Sprintf("row %d outside sheet (%d rows)", h, rows)})
		}
		if _, ok := excluded[h]; ok {
			issues = append(issues, Issue{SeverityError, path + ".excluded_rows",
				fmt.Sprintf("header row %d must not be excluded", h)})
		}
	}

	for r := range excluded {
		if r < 0 || r >= rows {
			issues = append(issues, Issue{SeverityError, path + ".excluded_rows",
				fmt.Sprintf("row %d outside sheet (%d rows)", r, rows)})
		}
	}

	excludedCols := make(map[int]struct{}, len(e.ExcludedColumns))
	for _, c := range e.ExcludedColumns {
		if c < 0 || c >= cols {
			issues = append(issues, Issue{SeverityError, path + ".excluded_columns",
				fmt.Sprintf("column %d outside sheet (%d columns)", c, cols)})
			continue
		}
		excludedCols[c] = struct{}{}
	}
	if cols > 0 && len(excludedCols) >= cols {
		issues = append(issues, Issue{SeverityError, path + ".excluded_columns", "every column is excluded"})
	}

	if HasError(issues) {
		return issues
	}

	// Count data rows that survive: strictly after the last header row and
	// not excluded.
	last := maxInt(e.HeaderRows)
	remaining := 0
	for r := last + 1; r < rows; r++ {
		if _, ok := excluded[r]; !ok {
			remaining++
		}
	}
	if remaining == 0 {
		issues = append(issues, Issue{SeverityWarn, path,
			"no data rows remain after exclusion; the table will be empty"})
	}

	return issues
}

// SortedExcludedColumns returns the entry's excluded columns deduplicated
// and in ascending order.
func (e Entry) SortedExcludedColumns() []int {
	set := make(map[int]struct{}, len(e.ExcludedColumns))
	for _, c := range e.ExcludedColumns {
		set[c] = struct{}{}
	}
	out := make([]int, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

func maxInt(xs []int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}
