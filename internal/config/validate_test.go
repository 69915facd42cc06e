package config

import (
	"reflect"
	"strings"
	"testing"
)

//
// ValidateEntry
//

// TestValidateEntry verifies the fatal and warning findings against a sheet
// of known shape.
func TestValidateEntry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		entry     Entry
		rows      int
		cols      int
		wantError bool
		wantWarn  bool
		wantIn    string // substring expected in one finding, "" to skip
	}{
		{
			name:  "excluded sheet validates vacuously",
			entry: Entry{Sheet: "s"},
			rows:  0, cols: 0,
		},
		{
			name:      "unknown header mode",
			entry:     Entry{Sheet: "s", Included: true, HeaderMode: "diagonal", HeaderRows: []int{0}},
			rows:      5, cols: 3,
			wantError: true,
			wantIn:    "header_mode",
		},
		{
			name:      "included without header rows",
			entry:     Entry{Sheet: "s", Included: true},
			rows:      5, cols: 3,
			wantError: true,
			wantIn:    "header_rows",
		},
		{
			name:      "header row outside sheet",
			entry:     Entry{Sheet: "s", Included: true, HeaderRows: []int{9}},
			rows:      5, cols: 3,
			wantError: true,
			wantIn:    "outside sheet",
		},
		{
			name: "header row excluded",
			entry: Entry{
				Sheet: "s", Included: true,
				HeaderRows:   []int{1},
				ExcludedRows: Rows(1),
			},
			rows: 5, cols: 3,
			wantError: true,
			wantIn:    "must not be excluded",
		},
		{
			name: "excluded row outside sheet",
			entry: Entry{
				Sheet: "s", Included: true,
				HeaderRows:   []int{0},
				ExcludedRows: Rows(40),
			},
			rows: 5, cols: 3,
			wantError: true,
		},
		{
			name: "excluded column outside sheet",
			entry: Entry{
				Sheet: "s", Included: true,
				HeaderRows:      []int{0},
				ExcludedColumns: []int{7},
			},
			rows: 5, cols: 3,
			wantError: true,
			wantIn:    "excluded_columns",
		},
		{
			name: "every column excluded",
			entry: Entry{
				Sheet: "s", Included: true,
				HeaderRows:      []int{0},
				ExcludedColumns: []int{0, 1, 2},
			},
			rows: 5, cols: 3,
			wantError: true,
			wantIn:    "every column is excluded",
		},
		{
			name: "no data rows remain warns",
			entry: Entry{
				Sheet: "s", Included: true,
				HeaderRows:   []int{0},
				ExcludedRows: Rows().AddRange(1, 4),
			},
			rows: 5, cols: 3,
			wantWarn: true,
			wantIn:   "empty",
		},
		{
			name:  "valid entry",
			entry: Entry{Sheet: "s", Included: true, HeaderRows: []int{0}},
			rows:  5, cols: 3,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			issues := ValidateEntry(tt.entry, tt.rows, tt.cols)

			if got := HasError(issues); got != tt.wantError {
				t.Fatalf("HasError = %v, want %v (issues: %v)", got, tt.wantError, issues)
			}
			warned := false
			for _, is := range issues {
				if is.Severity == SeverityWarn {
					warned = true
				}
			}
			if warned != tt.wantWarn {
				t.Fatalf("warned = %v, want %v (issues: %v)", warned, tt.wantWarn, issues)
			}
			if tt.wantIn != "" {
				found := false
				for _, is := range issues {
					if strings.Contains(is.String(), tt.wantIn) {
						found = true
					}
				}
				if !found {
					t.Fatalf("no issue contains %q: %v", tt.wantIn, issues)
				}
			}
			if !tt.wantError && !tt.wantWarn && issues != nil {
				t.Fatalf("expected no issues, got %v", issues)
			}
		})
	}
}

//
// SortedExcludedColumns
//

// TestSortedExcludedColumns verifies dedup and ordering.
func TestSortedExcludedColumns(t *testing.T) {
	t.Parallel()

	e := Entry{ExcludedColumns: []int{5, 1, 5, 3, 1}}
	if got, want := e.SortedExcludedColumns(), []int{1, 3, 5}; !reflect.DeepEqual(got, want) {
		t.Fatalf("SortedExcludedColumns() = %v, want %v", got, want)
	}
}
