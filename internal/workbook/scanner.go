package workbook

import (
	"sheetetl/internal/config"
)

// ScanOptions control preview extraction.
type ScanOptions struct {
	// PreviewRows is how many leading raw rows each preview carries.
	// Small enough for interactive display; default 15.
	PreviewRows int
	// HeaderScanRows bounds header-row detection; default 20.
	HeaderScanRows int
}

func (o ScanOptions) withDefaults() ScanOptions {
	if o.PreviewRows <= 0 {
		o.PreviewRows = 15
	}
	if o.HeaderScanRows <= 0 {
		o.HeaderScanRows = 20
	}
	return o
}

// SheetPreview is the structural summary a caller (human or UI) needs to
// author a config entry for one sheet.
type SheetPreview struct {
	Name        string
	RowCount    int
	ColumnCount int

	// Rows holds the first PreviewRows raw rows verbatim. Empty cells are
	// represented distinctly from zero and from empty-string text.
	Rows Grid

	// SuggestedHeaderRow is the detected header row index (0-based), or -1
	// for a sheet with no data at all.
	SuggestedHeaderRow int
}

// Scan enumerates a workbook's sheets and extracts a preview per sheet.
// Scanning is read-only. A workbook with zero sheets returns
// ErrEmptyWorkbook; sheets with zero data rows preview without error.
func Scan(src Source, opts ScanOptions) ([]SheetPreview, error) {
	opts = opts.withDefaults()

	names := src.SheetNames()
	if len(names) == 0 {
		return nil, ErrEmptyWorkbook
	}

	previews := make([]SheetPreview, 0, len(names))
	for _, name := range names {
		g, err := src.Grid(name)
		if err != nil {
			return nil, err
		}

		n := opts.PreviewRows
		if n > g.Rows() {
			n = g.Rows()
		}

		previews = append(previews, SheetPreview{
			Name:               name,
			RowCount:           g.Rows(),
			ColumnCount:        g.Cols(),
			Rows:               g[:n],
			SuggestedHeaderRow: DetectHeaderRow(g, opts.HeaderScanRows),
		})
	}
	return previews, nil
}

// DetectHeaderRow picks the most plausible header row: the row with the most
// non-empty cells among the first maxScan rows. Earlier rows win ties, which
// keeps detection stable for sheets whose data rows are as wide as the
// header. Returns -1 for an empty grid.
func DetectHeaderRow(g Grid, maxScan int) int {
	if g.Rows() == 0 {
		return -1
	}
	if maxScan <= 0 || maxScan > g.Rows() {
		maxScan = g.Rows()
	}

	best := -1
	bestCount := 0
	for r := 0; r < maxScan; r++ {
		count := 0
		for _, c := range g[r] {
			if !c.IsEmpty() {
				count++
			}
		}
		if count > bestCount {
			best = r
			bestCount = count
		}
	}
	return best
}

// SuggestConfig builds a starter config model from scan previews: every
// sheet included with its detected header row and no exclusions. Sheets
// where no header could be detected are written excluded so the authored
// file still lists them.
func SuggestConfig(workbookPath string, previews []SheetPreview) config.Model {
	m := config.Model{Workbook: workbookPath}
	for _, p := range previews {
		e := config.Entry{Sheet: p.Name}
		if p.SuggestedHeaderRow >= 0 {
			e.Included = true
			e.HeaderRows = []int{p.SuggestedHeaderRow}
		}
		m.Sheets = append(m.Sheets, e)
	}
	return m
}
