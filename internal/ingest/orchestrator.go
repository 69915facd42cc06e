// Package ingest drives a full workbook-to-database run: for each included
// sheet it validates the config entry, cleans the grid, infers a schema,
// and replaces the target table.
//
// One sheet failing never stops its siblings; the Report records the
// terminal state of every included sheet.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"sheetetl/internal/cleaner"
	"sheetetl/internal/config"
	"sheetetl/internal/infer"
	"sheetetl/internal/metrics"
	"sheetetl/internal/storage"
	"sheetetl/internal/workbook"
)

// ErrTableExists is returned for a sheet whose target table already exists
// when the overwrite policy is OverwriteFail.
var ErrTableExists = errors.New("target table already exists")

// Metric names emitted during a run. The metrics backend decides what to do
// with them; the no-op default discards them.
const (
	metricSheetsTotal          = "ingest_sheets_total"
	metricRowsWrittenTotal     = "ingest_rows_written_total"
	metricWorkbooksTotal       = "ingest_workbooks_total"
	metricSheetDurationSeconds = "ingest_sheet_duration_seconds"
)

// Stage identifies how far a sheet got through the pipeline.
type Stage int

const (
	StagePending Stage = iota
	StageScanning
	StageCleaning
	StageInferring
	StageWriting
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StagePending:
		return "pending"
	case StageScanning:
		return "scanning"
	case StageCleaning:
		return "cleaning"
	case StageInferring:
		return "inferring"
	case StageWriting:
		return "writing"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Status is the terminal outcome of one sheet.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// SheetResult is the outcome of processing one sheet.
type SheetResult struct {
	Sheet       string
	Table       string
	Status      Status
	Stage       Stage
	RowsWritten int64
	Warnings    []config.Issue
	Err         error
	Elapsed     time.Duration
}

// Report summarizes an entire run. Every sheet present in the config appears
// exactly once in Results, in config order.
type Report struct {
	Workbook string
	Results  []SheetResult
	Elapsed  time.Duration
}

// Failed returns the number of sheets that ended in StatusFailed.
func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			n++
		}
	}
	return n
}

// OverwritePolicy controls what happens when a target table already exists.
type OverwritePolicy string

const (
	// OverwriteReplace silently drops and recreates the table. The default.
	OverwriteReplace OverwritePolicy = "replace"

	// OverwriteFail marks the sheet failed without touching the table.
	OverwriteFail OverwritePolicy = "fail"
)

// Orchestrator runs the pipeline. The zero value is not usable; construct
// with New and adjust fields before calling Ingest.
type Orchestrator struct {
	// Backend is the storage kind ("sqlite", "postgres", "mssql").
	Backend string

	// OutDir receives one database file per sheet for file-backed stores.
	// Ignored by server backends.
	OutDir string

	// DSN is the shared connection string for server backends. Ignored by
	// file-backed stores.
	DSN string

	// Overwrite defaults to OverwriteReplace when empty.
	Overwrite OverwritePolicy

	Logger *log.Logger

	// NewRepository is a factory seam; tests substitute in-memory stores.
	NewRepository func(ctx context.Context, cfg storage.Config) (storage.Repository, error)
}

// New returns an orchestrator wired to the registered storage backends,
// writing file-backed databases under outDir.
func New(backend, outDir, dsn string) *Orchestrator {
	return &Orchestrator{
		Backend:       backend,
		OutDir:        outDir,
		DSN:           dsn,
		Overwrite:     OverwriteReplace,
		Logger:        log.Default(),
		NewRepository: storage.New,
	}
}

// fileBacked reports whether each sheet gets its own database file.
func (o *Orchestrator) fileBacked() bool { return o.Backend == "sqlite" }

// Ingest processes every sheet the config includes and returns a Report.
// The returned error is non-nil only for run-level failures (bad config,
// unreachable database); per-sheet failures land in the Report.
func (o *Orchestrator) Ingest(ctx context.Context, src workbook.Source, model config.Model) (Report, error) {
	start := time.Now()
	logger := o.Logger
	if logger == nil {
		logger = log.Default()
	}

	report := Report{Workbook: model.Workbook}

	names := make([]string, 0, len(model.Sheets))
	included := make([]config.Entry, 0, len(model.Sheets))
	for _, e := range model.Sheets {
		if e.Included {
			names = append(names, storage.SanitizeIdentifier(e.Sheet))
			included = append(included, e)
		}
	}
	tables := storage.UniqueIdentifiers(names)

	// Server backends share one connection for the whole run.
	var shared storage.Repository
	if !o.fileBacked() && len(included) > 0 {
		repo, err := o.NewRepository(ctx, storage.Config{Kind: o.Backend, DSN: o.DSN})
		if err != nil {
			return report, fmt.Errorf("open %s repository: %w", o.Backend, err)
		}
		shared = repo
		defer shared.Close()
	}

	metrics.IncCounter(metricWorkbooksTotal, 1, nil)

	idx := 0
	for _, e := range model.Sheets {
		if !e.Included {
			report.Results = append(report.Results, SheetResult{
				Sheet:  e.Sheet,
				Status: StatusSkipped,
				Stage:  StagePending,
			})
			continue
		}
		table := tables[idx]
		idx++

		res := o.ingestSheet(ctx, src, e, table, shared, logger)
		report.Results = append(report.Results, res)

		status := string(res.Status)
		metrics.IncCounter(metricSheetsTotal, 1, metrics.Labels{"status": status})
		metrics.ObserveHistogram(metricSheetDurationSeconds, res.Elapsed.Seconds(),
			metrics.Labels{"sheet": e.Sheet, "status": status})
		if res.RowsWritten > 0 {
			metrics.IncCounter(metricRowsWrittenTotal, float64(res.RowsWritten),
				metrics.Labels{"sheet": e.Sheet})
		}
	}

	report.Elapsed = time.Since(start)
	return report, nil
}

func (o *Orchestrator) ingestSheet(ctx context.Context, src workbook.Source, e config.Entry, table string, shared storage.Repository, logger *log.Logger) SheetResult {
	start := time.Now()
	res := SheetResult{Sheet: e.Sheet, Table: table, Stage: StageScanning}

	fail := func(err error) SheetResult {
		res.Status = StatusFailed
		res.Stage = StageFailed
		res.Err = err
		res.Elapsed = time.Since(start)
		logger.Printf("sheet %q failed: %v", e.Sheet, err)
		return res
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	grid, err := src.Grid(e.Sheet)
	if err != nil {
		return fail(fmt.Errorf("read sheet: %w", err))
	}

	// Column-mode entries index into the transposed grid, so validation
	// sees the swapped shape.
	vRows, vCols := grid.Rows(), grid.Cols()
	if e.Transposed() {
		vRows, vCols = vCols, vRows
	}
	issues := config.ValidateEntry(e, vRows, vCols)
	if config.HasError(issues) {
		return fail(&config.EntryError{Sheet: e.Sheet, Issues: issues})
	}
	for _, is := range issues {
		res.Warnings = append(res.Warnings, is)
		logger.Printf("sheet %q: %s", e.Sheet, is)
	}

	res.Stage = StageCleaning
	tbl, err := cleaner.Clean(grid, e)
	if err != nil {
		return fail(fmt.Errorf("clean: %w", err))
	}

	res.Stage = StageInferring
	cols, rows := infer.Infer(tbl)

	spec := storage.TableSpec{Name: table, Columns: make([]storage.ColumnSpec, len(cols))}
	for i, c := range cols {
		spec.Columns[i] = storage.ColumnSpec{
			Name:     c.Name,
			Type:     string(c.Type),
			Nullable: c.Nullable,
		}
	}

	res.Stage = StageWriting
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	repo := shared
	if o.fileBacked() {
		path := filepath.Join(o.OutDir, table+".db")
		r, err := o.NewRepository(ctx, storage.Config{Kind: o.Backend, DSN: path})
		if err != nil {
			return fail(fmt.Errorf("open %s: %w", path, err))
		}
		defer r.Close()
		repo = r
	}

	if o.Overwrite == OverwriteFail {
		existing, err := repo.Tables(ctx)
		if err != nil {
			return fail(fmt.Errorf("list tables: %w", err))
		}
		for _, t := range existing {
			if t == table {
				return fail(fmt.Errorf("%w: %s", ErrTableExists, table))
			}
		}
	}

	n, err := repo.ReplaceTable(ctx, spec, rows)
	if err != nil {
		return fail(err)
	}

	res.RowsWritten = n
	res.Status = StatusOK
	res.Stage = StageDone
	res.Elapsed = time.Since(start)
	logger.Printf("sheet %q -> table %q: %d rows, %d columns in %s",
		e.Sheet, table, n, len(spec.Columns), res.Elapsed.Round(time.Millisecond))
	return res
}
