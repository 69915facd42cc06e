package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"

	"sheetetl/internal/config"
	"sheetetl/internal/storage"
	"sheetetl/internal/workbook"
)

// fakeStore is an in-memory storage.Repository shared across a run so the
// test can inspect what each sheet wrote.
type fakeStore struct {
	mu     sync.Mutex
	tables map[string][][]any
	specs  map[string]storage.TableSpec

	failTable string // ReplaceTable on this name fails
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tables: make(map[string][][]any),
		specs:  make(map[string]storage.TableSpec),
	}
}

func (f *fakeStore) Close() {}

func (f *fakeStore) ReplaceTable(ctx context.Context, spec storage.TableSpec, rows [][]any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if spec.Name == f.failTable {
		return 0, fmt.Errorf("%w: disk full", storage.ErrWriteFailed)
	}
	f.tables[spec.Name] = rows
	f.specs[spec.Name] = spec
	return int64(len(rows)), nil
}

func (f *fakeStore) Tables(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.tables))
	for name := range f.tables {
		out = append(out, name)
	}
	return out, nil
}

func (f *fakeStore) Describe(ctx context.Context, table string) ([]storage.ColumnSpec, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	spec, ok := f.specs[table]
	if !ok {
		return nil, fmt.Errorf("no such table %q", table)
	}
	return spec.Columns, nil
}

func testOrchestrator(store *fakeStore) *Orchestrator {
	o := New("postgres", "", "fake://dsn")
	o.Logger = log.New(io.Discard, "", 0)
	o.NewRepository = func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return store, nil
	}
	return o
}

func testSource() *workbook.MemoryBook {
	return &workbook.MemoryBook{
		Names: []string{"Orders", "Notes", "Bad Sheet"},
		Grids: map[string]workbook.Grid{
			"Orders": workbook.GridFromStrings([][]string{
				{"id", "amount"},
				{"1", "10.5"},
				{"2", "11"},
			}),
			"Notes": workbook.GridFromStrings([][]string{
				{"text"},
				{"hello"},
			}),
			"Bad Sheet": workbook.GridFromStrings([][]string{
				{"", ""},
				{"1", "2"},
			}),
		},
	}
}

func testModel() config.Model {
	return config.Model{
		Workbook: "report.xlsx",
		Sheets: []config.Entry{
			{Sheet: "Orders", Included: true, HeaderRows: []int{0}},
			{Sheet: "Notes"}, // excluded
			{Sheet: "Bad Sheet", Included: true, HeaderRows: []int{0}},
		},
	}
}

//
// Ingest
//

// TestIngestReportCompleteness verifies every configured sheet appears
// exactly once, in config order, with the right terminal status, and that a
// failing sheet does not stop its siblings.
func TestIngestReportCompleteness(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	report, err := testOrchestrator(store).Ingest(context.Background(), testSource(), testModel())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if len(report.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(report.Results))
	}

	orders := report.Results[0]
	if orders.Status != StatusOK || orders.Stage != StageDone {
		t.Fatalf("orders = %+v, want ok/done", orders)
	}
	if orders.Table != "orders" || orders.RowsWritten != 2 {
		t.Fatalf("orders table=%q rows=%d, want orders/2", orders.Table, orders.RowsWritten)
	}

	if notes := report.Results[1]; notes.Status != StatusSkipped {
		t.Fatalf("notes = %+v, want skipped", notes)
	}

	// "Bad Sheet" has an all-empty header row: cleaning fails, siblings
	// already succeeded.
	bad := report.Results[2]
	if bad.Status != StatusFailed || bad.Stage != StageFailed {
		t.Fatalf("bad sheet = %+v, want failed", bad)
	}
	if bad.Err == nil {
		t.Fatalf("bad sheet has no error")
	}

	if report.Failed() != 1 {
		t.Fatalf("Failed() = %d, want 1", report.Failed())
	}

	if _, ok := store.tables["orders"]; !ok {
		t.Fatalf("orders table was not written")
	}
}

// TestIngestIdempotent verifies a second run replaces tables and reports the
// same outcome.
func TestIngestIdempotent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	o := testOrchestrator(store)

	for i := 0; i < 2; i++ {
		report, err := o.Ingest(context.Background(), testSource(), testModel())
		if err != nil {
			t.Fatalf("Ingest pass %d: %v", i, err)
		}
		if report.Results[0].RowsWritten != 2 {
			t.Fatalf("pass %d rows = %d, want 2", i, report.Results[0].RowsWritten)
		}
	}
	if got := len(store.tables["orders"]); got != 2 {
		t.Fatalf("orders rows after reruns = %d, want 2", got)
	}
}

// TestIngestInvalidEntry verifies config validation failures mark the sheet
// failed before any cleaning happens.
func TestIngestInvalidEntry(t *testing.T) {
	t.Parallel()

	model := config.Model{Sheets: []config.Entry{
		{Sheet: "Orders", Included: true, HeaderRows: []int{99}},
	}}

	store := newFakeStore()
	report, err := testOrchestrator(store).Ingest(context.Background(), testSource(), model)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	res := report.Results[0]
	if res.Status != StatusFailed {
		t.Fatalf("result = %+v, want failed", res)
	}
	var entryErr *config.EntryError
	if !errors.As(res.Err, &entryErr) {
		t.Fatalf("err = %v, want *config.EntryError", res.Err)
	}
	if len(store.tables) != 0 {
		t.Fatalf("tables written for invalid entry: %v", store.tables)
	}
}

// TestIngestWriteFailureIsolated verifies one sheet's storage failure leaves
// the others written.
func TestIngestWriteFailureIsolated(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.failTable = "orders"

	model := config.Model{Sheets: []config.Entry{
		{Sheet: "Orders", Included: true, HeaderRows: []int{0}},
		{Sheet: "Notes", Included: true, HeaderRows: []int{0}},
	}}

	report, err := testOrchestrator(store).Ingest(context.Background(), testSource(), model)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if res := report.Results[0]; res.Status != StatusFailed || !errors.Is(res.Err, storage.ErrWriteFailed) {
		t.Fatalf("orders = %+v, want write failure", res)
	}
	if res := report.Results[1]; res.Status != StatusOK {
		t.Fatalf("notes = %+v, want ok", res)
	}
	if _, ok := store.tables["notes"]; !ok {
		t.Fatalf("notes table missing after sibling failure")
	}
}

// TestIngestOverwriteFail verifies the fail policy refuses existing tables.
func TestIngestOverwriteFail(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	o := testOrchestrator(store)
	o.Overwrite = OverwriteFail

	model := config.Model{Sheets: []config.Entry{
		{Sheet: "Orders", Included: true, HeaderRows: []int{0}},
	}}

	report, err := o.Ingest(context.Background(), testSource(), model)
	if err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	if report.Results[0].Status != StatusOK {
		t.Fatalf("first run = %+v, want ok", report.Results[0])
	}

	report, err = o.Ingest(context.Background(), testSource(), model)
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	res := report.Results[0]
	if res.Status != StatusFailed || !errors.Is(res.Err, ErrTableExists) {
		t.Fatalf("second run = %+v, want ErrTableExists", res)
	}
}

// TestIngestTableNameCollisions verifies sheets whose names sanitize to the
// same identifier get distinct tables.
func TestIngestTableNameCollisions(t *testing.T) {
	t.Parallel()

	src := &workbook.MemoryBook{
		Names: []string{"Data", "data!"},
		Grids: map[string]workbook.Grid{
			"Data":  workbook.GridFromStrings([][]string{{"a"}, {"1"}}),
			"data!": workbook.GridFromStrings([][]string{{"b"}, {"2"}}),
		},
	}
	model := config.Model{Sheets: []config.Entry{
		{Sheet: "Data", Included: true, HeaderRows: []int{0}},
		{Sheet: "data!", Included: true, HeaderRows: []int{0}},
	}}

	store := newFakeStore()
	report, err := testOrchestrator(store).Ingest(context.Background(), src, model)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if got := report.Results[0].Table; got != "data" {
		t.Fatalf("first table = %q, want data", got)
	}
	if got := report.Results[1].Table; got != "data_2" {
		t.Fatalf("second table = %q, want data_2", got)
	}
	if len(store.tables) != 2 {
		t.Fatalf("tables = %v, want 2 distinct", store.tables)
	}
}

// TestIngestCancelledContext verifies cancellation fails remaining sheets
// rather than hanging or writing.
func TestIngestCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := newFakeStore()
	report, err := testOrchestrator(store).Ingest(ctx, testSource(), testModel())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	for _, res := range report.Results {
		if res.Status == StatusSkipped {
			continue
		}
		if res.Status != StatusFailed || !errors.Is(res.Err, context.Canceled) {
			t.Fatalf("result %+v, want cancellation failure", res)
		}
	}
	if len(store.tables) != 0 {
		t.Fatalf("tables written after cancellation: %v", store.tables)
	}
}

//
// Stage
//

// TestStageString verifies stage names for report rendering.
func TestStageString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		stage Stage
		want  string
	}{
		{StagePending, "pending"},
		{StageScanning, "scanning"},
		{StageCleaning, "cleaning"},
		{StageInferring, "inferring"},
		{StageWriting, "writing"},
		{StageDone, "done"},
		{StageFailed, "failed"},
		{Stage(42), "stage(42)"},
	}
	for _, tt := range tests {
		if got := tt.stage.String(); got != tt.want {
			t.Fatalf("Stage(%d).String() = %q, want %q", int(tt.stage), got, tt.want)
		}
	}
}
