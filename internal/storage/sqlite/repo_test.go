package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"sheetetl/internal/storage"
)

func openTestRepo(t *testing.T) storage.Repository {
	t.Helper()

	repo, err := New(context.Background(), storage.Config{
		Kind: "sqlite",
		DSN:  filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(repo.Close)
	return repo
}

func ordersSpec() storage.TableSpec {
	return storage.TableSpec{
		Name: "orders",
		Columns: []storage.ColumnSpec{
			{Name: "id", Type: storage.TypeInteger, Nullable: false},
			{Name: "price", Type: storage.TypeReal, Nullable: false},
			{Name: "active", Type: storage.TypeBoolean, Nullable: false},
			{Name: "placed", Type: storage.TypeDateTime, Nullable: true},
			{Name: "note", Type: storage.TypeText, Nullable: true},
		},
	}
}

//
// ReplaceTable
//

// TestReplaceTableRoundTrip verifies create, load, and catalog introspection
// against a real database file.
func TestReplaceTableRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := openTestRepo(t)

	rows := [][]any{
		{int64(1), 9.99, true, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), "first"},
		{int64(2), 12.0, false, time.Date(2024, 3, 15, 8, 30, 0, 0, time.UTC), nil},
	}

	n, err := repo.ReplaceTable(ctx, ordersSpec(), rows)
	if err != nil {
		t.Fatalf("ReplaceTable: %v", err)
	}
	if n != 2 {
		t.Fatalf("rows written = %d, want 2", n)
	}

	tables, err := repo.Tables(ctx)
	if err != nil {
		t.Fatalf("Tables: %v", err)
	}
	if !reflect.DeepEqual(tables, []string{"orders"}) {
		t.Fatalf("Tables() = %v, want [orders]", tables)
	}

	cols, err := repo.Describe(ctx, "orders")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	want := ordersSpec().Columns
	if !reflect.DeepEqual(cols, want) {
		t.Fatalf("Describe() = %+v, want %+v", cols, want)
	}
}

// TestReplaceTableIdempotent verifies re-running a load replaces rather than
// appends.
func TestReplaceTableIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := openTestRepo(t)

	spec := storage.TableSpec{
		Name:    "t",
		Columns: []storage.ColumnSpec{{Name: "v", Type: storage.TypeInteger, Nullable: false}},
	}
	rows := [][]any{{int64(1)}, {int64(2)}, {int64(3)}}

	for i := 0; i < 2; i++ {
		n, err := repo.ReplaceTable(ctx, spec, rows)
		if err != nil {
			t.Fatalf("ReplaceTable pass %d: %v", i, err)
		}
		if n != 3 {
			t.Fatalf("pass %d rows written = %d, want 3", i, n)
		}
	}
}

// TestReplaceTableChunking verifies loads larger than one insert chunk.
func TestReplaceTableChunking(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := openTestRepo(t)

	spec := storage.TableSpec{
		Name:    "big",
		Columns: []storage.ColumnSpec{{Name: "v", Type: storage.TypeInteger, Nullable: false}},
	}
	total := insertChunkRows*2 + 7
	rows := make([][]any, total)
	for i := range rows {
		rows[i] = []any{int64(i)}
	}

	n, err := repo.ReplaceTable(ctx, spec, rows)
	if err != nil {
		t.Fatalf("ReplaceTable: %v", err)
	}
	if n != int64(total) {
		t.Fatalf("rows written = %d, want %d", n, total)
	}
}

// TestReplaceTableEmpty verifies an empty table is created with no rows.
func TestReplaceTableEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := openTestRepo(t)

	spec := storage.TableSpec{
		Name:    "empty",
		Columns: []storage.ColumnSpec{{Name: "v", Type: storage.TypeText, Nullable: true}},
	}
	n, err := repo.ReplaceTable(ctx, spec, nil)
	if err != nil {
		t.Fatalf("ReplaceTable: %v", err)
	}
	if n != 0 {
		t.Fatalf("rows written = %d, want 0", n)
	}
	tables, err := repo.Tables(ctx)
	if err != nil {
		t.Fatalf("Tables: %v", err)
	}
	if !reflect.DeepEqual(tables, []string{"empty"}) {
		t.Fatalf("Tables() = %v, want [empty]", tables)
	}
}

// TestReplaceTableBadSpec verifies spec errors wrap ErrWriteFailed and leave
// no table behind.
func TestReplaceTableBadSpec(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := openTestRepo(t)

	tests := []struct {
		name string
		spec storage.TableSpec
		rows [][]any
	}{
		{"empty name", storage.TableSpec{Columns: []storage.ColumnSpec{{Name: "v", Type: storage.TypeText}}}, nil},
		{"no columns", storage.TableSpec{Name: "t"}, nil},
		{
			"row width mismatch",
			storage.TableSpec{Name: "t", Columns: []storage.ColumnSpec{{Name: "v", Type: storage.TypeText}}},
			[][]any{{"a", "b"}},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.ReplaceTable(ctx, tt.spec, tt.rows)
			if !errors.Is(err, storage.ErrWriteFailed) {
				t.Fatalf("ReplaceTable err = %v, want ErrWriteFailed", err)
			}
		})
	}

	tables, err := repo.Tables(ctx)
	if err != nil {
		t.Fatalf("Tables: %v", err)
	}
	if len(tables) != 0 {
		t.Fatalf("Tables() = %v, want none after failed loads", tables)
	}
}

// TestDescribeMissingTable verifies Describe errors on unknown tables.
func TestDescribeMissingTable(t *testing.T) {
	t.Parallel()
	repo := openTestRepo(t)

	if _, err := repo.Describe(context.Background(), "nope"); err == nil {
		t.Fatalf("Describe(nope) succeeded, want error")
	}
}

//
// formatTime
//

// TestFormatTime verifies midnight timestamps store as date-only text.
func TestFormatTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"midnight is date only", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), "2024-03-15"},
		{"morning keeps time", time.Date(2024, 3, 15, 8, 30, 0, 0, time.UTC), "2024-03-15T08:30:00Z"},
		{"midnight with nanos keeps time", time.Date(2024, 3, 15, 0, 0, 0, 5, time.UTC), "2024-03-15T00:00:00Z"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := formatTime(tt.in); got != tt.want {
				t.Fatalf("formatTime(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

//
// identifiers
//

// TestSQLIdentQuoting verifies embedded quotes cannot break out.
func TestSQLIdentQuoting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"plain", `"plain"`},
		{`with"quote`, `"with""quote"`},
	}
	for _, tt := range tests {
		if got := sqlIdent(tt.in); got != tt.want {
			t.Fatalf("sqlIdent(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

// TestCanonicalTypeRoundTrip verifies every canonical type survives the SQL
// declaration round trip.
func TestCanonicalTypeRoundTrip(t *testing.T) {
	t.Parallel()

	for _, canonical := range []string{
		storage.TypeBoolean,
		storage.TypeInteger,
		storage.TypeReal,
		storage.TypeDateTime,
		storage.TypeText,
	} {
		if got := canonicalType(sqlType(canonical)); got != canonical {
			t.Fatalf("canonicalType(sqlType(%q)) = %q", canonical, got)
		}
	}
	if got := canonicalType("VARCHAR(20)"); got != storage.TypeText {
		t.Fatalf("canonicalType(VARCHAR) = %q, want text", got)
	}
	if !strings.Contains(sqlType("anything_else"), "TEXT") {
		t.Fatalf("unknown canonical type should map to TEXT")
	}
}
