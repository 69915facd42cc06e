package storage

import (
	"reflect"
	"strings"
	"testing"
)

//
// SanitizeIdentifier
//

// TestSanitizeIdentifier verifies sheet names become safe lowercase SQL
// identifiers under every transformation rule.
func TestSanitizeIdentifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already clean", "orders", "orders"},
		{"uppercase folds", "Orders", "orders"},
		{"spaces to underscore", "Sales Q1", "sales_q1"},
		{"separator runs collapse", "a - b / c", "a_b_c"},
		{"diacritics fold", "Übersicht", "ubersicht"},
		{"punctuation dropped", "profit&loss!", "profitloss"},
		{"leading digit prefixed", "2024 report", "t_2024_report"},
		{"leading trailing separators trimmed", "  __orders__  ", "orders"},
		{"nothing survives", "!!!", "sheet"},
		{"empty", "", "sheet"},
		{"long name truncated", strings.Repeat("a", 100), strings.Repeat("a", 63)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeIdentifier(tt.in); got != tt.want {
				t.Fatalf("SanitizeIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestSanitizeIdentifierLengthBound verifies no output exceeds the cap even
// with multibyte input.
func TestSanitizeIdentifierLengthBound(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		strings.Repeat("Ü", 200),
		strings.Repeat("x", 63) + "y",
		strings.Repeat("Sales Q1 ", 30),
	} {
		if got := SanitizeIdentifier(in); len(got) > maxIdentLen {
			t.Fatalf("SanitizeIdentifier(%q) length %d exceeds %d", in, len(got), maxIdentLen)
		}
	}
}

//
// UniqueIdentifiers
//

// TestUniqueIdentifiers verifies collision suffixing in order.
func TestUniqueIdentifiers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"no collisions", []string{"a", "b"}, []string{"a", "b"}},
		{"one collision", []string{"a", "a"}, []string{"a", "a_2"}},
		{"repeat collisions", []string{"a", "a", "a"}, []string{"a", "a_2", "a_3"}},
		{"suffix already taken", []string{"a", "a_2", "a"}, []string{"a", "a_2", "a_3"}},
		{"empty input", nil, []string{}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := UniqueIdentifiers(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("UniqueIdentifiers(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// TestUniqueIdentifiersLengthCap verifies suffixed names stay within the
// identifier cap. Two long sheet names sharing a 63-byte prefix sanitize to
// the same identifier; the suffixed second name must shorten its stem rather
// than grow past the cap, or Postgres would truncate both back to the same
// table at the server.
func TestUniqueIdentifiersLengthCap(t *testing.T) {
	t.Parallel()

	a := SanitizeIdentifier(strings.Repeat("a", 70) + "x")
	b := SanitizeIdentifier(strings.Repeat("a", 70) + "y")
	if a != b {
		t.Fatalf("expected sanitized prefixes to collide, got %q and %q", a, b)
	}

	got := UniqueIdentifiers([]string{a, b})
	if got[0] == got[1] {
		t.Fatalf("UniqueIdentifiers left a collision: %v", got)
	}
	for _, n := range got {
		if len(n) > maxIdentLen {
			t.Fatalf("identifier %q is %d bytes, exceeds %d-byte cap", n, len(n), maxIdentLen)
		}
	}
	want := strings.Repeat("a", 61) + "_2"
	if got[1] != want {
		t.Fatalf("suffixed identifier = %q, want %q", got[1], want)
	}
}
