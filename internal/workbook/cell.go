package workbook

import (
	"strconv"
	"strings"
	"time"
)

// Kind tags a raw cell value with its observed shape. Classification happens
// once at the workbook boundary so downstream stages never re-guess what a
// source cell "is"; type inference over whole columns remains the job of
// internal/infer.
type Kind int

const (
	// Empty marks a cell with no value. Spreadsheet sources do not
	// distinguish a missing cell from an empty-string cell, so both map here.
	Empty Kind = iota
	Text
	Number
	Bool
	DateTime
)

func (k Kind) String() string {
	switch k {
	case Empty:
		return "empty"
	case Text:
		return "text"
	case Number:
		return "number"
	case Bool:
		return "bool"
	case DateTime:
		return "datetime"
	default:
		return "unknown"
	}
}

// Cell is one raw spreadsheet cell. Value preserves the source text verbatim,
// surrounding whitespace included; Kind is advisory metadata for previews and
// for the cleaner's emptiness checks.
type Cell struct {
	Kind  Kind
	Value string
}

// IsEmpty reports whether the cell carries no value.
func (c Cell) IsEmpty() bool { return c.Kind == Empty }

// Classify converts a raw string cell into a tagged Cell. The raw text is
// kept verbatim; surrounding whitespace is ignored only while deciding the
// Kind, and a whitespace-only cell is Empty.
//
// Order matters: numbers before booleans would misread "1"/"0" columns, so
// booleans are checked first against the strict TRUE/FALSE literals that
// spreadsheet engines render, then numbers, then date/timestamp layouts.
func Classify(raw string) Cell {
	v := strings.TrimSpace(raw)
	if v == "" {
		return Cell{Kind: Empty}
	}

	switch strings.ToLower(v) {
	case "true", "false":
		return Cell{Kind: Bool, Value: raw}
	}

	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return Cell{Kind: Number, Value: raw}
	}

	if _, _, ok := ParseDate(v); ok {
		return Cell{Kind: DateTime, Value: raw}
	}
	if _, _, ok := ParseTimestamp(v); ok {
		return Cell{Kind: DateTime, Value: raw}
	}

	return Cell{Kind: Text, Value: raw}
}

// ParseBoolLiteral parses a permissive boolean literal. The accepted sets are
// the common truthy/falsy encodings; anything else reports ok=false.
func ParseBoolLiteral(s string) (value bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "yes", "y":
		return true, true
	case "0", "f", "false", "no", "n":
		return false, true
	default:
		return false, false
	}
}

// DateLayouts is the closed set of date-only layouts the pipeline accepts.
// Keeping the set fixed is what makes column inference deterministic.
var DateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
}

// TimestampLayouts is the closed set of accepted timestamp layouts.
var TimestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000Z07:00",
	"02.01.2006 15:04:05",
	"2006/01/02 15:04:05",
}

// ParseDate parses a date-only value against DateLayouts and returns the
// matched layout.
func ParseDate(s string) (time.Time, string, bool) {
	s = strings.TrimSpace(s)
	for _, lay := range DateLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t, lay, true
		}
	}
	return time.Time{}, "", false
}

// ParseTimestamp parses a timestamp value against TimestampLayouts and
// returns the matched layout.
func ParseTimestamp(s string) (time.Time, string, bool) {
	s = strings.TrimSpace(s)
	for _, lay := range TimestampLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t, lay, true
		}
	}
	return time.Time{}, "", false
}
