package storage

// Canonical column type names shared by all backends. Each backend maps
// these onto its own SQL types and back when describing existing tables.
const (
	TypeBoolean  = "boolean"
	TypeInteger  = "integer"
	TypeReal     = "real"
	TypeDateTime = "datetime"
	TypeText     = "text"
)

// TableSpec describes one table to create.
type TableSpec struct {
	Name    string       `json:"name"`
	Columns []ColumnSpec `json:"columns"`
}

// ColumnSpec describes one column: its sanitized name, canonical type, and
// whether NULLs are permitted.
type ColumnSpec struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}
