package ir

import (
	"fmt"
	"strings"
)

// ColumnType is the semantic type of a column. Dialects map it to a
// physical type when rendering DDL.
type ColumnType string

const (
	// TypeText is free-form text.
	TypeText ColumnType = "text"

	// TypeNumeric is an arbitrary-precision decimal, carried as a string.
	TypeNumeric ColumnType = "numeric"

	// TypeInterface is an opaque reference to the contract interface enum.
	TypeInterface ColumnType = "interface"
)

// Valid reports whether t is one of the known column types.
func (t ColumnType) Valid() bool {
	switch t {
	case TypeText, TypeNumeric, TypeInterface:
		return true
	}
	return false
}

// Column is one typed column of a table.
type Column struct {
	Name string     `json:"name" yaml:"name"`
	Type ColumnType `json:"type" yaml:"type"`
}

// Table is a logical table definition. It maps 1:1 to a physical table.
type Table struct {
	// Schema is the namespace the table lives in (e.g. "app").
	// Dialects without namespaces ignore it.
	Schema string `json:"schema" yaml:"schema"`

	// Name is the physical table name.
	Name string `json:"name" yaml:"name"`

	// Columns defines both DDL order and bulk-insert row order.
	Columns []Column `json:"columns" yaml:"columns"`

	// Key names the primary-key column. Must be one of Columns.
	Key string `json:"key" yaml:"key"`

	// Indexes lists the columns indexed by the explicit index tooling.
	// Never created inline with the table.
	Indexes []string `json:"indexes,omitempty" yaml:"indexes,omitempty"`
}

// ColumnNames returns the column names in order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// KeyIndex returns the position of the key column, or -1.
func (t Table) KeyIndex() int {
	for i, c := range t.Columns {
		if c.Name == t.Key {
			return i
		}
	}
	return -1
}

// WithSchema returns a copy of t placed in the given schema.
// An empty schema leaves t unchanged.
func (t Table) WithSchema(schema string) Table {
	if schema == "" {
		return t
	}
	t.Schema = schema
	return t
}

// Validate checks the structural invariants of a table definition.
func (t Table) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("table name is required")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s: at least one column is required", t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" {
			return fmt.Errorf("table %s: column name is required", t.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("table %s: duplicate column %q", t.Name, c.Name)
		}
		seen[c.Name] = true
		if !c.Type.Valid() {
			return fmt.Errorf("table %s: column %s: unknown type %q", t.Name, c.Name, c.Type)
		}
	}
	if t.KeyIndex() < 0 {
		return fmt.Errorf("table %s: key column %q is not a column", t.Name, t.Key)
	}
	for _, idx := range t.Indexes {
		if !seen[idx] {
			return fmt.Errorf("table %s: index column %q is not a column", t.Name, idx)
		}
	}
	return nil
}

// Path is a traversal path into the genesis document, one object key per step.
type Path []string

// ParsePath splits a dotted path ("app_state.bank.balances").
// A leading dot is accepted for jq-style paths.
func ParsePath(s string) Path {
	s = strings.TrimPrefix(s, ".")
	if s == "" {
		return nil
	}
	return Path(strings.Split(s, "."))
}

func (p Path) String() string {
	return strings.Join(p, ".")
}

// Value is one stringified column value, or SQL NULL.
type Value struct {
	Str   string
	Valid bool
}

// Text returns a non-null value.
func Text(s string) Value {
	return Value{Str: s, Valid: true}
}

// Null is the SQL NULL value.
var Null = Value{}

// Any returns the value in the form database drivers accept: string or nil.
func (v Value) Any() any {
	if !v.Valid {
		return nil
	}
	return v.Str
}

func (v Value) String() string {
	if !v.Valid {
		return "NULL"
	}
	return v.Str
}

// Row is an ordered tuple of column values, aligned with Table.Columns.
type Row []Value

// Args converts the row to driver arguments.
func (r Row) Args() []any {
	args := make([]any, len(r))
	for i, v := range r {
		args[i] = v.Any()
	}
	return args
}

// Candidate is one row derived from the genesis document together with its
// primary key. Candidates live only for the duration of one load pass.
type Candidate struct {
	Key string
	Row Row
}

// KeySet is a snapshot of primary keys already stored in a table.
type KeySet map[string]struct{}

// NewKeySet builds a set from keys.
func NewKeySet(keys ...string) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s KeySet) Has(key string) bool {
	_, ok := s[key]
	return ok
}
