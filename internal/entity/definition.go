package entity

import (
	"errors"
	"fmt"

	"github.com/roach88/genesis/internal/ir"
)

// Env is the ambient context available to row mappers.
type Env struct {
	ChainID string
}

// ExplodeFunc expands one raw record into zero or more records.
type ExplodeFunc func(rec ir.Record) ([]ir.Record, error)

// KeyFunc derives the primary key of a record. It must be deterministic.
type KeyFunc func(rec ir.Record) (string, error)

// RowFunc maps a record to column values aligned with Table.Columns.
type RowFunc func(rec ir.Record, env Env) (ir.Row, error)

// Definition describes one entity type.
type Definition struct {
	// Name identifies the entity ("accounts", "balances", ...).
	Name string

	// Table is the target table. Row values align with Table.Columns.
	Table ir.Table

	// Path locates the list of raw records in the genesis document.
	Path ir.Path

	// DependsOn names entities that must be loaded first.
	DependsOn []string

	// Explode is optional. When set, each raw record at Path is expanded
	// and Key/Row see the expanded records.
	Explode ExplodeFunc

	Key KeyFunc
	Row RowFunc
}

// ErrArity is returned when a row mapper yields a row whose length differs
// from the table's column count.
var ErrArity = errors.New("row arity does not match table columns")

// Validate checks the static parts of a definition.
func (d Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("entity name is required")
	}
	if err := d.Table.Validate(); err != nil {
		return fmt.Errorf("entity %s: %w", d.Name, err)
	}
	if len(d.Path) == 0 {
		return fmt.Errorf("entity %s: path is required", d.Name)
	}
	if d.Key == nil {
		return fmt.Errorf("entity %s: key rule is required", d.Name)
	}
	if d.Row == nil {
		return fmt.Errorf("entity %s: row mapper is required", d.Name)
	}
	for _, dep := range d.DependsOn {
		if dep == d.Name {
			return fmt.Errorf("entity %s: depends on itself", d.Name)
		}
	}
	return nil
}

// InSchema returns a copy of d whose table lives in schema, unless the
// definition already names a schema.
func (d Definition) InSchema(schema string) Definition {
	if d.Table.Schema == "" {
		d.Table = d.Table.WithSchema(schema)
	}
	return d
}
