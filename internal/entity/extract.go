package entity

import (
	"fmt"

	"github.com/roach88/genesis/internal/genesis"
	"github.com/roach88/genesis/internal/ir"
)

// Extract derives the ordered candidates of def from doc.
//
// Document order is preserved, including keys that repeat within the
// document. Shape problems in the document are reported as
// *genesis.MalformedError; a row mapper that violates the table arity
// yields an error wrapping ErrArity.
func Extract(doc *genesis.Document, def Definition, env Env) ([]ir.Candidate, error) {
	recs, err := doc.Lookup(def.Path)
	if err != nil {
		return nil, err
	}

	keyIdx := def.Table.KeyIndex()
	if keyIdx < 0 {
		return nil, fmt.Errorf("entity %s: key column %q is not a column", def.Name, def.Table.Key)
	}

	candidates := make([]ir.Candidate, 0, len(recs))
	for i, rec := range recs {
		at := fmt.Sprintf("%s[%d]", def.Path, i)

		expanded := []ir.Record{rec}
		if def.Explode != nil {
			expanded, err = def.Explode(rec)
			if err != nil {
				return nil, &genesis.MalformedError{Path: at, Reason: err.Error()}
			}
		}

		for _, r := range expanded {
			c, err := candidate(def, r, env, keyIdx)
			if err != nil {
				return nil, withPath(err, at)
			}
			candidates = append(candidates, c)
		}
	}
	return candidates, nil
}

func candidate(def Definition, rec ir.Record, env Env, keyIdx int) (ir.Candidate, error) {
	key, err := def.Key(rec)
	if err != nil {
		return ir.Candidate{}, &genesis.MalformedError{Reason: err.Error()}
	}
	row, err := def.Row(rec, env)
	if err != nil {
		return ir.Candidate{}, &genesis.MalformedError{Reason: err.Error()}
	}
	if len(row) != len(def.Table.Columns) {
		return ir.Candidate{}, fmt.Errorf("entity %s: %w: got %d values for %d columns",
			def.Name, ErrArity, len(row), len(def.Table.Columns))
	}

	key = ir.NormalizeKey(key)
	if !row[keyIdx].Valid {
		return ir.Candidate{}, fmt.Errorf("entity %s: key column %s is null", def.Name, def.Table.Key)
	}
	// Every column, not only the key: reference columns must match the
	// normalized keys of the rows they point at.
	row = ir.NormalizeRow(row)
	if got := row[keyIdx].Str; got != key {
		return ir.Candidate{}, fmt.Errorf("entity %s: key %q does not match key column value %q", def.Name, key, got)
	}

	return ir.Candidate{Key: key, Row: row}, nil
}

func withPath(err error, path string) error {
	if me, ok := err.(*genesis.MalformedError); ok && me.Path == "" {
		me.Path = path
		return me
	}
	return err
}
