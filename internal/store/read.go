package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/genesis/internal/ir"
)

// ExistingKeys returns the set of primary keys currently stored in t.
// One query, fully materialized before returning. Keys are NFC normalized
// like the keys of extracted candidates.
func (s *Store) ExistingKeys(ctx context.Context, t ir.Table) (ir.KeySet, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", s.dialect.QuoteIdent(t.Key), s.dialect.TableName(t))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query existing keys of %s: %w", t.Name, err)
	}
	defer rows.Close()

	keys := ir.KeySet{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan existing key of %s: %w", t.Name, err)
		}
		keys[ir.NormalizeKey(key)] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate existing keys of %s: %w", t.Name, err)
	}

	return keys, nil
}

// ReadRows returns every row of t ordered by primary key (byte order).
// It backs snapshots and tests; the load path never calls it.
//
// Returns an empty slice (not nil) for an empty table.
func (s *Store) ReadRows(ctx context.Context, t ir.Table) ([]ir.Row, error) {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = s.dialect.QuoteIdent(c.Name)
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(cols, ", "), s.dialect.TableName(t), s.dialect.SortKey(t.Key))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query rows of %s: %w", t.Name, err)
	}
	defer rows.Close()

	result := []ir.Row{}
	for rows.Next() {
		raw := make([]sql.NullString, len(t.Columns))
		dest := make([]any, len(raw))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row of %s: %w", t.Name, err)
		}
		row := make(ir.Row, len(raw))
		for i, v := range raw {
			row[i] = ir.Value{Str: v.String, Valid: v.Valid}
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows of %s: %w", t.Name, err)
	}

	return result, nil
}
