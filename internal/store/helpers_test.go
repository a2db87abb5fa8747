package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/genesis/internal/ir"
)

// createTestStore opens a fresh SQLite store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(context.Background(), Config{Driver: DialectSQLite, DSN: path})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func accountsTable() ir.Table {
	return ir.Table{
		Name: "accounts",
		Columns: []ir.Column{
			{Name: "id", Type: ir.TypeText},
			{Name: "chain_id", Type: ir.TypeText},
		},
		Key: "id",
	}
}

// createTable creates t with plain DDL, keyed on t.Key.
func createTable(t *testing.T, s *Store, table ir.Table) {
	t.Helper()
	ddl := "CREATE TABLE " + s.dialect.TableName(table) + " ("
	for i, c := range table.Columns {
		if i > 0 {
			ddl += ", "
		}
		ddl += s.dialect.QuoteIdent(c.Name) + " " + s.dialect.ColumnType(c.Type)
		if c.Name == table.Key {
			ddl += " PRIMARY KEY"
		}
	}
	ddl += ")"
	require.NoError(t, s.Exec(context.Background(), ddl))
}

func row(vals ...string) ir.Row {
	r := make(ir.Row, len(vals))
	for i, v := range vals {
		r[i] = ir.Text(v)
	}
	return r
}
