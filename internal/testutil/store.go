package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/genesis/internal/store"
)

// OpenStore opens a SQLite store in a fresh temp directory and closes it
// when the test ends. It returns the store and its DSN so callers can reopen
// the same database.
func OpenStore(t testing.TB) (*store.Store, string) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "seed.db")
	s, err := store.Open(context.Background(), store.Config{Driver: store.DialectSQLite, DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, dsn
}

// CountRows returns the number of rows in table of the SQLite database at dsn.
func CountRows(t testing.TB, dsn, table string) int {
	t.Helper()
	s, err := store.Open(context.Background(), store.Config{Driver: store.DialectSQLite, DSN: dsn})
	require.NoError(t, err)
	defer s.Close()

	var n int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}
