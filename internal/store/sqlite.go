package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/genesis/internal/ir"
)

// sqliteDialect stores seed tables in a single SQLite file.
// Schemas are ignored: every table lives in "main".
type sqliteDialect struct{}

func (sqliteDialect) Name() string       { return DialectSQLite }
func (sqliteDialect) DriverName() string { return "sqlite3" }

func (sqliteDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d sqliteDialect) TableName(t ir.Table) string {
	return d.QuoteIdent(t.Name)
}

func (sqliteDialect) Placeholder(int) string { return "?" }

// ColumnType maps every type to TEXT. SQLite's NUMERIC affinity would turn
// large balances into REAL and lose digits.
func (sqliteDialect) ColumnType(ir.ColumnType) string { return "TEXT" }

func (d sqliteDialect) SortKey(column string) string {
	return d.QuoteIdent(column) + " COLLATE BINARY"
}

func (sqliteDialect) Namespaces() bool        { return false }
func (sqliteDialect) Cascade() bool           { return false }
func (sqliteDialect) ConcurrentIndexes() bool { return false }

func (sqliteDialect) TableExistsQuery(t ir.Table) (string, []any) {
	return `SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?)`,
		[]any{t.Name}
}

// configure applies the pragmas the loader relies on.
func (sqliteDialect) configure(ctx context.Context, db *sql.DB) error {
	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func (d sqliteDialect) openBulk(ctx context.Context, db *sql.DB, t ir.Table) (bulkStream, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL(d, t))
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("prepare insert: %w", err)
	}

	return &sqliteStream{tx: tx, stmt: stmt, table: t, keyIdx: t.KeyIndex()}, nil
}

// duplicateKey recognizes primary-key and unique violations. SQLite does not
// report the offending value; sqliteStream fills it in from the failing row.
func (sqliteDialect) duplicateKey(err error) (string, bool) {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return "", false
	}
	if se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || se.ExtendedCode == sqlite3.ErrConstraintUnique {
		return "", true
	}
	return "", false
}

// sqliteStream is SQLite's bulk path: one prepared INSERT reused for every
// row inside one transaction.
type sqliteStream struct {
	tx     *sql.Tx
	stmt   *sql.Stmt
	table  ir.Table
	keyIdx int
}

func (s *sqliteStream) write(ctx context.Context, row ir.Row) error {
	if _, err := s.stmt.ExecContext(ctx, row.Args()...); err != nil {
		if _, dup := (sqliteDialect{}).duplicateKey(err); dup {
			return &DuplicateKeyError{Table: s.table.Name, Key: row[s.keyIdx].Str, Err: err}
		}
		return err
	}
	return nil
}

func (s *sqliteStream) commit(ctx context.Context) error {
	if err := s.stmt.Close(); err != nil {
		s.tx.Rollback()
		return fmt.Errorf("close insert: %w", err)
	}
	return s.tx.Commit()
}

func (s *sqliteStream) rollback() error {
	s.stmt.Close()
	return s.tx.Rollback()
}
