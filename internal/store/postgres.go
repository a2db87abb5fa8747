package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/lib/pq"

	"github.com/roach88/genesis/internal/ir"
)

// EnumTypeName is the Postgres enum backing interface columns. It is shared
// with the indexer that consumes the seed tables.
const EnumTypeName = "app_enum_0f6c2478ba"

// EnumTypeSchema is the schema holding EnumTypeName.
const EnumTypeSchema = "public"

// uniqueViolation is the SQLSTATE for duplicate keys.
const uniqueViolation = "23505"

// postgresBase holds SQL shared by the lib/pq and pgx dialects.
type postgresBase struct{}

func (postgresBase) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgresBase) ColumnType(ct ir.ColumnType) string {
	switch ct {
	case ir.TypeNumeric:
		return "numeric"
	case ir.TypeInterface:
		return pq.QuoteIdentifier(EnumTypeSchema) + "." + pq.QuoteIdentifier(EnumTypeName)
	default:
		return "text"
	}
}

func (postgresBase) SortKey(column string) string {
	return pq.QuoteIdentifier(column) + ` COLLATE "C"`
}

func (postgresBase) Namespaces() bool        { return true }
func (postgresBase) Cascade() bool           { return true }
func (postgresBase) ConcurrentIndexes() bool { return true }

func (postgresBase) TableExistsQuery(t ir.Table) (string, []any) {
	return `SELECT EXISTS (SELECT FROM pg_tables WHERE schemaname = $1 AND tablename = $2)`,
		[]any{schemaOrPublic(t), t.Name}
}

func (postgresBase) configure(ctx context.Context, db *sql.DB) error {
	return nil
}

func schemaOrPublic(t ir.Table) string {
	if t.Schema == "" {
		return "public"
	}
	return t.Schema
}

// postgresDialect talks to Postgres through lib/pq and loads rows with
// COPY FROM STDIN.
type postgresDialect struct{ postgresBase }

func (postgresDialect) Name() string       { return DialectPostgres }
func (postgresDialect) DriverName() string { return "postgres" }

func (postgresDialect) QuoteIdent(name string) string {
	return pq.QuoteIdentifier(name)
}

func (postgresDialect) TableName(t ir.Table) string {
	if t.Schema == "" {
		return pq.QuoteIdentifier(t.Name)
	}
	return pq.QuoteIdentifier(t.Schema) + "." + pq.QuoteIdentifier(t.Name)
}

func (postgresDialect) openBulk(ctx context.Context, db *sql.DB, t ir.Table) (bulkStream, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}

	var copySQL string
	if t.Schema == "" {
		copySQL = pq.CopyIn(t.Name, t.ColumnNames()...)
	} else {
		copySQL = pq.CopyInSchema(t.Schema, t.Name, t.ColumnNames()...)
	}

	stmt, err := tx.PrepareContext(ctx, copySQL)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("prepare copy statement: %w", err)
	}

	return &pqStream{tx: tx, stmt: stmt}, nil
}

func (postgresDialect) duplicateKey(err error) (string, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return "", false
	}
	return keyFromDetail(pqErr.Detail), true
}

// pqStream buffers rows into a COPY statement. The server only sees the
// final rows when the statement is flushed at commit, so constraint
// violations surface there.
type pqStream struct {
	tx   *sql.Tx
	stmt *sql.Stmt
}

func (s *pqStream) write(ctx context.Context, row ir.Row) error {
	if _, err := s.stmt.ExecContext(ctx, row.Args()...); err != nil {
		return fmt.Errorf("add row to copy: %w", err)
	}
	return nil
}

func (s *pqStream) commit(ctx context.Context) error {
	if _, err := s.stmt.ExecContext(ctx); err != nil {
		s.stmt.Close()
		s.tx.Rollback()
		return fmt.Errorf("execute copy: %w", err)
	}
	if err := s.stmt.Close(); err != nil {
		s.tx.Rollback()
		return fmt.Errorf("close copy: %w", err)
	}
	return s.tx.Commit()
}

func (s *pqStream) rollback() error {
	s.stmt.Close()
	return s.tx.Rollback()
}
