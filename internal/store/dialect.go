package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/genesis/internal/ir"
)

// Dialect renders SQL for one database engine and owns its bulk channel.
type Dialect interface {
	// Name identifies the dialect ("sqlite3", "postgres", "pgx").
	Name() string

	// DriverName is the database/sql driver name.
	DriverName() string

	// QuoteIdent quotes one identifier.
	QuoteIdent(name string) string

	// TableName returns the (schema-qualified where supported) quoted name of t.
	TableName(t ir.Table) string

	// Placeholder returns the bind parameter for the n-th argument (1-based).
	Placeholder(n int) string

	// ColumnType maps a semantic column type to a physical type.
	ColumnType(ct ir.ColumnType) string

	// SortKey returns an ORDER BY expression giving byte-order sorting.
	SortKey(column string) string

	// Namespaces reports whether tables live in named schemas.
	Namespaces() bool

	// Cascade reports whether DROP TABLE ... CASCADE is supported.
	Cascade() bool

	// ConcurrentIndexes reports whether CREATE INDEX CONCURRENTLY is supported.
	ConcurrentIndexes() bool

	// TableExistsQuery returns a catalog query yielding one boolean.
	TableExistsQuery(t ir.Table) (string, []any)

	configure(ctx context.Context, db *sql.DB) error
	openBulk(ctx context.Context, db *sql.DB, t ir.Table) (bulkStream, error)
	duplicateKey(err error) (key string, ok bool)
}

// bulkStream is one open bulk channel bound to one transaction.
type bulkStream interface {
	write(ctx context.Context, row ir.Row) error
	commit(ctx context.Context) error
	rollback() error
}

// Dialect names accepted by DialectFor.
const (
	DialectSQLite   = "sqlite3"
	DialectPostgres = "postgres"
	DialectPgx      = "pgx"
)

// Dialects lists the supported dialect names.
var Dialects = []string{DialectPostgres, DialectPgx, DialectSQLite}

// DialectFor returns the dialect registered under name.
// "sqlite" is accepted as an alias for "sqlite3".
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case DialectSQLite, "sqlite":
		return sqliteDialect{}, nil
	case DialectPostgres, "postgresql":
		return postgresDialect{}, nil
	case DialectPgx:
		return pgxDialect{}, nil
	default:
		return nil, fmt.Errorf("unknown driver %q: must be one of %v", name, Dialects)
	}
}

// insertSQL renders a multi-column INSERT with dialect placeholders.
func insertSQL(d Dialect, t ir.Table) string {
	cols := make([]string, len(t.Columns))
	params := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = d.QuoteIdent(c.Name)
		params[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.TableName(t), strings.Join(cols, ", "), strings.Join(params, ", "))
}
