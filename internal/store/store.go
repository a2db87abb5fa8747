package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Config selects a dialect and a data source.
type Config struct {
	// Driver is one of "sqlite3", "postgres" or "pgx".
	Driver string

	// DSN is the driver-specific data source name. For sqlite3 it is a file path.
	DSN string
}

// Store provides access to the seed tables of one database.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects to the database described by cfg and applies the dialect's
// connection settings. The connection is verified before returning.
//
// This function is idempotent - safe to call multiple times.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("open %s database: empty data source name", dialect.Name())
	}

	db, err := sql.Open(dialect.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := dialect.configure(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure %s connection: %w", dialect.Name(), err)
	}

	return &Store{db: db, dialect: dialect}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the SQL dialect of the connected database.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Exec runs a statement outside of any transaction, so DDL commits
// immediately and later statements in the same run observe it.
func (s *Store) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	return nil
}

// QueryBool runs a query that returns a single boolean.
func (s *Store) QueryBool(ctx context.Context, query string, args ...any) (bool, error) {
	var b bool
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&b); err != nil {
		return false, err
	}
	return b, nil
}
