package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/roach88/genesis/internal/ir"
)

// pgxDialect talks to Postgres through pgx's database/sql driver and loads
// rows with the binary COPY protocol on the underlying *pgx.Conn.
type pgxDialect struct{ postgresBase }

func (pgxDialect) Name() string       { return DialectPgx }
func (pgxDialect) DriverName() string { return "pgx" }

func (pgxDialect) QuoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (pgxDialect) TableName(t ir.Table) string {
	return identifier(t).Sanitize()
}

func identifier(t ir.Table) pgx.Identifier {
	if t.Schema == "" {
		return pgx.Identifier{t.Name}
	}
	return pgx.Identifier{t.Schema, t.Name}
}

func (pgxDialect) duplicateKey(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return "", false
	}
	return keyFromDetail(pgErr.Detail), true
}

// openBulk pins one pool connection and starts CopyFrom on it in the
// background. Rows written by the caller are fed to the copy through a
// channel, so they stream to the server while the batch is being produced.
func (pgxDialect) openBulk(ctx context.Context, db *sql.DB, t ir.Table) (bulkStream, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	s := &pgxStream{
		conn:   conn,
		table:  t,
		rows:   make(chan []any, 256),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go s.run(streamCtx)
	return s, nil
}

type pgxStream struct {
	conn   *sql.Conn
	table  ir.Table
	rows   chan []any
	done   chan struct{}
	cancel context.CancelFunc

	// err is written by run before done is closed.
	err    error
	closed bool
}

func (s *pgxStream) run(ctx context.Context) {
	defer close(s.done)
	s.err = s.conn.Raw(func(driverConn any) error {
		sc, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		c := sc.Conn()

		if err := registerEnum(ctx, c, s.table); err != nil {
			return err
		}

		tx, err := c.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		// No-op once committed.
		defer tx.Rollback(context.Background())

		src := &chanSource{ctx: ctx, rows: s.rows}
		if _, err := tx.CopyFrom(ctx, identifier(s.table), s.table.ColumnNames(), src); err != nil {
			return fmt.Errorf("copy from: %w", err)
		}
		return tx.Commit(ctx)
	})
}

// registerEnum teaches the connection's type map about the interface enum
// so CopyFrom can encode it.
func registerEnum(ctx context.Context, c *pgx.Conn, t ir.Table) error {
	for _, col := range t.Columns {
		if col.Type != ir.TypeInterface {
			continue
		}
		name := EnumTypeSchema + "." + EnumTypeName
		if _, ok := c.TypeMap().TypeForName(name); ok {
			return nil
		}
		dt, err := c.LoadType(ctx, name)
		if err != nil {
			return fmt.Errorf("load type %s: %w", name, err)
		}
		c.TypeMap().RegisterType(dt)
		return nil
	}
	return nil
}

func (s *pgxStream) write(ctx context.Context, row ir.Row) error {
	vals, err := pgxValues(s.table, row)
	if err != nil {
		return err
	}
	select {
	case s.rows <- vals:
		return nil
	case <-s.done:
		if s.err != nil {
			return s.err
		}
		return fmt.Errorf("copy stream closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *pgxStream) commit(ctx context.Context) error {
	s.finish()
	select {
	case <-s.done:
	case <-ctx.Done():
		s.cancel()
		<-s.done
	}
	s.cancel()
	s.conn.Close()
	return s.err
}

// rollback cancels the copy without closing the row channel, so CopyFrom
// can only end with an error and the transaction is never committed.
func (s *pgxStream) rollback() error {
	s.cancel()
	<-s.done
	s.conn.Close()
	return nil
}

func (s *pgxStream) finish() {
	if !s.closed {
		s.closed = true
		close(s.rows)
	}
}

// pgxValues converts a row for the binary protocol. Numeric columns are
// parsed into pgtype.Numeric so no float conversion happens.
func pgxValues(t ir.Table, row ir.Row) ([]any, error) {
	vals := make([]any, len(row))
	for i, v := range row {
		if !v.Valid {
			continue
		}
		if t.Columns[i].Type == ir.TypeNumeric {
			var n pgtype.Numeric
			if err := n.Scan(v.Str); err != nil {
				return nil, fmt.Errorf("column %s: %w", t.Columns[i].Name, err)
			}
			vals[i] = n
			continue
		}
		vals[i] = v.Str
	}
	return vals, nil
}

// chanSource adapts a channel of rows to pgx.CopyFromSource.
type chanSource struct {
	ctx  context.Context
	rows <-chan []any
	cur  []any
	err  error
}

func (s *chanSource) Next() bool {
	select {
	case row, ok := <-s.rows:
		if !ok {
			return false
		}
		s.cur = row
		return true
	case <-s.ctx.Done():
		s.err = s.ctx.Err()
		return false
	}
}

func (s *chanSource) Values() ([]any, error) { return s.cur, nil }

func (s *chanSource) Err() error { return s.err }
