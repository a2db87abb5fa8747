package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/genesis/internal/ir"
)

// ErrWriterClosed is returned when a Writer is used after Commit or Rollback.
var ErrWriterClosed = errors.New("writer is closed")

// Writer is a scoped bulk channel into one table, bound to one transaction.
// A Writer is not safe for concurrent use.
type Writer struct {
	dialect Dialect
	table   ir.Table
	stream  bulkStream
	written int64
	closed  bool
}

// OpenWriter begins a transaction and opens the dialect's bulk channel for t.
// The caller must end the writer with Commit or Rollback.
func (s *Store) OpenWriter(ctx context.Context, t ir.Table) (*Writer, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	stream, err := s.dialect.openBulk(ctx, s.db, t)
	if err != nil {
		return nil, fmt.Errorf("open writer for %s: %w", t.Name, err)
	}
	return &Writer{dialect: s.dialect, table: t, stream: stream}, nil
}

// Write appends one row to the bulk channel. Values must align with the
// table's columns; no coercion is performed.
func (w *Writer) Write(ctx context.Context, row ir.Row) error {
	if w.closed {
		return ErrWriterClosed
	}
	if len(row) != len(w.table.Columns) {
		return fmt.Errorf("write %s: row has %d values, table has %d columns",
			w.table.Name, len(row), len(w.table.Columns))
	}
	if err := w.stream.write(ctx, row); err != nil {
		return fmt.Errorf("write %s: %w", w.table.Name, classify(w.dialect, w.table.Name, err))
	}
	w.written++
	return nil
}

// Written returns the number of rows accepted so far.
func (w *Writer) Written() int64 {
	return w.written
}

// Commit flushes the channel and commits the transaction. It returns the
// number of rows written. On error nothing from this batch is persisted.
func (w *Writer) Commit(ctx context.Context) (int64, error) {
	if w.closed {
		return 0, ErrWriterClosed
	}
	w.closed = true

	if err := ctx.Err(); err != nil {
		w.stream.rollback()
		return 0, fmt.Errorf("commit %s: %w", w.table.Name, err)
	}
	if err := w.stream.commit(ctx); err != nil {
		return 0, fmt.Errorf("commit %s: %w", w.table.Name, classify(w.dialect, w.table.Name, err))
	}
	return w.written, nil
}

// Rollback abandons the batch. Safe to call after Commit (no-op).
func (w *Writer) Rollback() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.stream.rollback()
}

// WithWriter opens a writer for t, runs fn, and commits if fn returns nil.
// Any error from fn or from the commit rolls the whole batch back.
func (s *Store) WithWriter(ctx context.Context, t ir.Table, fn func(w *Writer) error) (int64, error) {
	w, err := s.OpenWriter(ctx, t)
	if err != nil {
		return 0, err
	}
	defer w.Rollback() // No-op if committed

	if err := fn(w); err != nil {
		return 0, err
	}
	return w.Commit(ctx)
}
