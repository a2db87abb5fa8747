// Package store provides relational storage for genesis seed tables.
//
// The store wraps a database/sql handle and a Dialect. Three dialects are
// supported:
//   - sqlite3:  github.com/mattn/go-sqlite3, used for local runs and tests
//   - postgres: github.com/lib/pq, bulk rows via COPY FROM STDIN (pq.CopyInSchema)
//   - pgx:      github.com/jackc/pgx/v5, bulk rows via the binary CopyFrom protocol
//
// # Bulk Writer
//
// OpenWriter begins one transaction and one bulk channel for a table. Rows are
// streamed into the channel as they are written; nothing reaches the table
// until Commit. Any error, including a duplicate primary key, fails the whole
// batch: the transaction is rolled back and the error is returned as-is.
// There is no retry and no per-row conflict handling here. Callers are
// expected to filter known keys before writing (see package reconcile).
//
// # Existing Keys
//
// ExistingKeys reads the primary-key column of a table into an ir.KeySet
// with a single query. The result is a snapshot: no lock is held between
// reading it and writing the filtered rows, so two loaders must never target
// the same tables concurrently.
//
// # SQLite Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - numeric and interface columns are stored as TEXT to keep exact decimals
package store
