// Package schema manages the physical seed tables.
//
// Every operation is idempotent and runs outside of any load transaction,
// so DDL commits immediately and the writers started afterwards observe it.
//
// Indexes are never created with the table. Index creation is separate
// operator tooling (see Manager.CreateIndexes): on Postgres it uses
// CREATE INDEX CONCURRENTLY, which cannot run inside a transaction and is
// meant to be applied after the bulk load has finished.
package schema
