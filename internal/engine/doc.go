// Package engine orchestrates a genesis load.
//
// A load first extracts the candidates of every registered entity from the
// document, then runs each entity through the same pipeline:
//
//	Reconciling -> Writing -> Done
//
// Entities are grouped into dependency waves. The entities of one wave run
// concurrently, each in its own transaction, bounded by the configured
// concurrency; a wave starts only after the previous one has finished.
// The parsed document is shared read-only between pipelines.
//
// FAILURE MODEL:
//
// A failed entity stops scheduling: entities not yet started are reported
// as skipped, entities already running finish, and committed entities are
// never rolled back. Re-running the load is safe and only writes what is
// missing.
//
// A malformed document aborts the whole job before any table is created or
// written, whatever the concurrency. Extraction failures of any other kind
// (a row arity violation) fail the job the same way, also before writing.
// Cancellation of the context (e.g. the job timeout) aborts the job too;
// pipelines still running see it at their next database round-trip and
// roll back.
//
// Final job states: AllDone (every entity done), Failed, Aborted.
package engine
