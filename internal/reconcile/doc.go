// Package reconcile computes which candidate rows are net-new against the
// rows already stored and writes exactly those in one bulk batch.
//
// The existing-key set is read once per pass and never mutated. Keys that
// repeat within the candidates are kept: only durably stored keys count as
// duplicates. If the candidates themselves repeat a key, the writer fails
// the batch with a *store.DuplicateKeyError and nothing is retried.
//
// A pass is not isolated from concurrent writers to the same table. Running
// two loaders against the same tables at the same time is unsupported.
package reconcile
