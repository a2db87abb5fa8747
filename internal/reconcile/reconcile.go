package reconcile

import (
	"context"
	"fmt"

	"github.com/roach88/genesis/internal/ir"
	"github.com/roach88/genesis/internal/store"
)

// Diff returns, in order, the candidates whose key is not in existing.
// Repeated keys among candidates are not removed.
func Diff(candidates []ir.Candidate, existing ir.KeySet) []ir.Candidate {
	fresh := make([]ir.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if existing.Has(c.Key) {
			continue
		}
		fresh = append(fresh, c)
	}
	return fresh
}

// Plan is the outcome of comparing candidates with the stored keys.
type Plan struct {
	Table      ir.Table
	Fresh      []ir.Candidate
	Candidates int
}

// Skipped returns the number of candidates already stored.
func (p Plan) Skipped() int {
	return p.Candidates - len(p.Fresh)
}

// Result summarizes one reconcile-and-write pass.
type Result struct {
	Candidates int
	Skipped    int
	Written    int64
}

// Reconciler runs reconcile-and-write passes against a store.
type Reconciler struct {
	store *store.Store
}

// New creates a Reconciler.
func New(s *store.Store) *Reconciler {
	return &Reconciler{store: s}
}

// Plan reads the existing keys of t once and diffs candidates against them.
// An empty candidate list needs no query.
func (r *Reconciler) Plan(ctx context.Context, t ir.Table, candidates []ir.Candidate) (Plan, error) {
	plan := Plan{Table: t, Candidates: len(candidates)}
	if len(candidates) == 0 {
		return plan, nil
	}

	existing, err := r.store.ExistingKeys(ctx, t)
	if err != nil {
		return Plan{}, fmt.Errorf("reconcile %s: %w", t.Name, err)
	}
	plan.Fresh = Diff(candidates, existing)
	return plan, nil
}

// Apply streams the fresh rows of plan to the bulk writer in one batch and
// returns the number of rows committed. When the plan came from an empty
// candidate list nothing is opened. When every candidate was already
// stored, an empty batch is opened and committed.
func (r *Reconciler) Apply(ctx context.Context, plan Plan) (int64, error) {
	if plan.Candidates == 0 {
		return 0, nil
	}

	return r.store.WithWriter(ctx, plan.Table, func(w *store.Writer) error {
		for _, c := range plan.Fresh {
			if err := w.Write(ctx, c.Row); err != nil {
				return err
			}
		}
		return nil
	})
}

// Run plans and applies one pass.
func (r *Reconciler) Run(ctx context.Context, t ir.Table, candidates []ir.Candidate) (Result, error) {
	plan, err := r.Plan(ctx, t, candidates)
	if err != nil {
		return Result{}, err
	}

	written, err := r.Apply(ctx, plan)
	if err != nil {
		return Result{Candidates: plan.Candidates, Skipped: plan.Skipped()}, err
	}

	return Result{
		Candidates: plan.Candidates,
		Skipped:    plan.Skipped(),
		Written:    written,
	}, nil
}
