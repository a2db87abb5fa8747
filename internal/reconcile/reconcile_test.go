package reconcile

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/genesis/internal/ir"
	"github.com/roach88/genesis/internal/schema"
	"github.com/roach88/genesis/internal/store"
)

func accounts() ir.Table {
	return ir.Table{
		Name: "accounts",
		Columns: []ir.Column{
			{Name: "id", Type: ir.TypeText},
			{Name: "chain_id", Type: ir.TypeText},
		},
		Key: "id",
	}
}

func cand(key string) ir.Candidate {
	return ir.Candidate{Key: key, Row: ir.Row{ir.Text(key), ir.Text("test")}}
}

func candKeys(cs []ir.Candidate) []string {
	out := []string{}
	for _, c := range cs {
		out = append(out, c.Key)
	}
	return out
}

func setup(t *testing.T) (*Reconciler, *store.Store) {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, store.Config{
		Driver: store.DialectSQLite,
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, schema.New(s).EnsureTable(ctx, accounts()))
	return New(s), s
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name     string
		cands    []ir.Candidate
		existing ir.KeySet
		want     []string
	}{
		{"empty", nil, ir.NewKeySet("a"), []string{}},
		{"nothing stored", []ir.Candidate{cand("b"), cand("a")}, ir.NewKeySet(), []string{"b", "a"}},
		{"all stored", []ir.Candidate{cand("a")}, ir.NewKeySet("a"), []string{}},
		{"keeps order", []ir.Candidate{cand("c"), cand("a"), cand("b")}, ir.NewKeySet("a"), []string{"c", "b"}},
		{"keeps repeats", []ir.Candidate{cand("x"), cand("x"), cand("y")}, ir.NewKeySet("y"), []string{"x", "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, candKeys(Diff(tt.cands, tt.existing)))
		})
	}
}

func TestDiff_DoesNotMutateExisting(t *testing.T) {
	existing := ir.NewKeySet("a")
	Diff([]ir.Candidate{cand("b")}, existing)
	assert.Equal(t, ir.NewKeySet("a"), existing)
}

func TestRun_WritesOnlyNew(t *testing.T) {
	r, s := setup(t)
	ctx := context.Background()

	res, err := r.Run(ctx, accounts(), []ir.Candidate{cand("addr123")})
	require.NoError(t, err)
	assert.Equal(t, Result{Candidates: 1, Skipped: 0, Written: 1}, res)

	res, err = r.Run(ctx, accounts(), []ir.Candidate{cand("addr123"), cand("addr456")})
	require.NoError(t, err)
	assert.Equal(t, Result{Candidates: 2, Skipped: 1, Written: 1}, res)

	keys, err := s.ExistingKeys(ctx, accounts())
	require.NoError(t, err)
	assert.Equal(t, ir.NewKeySet("addr123", "addr456"), keys)
}

func TestRun_Idempotent(t *testing.T) {
	r, s := setup(t)
	ctx := context.Background()
	cands := []ir.Candidate{cand("a"), cand("b"), cand("c")}

	_, err := r.Run(ctx, accounts(), cands)
	require.NoError(t, err)
	before, err := s.ReadRows(ctx, accounts())
	require.NoError(t, err)

	res, err := r.Run(ctx, accounts(), cands)
	require.NoError(t, err)
	assert.Equal(t, Result{Candidates: 3, Skipped: 3, Written: 0}, res)

	after, err := s.ReadRows(ctx, accounts())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRun_EmptyCandidatesIsNoop(t *testing.T) {
	r, _ := setup(t)

	// The table does not exist: any query would fail.
	missing := accounts()
	missing.Name = "missing"

	res, err := r.Run(context.Background(), missing, nil)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestRun_InBatchDuplicateIsFatal(t *testing.T) {
	r, s := setup(t)
	ctx := context.Background()

	res, err := r.Run(ctx, accounts(), []ir.Candidate{cand("a"), cand("dup"), cand("dup")})
	require.Error(t, err)
	assert.True(t, store.IsDuplicateKey(err))
	assert.Zero(t, res.Written)

	keys, err := s.ExistingKeys(ctx, accounts())
	require.NoError(t, err)
	assert.Empty(t, keys, "failed batch must roll back entirely")
}

func TestRun_CanceledContext(t *testing.T) {
	r, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, accounts(), []ir.Candidate{cand("a")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPlan_Skipped(t *testing.T) {
	r, _ := setup(t)
	ctx := context.Background()

	_, err := r.Run(ctx, accounts(), []ir.Candidate{cand("a")})
	require.NoError(t, err)

	plan, err := r.Plan(ctx, accounts(), []ir.Candidate{cand("a"), cand("b")})
	require.NoError(t, err)
	assert.Equal(t, 2, plan.Candidates)
	assert.Equal(t, 1, plan.Skipped())
	assert.Equal(t, []string{"b"}, candKeys(plan.Fresh))
}
