package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/genesis/internal/ir"
)

func TestWithWriter_CommitsBatch(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	table := accountsTable()
	createTable(t, s, table)

	n, err := s.WithWriter(ctx, table, func(w *Writer) error {
		for _, id := range []string{"addr2", "addr1"} {
			if err := w.Write(ctx, row(id, "test-chain")); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rows, err := s.ReadRows(ctx, table)
	require.NoError(t, err)
	assert.Equal(t, []ir.Row{row("addr1", "test-chain"), row("addr2", "test-chain")}, rows)
}

func TestWithWriter_CallbackErrorRollsBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	table := accountsTable()
	createTable(t, s, table)

	boom := errors.New("boom")
	n, err := s.WithWriter(ctx, table, func(w *Writer) error {
		require.NoError(t, w.Write(ctx, row("addr1", "c")))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, n)

	keys, err := s.ExistingKeys(ctx, table)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestWriter_DuplicateKeyRollsBackBatch(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	table := accountsTable()
	createTable(t, s, table)

	_, err := s.WithWriter(ctx, table, func(w *Writer) error {
		return w.Write(ctx, row("addr123", "c"))
	})
	require.NoError(t, err)

	_, err = s.WithWriter(ctx, table, func(w *Writer) error {
		if err := w.Write(ctx, row("addr456", "c")); err != nil {
			return err
		}
		return w.Write(ctx, row("addr123", "c"))
	})
	require.Error(t, err)

	var de *DuplicateKeyError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "accounts", de.Table)
	assert.Equal(t, "addr123", de.Key)
	assert.True(t, IsDuplicateKey(err))

	// addr456 shared the failed batch and must not be visible.
	keys, err := s.ExistingKeys(ctx, table)
	require.NoError(t, err)
	assert.Equal(t, ir.NewKeySet("addr123"), keys)
}

func TestWriter_RejectsWrongArity(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	table := accountsTable()
	createTable(t, s, table)

	w, err := s.OpenWriter(ctx, table)
	require.NoError(t, err)
	defer w.Rollback()

	err = w.Write(ctx, row("only-one"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row has 1 values, table has 2 columns")
}

func TestWriter_ClosedAfterCommit(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	table := accountsTable()
	createTable(t, s, table)

	w, err := s.OpenWriter(ctx, table)
	require.NoError(t, err)
	require.NoError(t, w.Write(ctx, row("a", "c")))
	assert.Equal(t, int64(1), w.Written())

	n, err := w.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.ErrorIs(t, w.Write(ctx, row("b", "c")), ErrWriterClosed)
	_, err = w.Commit(ctx)
	assert.ErrorIs(t, err, ErrWriterClosed)
	assert.NoError(t, w.Rollback())
}

func TestWriter_CanceledContextDoesNotCommit(t *testing.T) {
	s := createTestStore(t)
	table := accountsTable()
	createTable(t, s, table)

	ctx, cancel := context.WithCancel(context.Background())
	w, err := s.OpenWriter(ctx, table)
	require.NoError(t, err)
	require.NoError(t, w.Write(ctx, row("a", "c")))

	cancel()
	_, err = w.Commit(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	keys, err := s.ExistingKeys(context.Background(), table)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestWriter_NullValues(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	table := ir.Table{
		Name: "contracts",
		Columns: []ir.Column{
			{Name: "id", Type: ir.TypeText},
			{Name: "interface", Type: ir.TypeInterface},
			{Name: "store_message_id", Type: ir.TypeText},
		},
		Key: "id",
	}
	createTable(t, s, table)

	_, err := s.WithWriter(ctx, table, func(w *Writer) error {
		return w.Write(ctx, ir.Row{ir.Text("contract1"), ir.Text("Uncertain"), ir.Null})
	})
	require.NoError(t, err)

	rows, err := s.ReadRows(ctx, table)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "contract1", rows[0][0].Str)
	assert.False(t, rows[0][2].Valid)
}
