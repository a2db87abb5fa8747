package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/genesis/internal/ir"
)

func stub(name string, deps ...string) Definition {
	return Definition{
		Name: name,
		Table: ir.Table{
			Name:    name,
			Columns: []ir.Column{{Name: "id", Type: ir.TypeText}},
			Key:     "id",
		},
		Path:      ir.Path{"app_state", name},
		DependsOn: deps,
		Key:       func(rec ir.Record) (string, error) { return rec.String("id") },
		Row: func(rec ir.Record, _ Env) (ir.Row, error) {
			id, err := rec.String("id")
			return ir.Row{ir.Text(id)}, err
		},
	}
}

func names(defs []Definition) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.Name
	}
	return out
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	assert.Equal(t, []string{Accounts, Balances, Contracts}, r.Names())

	waves := r.Waves()
	require.Len(t, waves, 2)
	assert.Equal(t, []string{Accounts, Contracts}, names(waves[0]))
	assert.Equal(t, []string{Balances}, names(waves[1]))
}

func TestNewRegistry_Errors(t *testing.T) {
	tests := []struct {
		name string
		defs []Definition
		want string
	}{
		{"duplicate", []Definition{stub("a"), stub("a")}, "entity a: defined more than once"},
		{"unknown dependency", []Definition{stub("a", "ghost")}, `entity a: unknown dependency "ghost"`},
		{"self dependency", []Definition{stub("a", "a")}, "entity a: depends on itself"},
		{"cycle", []Definition{stub("a", "b"), stub("b", "a")}, "entity dependency cycle: "},
		{"missing name", []Definition{stub("")}, "entity name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.defs...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewRegistry_CyclePath(t *testing.T) {
	_, err := NewRegistry(stub("a", "c"), stub("b", "a"), stub("c", "b"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a -> c -> b -> a")
}

func TestWaves_Levels(t *testing.T) {
	r, err := NewRegistry(
		stub("d", "b", "c"),
		stub("a"),
		stub("b", "a"),
		stub("c"),
	)
	require.NoError(t, err)

	waves := r.Waves()
	require.Len(t, waves, 3)
	assert.Equal(t, []string{"a", "c"}, names(waves[0]))
	assert.Equal(t, []string{"b"}, names(waves[1]))
	assert.Equal(t, []string{"d"}, names(waves[2]))
}

func TestSelect_PullsInDependencies(t *testing.T) {
	r := DefaultRegistry()

	sub, err := r.Select(Balances)
	require.NoError(t, err)
	assert.Equal(t, []string{Accounts, Balances}, sub.Names())

	sub, err = r.Select(Contracts)
	require.NoError(t, err)
	assert.Equal(t, []string{Contracts}, sub.Names())

	sub, err = r.Select()
	require.NoError(t, err)
	assert.Equal(t, r.Names(), sub.Names())

	_, err = r.Select("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown entity "nope"`)
}

func TestWith_AddsAndReplaces(t *testing.T) {
	r := DefaultRegistry()

	replacement := ContractsDefinition()
	replacement.Table.Name = "wasm_contracts"

	ext, err := r.With(stub("validators", Accounts), replacement)
	require.NoError(t, err)
	assert.Equal(t, []string{Accounts, Balances, Contracts, "validators"}, ext.Names())

	got, ok := ext.Get(Contracts)
	require.True(t, ok)
	assert.Equal(t, "wasm_contracts", got.Table.Name)

	// Original registry is untouched.
	got, _ = r.Get(Contracts)
	assert.Equal(t, "contracts", got.Table.Name)
}

func TestInSchema(t *testing.T) {
	def := AccountsDefinition().InSchema("app")
	assert.Equal(t, "app", def.Table.Schema)

	def.Table.Schema = "custom"
	assert.Equal(t, "custom", def.InSchema("app").Table.Schema)
}

func TestNewRegistry_CyclePathStable(t *testing.T) {
	for range 50 {
		_, err := NewRegistry(stub("x"), stub("a", "c"), stub("b", "a"), stub("c", "b"), stub("d", "c"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "a -> c -> b -> a")
	}
}
