package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/genesis/internal/ir"
)

func balancesTable() ir.Table {
	return ir.Table{
		Schema: "app",
		Name:   "genesis_balances",
		Columns: []ir.Column{
			{Name: "id", Type: ir.TypeText},
			{Name: "amount", Type: ir.TypeNumeric},
			{Name: "denom", Type: ir.TypeText},
			{Name: "account_id", Type: ir.TypeText},
		},
		Key: "id",
	}
}

func TestInsertSQL(t *testing.T) {
	table := balancesTable()

	assert.Equal(t,
		`INSERT INTO "genesis_balances" ("id", "amount", "denom", "account_id") VALUES (?, ?, ?, ?)`,
		insertSQL(sqliteDialect{}, table))
	assert.Equal(t,
		`INSERT INTO "app"."genesis_balances" ("id", "amount", "denom", "account_id") VALUES ($1, $2, $3, $4)`,
		insertSQL(postgresDialect{}, table))
	assert.Equal(t,
		`INSERT INTO "app"."genesis_balances" ("id", "amount", "denom", "account_id") VALUES ($1, $2, $3, $4)`,
		insertSQL(pgxDialect{}, table))
}

func TestColumnType(t *testing.T) {
	pg := postgresDialect{}
	assert.Equal(t, "text", pg.ColumnType(ir.TypeText))
	assert.Equal(t, "numeric", pg.ColumnType(ir.TypeNumeric))
	assert.Equal(t, `"public"."app_enum_0f6c2478ba"`, pg.ColumnType(ir.TypeInterface))

	lite := sqliteDialect{}
	for _, ct := range []ir.ColumnType{ir.TypeText, ir.TypeNumeric, ir.TypeInterface} {
		assert.Equal(t, "TEXT", lite.ColumnType(ct))
	}
}

func TestSortKey(t *testing.T) {
	assert.Equal(t, `"id" COLLATE "C"`, postgresDialect{}.SortKey("id"))
	assert.Equal(t, `"id" COLLATE BINARY`, sqliteDialect{}.SortKey("id"))
}

func TestQuoteIdent_EscapesQuotes(t *testing.T) {
	assert.Equal(t, `"we""ird"`, sqliteDialect{}.QuoteIdent(`we"ird`))
	assert.Equal(t, `"we""ird"`, postgresDialect{}.QuoteIdent(`we"ird`))
	assert.Equal(t, `"we""ird"`, pgxDialect{}.QuoteIdent(`we"ird`))
}

func TestTableExistsQuery_DefaultsToPublic(t *testing.T) {
	table := accountsTable()
	_, args := postgresDialect{}.TableExistsQuery(table)
	assert.Equal(t, []any{"public", "accounts"}, args)

	_, args = postgresDialect{}.TableExistsQuery(table.WithSchema("app"))
	assert.Equal(t, []any{"app", "accounts"}, args)
}

func TestPgxValues_Numeric(t *testing.T) {
	table := balancesTable()
	vals, err := pgxValues(table, ir.Row{
		ir.Text("addr1-uatom"), ir.Text("123456789012345678901234567890"), ir.Text("uatom"), ir.Null,
	})
	assert.NoError(t, err)
	assert.Equal(t, "addr1-uatom", vals[0])
	assert.Nil(t, vals[3])

	_, err = pgxValues(table, ir.Row{ir.Text("k"), ir.Text("not-a-number"), ir.Text("d"), ir.Null})
	assert.Error(t, err)
}
