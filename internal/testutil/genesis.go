package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/roach88/genesis/internal/genesis"
)

// Coin is one bank balance entry.
type Coin struct {
	Amount string `json:"amount"`
	Denom  string `json:"denom"`
}

type balance struct {
	Address string `json:"address"`
	Coins   []Coin `json:"coins"`
}

type contract struct {
	Address string `json:"contract_address"`
}

// GenesisBuilder assembles genesis documents for tests.
//
//	raw := testutil.NewGenesis("test").
//		Balance("addr123", testutil.Coin{Amount: "1000", Denom: "uatom"}).
//		Contract("juno1contract").
//		JSON(t)
type GenesisBuilder struct {
	chainID   string
	balances  []balance
	contracts []contract
}

// NewGenesis starts a document with empty bank and wasm sections.
func NewGenesis(chainID string) *GenesisBuilder {
	return &GenesisBuilder{chainID: chainID, balances: []balance{}, contracts: []contract{}}
}

// Balance adds an address with its coins.
func (b *GenesisBuilder) Balance(address string, coins ...Coin) *GenesisBuilder {
	if coins == nil {
		coins = []Coin{}
	}
	b.balances = append(b.balances, balance{Address: address, Coins: coins})
	return b
}

// Contract adds a contract address.
func (b *GenesisBuilder) Contract(address string) *GenesisBuilder {
	b.contracts = append(b.contracts, contract{Address: address})
	return b
}

// JSON renders the document.
func (b *GenesisBuilder) JSON(t testing.TB) []byte {
	t.Helper()
	doc := map[string]any{
		"chain_id": b.chainID,
		"app_state": map[string]any{
			"bank": map[string]any{"balances": b.balances},
			"wasm": map[string]any{"contracts": b.contracts},
		},
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	return raw
}

// Document renders and parses the document.
func (b *GenesisBuilder) Document(t testing.TB) *genesis.Document {
	t.Helper()
	doc, err := genesis.Parse(b.JSON(t))
	require.NoError(t, err)
	return doc
}

// WriteFile writes the document to a temp file and returns its path.
func (b *GenesisBuilder) WriteFile(t testing.TB) string {
	t.Helper()
	return WriteGenesis(t, string(b.JSON(t)))
}

// WriteGenesis writes raw genesis content to a temp file and returns its path.
func WriteGenesis(t testing.TB, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genesis.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
