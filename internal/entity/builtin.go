package entity

import (
	"fmt"

	"github.com/roach88/genesis/internal/ir"
)

// Built-in entity names.
const (
	Accounts  = "accounts"
	Balances  = "balances"
	Contracts = "contracts"
)

// Genesis paths of the built-in entities.
var (
	BankBalancesPath   = ir.Path{"app_state", "bank", "balances"}
	WasmContractsPath  = ir.Path{"app_state", "wasm", "contracts"}
	UncertainInterface = "Uncertain"
)

// Builtins returns the built-in definitions in load order.
func Builtins() []Definition {
	return []Definition{AccountsDefinition(), BalancesDefinition(), ContractsDefinition()}
}

// AccountsDefinition loads one account per bank balance entry.
func AccountsDefinition() Definition {
	return Definition{
		Name: Accounts,
		Table: ir.Table{
			Name: "accounts",
			Columns: []ir.Column{
				{Name: "id", Type: ir.TypeText},
				{Name: "chain_id", Type: ir.TypeText},
			},
			Key:     "id",
			Indexes: []string{"id", "chain_id"},
		},
		Path: BankBalancesPath,
		Key: func(rec ir.Record) (string, error) {
			return rec.String("address")
		},
		Row: func(rec ir.Record, env Env) (ir.Row, error) {
			addr, err := rec.String("address")
			if err != nil {
				return nil, err
			}
			return ir.Row{ir.Text(addr), ir.Text(env.ChainID)}, nil
		},
	}
}

// BalancesDefinition loads one row per (address, coin) pair, keyed on
// "address-denom".
func BalancesDefinition() Definition {
	return Definition{
		Name: Balances,
		Table: ir.Table{
			Name: "genesis_balances",
			Columns: []ir.Column{
				{Name: "id", Type: ir.TypeText},
				{Name: "account_id", Type: ir.TypeText},
				{Name: "amount", Type: ir.TypeNumeric},
				{Name: "denom", Type: ir.TypeText},
			},
			Key:     "id",
			Indexes: []string{"id", "account_id", "denom"},
		},
		Path:      BankBalancesPath,
		DependsOn: []string{Accounts},
		Explode:   explodeCoins,
		Key: func(rec ir.Record) (string, error) {
			addr, err := rec.String("address")
			if err != nil {
				return "", err
			}
			denom, err := rec.String("denom")
			if err != nil {
				return "", err
			}
			return ir.CompositeKey(addr, denom), nil
		},
		Row: func(rec ir.Record, _ Env) (ir.Row, error) {
			vals := make([]string, 0, 3)
			for _, f := range []string{"address", "amount", "denom"} {
				s, err := rec.String(f)
				if err != nil {
					return nil, err
				}
				vals = append(vals, s)
			}
			key := ir.CompositeKey(vals[0], vals[2])
			return ir.Row{ir.Text(key), ir.Text(vals[0]), ir.Text(vals[1]), ir.Text(vals[2])}, nil
		},
	}
}

// explodeCoins turns {address, coins: [{amount, denom}...]} into one flat
// {address, amount, denom} record per coin, in coin order.
func explodeCoins(rec ir.Record) ([]ir.Record, error) {
	addr, err := rec.String("address")
	if err != nil {
		return nil, err
	}
	coins, err := rec.List("coins")
	if err != nil {
		return nil, err
	}
	out := make([]ir.Record, len(coins))
	for i, coin := range coins {
		amount, ok := coin.Field("amount")
		if !ok {
			return nil, fmt.Errorf("coins[%d]: field \"amount\" is missing", i)
		}
		denom, ok := coin.Field("denom")
		if !ok {
			return nil, fmt.Errorf("coins[%d]: field \"denom\" is missing", i)
		}
		out[i] = ir.Record{"address": addr, "amount": amount, "denom": denom}
	}
	return out, nil
}

// ContractsDefinition loads deployed wasm contracts. The interface is not
// classified at genesis time and the message references are unknown.
func ContractsDefinition() Definition {
	return Definition{
		Name: Contracts,
		Table: ir.Table{
			Name: "contracts",
			Columns: []ir.Column{
				{Name: "id", Type: ir.TypeText},
				{Name: "interface", Type: ir.TypeInterface},
				{Name: "store_message_id", Type: ir.TypeText},
				{Name: "instantiate_message_id", Type: ir.TypeText},
			},
			Key:     "id",
			Indexes: []string{"id"},
		},
		Path: WasmContractsPath,
		Key: func(rec ir.Record) (string, error) {
			return rec.String("contract_address")
		},
		Row: func(rec ir.Record, _ Env) (ir.Row, error) {
			addr, err := rec.String("contract_address")
			if err != nil {
				return nil, err
			}
			return ir.Row{ir.Text(addr), ir.Text(UncertainInterface), ir.Null, ir.Null}, nil
		},
	}
}
