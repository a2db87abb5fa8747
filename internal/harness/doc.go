// Package harness runs load scenarios: a genesis document, optional seed
// rows and one or more load runs against a fresh SQLite database, followed
// by assertions on the reports and the final tables.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	specs: [path/to/specs]          # optional CUE entity directories
//	entities: [balances]            # optional entity selection
//	seed:
//	  accounts:
//	    - {id: addr123, chain_id: other}
//	genesis: |
//	  {"chain_id": "test", "app_state": {...}}
//	runs:
//	  - expect:
//	      state: all_done
//	      written: {accounts: 1}
//	      skipped: {accounts: 1}
//	  - genesis_file: second.json   # a run may load another document
//	    expect:
//	      state: failed
//	      code: ENTITY_FAILED
//	assertions:
//	  - type: row_count
//	    table: accounts
//	    count: 2
//	  - type: row
//	    table: genesis_balances
//	    key: addr123-uatom
//	    expect: {amount: "1000"}
//	  - type: no_row
//	    table: contracts
//	    key: juno1missing
//
// # Assertion Types
//
//   - row_count: the table holds exactly count rows
//   - row: the row with the given key exists; expect is a subset match
//     on its columns (null matches SQL NULL)
//   - no_row: no row has the given key
//
// # Deterministic Testing
//
// Runs use fixed run ids (run-1, run-2, ...) and an in-memory database, so
// the snapshot of a scenario (run reports plus every table in key order) is
// stable and compared against testdata/golden/<name>.golden.
package harness
