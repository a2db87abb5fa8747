// Package compiler turns CUE entity declarations into entity.Definition
// values, so new genesis sections can be loaded without code changes.
//
// A declaration lives under the top-level "entity" struct:
//
//	entity: validators: {
//		table:      "validators"
//		path:       "app_state.staking.validators"
//		depends_on: ["accounts"]
//		key: ["operator_address"]
//		indexes: ["id"]
//		columns: [
//			{name: "id", type: "text", key: true},
//			{name: "moniker", type: "text", field: "description.moniker"},
//			{name: "chain_id", type: "text", env: "chain_id"},
//			{name: "note", type: "text", const: null},
//		]
//	}
//
// Each column takes its value from exactly one source: the derived key,
// a (dotted) field of the record, an environment value, or a constant
// (string or null). Composite keys list several fields, joined with "-".
//
// An optional explode block fans one record out into the elements of one
// of its lists, copying the carried parent fields into every element:
//
//	explode: {list: "coins", carry: ["address"]}
package compiler
