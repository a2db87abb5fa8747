package harness

import (
	"github.com/roach88/genesis/internal/engine"
	"github.com/roach88/genesis/internal/ir"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every run matched its expectation and every assertion held.
	Pass bool `json:"pass"`

	// Runs holds the report of each run, in order.
	Runs []RunResult `json:"runs"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Tables holds the final rows of every entity table in key order,
	// by table name.
	Tables map[string]TableDump `json:"tables,omitempty"`
}

// RunResult is the report of one run.
type RunResult struct {
	Report *engine.Report        `json:"report"`
	Code   engine.LoadErrorCode `json:"code,omitempty"`
}

// TableDump is the content of one table.
type TableDump struct {
	Columns []string `json:"columns"`
	Rows    []ir.Row `json:"rows"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Runs:   []RunResult{},
		Errors: []string{},
		Tables: make(map[string]TableDump),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
