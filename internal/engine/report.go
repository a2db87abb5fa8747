package engine

import (
	"fmt"
	"time"
)

// State is a job or entity pipeline state.
type State string

const (
	// Job states.
	StateStart   State = "start"
	StateAllDone State = "all_done"
	StateAborted State = "aborted"

	// Entity states.
	StatePending     State = "pending"
	StateExtracting  State = "extracting"
	StateReconciling State = "reconciling"
	StateWriting     State = "writing"
	StateDone        State = "done"
	StateSkipped     State = "skipped"

	// StateFailed is both a job and an entity state.
	StateFailed State = "failed"
)

// Outcome is the result of one entity pipeline.
type Outcome struct {
	Entity     string        `json:"entity"`
	Table      string        `json:"table"`
	State      State         `json:"state"`
	Candidates int           `json:"candidates"`
	Skipped    int           `json:"skipped"`
	Written    int64         `json:"written"`
	Reason     string        `json:"reason,omitempty"`
	Duration   time.Duration `json:"-"`
}

// Message renders the outcome for operators.
func (o Outcome) Message() string {
	switch o.State {
	case StateDone:
		return fmt.Sprintf("completed: %d new rows written", o.Written)
	case StateFailed:
		return "failed: " + o.Reason
	case StateSkipped:
		return "skipped: " + o.Reason
	default:
		return string(o.State)
	}
}

// Report is the result of a load job.
type Report struct {
	RunID    string    `json:"run_id"`
	ChainID  string    `json:"chain_id"`
	Digest   string    `json:"digest,omitempty"`
	State    State     `json:"state"`
	Reason   string    `json:"reason,omitempty"`
	Entities []Outcome `json:"entities"`
}

// Success reports whether every entity completed.
func (r *Report) Success() bool {
	return r.State == StateAllDone
}

// Written returns the total number of rows written by the job.
func (r *Report) Written() int64 {
	var n int64
	for _, o := range r.Entities {
		n += o.Written
	}
	return n
}

// Outcome returns the outcome of the named entity.
func (r *Report) Outcome(entity string) (Outcome, bool) {
	for _, o := range r.Entities {
		if o.Entity == entity {
			return o, true
		}
	}
	return Outcome{}, false
}
