// Package run tracks algorithm runs: the lifecycle state machine governing
// worker status reports, the in-memory registry that owns run state, and the
// initiation protocol that hands a run descriptor to the worker.
package run

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle phase of a run.
type Status string

// Run statuses reported by the worker. Completed and error are terminal.
const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether the status is a sink: once reached, no further
// report may mutate the run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// State is the registry's record for one run. It is replaced wholesale on
// every accepted transition; callers always observe a consistent snapshot.
type State struct {
	ID           string          `json:"id"`
	Status       Status          `json:"status"`
	Progress     int             `json:"progress"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage string          `json:"error,omitempty"`
	Created      time.Time       `json:"created"`
	Updated      time.Time       `json:"updated"`
}

// Report is one status callback from the worker. Progress and Error use
// pointers so a missing field is distinguishable from a zero value; Result is
// kept raw and stored verbatim.
type Report struct {
	Status   string          `json:"status"`
	Progress *int            `json:"progress"`
	Error    *string         `json:"error"`
	Result   json.RawMessage `json:"result"`
}
