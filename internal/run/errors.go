package run

import (
	"errors"
	"fmt"
)

// Protocol violations by the worker. Both map to 400-class responses and never
// mutate the registry.
var (
	// ErrRunNotFound reports a callback for a run id that was never initiated.
	ErrRunNotFound = errors.New("run not found")
	// ErrRunAlreadyFinished reports a callback for a run in a terminal state.
	ErrRunAlreadyFinished = errors.New("run already finished")
	// ErrRunExists guards against double initiation under one id.
	ErrRunExists = errors.New("run already exists")
)

// InvalidReportError describes a malformed status report: an unknown status or
// a missing/out-of-range required field.
type InvalidReportError struct {
	Reason string
}

func (e *InvalidReportError) Error() string {
	return "invalid status report: " + e.Reason
}

func invalidReportf(format string, args ...any) error {
	return &InvalidReportError{Reason: fmt.Sprintf(format, args...)}
}

// DispatchError wraps a failed run-descriptor delivery: a network/timeout
// failure (Err set) or a non-2xx worker response (StatusCode and Body set).
type DispatchError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *DispatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dispatch run descriptor: %v", e.Err)
	}
	return fmt.Sprintf("dispatch run descriptor: worker returned %d: %s", e.StatusCode, e.Body)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
