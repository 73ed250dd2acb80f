package run

import "time"

// Apply validates a worker report against the current state and returns the
// next state. It is pure: the caller (the registry) decides whether and how to
// store the result.
//
// Terminal states are sinks. A stale, duplicate, or out-of-order report can
// never resurrect a finished run; within in_progress, progress is
// last-report-wins and is deliberately not required to increase.
func Apply(cur State, rep Report, now time.Time) (State, error) {
	if cur.Status.Terminal() {
		return cur, ErrRunAlreadyFinished
	}

	next := cur
	switch Status(rep.Status) {
	case StatusInProgress:
		if rep.Progress == nil {
			return cur, invalidReportf("missing field progress")
		}
		if *rep.Progress < 0 || *rep.Progress > 100 {
			return cur, invalidReportf("progress %d outside [0,100]", *rep.Progress)
		}
		next.Progress = *rep.Progress
	case StatusCompleted:
		// A JSON null result counts as absent.
		if len(rep.Result) == 0 || string(rep.Result) == "null" {
			return cur, invalidReportf("missing field result")
		}
		next.Status = StatusCompleted
		next.Result = rep.Result
	case StatusError:
		if rep.Error == nil {
			return cur, invalidReportf("missing field error")
		}
		next.Status = StatusError
		next.ErrorMessage = *rep.Error
	default:
		return cur, invalidReportf("unknown status %q", rep.Status)
	}

	next.Updated = now
	return next, nil
}
