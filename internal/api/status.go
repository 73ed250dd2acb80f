package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tilepath/slidehost/internal/metrics"
	"github.com/tilepath/slidehost/internal/run"
)

// postStatus handles POST /integrations/algorithm/{id}/status/, the callback
// the worker reports progress and terminal outcomes to.
//
// A rejected report fails only that one request: the registry is never
// mutated on a validation error and other runs are unaffected.
func (s *Server) postStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var rep run.Report
	if err := json.NewDecoder(r.Body).Decode(&rep); err != nil {
		metrics.ObserveReport("undecodable", "invalid")
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	st, err := s.registry.ApplyReport(id, rep)
	if err != nil {
		s.writeReportError(w, id, rep, err)
		return
	}

	metrics.ObserveReport(rep.Status, "accepted")
	if st.Status.Terminal() {
		metrics.DecActiveRuns()
	} else {
		s.logger.Info("run progress",
			zap.String("run_id", id),
			zap.Int("progress", st.Progress),
		)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(st.Status)})
}

func (s *Server) writeReportError(w http.ResponseWriter, id string, rep run.Report, err error) {
	var invalid *run.InvalidReportError
	switch {
	case errors.Is(err, run.ErrRunNotFound):
		metrics.ObserveReport(rep.Status, "not_found")
		writeError(w, http.StatusBadRequest, "algorithm run with id "+id+" was not started")
	case errors.Is(err, run.ErrRunAlreadyFinished):
		metrics.ObserveReport(rep.Status, "finished")
		writeError(w, http.StatusBadRequest, "algorithm run with id "+id+" is already finished")
	case errors.As(err, &invalid):
		metrics.ObserveReport(rep.Status, "invalid")
		writeError(w, http.StatusBadRequest, invalid.Reason)
	default:
		s.logger.Error("apply status report failed", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
