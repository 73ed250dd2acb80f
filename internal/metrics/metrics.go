// Package metrics exposes Prometheus collectors for the slide host.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	tilesServedTotal      *prometheus.CounterVec
	tileRenderSeconds     *prometheus.HistogramVec
	manifestRequestsTotal *prometheus.CounterVec
	statusReportsTotal    *prometheus.CounterVec
	runsActive            prometheus.Gauge
	runDispatchesTotal    *prometheus.CounterVec
	tileNotFoundTotal     prometheus.Counter

	once sync.Once
)

// Init registers the collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		tilesServedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slidehost_tiles_served_total",
				Help: "Tiles served, labeled by pyramid slug and encoding format.",
			},
			[]string{"slug", "format"},
		)

		tileRenderSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "slidehost_tile_render_seconds",
				Help:    "Time to read, scale, and encode one tile.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
			},
			[]string{"slug", "format"},
		)

		manifestRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slidehost_manifest_requests_total",
				Help: "DZI manifest requests, labeled by pyramid slug.",
			},
			[]string{"slug"},
		)

		statusReportsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slidehost_status_reports_total",
				Help: "Worker status reports, labeled by reported status and outcome.",
			},
			[]string{"status", "outcome"},
		)

		runsActive = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "slidehost_runs_active",
				Help: "Runs currently in progress.",
			},
		)

		runDispatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slidehost_run_dispatches_total",
				Help: "Run descriptor dispatches to the worker, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		tileNotFoundTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "slidehost_tile_not_found_total",
				Help: "Tile requests rejected for unknown slug, bad format, or out-of-range address.",
			},
		)
	})
}

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveTile records one served tile.
func ObserveTile(slug, format string, dur time.Duration) {
	tilesServedTotal.WithLabelValues(slug, format).Inc()
	tileRenderSeconds.WithLabelValues(slug, format).Observe(dur.Seconds())
}

// ObserveManifest records one manifest request.
func ObserveManifest(slug string) {
	manifestRequestsTotal.WithLabelValues(slug).Inc()
}

// ObserveTileNotFound counts a rejected tile address.
func ObserveTileNotFound() {
	tileNotFoundTotal.Inc()
}

// ObserveReport records one status report and its outcome
// (accepted, invalid, finished, not_found).
func ObserveReport(status, outcome string) {
	statusReportsTotal.WithLabelValues(status, outcome).Inc()
}

// IncActiveRuns marks a run as started.
func IncActiveRuns() {
	runsActive.Inc()
}

// DecActiveRuns marks a run as finished.
func DecActiveRuns() {
	runsActive.Dec()
}

// ObserveDispatch records a run dispatch outcome (ok, failed).
func ObserveDispatch(outcome string) {
	runDispatchesTotal.WithLabelValues(outcome).Inc()
}
