// Command tpa-sim is a stand-in third-party algorithm worker used to exercise
// the run protocol end to end: it accepts a run descriptor, pulls a handful of
// tiles from the host, reports progress, and finishes with a fabricated
// region-of-interest result.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/tilepath/slidehost/internal/logging"
	"github.com/tilepath/slidehost/internal/run"
)

const (
	tileFetches   = 10
	progressSteps = 10
	stepDelay     = time.Second
	httpTimeout   = 10 * time.Second
)

func main() {
	port := flag.Int("port", 12346, "port to run this worker on")
	dev := flag.Bool("dev", true, "use the development logger")
	flag.Parse()

	logger, err := logging.New(*dev)
	if err != nil {
		fmt.Println("logger init failed:", err)
		return
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	sim := &simulator{
		client: &http.Client{Timeout: httpTimeout},
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /run_algorithm", sim.handleRun)

	logger.Info("tpa-sim listening", zap.Int("port", *port))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", zap.Error(err))
	}
}

type simulator struct {
	client *http.Client
	logger *zap.Logger
}

func (s *simulator) handleRun(w http.ResponseWriter, r *http.Request) {
	var desc run.Descriptor
	if err := json.NewDecoder(r.Body).Decode(&desc); err != nil {
		http.Error(w, "invalid run descriptor", http.StatusBadRequest)
		return
	}
	s.logger.Info("run accepted",
		zap.String("run_id", desc.ID),
		zap.Int("levels", desc.Image.Levels),
		zap.Int("width", desc.Image.Width),
		zap.Int("height", desc.Image.Height),
	)
	go s.process(desc)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Ok"))
}

// process plays the worker side of the protocol against the host.
func (s *simulator) process(desc run.Descriptor) {
	if err := s.pullTiles(desc); err != nil {
		s.logger.Error("tile pull failed", zap.String("run_id", desc.ID), zap.Error(err))
		s.reportError(desc, err.Error())
		return
	}

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("processing "+desc.ID),
		progressbar.OptionShowCount(),
	)
	for i := 1; i <= progressSteps; i++ {
		pct := i * 100 / progressSteps
		if err := s.report(desc, run.Report{Status: string(run.StatusInProgress), Progress: &pct}); err != nil {
			s.logger.Error("progress report failed", zap.String("run_id", desc.ID), zap.Error(err))
			return
		}
		_ = bar.Set(pct)
		time.Sleep(stepDelay)
	}

	result := map[string]any{
		"regions_of_interest": []map[string]any{
			{
				"x":     desc.Image.Width / 2,
				"y":     desc.Image.Height / 2,
				"w":     100,
				"h":     100,
				"label": "Label 1",
				"score": 0.97,
			},
		},
	}
	raw, err := json.Marshal(result)
	if err != nil {
		s.logger.Error("marshal result failed", zap.Error(err))
		return
	}
	if err := s.report(desc, run.Report{Status: string(run.StatusCompleted), Result: raw}); err != nil {
		s.logger.Error("completion report failed", zap.String("run_id", desc.ID), zap.Error(err))
		return
	}
	s.logger.Info("run completed", zap.String("run_id", desc.ID))
}

// pullTiles fetches a column of finest-level tiles, the minimum a real worker
// would do before analysis.
func (s *simulator) pullTiles(desc run.Descriptor) error {
	level := desc.Image.Levels - 1
	rows := ceilDiv(desc.Image.Height, desc.Image.TileSize)
	for row := 0; row < tileFetches && row < rows; row++ {
		url := tileURL(desc.Image.TilesURL, level, 0, row)
		resp, err := s.client.Get(url)
		if err != nil {
			return fmt.Errorf("fetch tile %s: %w", url, err)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("fetch tile %s: HTTP %d", url, resp.StatusCode)
		}
	}
	return nil
}

func (s *simulator) reportError(desc run.Descriptor, msg string) {
	if err := s.report(desc, run.Report{Status: string(run.StatusError), Error: &msg}); err != nil {
		s.logger.Error("error report failed", zap.String("run_id", desc.ID), zap.Error(err))
	}
}

func (s *simulator) report(desc run.Descriptor, rep run.Report) error {
	body, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	resp, err := s.client.Post(desc.ReturnURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post report: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // drained below
	remote, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("report rejected: HTTP %d: %s", resp.StatusCode, remote)
	}
	return nil
}

// tileURL substitutes the {level}/{x}/{y} placeholders of the descriptor's
// tiles URL template.
func tileURL(template string, level, x, y int) string {
	r := strings.NewReplacer(
		"{level}", fmt.Sprint(level),
		"{x}", fmt.Sprint(x),
		"{y}", fmt.Sprint(y),
	)
	return r.Replace(template)
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}
