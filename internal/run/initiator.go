package run

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tilepath/slidehost/internal/dzi"
)

// StatusPathPrefix is joined with the run id and StatusPathSuffix to form the
// callback URL the worker reports to.
const (
	StatusPathPrefix = "/integrations/algorithm/"
	StatusPathSuffix = "/status/"
)

// Descriptor is the wire form of a run handed to the worker. It is built once
// at initiation and never mutated.
type Descriptor struct {
	Image     DescriptorImage `json:"image"`
	ReturnURL string          `json:"return_url"`
	ID        string          `json:"id"`
}

// DescriptorImage describes the tile pyramid the worker will pull from. The
// tiles URL keeps literal {level}, {x}, {y} placeholders for the worker to
// substitute per tile.
type DescriptorImage struct {
	TilesURL               string  `json:"tiles_url"`
	Levels                 int     `json:"levels"`
	Width                  int     `json:"width"`
	Height                 int     `json:"height"`
	TileSize               int     `json:"tile_size"`
	ObjectiveMagnification float64 `json:"objective_magnification"`
	MicronsPerPixel        float64 `json:"microns_per_pixel"`
}

// InitiatorConfig carries the endpoints and credentials for run dispatch.
type InitiatorConfig struct {
	// WorkerURL is the worker endpoint that accepts run descriptors.
	WorkerURL string
	// CallbackBaseURL is this host's externally reachable base URL.
	CallbackBaseURL string
	// TileSlug names the pyramid the worker processes, normally the primary.
	TileSlug string
	// TileFormat is the extension baked into the tiles URL template.
	TileFormat string
	// AuthToken, when set, is sent verbatim in the Authorization header.
	AuthToken string
	// Timeout bounds the dispatch request. Defaults to 30s.
	Timeout time.Duration
}

// Initiator creates runs and hands their descriptors to the worker.
type Initiator struct {
	registry *Registry
	client   *http.Client
	cfg      InitiatorConfig
	logger   *zap.Logger
}

// NewInitiator wires the registry and an HTTP client with the configured
// timeout.
func NewInitiator(registry *Registry, cfg InitiatorConfig, logger *zap.Logger) *Initiator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.TileSlug == "" {
		cfg.TileSlug = "slide"
	}
	if cfg.TileFormat == "" {
		cfg.TileFormat = "jpeg"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Initiator{
		registry: registry,
		client:   &http.Client{Timeout: cfg.Timeout},
		cfg:      cfg,
		logger:   logger,
	}
}

// Initiate generates a fresh run id, registers it, and POSTs the descriptor to
// the worker. A network failure, timeout, or non-2xx response surfaces as
// *DispatchError; the registry entry stays in_progress at zero progress either
// way, leaving the retry-or-abandon decision to the caller.
func (i *Initiator) Initiate(ctx context.Context, meta dzi.Metadata) (string, error) {
	id := uuid.NewString()
	desc := i.BuildDescriptor(id, meta)

	if _, err := i.registry.Create(id); err != nil {
		return "", fmt.Errorf("register run %s: %w", id, err)
	}

	body, err := json.Marshal(desc)
	if err != nil {
		return "", fmt.Errorf("marshal run descriptor: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.cfg.WorkerURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if i.cfg.AuthToken != "" {
		req.Header.Set("Authorization", i.cfg.AuthToken)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return id, &DispatchError{Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // drained below

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		remote, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return id, &DispatchError{StatusCode: resp.StatusCode, Body: string(remote)}
	}

	i.logger.Info("algorithm run dispatched",
		zap.String("run_id", id),
		zap.String("worker_url", i.cfg.WorkerURL),
	)
	return id, nil
}

// BuildDescriptor assembles the immutable descriptor for one run id.
func (i *Initiator) BuildDescriptor(id string, meta dzi.Metadata) Descriptor {
	base := strings.TrimSuffix(i.cfg.CallbackBaseURL, "/")
	tilesURL := fmt.Sprintf("%s/%s_files/{level}/{x}_{y}.%s", base, i.cfg.TileSlug, i.cfg.TileFormat)
	returnURL := base + StatusPathPrefix + id + StatusPathSuffix
	return Descriptor{
		Image: DescriptorImage{
			TilesURL:               tilesURL,
			Levels:                 meta.LevelCount,
			Width:                  meta.Width,
			Height:                 meta.Height,
			TileSize:               meta.TileSize,
			ObjectiveMagnification: meta.ObjectiveMagnification,
			MicronsPerPixel:        meta.MicronsPerPixel,
		},
		ReturnURL: returnURL,
		ID:        id,
	}
}
