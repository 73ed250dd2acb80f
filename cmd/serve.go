package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tilepath/slidehost/internal/api"
	"github.com/tilepath/slidehost/internal/config"
	"github.com/tilepath/slidehost/internal/logging"
	"github.com/tilepath/slidehost/internal/metrics"
	"github.com/tilepath/slidehost/internal/run"
	"github.com/tilepath/slidehost/internal/slide"
)

func newServeCmd() *cobra.Command {
	var (
		imagePath string
		port      int
		hostURL   string
		workerURL string
		auth      string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tile pyramid and initiate an algorithm run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			// CLI flags win over file and environment.
			if imagePath != "" {
				cfg.Slide.Path = imagePath
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if hostURL != "" {
				cfg.Server.HostURL = hostURL
			}
			if workerURL != "" {
				cfg.Worker.URL = workerURL
			}
			if auth != "" {
				cfg.Worker.Authorization = auth
			}
			if cfg.Slide.Path == "" {
				return errors.New("slide.path (or --image) is required")
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&imagePath, "image", "", "path to the image whose tiles will be served")
	cmd.Flags().IntVar(&port, "port", 0, "port to listen on")
	cmd.Flags().StringVar(&hostURL, "host-url", "", "externally reachable URL of this host")
	cmd.Flags().StringVar(&workerURL, "worker-url", "", "algorithm worker endpoint that accepts run descriptors")
	cmd.Flags().StringVar(&auth, "auth", "", "value sent in the Authorization header on dispatch")
	return cmd
}

func serve(parent context.Context, cfg config.Config) error {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := slide.Open(cfg.Slide.Path)
	if err != nil {
		return err
	}
	slides, err := slide.NewCollection(src, cfg.Slide.TileSize, cfg.Slide.Quality)
	if err != nil {
		return err
	}
	for name, path := range cfg.Slide.Associated {
		assoc, err := slide.Open(path)
		if err != nil {
			return fmt.Errorf("open associated image %q: %w", name, err)
		}
		if err := slides.AddAssociated(name, assoc); err != nil {
			return err
		}
	}
	meta := slides.Primary().Pyramid().Metadata(
		cfg.Slide.ObjectiveMagnification,
		cfg.Slide.MicronsPerPixel,
	)
	logger.Info("pyramid ready",
		zap.Int("levels", meta.LevelCount),
		zap.Int("width", meta.Width),
		zap.Int("height", meta.Height),
		zap.Int("tile_size", meta.TileSize),
		zap.Strings("associated", slides.AssociatedNames()),
	)

	registry := run.NewRegistry(
		logger.Named("registry"),
		run.WithTerminalHook(func(st run.State) {
			if cfg.Run.ExitOnTerminal {
				logger.Info("terminal run, stopping host",
					zap.String("run_id", st.ID),
					zap.String("status", string(st.Status)),
				)
				stop()
			}
		}),
	)

	apiServer := api.NewServer(slides, registry, slide.Format(cfg.Slide.Format), logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if cfg.Worker.Initiate {
		initiator := run.NewInitiator(registry, run.InitiatorConfig{
			WorkerURL:       cfg.Worker.URL,
			CallbackBaseURL: cfg.CallbackBaseURL(),
			TileSlug:        slide.PrimarySlug,
			TileFormat:      cfg.Slide.Format,
			AuthToken:       cfg.Worker.Authorization,
			Timeout:         cfg.DispatchTimeout(),
		}, logger.Named("initiator"))

		id, err := initiator.Initiate(ctx, meta)
		if err != nil {
			metrics.ObserveDispatch("failed")
			// The run stays in_progress/0; the operator decides whether to
			// restart or let the worker be brought up and retried manually.
			logger.Error("run dispatch failed", zap.String("run_id", id), zap.Error(err))
		} else {
			metrics.ObserveDispatch("ok")
			metrics.IncActiveRuns()
			logger.Info("started processing algorithm run", zap.String("run_id", id))
		}
	}

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
