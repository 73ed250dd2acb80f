// Package config loads and validates slide host configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration loaded via Viper. Values come
// from an optional config file, SLIDEHOST_* environment variables, and CLI
// flags bound by the serve command.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Slide   SlideConfig   `mapstructure:"slide"`
	Worker  WorkerConfig  `mapstructure:"worker"`
	Run     RunConfig     `mapstructure:"run"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls the HTTP listener and how this host is reachable from
// the worker.
type ServerConfig struct {
	Port    int    `mapstructure:"port"`
	HostURL string `mapstructure:"host_url"`
}

// SlideConfig names the image to serve and the pyramid parameters.
type SlideConfig struct {
	Path                   string            `mapstructure:"path"`
	Associated             map[string]string `mapstructure:"associated"`
	TileSize               int               `mapstructure:"tile_size"`
	Quality                int               `mapstructure:"quality"`
	Format                 string            `mapstructure:"format"`
	ObjectiveMagnification float64           `mapstructure:"objective_magnification"`
	MicronsPerPixel        float64           `mapstructure:"microns_per_pixel"`
}

// WorkerConfig points at the algorithm worker and the dispatch credentials.
type WorkerConfig struct {
	URL            string `mapstructure:"url"`
	Authorization  string `mapstructure:"authorization"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	Initiate       bool   `mapstructure:"initiate"`
}

// RunConfig holds run-lifecycle policy knobs of the host process.
type RunConfig struct {
	// ExitOnTerminal stops the server once any run reaches a terminal state,
	// mirroring single-shot batch usage.
	ExitOnTerminal bool `mapstructure:"exit_on_terminal"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SLIDEHOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 12345)
	v.SetDefault("server.host_url", "http://127.0.0.1")
	v.SetDefault("slide.tile_size", 512)
	v.SetDefault("slide.quality", 75)
	v.SetDefault("slide.format", "jpeg")
	v.SetDefault("slide.objective_magnification", 20)
	v.SetDefault("slide.microns_per_pixel", 0)
	v.SetDefault("worker.url", "http://127.0.0.1:12346/run_algorithm")
	v.SetDefault("worker.timeout_seconds", 30)
	v.SetDefault("worker.initiate", true)
	v.SetDefault("run.exit_on_terminal", false)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.HostURL == "" {
		return fmt.Errorf("server.host_url must be set")
	}
	if c.Slide.TileSize <= 0 {
		return fmt.Errorf("slide.tile_size must be > 0")
	}
	if c.Slide.Quality <= 0 || c.Slide.Quality > 100 {
		return fmt.Errorf("slide.quality must be in (0,100]")
	}
	if c.Slide.Format != "jpeg" && c.Slide.Format != "png" {
		return fmt.Errorf("slide.format must be jpeg or png, got %q", c.Slide.Format)
	}
	if c.Slide.ObjectiveMagnification <= 0 {
		return fmt.Errorf("slide.objective_magnification must be > 0")
	}
	if c.Slide.MicronsPerPixel < 0 {
		return fmt.Errorf("slide.microns_per_pixel must be >= 0")
	}
	if c.Worker.Initiate && c.Worker.URL == "" {
		return fmt.Errorf("worker.url must be set when worker.initiate is enabled")
	}
	if c.Worker.TimeoutSeconds <= 0 {
		return fmt.Errorf("worker.timeout_seconds must be > 0")
	}
	return nil
}

// CallbackBaseURL joins the host URL and port into the base the worker calls
// back on.
func (c Config) CallbackBaseURL() string {
	return fmt.Sprintf("%s:%d", strings.TrimSuffix(c.Server.HostURL, "/"), c.Server.Port)
}

// DispatchTimeout converts the worker timeout into a duration.
func (c Config) DispatchTimeout() time.Duration {
	return time.Duration(c.Worker.TimeoutSeconds) * time.Second
}
