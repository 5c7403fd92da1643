// Package config loads run settings from YAML, the environment and flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/svg-eval/internal/compose"
	"github.com/danielpatrickdp/svg-eval/internal/sampler"
)

// #region types
// Model backends.
const (
	BackendLoom = "loom"
	BackendGRPC = "grpc"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config holds everything one evaluation run needs.
type Config struct {
	Name    string `yaml:"name"`    // optional suffix for output files
	Backend string `yaml:"backend"` // loom | grpc

	ModelPath string `yaml:"model_path"` // loom bundle directory
	CodecAddr string `yaml:"codec_addr"` // gRPC model service address
	DataRoot  string `yaml:"data_root"`
	Manifest  string `yaml:"manifest"` // SQLite index; defaults to <data_root>/manifest.db
	LogDir    string `yaml:"log_dir"`

	Seed      int64 `yaml:"seed"`
	BatchSize int   `yaml:"batch_size"`
	N         int   `yaml:"n"` // clips to render

	sampler.Window `yaml:",inline"`
	NSample        int   `yaml:"nsample"`
	Visualize      []int `yaml:"visualize"`

	ImageWidth int `yaml:"image_width"`
	Channels   int `yaml:"channels"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // text | json
}

// #endregion types

// #region defaults
// Default returns the stock KTH evaluation settings.
func Default() Config {
	return Config{
		Backend:    BackendLoom,
		ModelPath:  "models/kth_svg",
		CodecAddr:  "localhost:50051",
		DataRoot:   "data",
		LogDir:     "logs/kth_svg_fp/",
		Seed:       1,
		BatchSize:  100,
		N:          256,
		Window:     sampler.Window{NPast: 10, NFuture: 20},
		NSample:    100,
		Visualize:  []int{0, 20, 40},
		ImageWidth: 64,
		Channels:   1,
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

// #endregion defaults

// #region load
// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.CodecAddr = envOr("SVG_CODEC_ADDR", c.CodecAddr)
	c.ModelPath = envOr("SVG_MODEL_PATH", c.ModelPath)
	c.DataRoot = envOr("SVG_DATA_ROOT", c.DataRoot)
	c.LogDir = envOr("SVG_LOG_DIR", c.LogDir)
	c.Backend = envOr("SVG_BACKEND", c.Backend)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion load

// #region derived
// ManifestPath returns the manifest location.
func (c Config) ManifestPath() string {
	if c.Manifest != "" {
		return c.Manifest
	}
	return filepath.Join(c.DataRoot, "manifest.db")
}

// GIFDir is where rendered clips go.
func (c Config) GIFDir() string {
	return filepath.Join(c.LogDir, "gifs")
}

// GIFPath names the output for clip idx.
func (c Config) GIFPath(idx int) string {
	return filepath.Join(c.GIFDir(), fmt.Sprintf("best_psnr_%d%s.gif", idx, c.Name))
}

// MetricsPath is the Prometheus textfile written at the end of a run.
func (c Config) MetricsPath() string {
	return filepath.Join(c.LogDir, "metrics.prom")
}

// #endregion derived

// #region validate
// Validate rejects settings a run cannot start with.
func (c Config) Validate() error {
	if err := c.Window.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	switch {
	case c.NSample < 1:
		return fmt.Errorf("%w: nsample must be >= 1, got %d", ErrInvalid, c.NSample)
	case c.BatchSize < 1:
		return fmt.Errorf("%w: batch_size must be >= 1, got %d", ErrInvalid, c.BatchSize)
	case c.N < 0:
		return fmt.Errorf("%w: N must be >= 0, got %d", ErrInvalid, c.N)
	case c.Channels != 1 && c.Channels != 3:
		return fmt.Errorf("%w: channels must be 1 or 3, got %d", ErrInvalid, c.Channels)
	case c.ImageWidth < 1:
		return fmt.Errorf("%w: image_width must be >= 1, got %d", ErrInvalid, c.ImageWidth)
	case c.LogDir == "":
		return fmt.Errorf("%w: log_dir is required", ErrInvalid)
	}
	switch c.Backend {
	case BackendLoom:
		if c.ModelPath == "" {
			return fmt.Errorf("%w: model_path is required for the loom backend", ErrInvalid)
		}
	case BackendGRPC:
		if c.CodecAddr == "" {
			return fmt.Errorf("%w: codec_addr is required for the grpc backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalid, c.Backend)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalid, c.LogFormat)
	}
	if err := compose.ValidateVisualize(c.Visualize, c.NSample); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// #endregion validate
