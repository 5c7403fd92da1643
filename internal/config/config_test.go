package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/svg-eval/internal/compose"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, int64(1), cfg.Seed)
	assert.Equal(t, 10, cfg.NPast)
	assert.Equal(t, 20, cfg.NFuture)
	assert.Equal(t, 100, cfg.NSample)
	assert.Equal(t, 256, cfg.N)
	assert.Equal(t, []int{0, 20, 40}, cfg.Visualize)
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: _smoke
n_past: 5
n_future: 7
nsample: 41
batch_size: 8
visualize: [1, 40]
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "_smoke", cfg.Name)
	assert.Equal(t, 5, cfg.NPast)
	assert.Equal(t, 7, cfg.NFuture)
	assert.Equal(t, 41, cfg.NSample)
	assert.Equal(t, 8, cfg.BatchSize)
	assert.Equal(t, []int{1, 40}, cfg.Visualize)
	// untouched keys keep their defaults
	assert.Equal(t, 256, cfg.N)
	assert.Equal(t, BackendLoom, cfg.Backend)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SVG_CODEC_ADDR", "inference:9000")
	t.Setenv("SVG_BACKEND", BackendGRPC)
	t.Setenv("SVG_LOG_DIR", "/tmp/out")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "inference:9000", cfg.CodecAddr)
	assert.Equal(t, BackendGRPC, cfg.Backend)
	assert.Equal(t, "/tmp/out", cfg.LogDir)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"n_past":     func(c *Config) { c.NPast = 0 },
		"n_future":   func(c *Config) { c.NFuture = 0 },
		"nsample":    func(c *Config) { c.NSample = 0 },
		"batch_size": func(c *Config) { c.BatchSize = 0 },
		"channels":   func(c *Config) { c.Channels = 2 },
		"backend":    func(c *Config) { c.Backend = "onnx" },
		"log_format": func(c *Config) { c.LogFormat = "xml" },
		"visualize":  func(c *Config) { c.NSample = 40 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.True(t, errors.Is(cfg.Validate(), ErrInvalid))
		})
	}
}

func TestValidateVisualizeKeepsSentinel(t *testing.T) {
	cfg := Default()
	cfg.NSample = 10
	assert.True(t, errors.Is(cfg.Validate(), compose.ErrVisualizeIndex))
}

func TestGIFPath(t *testing.T) {
	cfg := Default()
	cfg.LogDir = "out"
	assert.Equal(t, filepath.Join("out", "gifs", "best_psnr_7.gif"), cfg.GIFPath(7))
	cfg.Name = "_v2"
	assert.Equal(t, filepath.Join("out", "gifs", "best_psnr_7_v2.gif"), cfg.GIFPath(7))
}
