package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cowsubmit/internal/models"
	"cowsubmit/pkg/dispatch"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	run, err := cfg.Run()
	require.NoError(t, err)
	assert.Equal(t, dispatch.BinarySegmentation{Modality: models.TrackMR}, run)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Track = "ct"
			cfg.Task = "edg"
			cfg.Paths.InputRoot = "/data/in"
			cfg.Paths.FileFilter = `.*topcow_\d+`
			cfg.Predictor.Segmentation = "zeros"
			cfg.Output.PreviewDir = "preview"
			cfg.Logging.Verbose = true

			path := filepath.Join(t.TempDir(), "nested", name)
			require.NoError(t, SaveConfig(cfg, path))

			got, err := LoadConfig(path)
			require.NoError(t, err)
			if diff := cmp.Diff(cfg, got); diff != "" {
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cow.toml")
	require.NoError(t, os.WriteFile(path, []byte("task = \"box\"\n\n[paths]\noutput_root = \"out\"\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "box", cfg.Task)
	assert.Equal(t, "mr", cfg.Track)
	assert.Equal(t, "out", cfg.Paths.OutputRoot)
	assert.InDelta(t, 1.0/3.0, cfg.Predictor.ThresholdFraction, 1e-12)
	assert.True(t, cfg.Output.Compress)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("track: [unterminated"), 0644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvTrack, "ct")
	t.Setenv(EnvTask, "mul_seg")
	t.Setenv(EnvOutputRoot, "/tmp/out")
	t.Setenv(EnvCompress, "false")

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, "ct", cfg.Track)
	assert.Equal(t, "mul_seg", cfg.Task)
	assert.Equal(t, "/tmp/out", cfg.Paths.OutputRoot)
	assert.Empty(t, cfg.Paths.InputRoot)
	assert.False(t, cfg.Output.Compress)

	t.Setenv(EnvCompress, "maybe")
	assert.ErrorIs(t, cfg.ApplyEnv(), models.ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"track", func(c *Config) { c.Track = "pet" }},
		{"task", func(c *Config) { c.Task = "seg" }},
		{"filter", func(c *Config) { c.Paths.FileFilter = "([" }},
		{"segmenter", func(c *Config) { c.Predictor.Segmentation = "unet" }},
		{"fraction", func(c *Config) { c.Predictor.ThresholdFraction = 1.5 }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), models.ErrInvalidConfig)
		})
	}
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cowsubmit.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "track: mr")
	assert.Contains(t, string(data), "task: bin_seg")
}
