// Package config provides configuration loading and management for cowsubmit.
// It handles loading configuration from YAML or TOML files, applies
// environment overrides and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"cowsubmit/internal/models"
	"cowsubmit/pkg/dispatch"
	"cowsubmit/pkg/predict"
)

// Environment variables that override the loaded configuration
const (
	EnvTrack      = "COW_TRACK"
	EnvTask       = "COW_TASK"
	EnvInputRoot  = "COW_INPUT_ROOT"
	EnvOutputRoot = "COW_OUTPUT_ROOT"
	EnvFileFilter = "COW_FILE_FILTER"
	EnvCompress   = "COW_COMPRESS"
)

// Log formats
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config represents the application configuration
type Config struct {
	// Track is the modality whose volume is the main input: mr or ct
	Track string `yaml:"track" toml:"track"`

	// Task is one of bin_seg, mul_seg, box or edg
	Task string `yaml:"task" toml:"task"`

	// Input and output locations
	Paths struct {
		// InputRoot overrides the detected input root when set
		InputRoot string `yaml:"inputRoot" toml:"input_root"`

		// OutputRoot overrides the detected output root when set
		OutputRoot string `yaml:"outputRoot" toml:"output_root"`

		// FileFilter is a regular expression both input paths must match from their start
		FileFilter string `yaml:"fileFilter" toml:"file_filter"`
	} `yaml:"paths" toml:"paths"`

	// Example algorithm parameters
	Predictor struct {
		// Segmentation names the example segmenter: threshold or zeros
		Segmentation string `yaml:"segmentation" toml:"segmentation"`

		// ThresholdFraction is the share of the maximum intensity used as lower threshold
		ThresholdFraction float64 `yaml:"thresholdFraction" toml:"threshold_fraction"`

		// StagingDir receives both inputs as NIfTI files before predicting, when set
		StagingDir string `yaml:"stagingDir" toml:"staging_dir"`
	} `yaml:"predictor" toml:"predictor"`

	// Output parameters
	Output struct {
		// Compress enables lossless compression of segmentation volumes
		Compress bool `yaml:"compress" toml:"compress"`

		// PreviewDir receives JPEG previews of the input and prediction, when set
		PreviewDir string `yaml:"previewDir" toml:"preview_dir"`
	} `yaml:"output" toml:"output"`

	// Logging parameters
	Logging struct {
		// Verbose enables debug logging
		Verbose bool `yaml:"verbose" toml:"verbose"`

		// Format is json or console
		Format string `yaml:"format" toml:"format"`
	} `yaml:"logging" toml:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Track = string(models.TrackMR)
	cfg.Task = string(models.TaskBinarySegmentation)

	cfg.Predictor.Segmentation = predict.SegmenterThreshold
	cfg.Predictor.ThresholdFraction = predict.DefaultThresholdFraction

	cfg.Output.Compress = true

	cfg.Logging.Format = FormatJSON

	return cfg
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// LoadConfig loads configuration from a YAML or TOML file, chosen by extension.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if configPath == "" {
		return cfg, nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if isTOML(configPath) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides fields from COW_* environment variables that are set
func (c *Config) ApplyEnv() error {
	overrides := []struct {
		key string
		dst *string
	}{
		{EnvTrack, &c.Track},
		{EnvTask, &c.Task},
		{EnvInputRoot, &c.Paths.InputRoot},
		{EnvOutputRoot, &c.Paths.OutputRoot},
		{EnvFileFilter, &c.Paths.FileFilter},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.key); ok {
			*o.dst = v
		}
	}

	if v, ok := os.LookupEnv(EnvCompress); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s must be a boolean, got %q", models.ErrInvalidConfig, EnvCompress, v)
		}
		c.Output.Compress = b
	}
	return nil
}

// Validate checks every setting that can be checked without touching the filesystem
func (c *Config) Validate() error {
	if err := dispatch.Validate(c.Track, c.Task); err != nil {
		return err
	}
	if _, err := c.Filter(); err != nil {
		return err
	}
	if _, err := c.Algorithm(); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "", FormatJSON, FormatConsole:
	default:
		return fmt.Errorf("%w: log format must be %q or %q, got %q",
			models.ErrInvalidConfig, FormatJSON, FormatConsole, c.Logging.Format)
	}
	return nil
}

// Run returns the validated run variant
func (c *Config) Run() (dispatch.Run, error) {
	return dispatch.NewRun(c.Track, c.Task)
}

// Filter compiles the file filter, or returns nil when none is set
func (c *Config) Filter() (*regexp.Regexp, error) {
	if c.Paths.FileFilter == "" {
		return nil, nil
	}
	re, err := regexp.Compile(c.Paths.FileFilter)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid file filter: %v", models.ErrInvalidConfig, err)
	}
	return re, nil
}

// Algorithm returns the example algorithm selected by the predictor settings
func (c *Config) Algorithm() (predict.Algorithm, error) {
	return predict.Example(c.Predictor.Segmentation, c.Predictor.ThresholdFraction)
}

// SaveConfig saves the configuration as YAML, or TOML for a .toml path
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isTOML(configPath) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
