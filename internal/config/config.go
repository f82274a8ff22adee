package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix prefixes every environment override, e.g. DLP_PIPELINE_SMOOTHING_WINDOW.
	EnvPrefix = "DLP"

	configPathEnv = "CONFIG_FILE"
)

// Config holds all application configuration.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Loader   LoaderConfig   `yaml:"loader"`
	Export   ExportConfig   `yaml:"export"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LogConfig      `yaml:"logging"`
}

// PipelineConfig controls resampling and chart styling.
type PipelineConfig struct {
	SmoothingWindow int    `yaml:"smoothing_window" envconfig:"SMOOTHING_WINDOW"`
	TickPolicy      string `yaml:"tick_policy" envconfig:"TICK_POLICY"`
	Markers         bool   `yaml:"markers" envconfig:"MARKERS"`
	DateAnnotation  bool   `yaml:"date_annotation" envconfig:"DATE_ANNOTATION"`
	AllMatches      bool   `yaml:"all_matches" envconfig:"ALL_MATCHES"`
}

// LoaderConfig controls how CSV files are read.
type LoaderConfig struct {
	Delimiter     string `yaml:"delimiter" envconfig:"DELIMITER"`
	DetectCharset bool   `yaml:"detect_charset" envconfig:"DETECT_CHARSET"`
}

// ExportConfig controls where and how charts are written.
type ExportConfig struct {
	Format       string  `yaml:"format" envconfig:"FORMAT"`
	OutputDir    string  `yaml:"output_dir" envconfig:"OUTPUT_DIR"`
	WidthInches  float64 `yaml:"width_inches" envconfig:"WIDTH_INCHES"`
	HeightInches float64 `yaml:"height_inches" envconfig:"HEIGHT_INCHES"`
}

// ServerConfig holds the interactive UI configuration.
type ServerConfig struct {
	Addr             string        `yaml:"addr" envconfig:"ADDR"`
	MaxUploadMB      int64         `yaml:"max_upload_mb" envconfig:"MAX_UPLOAD_MB"`
	MaxDatasets      int           `yaml:"max_datasets" envconfig:"MAX_DATASETS"`
	DatasetTTL       time.Duration `yaml:"dataset_ttl" envconfig:"DATASET_TTL"`
	DefaultSmoothing int           `yaml:"default_smoothing" envconfig:"DEFAULT_SMOOTHING"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Development bool   `yaml:"development" envconfig:"DEV"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			SmoothingWindow: 5,
			TickPolicy:      "adaptive",
			Markers:         true,
			DateAnnotation:  false,
			AllMatches:      false,
		},
		Loader: LoaderConfig{
			Delimiter:     ";",
			DetectCharset: true,
		},
		Export: ExportConfig{
			Format:       "pdf",
			OutputDir:    "",
			WidthInches:  10,
			HeightInches: 4,
		},
		Server: ServerConfig{
			Addr:             ":8501",
			MaxUploadMB:      200,
			MaxDatasets:      16,
			DatasetTTL:       30 * time.Minute,
			DefaultSmoothing: 3,
			ShutdownTimeout:  10 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in that order. An empty path falls back to CONFIG_FILE.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(path string, target *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read file: %w", err)
	}

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Pipeline.SmoothingWindow < 0 {
		return errors.New("config: pipeline.smoothing_window must be >= 0")
	}
	switch strings.ToLower(c.Pipeline.TickPolicy) {
	case "adaptive", "default":
	default:
		return fmt.Errorf("config: unknown tick policy %q", c.Pipeline.TickPolicy)
	}
	if len([]rune(c.Loader.Delimiter)) != 1 {
		return fmt.Errorf("config: delimiter must be a single character, got %q", c.Loader.Delimiter)
	}
	switch strings.ToLower(c.Export.Format) {
	case "pdf", "png":
	default:
		return fmt.Errorf("config: unknown export format %q", c.Export.Format)
	}
	if c.Export.WidthInches <= 0 || c.Export.HeightInches <= 0 {
		return errors.New("config: export page size must be positive")
	}
	if c.Server.DefaultSmoothing < 0 || c.Server.DefaultSmoothing > 10 {
		return errors.New("config: server.default_smoothing must be within 0..10")
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.New("config: server.max_upload_mb must be positive")
	}
	return nil
}

// DelimiterRune returns the loader delimiter as a rune.
func (c *Config) DelimiterRune() rune {
	return []rune(c.Loader.Delimiter)[0]
}
