package commands

import (
	"fmt"
	"time"

	"datalogger-plots/internal/config"
	"datalogger-plots/internal/logging"
	"datalogger-plots/internal/parser"
)

// loadConfig reads the configuration file (or CONFIG_FILE) and environment.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the diagnostics logger. User-facing output stays on stdout.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
}

// timeBounds parses --start, --end and --window. A window without an end is
// applied after start; without a start it is resolved against the data later.
func timeBounds(start, end, window string) (from, to time.Time, span time.Duration, err error) {
	if from, err = parser.ParseBound(start); err != nil {
		return from, to, 0, fmt.Errorf("invalid start time: %w", err)
	}
	if to, err = parser.ParseBound(end); err != nil {
		return from, to, 0, fmt.Errorf("invalid end time: %w", err)
	}
	if window == "" {
		return from, to, 0, nil
	}

	span, err = time.ParseDuration(window)
	if err != nil {
		return from, to, 0, fmt.Errorf("invalid time window: %w", err)
	}
	if span <= 0 {
		return from, to, 0, fmt.Errorf("invalid time window: %s", window)
	}
	if to.IsZero() && !from.IsZero() {
		to = from.Add(span)
	}
	return from, to, span, nil
}

func ptr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
