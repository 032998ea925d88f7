// Package config loads facelink process configuration from the
// environment and tracker tuning from an optional yaml file.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/teslashibe/go-facelink/pkg/tracking"
)

// Config is the process configuration.
type Config struct {
	Addr           string        `env:"FACELINK_ADDR"            envDefault:":8080"`
	LogLevel       string        `env:"FACELINK_LOG_LEVEL"       envDefault:"info"`
	TuningPath     string        `env:"FACELINK_TUNING"`
	CaptureTimeout time.Duration `env:"FACELINK_CAPTURE_TIMEOUT" envDefault:"5s"`
	Debug          bool          `env:"FACELINK_DEBUG"`
}

// Load reads Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
	if cfg.CaptureTimeout <= 0 {
		return Config{}, fmt.Errorf("FACELINK_CAPTURE_TIMEOUT must be positive, got %v", cfg.CaptureTimeout)
	}
	return cfg, nil
}

// Tracker returns the tracker configuration: the tuning file at
// TuningPath when set, the defaults otherwise.
func (c Config) Tracker() (tracking.Config, error) {
	t, err := LoadTuning(c.TuningPath)
	if err != nil {
		return tracking.Config{}, err
	}
	return t.TrackerConfig()
}
