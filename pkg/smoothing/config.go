// Package smoothing provides per-action-unit temporal filters that suppress
// sensor and inference jitter.
package smoothing

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned when filter parameters are out of range.
var ErrInvalidConfig = errors.New("smoothing: invalid config")

// Mode selects the filter.
type Mode int

const (
	// ModeNone disables smoothing.
	ModeNone Mode = iota
	// ModeEMA selects an exponential moving average.
	ModeEMA
	// ModeOneEuro selects the speed-adaptive One Euro filter.
	ModeOneEuro
)

// String returns the mode name used in tuning files.
func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeEMA:
		return "ema"
	case ModeOneEuro:
		return "one_euro"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "none", "disabled":
		return ModeNone, nil
	case "ema":
		return ModeEMA, nil
	case "one_euro", "oneeuro", "one-euro":
		return ModeOneEuro, nil
	}
	return ModeNone, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, s)
}

// Defaults from the reference sample applications.
const (
	DefaultAlpha     = 0.4
	DefaultMinCutoff = 1.0
	DefaultBeta      = 0.007
	DefaultDCutoff   = 1.0
)

// DefaultFrameInterval is the time step assumed when frames carry no
// usable timestamp.
const DefaultFrameInterval = time.Second / 30

// Config holds filter parameters. Only the fields of the selected mode are
// used.
type Config struct {
	Mode Mode

	// EMA: weight of the new sample, in (0, 1].
	Alpha float64

	// One Euro
	MinCutoff float64 // Hz, > 0
	Beta      float64 // speed coefficient, >= 0
	DCutoff   float64 // Hz for the derivative filter, > 0

	// FrameInterval overrides DefaultFrameInterval. Zero means default.
	FrameInterval time.Duration
}

// Disabled returns a config with smoothing off.
func Disabled() Config {
	return Config{Mode: ModeNone}
}

// EMA returns an exponential moving average config.
func EMA(alpha float64) Config {
	return Config{Mode: ModeEMA, Alpha: alpha}
}

// OneEuro returns a One Euro filter config.
func OneEuro(minCutoff, beta, dCutoff float64) Config {
	return Config{Mode: ModeOneEuro, MinCutoff: minCutoff, Beta: beta, DCutoff: dCutoff}
}

// DefaultConfig returns the EMA configuration used by the sample apps.
func DefaultConfig() Config {
	return EMA(DefaultAlpha)
}

// Enabled reports whether a filter should run.
func (c Config) Enabled() bool {
	return c.Mode != ModeNone
}

// Validate checks parameter ranges for the selected mode.
func (c Config) Validate() error {
	if c.FrameInterval < 0 {
		return fmt.Errorf("%w: frame interval must not be negative", ErrInvalidConfig)
	}
	switch c.Mode {
	case ModeNone:
		return nil
	case ModeEMA:
		if !(c.Alpha > 0 && c.Alpha <= 1) {
			return fmt.Errorf("%w: alpha %v not in (0, 1]", ErrInvalidConfig, c.Alpha)
		}
		return nil
	case ModeOneEuro:
		if !(c.MinCutoff > 0) {
			return fmt.Errorf("%w: min cutoff %v must be > 0", ErrInvalidConfig, c.MinCutoff)
		}
		if !(c.DCutoff > 0) {
			return fmt.Errorf("%w: d cutoff %v must be > 0", ErrInvalidConfig, c.DCutoff)
		}
		if !(c.Beta >= 0) {
			return fmt.Errorf("%w: beta %v must be >= 0", ErrInvalidConfig, c.Beta)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown mode %v", ErrInvalidConfig, c.Mode)
}

func (c Config) frameInterval() time.Duration {
	if c.FrameInterval > 0 {
		return c.FrameInterval
	}
	return DefaultFrameInterval
}
