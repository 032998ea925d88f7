// Package enhance corrects raw action-unit scores before calibration:
// per-unit sensitivity scaling, dead-zone suppression and a blend back
// toward the raw estimate.
package enhance

import (
	"errors"
	"fmt"
	"maps"

	"github.com/teslashibe/go-facelink/pkg/face"
)

// ErrInvalidConfig is returned when enhancer parameters are out of range.
var ErrInvalidConfig = errors.New("enhance: invalid config")

// DefaultBlendWeight is the blend weight used by Default.
const DefaultBlendWeight = 0.7

// Config controls the enhancer. The zero value is disabled.
type Config struct {
	Enabled bool

	// Overrides take precedence over the built-in tables.
	SensitivityOverrides map[face.ActionUnit]float64
	DeadZoneOverrides    map[face.ActionUnit]float64

	// GeometricBlendWeight mixes corrected and raw values:
	// 1.0 is fully corrected, 0.0 is raw passthrough.
	GeometricBlendWeight float64
}

// Disabled returns a passthrough config.
func Disabled() Config {
	return Config{}
}

// Default returns an enabled config using the built-in tables.
func Default() Config {
	return Config{
		Enabled:              true,
		GeometricBlendWeight: DefaultBlendWeight,
	}
}

// Validate checks parameter ranges. Disabled configs are always valid.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.GeometricBlendWeight < 0 || c.GeometricBlendWeight > 1 {
		return fmt.Errorf("%w: blend weight %v not in [0, 1]", ErrInvalidConfig, c.GeometricBlendWeight)
	}
	for u, s := range c.SensitivityOverrides {
		if !u.Valid() {
			return fmt.Errorf("%w: sensitivity override for invalid unit %d", ErrInvalidConfig, int(u))
		}
		if s < 0 {
			return fmt.Errorf("%w: sensitivity for %s is negative", ErrInvalidConfig, u)
		}
	}
	for u, dz := range c.DeadZoneOverrides {
		if !u.Valid() {
			return fmt.Errorf("%w: dead zone override for invalid unit %d", ErrInvalidConfig, int(u))
		}
		if dz < 0 || dz >= 1 {
			return fmt.Errorf("%w: dead zone for %s not in [0, 1)", ErrInvalidConfig, u)
		}
	}
	return nil
}

// clone copies the override maps so later caller edits have no effect.
func (c Config) clone() Config {
	c.SensitivityOverrides = maps.Clone(c.SensitivityOverrides)
	c.DeadZoneOverrides = maps.Clone(c.DeadZoneOverrides)
	return c
}
