package tracking

import (
	"fmt"

	"github.com/teslashibe/go-facelink/pkg/camera"
	"github.com/teslashibe/go-facelink/pkg/enhance"
	"github.com/teslashibe/go-facelink/pkg/smoothing"
)

// Config is the immutable configuration of a tracker.
type Config struct {
	Smoothing         smoothing.Config
	Enhancer          enhance.Config
	EnableCalibration bool
	CameraFacing      camera.Facing
}

// DefaultConfig returns EMA smoothing with the default alpha, no
// enhancement, no calibration and the front camera.
func DefaultConfig() Config {
	return Config{
		Smoothing:    smoothing.EMA(smoothing.DefaultAlpha),
		Enhancer:     enhance.Disabled(),
		CameraFacing: camera.DefaultFacing,
	}
}

// Validate checks every stage configuration.
func (c Config) Validate() error {
	if err := c.Smoothing.Validate(); err != nil {
		return fmt.Errorf("smoothing: %w", err)
	}
	if err := c.Enhancer.Validate(); err != nil {
		return fmt.Errorf("enhancer: %w", err)
	}
	if err := c.CameraFacing.Validate(); err != nil {
		return err
	}
	return nil
}
