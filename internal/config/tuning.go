package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-facelink/pkg/camera"
	"github.com/teslashibe/go-facelink/pkg/enhance"
	"github.com/teslashibe/go-facelink/pkg/face"
	"github.com/teslashibe/go-facelink/pkg/smoothing"
	"github.com/teslashibe/go-facelink/pkg/tracking"
)

// Tuning is the yaml form of a tracker configuration.
//
//	smoothing:
//	  mode: one_euro
//	  min_cutoff: 1.0
//	  beta: 0.007
//	enhancer:
//	  enabled: true
//	  blend_weight: 0.7
//	  sensitivity: {cheekPuff: 2.0}
//	  dead_zone: {jawOpen: 0.05}
//	calibration: true
//	camera_facing: front
type Tuning struct {
	Smoothing    SmoothingTuning `yaml:"smoothing"`
	Enhancer     EnhancerTuning  `yaml:"enhancer"`
	Calibration  bool            `yaml:"calibration"`
	CameraFacing string          `yaml:"camera_facing"`
}

// SmoothingTuning holds filter parameters. Zero values take the
// library defaults for the selected mode.
type SmoothingTuning struct {
	Mode          string   `yaml:"mode"`
	Alpha         *float64 `yaml:"alpha"`
	MinCutoff     *float64 `yaml:"min_cutoff"`
	Beta          *float64 `yaml:"beta"`
	DCutoff       *float64 `yaml:"d_cutoff"`
	FrameInterval Duration `yaml:"frame_interval"`
}

// EnhancerTuning holds enhancer settings keyed by action unit name.
type EnhancerTuning struct {
	Enabled     bool               `yaml:"enabled"`
	BlendWeight *float64           `yaml:"blend_weight"`
	Sensitivity map[string]float64 `yaml:"sensitivity"`
	DeadZone    map[string]float64 `yaml:"dead_zone"`
}

// DefaultTuning mirrors tracking.DefaultConfig.
func DefaultTuning() Tuning {
	return Tuning{
		Smoothing:    SmoothingTuning{Mode: smoothing.ModeEMA.String()},
		CameraFacing: camera.DefaultFacing.String(),
	}
}

// LoadTuning reads a tuning file. An empty path yields DefaultTuning.
// Sections missing from the file keep their defaults.
func LoadTuning(path string) (Tuning, error) {
	if path == "" {
		return DefaultTuning(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("read tuning: %w", err)
	}
	return ParseTuning(data)
}

// ParseTuning decodes yaml tuning. Unknown fields are rejected.
func ParseTuning(data []byte) (Tuning, error) {
	t := DefaultTuning()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return Tuning{}, fmt.Errorf("parse tuning: %w", err)
	}
	return t, nil
}

// TrackerConfig converts t and validates the result.
func (t Tuning) TrackerConfig() (tracking.Config, error) {
	sm, err := t.Smoothing.config()
	if err != nil {
		return tracking.Config{}, fmt.Errorf("smoothing: %w", err)
	}
	en, err := t.Enhancer.config()
	if err != nil {
		return tracking.Config{}, fmt.Errorf("enhancer: %w", err)
	}
	facing, err := camera.ParseFacing(t.CameraFacing)
	if err != nil {
		return tracking.Config{}, err
	}

	cfg := tracking.Config{
		Smoothing:         sm,
		Enhancer:          en,
		EnableCalibration: t.Calibration,
		CameraFacing:      facing,
	}
	if err := cfg.Validate(); err != nil {
		return tracking.Config{}, err
	}
	return cfg, nil
}

func (s SmoothingTuning) config() (smoothing.Config, error) {
	mode, err := smoothing.ParseMode(s.Mode)
	if err != nil {
		return smoothing.Config{}, err
	}

	var cfg smoothing.Config
	switch mode {
	case smoothing.ModeEMA:
		cfg = smoothing.EMA(orDefault(s.Alpha, smoothing.DefaultAlpha))
	case smoothing.ModeOneEuro:
		cfg = smoothing.OneEuro(
			orDefault(s.MinCutoff, smoothing.DefaultMinCutoff),
			orDefault(s.Beta, smoothing.DefaultBeta),
			orDefault(s.DCutoff, smoothing.DefaultDCutoff),
		)
	default:
		cfg = smoothing.Disabled()
	}
	cfg.FrameInterval = s.FrameInterval.Duration
	return cfg, nil
}

func (e EnhancerTuning) config() (enhance.Config, error) {
	if !e.Enabled {
		return enhance.Disabled(), nil
	}
	cfg := enhance.Default()
	cfg.GeometricBlendWeight = orDefault(e.BlendWeight, enhance.DefaultBlendWeight)

	var err error
	if cfg.SensitivityOverrides, err = unitMap(e.Sensitivity); err != nil {
		return enhance.Config{}, fmt.Errorf("sensitivity: %w", err)
	}
	if cfg.DeadZoneOverrides, err = unitMap(e.DeadZone); err != nil {
		return enhance.Config{}, fmt.Errorf("dead_zone: %w", err)
	}
	return cfg, nil
}

// ErrUnknownUnit is returned for override keys that name no action unit.
var ErrUnknownUnit = errors.New("unknown action unit")

func unitMap(in map[string]float64) (map[face.ActionUnit]float64, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[face.ActionUnit]float64, len(in))
	for name, v := range in {
		u, ok := face.Parse(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownUnit, name)
		}
		out[u] = v
	}
	return out, nil
}

func orDefault(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
