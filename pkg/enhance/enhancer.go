package enhance

import "github.com/teslashibe/go-facelink/pkg/face"

// Enhancer applies per-unit correction to raw scores. It holds no
// per-frame state and is safe for concurrent use.
type Enhancer struct {
	cfg Config
}

// New creates an enhancer. The config's override maps are copied.
func New(cfg Config) (*Enhancer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Enhancer{cfg: cfg.clone()}, nil
}

// Enabled reports whether Enhance modifies its input.
func (e *Enhancer) Enabled() bool {
	return e.cfg.Enabled
}

// Sensitivity returns the effective sensitivity for u.
func (e *Enhancer) Sensitivity(u face.ActionUnit) float64 {
	if s, ok := e.cfg.SensitivityOverrides[u]; ok {
		return s
	}
	if s, ok := defaultSensitivity[u]; ok {
		return s
	}
	return DefaultUnitSensitivity
}

// DeadZone returns the effective dead-zone threshold for u.
func (e *Enhancer) DeadZone(u face.ActionUnit) float64 {
	if dz, ok := e.cfg.DeadZoneOverrides[u]; ok {
		return dz
	}
	if dz, ok := defaultDeadZone[u]; ok {
		return dz
	}
	return DefaultUnitDeadZone
}

// Enhance returns corrected data for all 52 units. A disabled enhancer
// returns a copy of raw.
func (e *Enhancer) Enhance(raw face.Data) face.Data {
	if !e.cfg.Enabled {
		return raw.Clone()
	}

	w := e.cfg.GeometricBlendWeight
	out := face.EmptyData()
	for _, u := range face.All() {
		r := raw.Value(u)
		corrected := e.correct(u, r)
		out[u] = face.Clamp01(w*corrected + (1-w)*r)
	}
	return out
}

// correct scales r and applies the dead zone. Values at or below the
// threshold become 0; values above are rescaled so the output is
// continuous at the threshold and still reaches 1.
func (e *Enhancer) correct(u face.ActionUnit, r float64) float64 {
	scaled := r * e.Sensitivity(u)
	dz := e.DeadZone(u)
	if scaled <= dz {
		return 0
	}
	return (scaled - dz) / (1 - dz)
}
