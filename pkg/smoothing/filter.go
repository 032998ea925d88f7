package smoothing

import (
	"time"

	"github.com/teslashibe/go-facelink/pkg/face"
)

// Filter smooths successive frames of action-unit data. Each unit keeps its
// own history, created on first observation. Implementations are not safe
// for concurrent use; the tracker owns one filter per session.
type Filter interface {
	// Smooth filters data observed at ts. A zero ts means the caller has no
	// timestamp; filters that need a time step assume the nominal interval.
	Smooth(data face.Data, ts time.Time) face.Data

	// Reset discards all history.
	Reset()
}

// New builds the filter selected by cfg. ModeNone yields a passthrough.
func New(cfg Config) (Filter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Mode {
	case ModeEMA:
		return NewEMA(cfg.Alpha), nil
	case ModeOneEuro:
		return NewOneEuro(cfg.MinCutoff, cfg.Beta, cfg.DCutoff, cfg.frameInterval()), nil
	default:
		return Passthrough{}, nil
	}
}

// Passthrough returns a copy of its input.
type Passthrough struct{}

// Smooth returns a copy of data.
func (Passthrough) Smooth(data face.Data, _ time.Time) face.Data {
	return data.Clone()
}

// Reset is a no-op.
func (Passthrough) Reset() {}
