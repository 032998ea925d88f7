package smoothing

import (
	"time"

	"github.com/teslashibe/go-facelink/pkg/face"
)

// EMAFilter is an exponential moving average per action unit:
//
//	out = alpha*in + (1-alpha)*prev
//
// The first sample for a unit passes through and seeds prev.
type EMAFilter struct {
	alpha float64
	prev  map[face.ActionUnit]float64
}

// NewEMA creates an EMA filter. Higher alpha means less smoothing.
func NewEMA(alpha float64) *EMAFilter {
	return &EMAFilter{
		alpha: alpha,
		prev:  make(map[face.ActionUnit]float64),
	}
}

// Smooth applies the moving average to every unit in data.
func (f *EMAFilter) Smooth(data face.Data, _ time.Time) face.Data {
	out := make(face.Data, len(data))
	for u, v := range data {
		out[u] = f.Update(u, v)
	}
	return out
}

// Update filters a single sample for u.
func (f *EMAFilter) Update(u face.ActionUnit, v float64) float64 {
	prev, ok := f.prev[u]
	if !ok {
		f.prev[u] = v
		return v
	}
	smoothed := f.alpha*v + (1-f.alpha)*prev
	f.prev[u] = smoothed
	return smoothed
}

// Reset discards all history.
func (f *EMAFilter) Reset() {
	clear(f.prev)
}
