package smoothing

import (
	"math"
	"time"

	"github.com/teslashibe/go-facelink/pkg/face"
)

// oneEuroState is the per-unit history of a OneEuroFilter.
type oneEuroState struct {
	value float64   // last filtered value
	deriv float64   // last filtered derivative
	last  time.Time // timestamp of the last sample, zero if unknown
}

// OneEuroFilter is a speed-adaptive low-pass filter. Slow signals get a
// cutoff near minCutoff and are smoothed heavily; fast motion raises the
// cutoff by beta*|derivative| and approaches passthrough.
type OneEuroFilter struct {
	minCutoff float64
	beta      float64
	dCutoff   float64
	interval  time.Duration

	states map[face.ActionUnit]*oneEuroState
}

// NewOneEuro creates a One Euro filter. interval is the time step used
// when samples carry no usable timestamp.
func NewOneEuro(minCutoff, beta, dCutoff float64, interval time.Duration) *OneEuroFilter {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &OneEuroFilter{
		minCutoff: minCutoff,
		beta:      beta,
		dCutoff:   dCutoff,
		interval:  interval,
		states:    make(map[face.ActionUnit]*oneEuroState),
	}
}

// Smooth filters every unit in data observed at ts.
func (f *OneEuroFilter) Smooth(data face.Data, ts time.Time) face.Data {
	out := make(face.Data, len(data))
	for u, v := range data {
		out[u] = f.Update(u, v, ts)
	}
	return out
}

// Update filters a single sample for u.
func (f *OneEuroFilter) Update(u face.ActionUnit, v float64, ts time.Time) float64 {
	s, ok := f.states[u]
	if !ok {
		f.states[u] = &oneEuroState{value: v, last: ts}
		return v
	}

	dt := f.step(s.last, ts)
	s.last = ts

	rawDeriv := (v - s.value) / dt
	s.deriv = lowPass(rawDeriv, s.deriv, smoothingFactor(f.dCutoff, dt))

	cutoff := f.minCutoff + f.beta*math.Abs(s.deriv)
	s.value = lowPass(v, s.value, smoothingFactor(cutoff, dt))

	return s.value
}

// step returns the elapsed seconds between samples, falling back to the
// nominal interval when either timestamp is missing or time went backwards.
func (f *OneEuroFilter) step(prev, now time.Time) float64 {
	if !prev.IsZero() && !now.IsZero() {
		if dt := now.Sub(prev); dt > 0 {
			return dt.Seconds()
		}
	}
	return f.interval.Seconds()
}

// Reset discards all history.
func (f *OneEuroFilter) Reset() {
	clear(f.states)
}

// smoothingFactor converts a cutoff frequency to a low-pass coefficient.
func smoothingFactor(cutoff, dt float64) float64 {
	tau := 1 / (2 * math.Pi * cutoff)
	return 1 / (1 + tau/dt)
}

func lowPass(x, prev, a float64) float64 {
	return a*x + (1-a)*prev
}
