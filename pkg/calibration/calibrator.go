// Package calibration learns each user's expressive range during a session
// and normalizes action-unit intensities to it.
package calibration

import "github.com/teslashibe/go-facelink/pkg/face"

// MinRange is the smallest observed range that is normalized. Narrower
// ranges pass values through unchanged.
const MinRange = 0.01

// bounds is the observed range of one unit.
type bounds struct {
	min, max float64
}

// Calibrator records per-unit observed minimum and maximum and remaps
// values from [min, max] to [0, 1]. Not safe for concurrent use.
type Calibrator struct {
	bounds map[face.ActionUnit]bounds
}

// New creates a calibrator with no observations.
func New() *Calibrator {
	return &Calibrator{bounds: make(map[face.ActionUnit]bounds)}
}

// Calibrate updates the observed ranges with data and returns the
// normalized values.
func (c *Calibrator) Calibrate(data face.Data) face.Data {
	out := make(face.Data, len(data))
	for u, v := range data {
		b, ok := c.bounds[u]
		if !ok {
			c.bounds[u] = bounds{min: v, max: v}
			out[u] = v
			continue
		}

		b.min = min(b.min, v)
		b.max = max(b.max, v)
		c.bounds[u] = b

		if r := b.max - b.min; r > MinRange {
			out[u] = face.Clamp01((v - b.min) / r)
		} else {
			out[u] = v
		}
	}
	return out
}

// Range returns the observed range for u.
func (c *Calibrator) Range(u face.ActionUnit) (lo, hi float64, ok bool) {
	b, ok := c.bounds[u]
	return b.min, b.max, ok
}

// Reset forgets all observed ranges.
func (c *Calibrator) Reset() {
	clear(c.bounds)
}
