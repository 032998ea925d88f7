package face

// Data maps action units to intensities. Values are nominally in [0, 1];
// intermediate pipeline stages may exceed that range before final clamping.
type Data map[ActionUnit]float64

// EmptyData returns data with all 52 action units set to zero.
func EmptyData() Data {
	d := make(Data, Count)
	for i := 0; i < Count; i++ {
		d[ActionUnit(i)] = 0
	}
	return d
}

// Value returns the intensity for u, or 0 when absent.
func (d Data) Value(u ActionUnit) float64 {
	return d[u]
}

// Clone returns an independent copy.
func (d Data) Clone() Data {
	out := make(Data, len(d))
	for u, v := range d {
		out[u] = v
	}
	return out
}

// Complete returns a copy holding all 52 units, missing units set to zero.
// Invalid keys are dropped.
func (d Data) Complete() Data {
	out := EmptyData()
	for u, v := range d {
		if u.Valid() {
			out[u] = v
		}
	}
	return out
}

// Names exports the data keyed by canonical name.
func (d Data) Names() map[string]float64 {
	out := make(map[string]float64, len(d))
	for u, v := range d {
		if u.Valid() {
			out[u.String()] = v
		}
	}
	return out
}

// Clamp01 restricts v to [0, 1].
func Clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
