package face

// Category is a single named score as reported by ML landmark back ends,
// which emit an ordered list rather than a dictionary.
type Category struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// FromNames converts a geometry-mesh back end dictionary of named scores.
// Unknown names are ignored, scores are clamped to [0, 1] and every action
// unit is present in the result.
func FromNames(scores map[string]float64) Data {
	out := EmptyData()
	for name, score := range scores {
		if u, ok := Parse(name); ok {
			out[u] = Clamp01(score)
		}
	}
	return out
}

// FromCategories converts an ML landmark back end category list.
// The neutral category is skipped; otherwise it behaves like FromNames.
// Later duplicates overwrite earlier ones.
func FromCategories(categories []Category) Data {
	out := EmptyData()
	for _, c := range categories {
		if c.Name == NeutralCategory {
			continue
		}
		if u, ok := Parse(c.Name); ok {
			out[u] = Clamp01(c.Score)
		}
	}
	return out
}
