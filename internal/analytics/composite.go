package analytics

import (
	"maps"
	"slices"
)

type CompositeScore struct {
	Score             float64            `json:"composite_score"`
	NormalizedWeights map[string]float64 `json:"normalized_weights"`
	Contributions     map[string]float64 `json:"component_contributions"`
}

// CalculateCompositeScore combines 0–100 component scores. Only components
// that are present and carry a positive weight take part; their weights are
// rescaled to sum to 1.
func CalculateCompositeScore(components, weights map[string]float64) CompositeScore {
	result := CompositeScore{
		NormalizedWeights: map[string]float64{},
		Contributions:     map[string]float64{},
	}
	var total float64
	names := slices.Sorted(maps.Keys(components))
	for _, name := range names {
		if w := weights[name]; w > 0 {
			total += w
		}
	}
	if total == 0 {
		return result
	}
	for _, name := range names {
		w := weights[name]
		if w <= 0 {
			continue
		}
		nw := w / total
		contribution := nw * components[name]
		result.NormalizedWeights[name] = nw
		result.Contributions[name] = contribution
		result.Score += contribution
	}
	return result
}
