package metrics

import "math"

// Persistence grows with how often the same task has been done. It starts at
// 1.0 for a first attempt and approaches 5.0.
func Persistence(count int) float64 {
	n := math.Max(0, float64(count-1))
	return 1 + 4*(1-math.Exp(-n/100))
}

// TimeBonus rewards running over the estimate, most on early attempts. It is
// 1.0 without time data or without an overrun, and at most 1.5.
func TimeBonus(count int, actualMinutes, estimateMinutes float64) float64 {
	if actualMinutes <= 0 || estimateMinutes <= 0 || actualMinutes <= estimateMinutes {
		return 1.0
	}
	overrun := math.Min(1, actualMinutes/estimateMinutes-1)
	n := math.Max(0, float64(count-1))
	return 1 + 0.5*overrun*math.Exp(-n/10)
}

// Grit is 100 scaled by persistence and the time bonus.
func Grit(count int, actualMinutes, estimateMinutes float64) float64 {
	return 100 * Persistence(count) * TimeBonus(count, actualMinutes, estimateMinutes)
}
