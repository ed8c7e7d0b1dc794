package metrics

import "math"

// MaxDailyVariance is the variance, in minutes², at which consistency
// bottoms out: a four hour spread of daily work time.
const MaxDailyVariance = 240.0 * 240.0

// TaskTypeMultipliers weight baseline productivity by task type. Leisure is
// negative so that it pulls productivity down.
var TaskTypeMultipliers = map[string]float64{
	"work":      1.0,
	"self_care": 0.75,
	"leisure":   -0.25,
	"play":      -0.25,
}

// TaskTypeMultiplier returns 1.0 for unknown or empty task types.
func TaskTypeMultiplier(taskType string) float64 {
	if m, ok := TaskTypeMultipliers[taskType]; ok {
		return m
	}
	return 1.0
}

func BaselineProductivity(completionPct float64, taskType string) float64 {
	return clamp(completionPct, 0, 100) * TaskTypeMultiplier(taskType)
}

// VolumeMultiplier maps a 0–100 volume score onto 0.5–1.5.
func VolumeMultiplier(volumeScore float64) float64 {
	return 0.5 + clamp(volumeScore, 0, 100)/100
}

func VolumetricProductivity(baseline, volumeScore float64) float64 {
	return baseline * VolumeMultiplier(volumeScore)
}

// WorkVolumeScore compares the average daily work time against a target.
func WorkVolumeScore(avgDailyMinutes, targetMinutes float64) float64 {
	if targetMinutes <= 0 {
		return 0
	}
	return clamp(avgDailyMinutes/targetMinutes*100, 0, 100)
}

// WorkConsistencyScore scores the population variance of daily totals.
// ok is false with fewer than two days.
func WorkConsistencyScore(dailyMinutes []float64) (float64, bool) {
	if len(dailyMinutes) < 2 {
		return 0, false
	}
	var mean float64
	for _, m := range dailyMinutes {
		mean += m
	}
	mean /= float64(len(dailyMinutes))
	var variance float64
	for _, m := range dailyMinutes {
		variance += (m - mean) * (m - mean)
	}
	variance /= float64(len(dailyMinutes))
	return 100 * (1 - math.Min(1, variance/MaxDailyVariance)), true
}

// NoteThoroughness rewards note coverage and note length. It lies in
// [0.5, 1.3]; with no instances it is the neutral 1.0.
func NoteThoroughness(withNotes, total int, avgNoteLength float64) float64 {
	if total <= 0 {
		return 1.0
	}
	coverage := clamp(float64(withNotes)/float64(total), 0, 1)
	base := 0.5 + 0.5*coverage
	lengthBonus := 0.3 * (1 - math.Exp(-2*math.Min(1, math.Max(0, avgNoteLength)/500)))
	return base + lengthBonus
}
