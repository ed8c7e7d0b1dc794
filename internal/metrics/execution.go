package metrics

import "math"

// Execution score term names, also used as weight keys.
const (
	TermCompletion = "completion"
	TermSpeed      = "speed"
	TermStartSpeed = "start_speed"
	TermDifficulty = "difficulty"
)

// CompletionFactor maps a completion percentage onto [0, 1].
func CompletionFactor(pct float64) float64 {
	c := clamp(pct, 0, 100)
	switch {
	case c >= 100:
		return 1.0
	case c >= 90:
		return 0.9 + (c-90)/10*0.1
	case c >= 50:
		return 0.5 + (c-50)/40*0.4
	default:
		return c / 50 * 0.5
	}
}

// SpeedFactorRatio scores actual/estimated time. Finishing in half the
// estimate or faster scores 1.0.
func SpeedFactorRatio(ratio float64) float64 {
	switch {
	case ratio <= 0.5:
		return 1.0
	case ratio <= 1.0:
		return 1.0 - (ratio - 0.5)
	default:
		return 0.5 * (1 / ratio)
	}
}

// SpeedFactor returns ok=false without usable time data. Callers must then
// leave the term out of any weighted sum instead of counting it as zero.
func SpeedFactor(actualMinutes, estimateMinutes float64) (float64, bool) {
	if estimateMinutes <= 0 || actualMinutes <= 0 {
		return 0, false
	}
	return SpeedFactorRatio(actualMinutes / estimateMinutes), true
}

// StartSpeedFactor scores the delay in minutes between initialization and
// start.
func StartSpeedFactor(delayMinutes float64) float64 {
	d := math.Max(0, delayMinutes)
	switch {
	case d <= 5:
		return 1.0
	case d <= 30:
		return 1.0 - (d-5)/25*0.2
	case d <= 120:
		return 0.8 - (d-30)/90*0.3
	default:
		return 0.5 * math.Exp(-(d-120)/240)
	}
}

// DifficultyBonus grows with aversion and cognitive load, both on 0–100.
func DifficultyBonus(aversion, cognitiveLoad float64) float64 {
	load := 0.7*aversion + 0.3*cognitiveLoad
	return clamp(1-math.Exp(-load/50), 0, 1)
}

// Factors are the execution terms of one instance. A nil term is excluded.
type Factors struct {
	Completion *float64
	Speed      *float64
	StartSpeed *float64
	Difficulty *float64
}

type term struct {
	name  string
	value *float64
}

func (f Factors) terms() []term {
	return []term{
		{TermCompletion, f.Completion},
		{TermSpeed, f.Speed},
		{TermStartSpeed, f.StartSpeed},
		{TermDifficulty, f.Difficulty},
	}
}

// ExecutionScore is the weighted mean of the present terms scaled to 0–100.
// Terms without a positive weight are ignored. ok is false when no term is
// left.
func ExecutionScore(f Factors, weights map[string]float64) (float64, bool) {
	var sum, total float64
	for _, t := range f.terms() {
		w := weights[t.name]
		if t.value == nil || w <= 0 {
			continue
		}
		sum += w * *t.value
		total += w
	}
	if total == 0 {
		return 0, false
	}
	return clamp(sum/total*100, 0, 100), true
}
