package metrics

import (
	"strings"

	"github.com/kazz187/taskpulse/internal/instance"
)

// InstanceMetrics is everything the formulas can read off one instance.
type InstanceMetrics struct {
	// Relief is nil when either relief attribute is missing.
	Relief *Relief
	// Execution terms; absent inputs leave a term nil.
	Factors           Factors
	CompletionPercent float64
	TaskType          string
	// ActualMinutes and EstimateMinutes are zero when unknown.
	ActualMinutes   float64
	EstimateMinutes float64
	Note            string
}

// FromInstance extracts the per-instance inputs and factors.
//
// Completion defaults to 100% for completed instances without an explicit
// completion_percent and to 0% otherwise. Actual time falls back to the
// started → completed span.
func FromInstance(t *instance.TaskInstance) InstanceMetrics {
	m := InstanceMetrics{
		TaskType: t.Predicted.String(instance.AttrTaskType),
		Note:     strings.TrimSpace(t.Actual.String(instance.AttrNotes)),
	}
	if r, ok := ComputeRelief(t.Predicted, t.Actual); ok {
		m.Relief = &r
	}

	if pct, ok := t.Actual.Float(instance.AttrCompletionPercent); ok {
		m.CompletionPercent = clamp(pct, 0, 100)
	} else if t.IsCompleted {
		m.CompletionPercent = 100
	}
	if t.IsCompleted || t.Actual != nil {
		m.Factors.Completion = ptr(CompletionFactor(m.CompletionPercent))
	}

	if est, ok := t.Predicted.Float(instance.AttrTimeEstimateMinutes); ok && est > 0 {
		m.EstimateMinutes = est
	}
	if act, ok := t.Actual.Float(instance.AttrActualTimeMinutes); ok && act > 0 {
		m.ActualMinutes = act
	} else if t.StartedAt != nil && t.CompletedAt != nil {
		m.ActualMinutes = t.CompletedAt.Sub(*t.StartedAt).Minutes()
	}
	if f, ok := SpeedFactor(m.ActualMinutes, m.EstimateMinutes); ok {
		m.Factors.Speed = &f
	}

	if t.InitializedAt != nil && t.StartedAt != nil {
		m.Factors.StartSpeed = ptr(StartSpeedFactor(t.StartedAt.Sub(*t.InitializedAt).Minutes()))
	}

	aversion, hasAversion := t.Predicted.Float(instance.AttrExpectedAversion)
	load, hasLoad := t.Predicted.Float(instance.AttrExpectedCognitiveLoad)
	if hasAversion || hasLoad {
		m.Factors.Difficulty = ptr(DifficultyBonus(aversion, load))
	}
	return m
}

func ptr(v float64) *float64 { return &v }
