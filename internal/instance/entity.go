package instance

import (
	"time"
)

// TaskInstance is one execution of a task template. Task fields are a
// snapshot taken at creation and are never re-synced with the template.
type TaskInstance struct {
	ID          string `json:"instance_id"`
	TaskID      string `json:"task_id"`
	TaskName    string `json:"task_name"`
	TaskVersion int    `json:"task_version"`
	UserID      string `json:"user_id"`

	CreatedAt     time.Time  `json:"created_at"`
	InitializedAt *time.Time `json:"initialized_at"`
	StartedAt     *time.Time `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at"`
	CancelledAt   *time.Time `json:"cancelled_at"`

	Predicted Attributes `json:"predicted"`
	Actual    Attributes `json:"actual"`

	Status      Status `json:"status"`
	IsCompleted bool   `json:"is_completed"`
	IsDeleted   bool   `json:"is_deleted"`

	// Derived from Predicted/Actual; may be nil for rows written before
	// they were computed.
	NetRelief            *float64 `json:"net_relief"`
	SerendipityFactor    *float64 `json:"serendipity_factor"`
	DisappointmentFactor *float64 `json:"disappointment_factor"`
}

// NormalizeTime is the precision every stored timestamp is reduced to.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func normalizeTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	n := NormalizeTime(*t)
	return &n
}

// Normalize applies the storage normalization in place.
func (t *TaskInstance) Normalize() {
	t.CreatedAt = NormalizeTime(t.CreatedAt)
	t.InitializedAt = normalizeTimePtr(t.InitializedAt)
	t.StartedAt = normalizeTimePtr(t.StartedAt)
	t.CompletedAt = normalizeTimePtr(t.CompletedAt)
	t.CancelledAt = normalizeTimePtr(t.CancelledAt)
	t.Predicted = t.Predicted.Normalize()
	t.Actual = t.Actual.Normalize()
}

func (t *TaskInstance) Clone() *TaskInstance {
	c := *t
	c.InitializedAt = clonePtr(t.InitializedAt)
	c.StartedAt = clonePtr(t.StartedAt)
	c.CompletedAt = clonePtr(t.CompletedAt)
	c.CancelledAt = clonePtr(t.CancelledAt)
	c.Predicted = t.Predicted.Clone()
	c.Actual = t.Actual.Clone()
	c.NetRelief = clonePtr(t.NetRelief)
	c.SerendipityFactor = clonePtr(t.SerendipityFactor)
	c.DisappointmentFactor = clonePtr(t.DisappointmentFactor)
	return &c
}

// LatestTimestamp is the newest lifecycle timestamp that is set.
func (t *TaskInstance) LatestTimestamp() time.Time {
	latest := t.CreatedAt
	for _, ts := range []*time.Time{t.InitializedAt, t.StartedAt, t.CompletedAt, t.CancelledAt} {
		if ts != nil && ts.After(latest) {
			latest = *ts
		}
	}
	return latest
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
