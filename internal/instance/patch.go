package instance

import (
	"fmt"
	"time"

	"github.com/kazz187/taskpulse/pkg/cerr"
)

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Status        *Status
	InitializedAt *time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	CancelledAt   *time.Time
	IsCompleted   *bool

	// Predicted may only be written while initialized_at is unset, Actual
	// only while both completed_at and cancelled_at are unset.
	Predicted Attributes
	Actual    Attributes
	// AppendNote is the one amendment allowed after actual is frozen.
	AppendNote string

	NetRelief            *float64
	SerendipityFactor    *float64
	DisappointmentFactor *float64
}

func (p *Patch) Normalize() {
	p.InitializedAt = normalizeTimePtr(p.InitializedAt)
	p.StartedAt = normalizeTimePtr(p.StartedAt)
	p.CompletedAt = normalizeTimePtr(p.CompletedAt)
	p.CancelledAt = normalizeTimePtr(p.CancelledAt)
	p.Predicted = p.Predicted.Normalize()
	p.Actual = p.Actual.Normalize()
}

// Apply mutates t with p. It fails with Aborted when the patch would move an
// already-set timestamp, break timestamp ordering or overwrite a frozen
// attribute map, and with InvalidArgument when the resulting status
// disagrees with the timestamps or an attribute value cannot be stored. t is left untouched on error.
//
// Both store backends route updates through Apply.
func (t *TaskInstance) Apply(p *Patch) error {
	next := t.Clone()

	if err := setOnce("initialized_at", &next.InitializedAt, p.InitializedAt); err != nil {
		return err
	}
	if err := setOnce("started_at", &next.StartedAt, p.StartedAt); err != nil {
		return err
	}
	if err := setOnce("completed_at", &next.CompletedAt, p.CompletedAt); err != nil {
		return err
	}
	if err := setOnce("cancelled_at", &next.CancelledAt, p.CancelledAt); err != nil {
		return err
	}

	if p.Predicted != nil {
		if t.InitializedAt != nil {
			return cerr.NewError(cerr.Aborted, "predicted attributes are frozen once initialized", nil)
		}
		next.Predicted = p.Predicted.Clone()
	}
	if p.Actual != nil {
		if t.CompletedAt != nil || t.CancelledAt != nil {
			return cerr.NewError(cerr.Aborted, "actual attributes are frozen once completed or cancelled", nil)
		}
		next.Actual = p.Actual.Clone()
	}
	if p.AppendNote != "" {
		next.Actual = next.Actual.WithNote(p.AppendNote)
	}

	if p.Status != nil {
		next.Status = *p.Status
	}
	if p.IsCompleted != nil {
		next.IsCompleted = *p.IsCompleted
	}
	if p.NetRelief != nil {
		next.NetRelief = clonePtr(p.NetRelief)
	}
	if p.SerendipityFactor != nil {
		next.SerendipityFactor = clonePtr(p.SerendipityFactor)
	}
	if p.DisappointmentFactor != nil {
		next.DisappointmentFactor = clonePtr(p.DisappointmentFactor)
	}

	if err := next.validate(cerr.Aborted); err != nil {
		return err
	}
	*t = *next
	return nil
}

func setOnce(name string, dst **time.Time, v *time.Time) error {
	if v == nil {
		return nil
	}
	if *dst != nil {
		if (*dst).Equal(*v) {
			return nil
		}
		return cerr.NewError(cerr.Aborted, fmt.Sprintf("%s is already set", name), nil)
	}
	c := *v
	*dst = &c
	return nil
}

// Validate checks a complete record before it is stored: timestamp order,
// status consistency and storable attribute values. Out-of-order timestamps
// are InvalidArgument here; Apply reports them as Aborted.
func (t *TaskInstance) Validate() error {
	return t.validate(cerr.InvalidArgument)
}

func (t *TaskInstance) validate(orderCode cerr.Code) error {
	if err := t.checkMonotonic(orderCode); err != nil {
		return err
	}
	if err := t.CheckConsistency(); err != nil {
		return err
	}
	if err := t.Predicted.Validate(); err != nil {
		return err
	}
	return t.Actual.Validate()
}

func (t *TaskInstance) checkMonotonic(code cerr.Code) error {
	type stamp struct {
		name string
		at   *time.Time
	}
	prev := stamp{"created_at", &t.CreatedAt}
	for _, s := range []stamp{{"initialized_at", t.InitializedAt}, {"started_at", t.StartedAt}} {
		if s.at == nil {
			continue
		}
		if s.at.Before(*prev.at) {
			return cerr.NewError(code, fmt.Sprintf("%s precedes %s", s.name, prev.name), nil)
		}
		prev = s
	}
	for _, s := range []stamp{{"completed_at", t.CompletedAt}, {"cancelled_at", t.CancelledAt}} {
		if s.at != nil && s.at.Before(*prev.at) {
			return cerr.NewError(code, fmt.Sprintf("%s precedes %s", s.name, prev.name), nil)
		}
	}
	if t.CompletedAt != nil && t.CancelledAt != nil {
		return cerr.NewError(code, "an instance cannot be both completed and cancelled", nil)
	}
	return nil
}

// CheckConsistency verifies that Status agrees with the timestamps and the
// completion flag, and that the relief factors are not both positive.
func (t *TaskInstance) CheckConsistency() error {
	var ok bool
	switch t.Status {
	case StatusPending:
		ok = t.InitializedAt == nil && t.StartedAt == nil && t.CompletedAt == nil && t.CancelledAt == nil
	case StatusInitialized:
		ok = t.InitializedAt != nil && t.StartedAt == nil && t.CompletedAt == nil && t.CancelledAt == nil
	case StatusStarted:
		ok = t.StartedAt != nil && t.CompletedAt == nil && t.CancelledAt == nil
	case StatusCompleted:
		ok = t.CompletedAt != nil && t.CancelledAt == nil
	case StatusCancelled:
		ok = t.CancelledAt != nil && t.CompletedAt == nil
	default:
		return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown status %q", t.Status), nil)
	}
	if !ok {
		return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("status %q does not match the lifecycle timestamps", t.Status), nil)
	}
	if t.IsCompleted != (t.Status == StatusCompleted) {
		return cerr.NewError(cerr.InvalidArgument, "is_completed must be set exactly when the status is completed", nil)
	}
	if t.SerendipityFactor != nil && t.DisappointmentFactor != nil &&
		*t.SerendipityFactor > 0 && *t.DisappointmentFactor > 0 {
		return cerr.NewError(cerr.InvalidArgument, "serendipity and disappointment cannot both be positive", nil)
	}
	return nil
}
