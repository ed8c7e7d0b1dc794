package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kazz187/taskpulse/internal/instance"
	"github.com/kazz187/taskpulse/internal/metrics"
	"github.com/kazz187/taskpulse/pkg/cerr"
)

// Manager drives task instances through their lifecycle. It holds no state
// besides its collaborators; every call reads the latest committed record.
type Manager struct {
	repo   instance.Repository
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

func NewManager(repo instance.Repository, opts ...Option) *Manager {
	m := &Manager{
		repo:   repo,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type CreateRequest struct {
	TaskID      string `json:"task_id"`
	TaskName    string `json:"task_name"`
	TaskVersion int    `json:"task_version"`
	UserID      string `json:"user_id"`
}

func (m *Manager) Create(ctx context.Context, req CreateRequest) (string, error) {
	if req.TaskID == "" {
		return "", cerr.NewError(cerr.InvalidArgument, "task_id is required", nil)
	}
	if req.UserID == "" {
		return "", cerr.NewError(cerr.InvalidArgument, "user_id is required", nil)
	}
	if req.TaskVersion < 0 {
		return "", cerr.NewError(cerr.InvalidArgument, "task_version must not be negative", nil)
	}
	id, err := m.repo.Create(ctx, &instance.TaskInstance{
		TaskID:      req.TaskID,
		TaskName:    req.TaskName,
		TaskVersion: req.TaskVersion,
		UserID:      req.UserID,
		CreatedAt:   instance.NormalizeTime(m.now()),
		Status:      instance.StatusPending,
	})
	if err != nil {
		return "", err
	}
	m.logger.DebugContext(ctx, "instance created", "instance_id", id, "task_id", req.TaskID, "user_id", req.UserID)
	return id, nil
}

func (m *Manager) Get(ctx context.Context, id, userID string) (*instance.TaskInstance, error) {
	return m.repo.Get(ctx, id, userID)
}

// Initialize records the predicted snapshot. Calling it again on an
// initialized instance returns the record unchanged.
func (m *Manager) Initialize(ctx context.Context, id, userID string, predicted instance.Attributes) (*instance.TaskInstance, error) {
	return m.transition(ctx, id, userID, instance.StatusInitialized, func(t *instance.TaskInstance, at time.Time) (*instance.Patch, error) {
		if err := ValidateAttributes(predicted); err != nil {
			return nil, err
		}
		return &instance.Patch{
			Status:        ptr(instance.StatusInitialized),
			InitializedAt: &at,
			Predicted:     predicted.Normalize(),
		}, nil
	})
}

// Start accepts pending instances too, for flows that skip prediction.
func (m *Manager) Start(ctx context.Context, id, userID string) (*instance.TaskInstance, error) {
	return m.transition(ctx, id, userID, instance.StatusStarted, func(t *instance.TaskInstance, at time.Time) (*instance.Patch, error) {
		return &instance.Patch{
			Status:    ptr(instance.StatusStarted),
			StartedAt: &at,
		}, nil
	})
}

// Complete records the actual snapshot and the derived relief fields. The
// relief fields stay nil unless both expected and actual relief are known.
// Completing a completed instance returns it unchanged, whatever actual is,
// and actual is not validated in that case.
func (m *Manager) Complete(ctx context.Context, id, userID string, actual instance.Attributes) (*instance.TaskInstance, error) {
	return m.transition(ctx, id, userID, instance.StatusCompleted, func(t *instance.TaskInstance, at time.Time) (*instance.Patch, error) {
		if err := ValidateAttributes(actual); err != nil {
			return nil, err
		}
		merged := mergeAttributes(t.Actual, actual)
		p := &instance.Patch{
			Status:      ptr(instance.StatusCompleted),
			IsCompleted: ptr(true),
			CompletedAt: &at,
			Actual:      merged,
		}
		if r, ok := metrics.ComputeRelief(t.Predicted, merged); ok {
			p.NetRelief = &r.Net
			p.SerendipityFactor = &r.Serendipity
			p.DisappointmentFactor = &r.Disappointment
		}
		return p, nil
	})
}

// Cancel stores the reason category and notes in the actual snapshot.
func (m *Manager) Cancel(ctx context.Context, id, userID, reason, notes string) (*instance.TaskInstance, error) {
	return m.transition(ctx, id, userID, instance.StatusCancelled, func(t *instance.TaskInstance, at time.Time) (*instance.Patch, error) {
		actual := t.Actual.Clone()
		if reason != "" {
			if actual == nil {
				actual = instance.Attributes{}
			}
			actual[instance.AttrCancelReason] = reason
		}
		if notes != "" {
			actual = actual.WithNote(notes)
		}
		return &instance.Patch{
			Status:      ptr(instance.StatusCancelled),
			CancelledAt: &at,
			Actual:      actual,
		}, nil
	})
}

// Delete hides the instance from every later read. Deleting twice is not an
// error.
func (m *Manager) Delete(ctx context.Context, id, userID string) error {
	if err := m.repo.SoftDelete(ctx, id, userID); err != nil {
		return err
	}
	m.logger.DebugContext(ctx, "instance deleted", "instance_id", id)
	return nil
}

// AppendNote adds a line to the actual notes. It is the one change allowed
// after an instance has reached a terminal state.
func (m *Manager) AppendNote(ctx context.Context, id, userID, note string) (*instance.TaskInstance, error) {
	if note == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "note is required", nil)
	}
	return m.repo.Update(ctx, id, userID, &instance.Patch{AppendNote: note})
}

// transition moves an instance to target. A record already in target is
// returned as is, without calling build, so a replayed request is a no-op
// whatever its payload. A record whose status cannot reach target fails with
// FailedPrecondition before anything is written.
func (m *Manager) transition(ctx context.Context, id, userID string, target instance.Status, build func(t *instance.TaskInstance, at time.Time) (*instance.Patch, error)) (*instance.TaskInstance, error) {
	t, err := m.repo.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if t.Status == target {
		return t, nil
	}
	if !t.Status.CanTransitionTo(target) {
		return nil, invalidTransition(t.Status, target)
	}

	patch, err := build(t, m.timestamp(t))
	if err != nil {
		return nil, err
	}
	updated, err := m.repo.Update(ctx, id, userID, patch)
	if err != nil {
		if !cerr.IsCode(err, cerr.Aborted) {
			return nil, err
		}
		// Another caller moved the record first. If it got to the same
		// place, this call is a repeat.
		latest, getErr := m.repo.Get(ctx, id, userID)
		if getErr == nil && latest.Status == target {
			return latest, nil
		}
		return nil, err
	}
	m.logger.DebugContext(ctx, "instance transitioned",
		"instance_id", id,
		"from", string(t.Status),
		"to", string(target),
	)
	return updated, nil
}

// timestamp is the clock reading, never earlier than the record's newest
// timestamp.
func (m *Manager) timestamp(t *instance.TaskInstance) time.Time {
	now := instance.NormalizeTime(m.now())
	if latest := t.LatestTimestamp(); now.Before(latest) {
		return latest
	}
	return now
}

func invalidTransition(from, to instance.Status) error {
	return cerr.NewError(cerr.FailedPrecondition, fmt.Sprintf("cannot move instance from %s to %s", from, to), nil)
}

func mergeAttributes(base, overlay instance.Attributes) instance.Attributes {
	out := base.Clone()
	if out == nil && len(overlay) > 0 {
		out = make(instance.Attributes, len(overlay))
	}
	for k, v := range overlay.Normalize() {
		out[k] = v
	}
	return out
}

func ptr[T any](v T) *T { return &v }

// ListState selects which instances List returns.
type ListState string

const (
	ListActive    ListState = "active"
	ListCompleted ListState = "completed"
	ListAll       ListState = "all"
)

func ParseListState(s string) (ListState, error) {
	switch st := ListState(s); st {
	case "":
		return ListActive, nil
	case ListActive, ListCompleted, ListAll:
		return st, nil
	default:
		return "", cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown list state %q", s), nil)
	}
}

// List returns the user's visible instances. since only applies to
// ListCompleted.
func (m *Manager) List(ctx context.Context, userID string, state ListState, since *time.Time) ([]*instance.TaskInstance, error) {
	switch state {
	case ListActive:
		return m.repo.ListActive(ctx, userID)
	case ListCompleted:
		return m.repo.ListCompleted(ctx, userID, since)
	case ListAll:
		return m.repo.ListAll(ctx, userID)
	default:
		return nil, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown list state %q", state), nil)
	}
}
