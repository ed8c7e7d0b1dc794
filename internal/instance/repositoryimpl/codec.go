package repositoryimpl

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kazz187/taskpulse/internal/instance"
	"github.com/kazz187/taskpulse/pkg/cerr"
)

// timeLayout is fixed width so that stored timestamps sort lexically in the
// same order as chronologically, in YAML and in SQL alike.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string {
	return instance.NormalizeTime(t).Format(timeLayout)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseTimePtr(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeAttributes(a instance.Attributes) (string, error) {
	if len(a) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("failed to encode attributes: %w", err)
	}
	return string(b), nil
}

func decodeAttributes(s string) (instance.Attributes, error) {
	if s == "" {
		return nil, nil
	}
	var a instance.Attributes
	if err := json.Unmarshal([]byte(s), &a); err != nil {
		return nil, fmt.Errorf("failed to decode attributes: %w", err)
	}
	return a.Normalize(), nil
}

// IDGenerator produces instance ids. The default is a ULID, which keeps ids
// roughly creation-ordered.
type IDGenerator func() string

func newULID() string {
	return ulid.Make().String()
}

type options struct {
	newID IDGenerator
}

type Option func(*options)

func WithIDGenerator(gen IDGenerator) Option {
	return func(o *options) {
		o.newID = gen
	}
}

func buildOptions(opts []Option) options {
	o := options{newID: newULID}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// prepareCreate normalizes a new row and fills the fields the store owns.
func prepareCreate(inst *instance.TaskInstance, newID IDGenerator) (*instance.TaskInstance, error) {
	if inst.UserID == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "user_id is required", nil)
	}
	c := inst.Clone()
	c.Normalize()
	if c.ID == "" {
		c.ID = newID()
	}
	if c.Status == "" {
		c.Status = instance.StatusPending
	}
	c.IsDeleted = false
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func byCreated(a, b *instance.TaskInstance) int {
	return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
}

func byCompleted(a, b *instance.TaskInstance) int {
	var ca, cb time.Time
	if a.CompletedAt != nil {
		ca = *a.CompletedAt
	}
	if b.CompletedAt != nil {
		cb = *b.CompletedAt
	}
	return cmp.Or(ca.Compare(cb), cmp.Compare(a.ID, b.ID))
}

func sortInstances(list []*instance.TaskInstance, cmpFn func(a, b *instance.TaskInstance) int) {
	slices.SortStableFunc(list, cmpFn)
}

func isActive(t *instance.TaskInstance) bool {
	return !t.IsDeleted && !t.IsCompleted && t.Status != instance.StatusCompleted && t.Status != instance.StatusCancelled
}

func isCompletedSince(t *instance.TaskInstance, since *time.Time) bool {
	if t.IsDeleted || !t.IsCompleted || t.CompletedAt == nil {
		return false
	}
	return since == nil || !t.CompletedAt.Before(instance.NormalizeTime(*since))
}
