package instance

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/taskpulse/pkg/cerr"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func pending() *TaskInstance {
	return &TaskInstance{ID: "i1", TaskID: "t1", UserID: "u1", CreatedAt: t0, Status: StatusPending}
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusInitialized, true},
		{StatusPending, StatusStarted, true},
		{StatusPending, StatusCompleted, true},
		{StatusInitialized, StatusStarted, true},
		{StatusInitialized, StatusInitialized, false},
		{StatusStarted, StatusInitialized, false},
		{StatusStarted, StatusCancelled, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusStarted, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}

	_, err := ParseStatus("done")
	assert.Error(t, err)
	st, err := ParseStatus("started")
	require.NoError(t, err)
	assert.Equal(t, StatusStarted, st)
}

func TestApplyInitializeAndStart(t *testing.T) {
	inst := pending()
	err := inst.Apply(&Patch{
		Status:        ptr(StatusInitialized),
		InitializedAt: ptr(t0.Add(time.Minute)),
		Predicted:     Attributes{AttrExpectedRelief: 60.0},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusInitialized, inst.Status)

	err = inst.Apply(&Patch{Status: ptr(StatusStarted), StartedAt: ptr(t0.Add(2 * time.Minute))})
	require.NoError(t, err)
	assert.Equal(t, StatusStarted, inst.Status)
	assert.Equal(t, 60.0, inst.Predicted[AttrExpectedRelief])
}

func TestApplyConflicts(t *testing.T) {
	t.Run("timestamp before created_at", func(t *testing.T) {
		inst := pending()
		err := inst.Apply(&Patch{Status: ptr(StatusStarted), StartedAt: ptr(t0.Add(-time.Second))})
		assert.True(t, cerr.IsCode(err, cerr.Aborted), err)
		assert.Equal(t, StatusPending, inst.Status, "instance must be untouched")
	})

	t.Run("timestamp set twice", func(t *testing.T) {
		inst := pending()
		require.NoError(t, inst.Apply(&Patch{Status: ptr(StatusStarted), StartedAt: ptr(t0.Add(time.Minute))}))
		err := inst.Apply(&Patch{StartedAt: ptr(t0.Add(2 * time.Minute))})
		assert.True(t, cerr.IsCode(err, cerr.Aborted), err)
		// Re-setting the same value is harmless.
		assert.NoError(t, inst.Apply(&Patch{StartedAt: ptr(t0.Add(time.Minute))}))
	})

	t.Run("completed before started", func(t *testing.T) {
		inst := pending()
		require.NoError(t, inst.Apply(&Patch{Status: ptr(StatusStarted), StartedAt: ptr(t0.Add(time.Hour))}))
		err := inst.Apply(&Patch{Status: ptr(StatusCompleted), IsCompleted: ptr(true), CompletedAt: ptr(t0.Add(time.Minute))})
		assert.True(t, cerr.IsCode(err, cerr.Aborted), err)
	})

	t.Run("frozen predicted", func(t *testing.T) {
		inst := pending()
		require.NoError(t, inst.Apply(&Patch{Status: ptr(StatusInitialized), InitializedAt: ptr(t0), Predicted: Attributes{"a": 1.0}}))
		err := inst.Apply(&Patch{Predicted: Attributes{"a": 2.0}})
		assert.True(t, cerr.IsCode(err, cerr.Aborted), err)
	})

	t.Run("frozen actual but notes append", func(t *testing.T) {
		inst := pending()
		require.NoError(t, inst.Apply(&Patch{
			Status: ptr(StatusCompleted), IsCompleted: ptr(true), CompletedAt: ptr(t0),
			Actual: Attributes{AttrActualRelief: 70.0, AttrNotes: "first"},
		}))
		err := inst.Apply(&Patch{Actual: Attributes{AttrActualRelief: 10.0}})
		assert.True(t, cerr.IsCode(err, cerr.Aborted), err)

		require.NoError(t, inst.Apply(&Patch{AppendNote: "second"}))
		assert.Equal(t, "first\nsecond", inst.Actual.String(AttrNotes))
		assert.Equal(t, 70.0, inst.Actual[AttrActualRelief])
	})
}

func TestApplyInconsistentStatus(t *testing.T) {
	inst := pending()
	err := inst.Apply(&Patch{Status: ptr(StatusCompleted), CompletedAt: ptr(t0)})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument), "is_completed missing: %v", err)

	err = inst.Apply(&Patch{Status: ptr(StatusStarted)})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument), "started_at missing: %v", err)

	err = inst.Apply(&Patch{SerendipityFactor: ptr(1.0), DisappointmentFactor: ptr(2.0)})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument), err)
}

func TestAttributesNormalize(t *testing.T) {
	in := Attributes{
		"i":      60,
		"u":      uint8(3),
		"f":      1.5,
		"s":      "x",
		"nested": map[string]any{"n": int64(2)},
		"list":   []any{1, "a"},
	}
	got := in.Normalize()
	assert.Equal(t, Attributes{
		"i":      60.0,
		"u":      3.0,
		"f":      1.5,
		"s":      "x",
		"nested": map[string]any{"n": 2.0},
		"list":   []any{1.0, "a"},
	}, got)
	assert.Nil(t, Attributes{}.Normalize())

	v, ok := got.Float("i")
	assert.True(t, ok)
	assert.Equal(t, 60.0, v)
	_, ok = got.Float("s")
	assert.False(t, ok)
	assert.Nil(t, got.FloatPtr("missing"))
}

func TestAttributesValidate(t *testing.T) {
	valid := Attributes{
		"n":      60,
		"s":      "x",
		"b":      true,
		"null":   nil,
		"nested": map[string]any{"list": []any{1.5, "a", map[any]any{"k": 2}}},
	}
	assert.NoError(t, valid.Validate())
	assert.NoError(t, Attributes(nil).Validate())

	tests := map[string]Attributes{
		"inf":         {"n": math.Inf(1)},
		"nan":         {"n": math.NaN()},
		"time":        {"when": t0},
		"nested inf":  {"m": map[string]any{"x": []any{math.Inf(-1)}}},
		"bytes":       {"raw": []byte("x")},
		"int key map": {"m": map[any]any{1: "x"}},
	}
	for name, attrs := range tests {
		t.Run(name, func(t *testing.T) {
			err := attrs.Validate()
			assert.True(t, cerr.IsCode(err, cerr.InvalidArgument), err)
		})
	}
}

func TestValidateRecord(t *testing.T) {
	inst := pending()
	inst.Status = StatusCompleted
	inst.IsCompleted = true
	inst.CompletedAt = ptr(t0.Add(-time.Minute))
	err := inst.Validate()
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument), "completed before created: %v", err)

	inst = pending()
	inst.Predicted = Attributes{"n": math.NaN()}
	err = inst.Validate()
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument), err)

	err = pending().Apply(&Patch{Actual: Attributes{"when": t0}})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument), err)
	require.NoError(t, pending().Validate())
}

func TestNormalizeTime(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	in := time.Date(2026, 3, 1, 18, 0, 0, 123456789, jst)
	got := NormalizeTime(in)
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, 123456000, got.Nanosecond())
	assert.True(t, got.Equal(time.Date(2026, 3, 1, 9, 0, 0, 123456000, time.UTC)))
}
