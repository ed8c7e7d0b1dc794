package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/taskpulse/internal/instance"
)

const eps = 1e-9

func TestComputeRelief(t *testing.T) {
	tests := []struct {
		name      string
		predicted instance.Attributes
		actual    instance.Attributes
		want      Relief
		ok        bool
	}{
		{
			name:      "pleasant surprise",
			predicted: instance.Attributes{instance.AttrExpectedRelief: 40.0},
			actual:    instance.Attributes{instance.AttrActualRelief: 70.0},
			want:      Relief{Net: 30, Serendipity: 30},
			ok:        true,
		},
		{
			name:      "disappointment",
			predicted: instance.Attributes{instance.AttrExpectedRelief: 80.0},
			actual:    instance.Attributes{instance.AttrActualRelief: 50.0},
			want:      Relief{Net: -30, Disappointment: 30},
			ok:        true,
		},
		{
			name:      "as expected",
			predicted: instance.Attributes{instance.AttrExpectedRelief: 50.0},
			actual:    instance.Attributes{instance.AttrActualRelief: 50.0},
			want:      Relief{},
			ok:        true,
		},
		{
			name:      "missing actual",
			predicted: instance.Attributes{instance.AttrExpectedRelief: 50.0},
			actual:    nil,
		},
		{
			name:      "non numeric expected",
			predicted: instance.Attributes{instance.AttrExpectedRelief: "high"},
			actual:    instance.Attributes{instance.AttrActualRelief: 50.0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ComputeRelief(tt.predicted, tt.actual)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
			assert.False(t, got.Serendipity > 0 && got.Disappointment > 0)
		})
	}
}

func TestCompletionFactor(t *testing.T) {
	tests := map[float64]float64{
		150: 1.0,
		100: 1.0,
		95:  0.95,
		90:  0.9,
		70:  0.7,
		50:  0.5,
		25:  0.25,
		0:   0.0,
		-10: 0.0,
	}
	for pct, want := range tests {
		assert.InDelta(t, want, CompletionFactor(pct), eps, "pct=%v", pct)
	}
}

func TestSpeedFactor(t *testing.T) {
	tests := map[float64]float64{
		0.1:  1.0,
		0.5:  1.0,
		0.75: 0.75,
		1.0:  0.5,
		2.0:  0.25,
		4.0:  0.125,
	}
	for ratio, want := range tests {
		assert.InDelta(t, want, SpeedFactorRatio(ratio), eps, "ratio=%v", ratio)
	}

	got, ok := SpeedFactor(15, 30)
	require.True(t, ok)
	assert.InDelta(t, 1.0, got, eps)

	_, ok = SpeedFactor(0, 30)
	assert.False(t, ok, "no actual time")
	_, ok = SpeedFactor(30, 0)
	assert.False(t, ok, "no estimate")
}

func TestStartSpeedFactor(t *testing.T) {
	tests := map[float64]float64{
		-3:   1.0,
		0:    1.0,
		5:    1.0,
		17.5: 0.9,
		30:   0.8,
		75:   0.65,
		120:  0.5,
		360:  0.5 * math.Exp(-1),
	}
	for d, want := range tests {
		assert.InDelta(t, want, StartSpeedFactor(d), eps, "delay=%v", d)
	}
}

func TestDifficultyBonus(t *testing.T) {
	assert.InDelta(t, 0.0, DifficultyBonus(0, 0), eps)
	assert.InDelta(t, 1-math.Exp(-2), DifficultyBonus(100, 100), eps)
	assert.InDelta(t, 1-math.Exp(-1.4), DifficultyBonus(100, 0), eps)
	assert.InDelta(t, 0.0, DifficultyBonus(-500, 0), eps, "clamped at zero")
}

func TestExecutionScore(t *testing.T) {
	weights := map[string]float64{
		TermCompletion: 0.4,
		TermSpeed:      0.2,
		TermStartSpeed: 0.2,
		TermDifficulty: 0.2,
	}

	t.Run("absent terms are excluded", func(t *testing.T) {
		got, ok := ExecutionScore(Factors{Completion: ptr(1.0), StartSpeed: ptr(0.5)}, weights)
		require.True(t, ok)
		assert.InDelta(t, 0.5/0.6*100, got, 1e-6)
	})

	t.Run("all terms", func(t *testing.T) {
		f := Factors{Completion: ptr(1), Speed: ptr(1), StartSpeed: ptr(1), Difficulty: ptr(1)}
		got, ok := ExecutionScore(f, weights)
		require.True(t, ok)
		assert.InDelta(t, 100.0, got, eps)
	})

	t.Run("zero weight is excluded", func(t *testing.T) {
		got, ok := ExecutionScore(Factors{Completion: ptr(1), Speed: ptr(0)}, map[string]float64{
			TermCompletion: 1,
			TermSpeed:      0,
		})
		require.True(t, ok)
		assert.InDelta(t, 100.0, got, eps)
	})

	t.Run("nothing to score", func(t *testing.T) {
		_, ok := ExecutionScore(Factors{}, weights)
		assert.False(t, ok)
	})
}

func TestProductivity(t *testing.T) {
	assert.InDelta(t, 80.0, BaselineProductivity(80, "work"), eps)
	assert.InDelta(t, 60.0, BaselineProductivity(80, "self_care"), eps)
	assert.InDelta(t, -20.0, BaselineProductivity(80, "leisure"), eps)
	assert.InDelta(t, 80.0, BaselineProductivity(80, ""), eps)
	assert.InDelta(t, 100.0, BaselineProductivity(140, "work"), eps)

	assert.InDelta(t, 0.5, VolumeMultiplier(0), eps)
	assert.InDelta(t, 1.0, VolumeMultiplier(50), eps)
	assert.InDelta(t, 1.5, VolumeMultiplier(100), eps)
	assert.InDelta(t, 1.5, VolumeMultiplier(250), eps)
	assert.InDelta(t, 120.0, VolumetricProductivity(80, 100), eps)

	assert.InDelta(t, 50.0, WorkVolumeScore(180, 360), eps)
	assert.InDelta(t, 100.0, WorkVolumeScore(720, 360), eps)
	assert.InDelta(t, 0.0, WorkVolumeScore(180, 0), eps)
}

func TestWorkConsistencyScore(t *testing.T) {
	got, ok := WorkConsistencyScore([]float64{60, 60, 60})
	require.True(t, ok)
	assert.InDelta(t, 100.0, got, eps)

	got, ok = WorkConsistencyScore([]float64{0, 480})
	require.True(t, ok)
	assert.InDelta(t, 0.0, got, eps)

	got, ok = WorkConsistencyScore([]float64{100, 200})
	require.True(t, ok)
	assert.InDelta(t, 100*(1-2500/MaxDailyVariance), got, eps)

	_, ok = WorkConsistencyScore([]float64{100})
	assert.False(t, ok)
}

func TestNoteThoroughness(t *testing.T) {
	assert.InDelta(t, 1.0, NoteThoroughness(0, 0, 0), eps)
	assert.InDelta(t, 0.5, NoteThoroughness(0, 4, 0), eps)
	assert.InDelta(t, 0.75, NoteThoroughness(2, 4, 0), eps)
	assert.InDelta(t, 1+0.3*(1-math.Exp(-2)), NoteThoroughness(4, 4, 500), eps)
	assert.InDelta(t, NoteThoroughness(4, 4, 500), NoteThoroughness(4, 4, 5000), eps, "length bonus saturates")
	assert.LessOrEqual(t, NoteThoroughness(10, 4, 1e6), 1.3)
}

func TestGrit(t *testing.T) {
	assert.InDelta(t, 1.0, Persistence(1), eps)
	assert.InDelta(t, 1.0, Persistence(0), eps)

	p2 := Persistence(2)
	assert.GreaterOrEqual(t, p2, 1.0)
	assert.LessOrEqual(t, p2, 1.05)

	p100 := Persistence(100)
	assert.GreaterOrEqual(t, p100, 3.0)
	assert.LessOrEqual(t, p100, 5.1)
	assert.Less(t, Persistence(1000), 5.0)

	assert.InDelta(t, 1.5, TimeBonus(1, 60, 30), eps)
	assert.InDelta(t, 1.25, TimeBonus(1, 45, 30), eps)
	assert.InDelta(t, 1.5, TimeBonus(1, 600, 30), eps, "overrun capped")
	assert.InDelta(t, 1+0.5*math.Exp(-1), TimeBonus(11, 60, 30), eps)
	assert.InDelta(t, 1.0, TimeBonus(1, 20, 30), eps, "no overrun")
	assert.InDelta(t, 1.0, TimeBonus(1, 0, 0), eps, "no time data")

	assert.InDelta(t, 100*p2, Grit(2, 0, 0), eps)
	assert.InDelta(t, 150.0, Grit(1, 60, 30), eps)
}

func TestFromInstance(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	initialized := created.Add(time.Minute)
	started := initialized.Add(17*time.Minute + 30*time.Second)
	completed := started.Add(45 * time.Minute)

	inst := &instance.TaskInstance{
		ID:            "i1",
		CreatedAt:     created,
		InitializedAt: &initialized,
		StartedAt:     &started,
		CompletedAt:   &completed,
		Status:        instance.StatusCompleted,
		IsCompleted:   true,
		Predicted: instance.Attributes{
			instance.AttrExpectedRelief:      40.0,
			instance.AttrTimeEstimateMinutes: 30.0,
			instance.AttrExpectedAversion:    100.0,
			instance.AttrTaskType:            "work",
		},
		Actual: instance.Attributes{
			instance.AttrActualRelief: 70.0,
			instance.AttrNotes:        "  wrote it  ",
		},
	}

	m := FromInstance(inst)
	require.NotNil(t, m.Relief)
	assert.Equal(t, Relief{Net: 30, Serendipity: 30}, *m.Relief)
	assert.Equal(t, 100.0, m.CompletionPercent)
	assert.Equal(t, "work", m.TaskType)
	assert.Equal(t, "wrote it", m.Note)
	assert.InDelta(t, 45.0, m.ActualMinutes, eps, "derived from timestamps")

	require.NotNil(t, m.Factors.Completion)
	assert.InDelta(t, 1.0, *m.Factors.Completion, eps)
	require.NotNil(t, m.Factors.Speed)
	assert.InDelta(t, 0.5*(30.0/45.0), *m.Factors.Speed, eps)
	require.NotNil(t, m.Factors.StartSpeed)
	assert.InDelta(t, 0.9, *m.Factors.StartSpeed, eps)
	require.NotNil(t, m.Factors.Difficulty)
	assert.InDelta(t, 1-math.Exp(-1.4), *m.Factors.Difficulty, eps)
}

func TestFromInstancePending(t *testing.T) {
	m := FromInstance(&instance.TaskInstance{ID: "i2", Status: instance.StatusPending})
	assert.Nil(t, m.Relief)
	assert.Nil(t, m.Factors.Completion)
	assert.Nil(t, m.Factors.Speed)
	assert.Nil(t, m.Factors.StartSpeed)
	assert.Nil(t, m.Factors.Difficulty)
	assert.Zero(t, m.CompletionPercent)
}
