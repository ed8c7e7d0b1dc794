package analytics

import (
	"cmp"
	"context"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/kazz187/taskpulse/internal/config"
	"github.com/kazz187/taskpulse/internal/instance"
	"github.com/kazz187/taskpulse/internal/metrics"
)

// Composite component names, also used as keys of the composite weights.
const (
	ComponentExecution    = "execution"
	ComponentGrit         = "grit"
	ComponentProductivity = "productivity"
	ComponentConsistency  = "consistency"
	ComponentRelief       = "relief"
	ComponentThoroughness = "thoroughness"
)

// gritScale is the average grit at which the grit component reaches ~63.
const gritScale = 250.0

const dayLayout = "2006-01-02"

// Aggregator computes per-user scores from one bulk load. Persisted relief
// fields are treated as a cache: values are recomputed from the snapshots
// whenever the inputs are there.
type Aggregator struct {
	loader  *Loader
	repo    instance.Repository
	scoring config.ScoringEnv
	now     func() time.Time
	logger  *slog.Logger
}

type Option func(*Aggregator)

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = l
	}
}

func NewAggregator(repo instance.Repository, scoring config.ScoringEnv, opts ...Option) *Aggregator {
	a := &Aggregator{
		loader:  NewLoader(repo),
		repo:    repo,
		scoring: scoring,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aggregator) Loader() *Loader {
	return a.loader
}

type InstanceScore struct {
	InstanceID   string   `json:"instance_id"`
	TaskID       string   `json:"task_id"`
	CompletedAt  string   `json:"completed_at"`
	Repetition   int      `json:"repetition"`
	Execution    *float64 `json:"execution,omitempty"`
	Grit         float64  `json:"grit"`
	Productivity float64  `json:"productivity"`
	NetRelief    *float64 `json:"net_relief,omitempty"`
}

type Summary struct {
	UserID           string             `json:"user_id"`
	InstanceCount    int                `json:"instance_count"`
	ActiveCount      int                `json:"active_count"`
	CompletedCount   int                `json:"completed_count"`
	CancelledCount   int                `json:"cancelled_count"`
	DailyWorkMinutes map[string]float64 `json:"daily_work_minutes"`
	VolumeScore      float64            `json:"volume_score"`
	Thoroughness     float64            `json:"thoroughness"`
	Components       map[string]float64 `json:"components"`
	Composite        CompositeScore     `json:"composite"`
	Instances        []InstanceScore    `json:"instances"`
}

// Summary scores every completed instance of the user and combines the
// results into the composite score.
func (a *Aggregator) Summary(ctx context.Context, userID string) (*Summary, error) {
	all, err := a.loader.LoadInstances(ctx, userID, false)
	if err != nil {
		return nil, err
	}

	s := &Summary{
		UserID:        userID,
		InstanceCount: len(all),
		Components:    map[string]float64{},
		Instances:     make([]InstanceScore, 0),
	}
	var completed []*instance.TaskInstance
	for _, t := range all {
		switch t.Status {
		case instance.StatusCompleted:
			completed = append(completed, t)
		case instance.StatusCancelled:
			s.CancelledCount++
		case instance.StatusPending, instance.StatusInitialized, instance.StatusStarted:
			s.ActiveCount++
		}
	}
	s.CompletedCount = len(completed)
	slices.SortStableFunc(completed, func(x, y *instance.TaskInstance) int {
		return cmp.Or(x.CompletedAt.Compare(*y.CompletedAt), cmp.Compare(x.ID, y.ID))
	})

	window := a.windowDays()
	daily := make(map[string]float64, len(window))
	for _, day := range window {
		daily[day] = 0
	}

	type scored struct {
		m     metrics.InstanceMetrics
		score InstanceScore
	}
	rows := make([]scored, 0, len(completed))
	repetitions := map[string]int{}
	for _, t := range completed {
		repetitions[t.TaskID]++
		m := metrics.FromInstance(t)
		score := InstanceScore{
			InstanceID:  t.ID,
			TaskID:      t.TaskID,
			CompletedAt: t.CompletedAt.Format(time.RFC3339),
			Repetition:  repetitions[t.TaskID],
			Grit:        metrics.Grit(repetitions[t.TaskID], m.ActualMinutes, m.EstimateMinutes),
		}
		if e, ok := metrics.ExecutionScore(m.Factors, a.scoring.ExecutionWeights); ok {
			score.Execution = &e
		}
		if m.Relief != nil {
			score.NetRelief = &m.Relief.Net
		} else if t.NetRelief != nil {
			score.NetRelief = t.NetRelief
		}
		if isWork(m.TaskType) {
			day := t.CompletedAt.UTC().Format(dayLayout)
			if _, ok := daily[day]; ok {
				daily[day] += m.ActualMinutes
			}
		}
		rows = append(rows, scored{m: m, score: score})
	}
	s.DailyWorkMinutes = daily

	totals := make([]float64, 0, len(window))
	for _, day := range window {
		totals = append(totals, daily[day])
	}
	s.VolumeScore = metrics.WorkVolumeScore(mean(totals), a.scoring.DailyWorkTargetMinutes)

	var (
		executions, grits, productivities, reliefs []float64
		withNotes                                  int
		noteLength                                 float64
	)
	for i := range rows {
		r := &rows[i]
		baseline := metrics.BaselineProductivity(r.m.CompletionPercent, r.m.TaskType)
		r.score.Productivity = metrics.VolumetricProductivity(baseline, s.VolumeScore)
		if r.score.Execution != nil {
			executions = append(executions, *r.score.Execution)
		}
		if r.score.NetRelief != nil {
			reliefs = append(reliefs, *r.score.NetRelief)
		}
		grits = append(grits, r.score.Grit)
		productivities = append(productivities, r.score.Productivity)
		if r.m.Note != "" {
			withNotes++
			noteLength += float64(len([]rune(r.m.Note)))
		}
		s.Instances = append(s.Instances, r.score)
	}
	if withNotes > 0 {
		noteLength /= float64(withNotes)
	}
	s.Thoroughness = metrics.NoteThoroughness(withNotes, len(rows), noteLength)

	if len(executions) > 0 {
		s.Components[ComponentExecution] = mean(executions)
	}
	if len(grits) > 0 {
		s.Components[ComponentGrit] = 100 * (1 - math.Exp(-mean(grits)/gritScale))
		s.Components[ComponentProductivity] = clamp(mean(productivities), 0, 100)
		s.Components[ComponentThoroughness] = clamp((s.Thoroughness-0.5)/0.8*100, 0, 100)
	}
	if len(reliefs) > 0 {
		s.Components[ComponentRelief] = clamp(50+mean(reliefs)/2, 0, 100)
	}
	if c, ok := metrics.WorkConsistencyScore(totals); ok && len(rows) > 0 {
		s.Components[ComponentConsistency] = c
	}
	s.Composite = CalculateCompositeScore(s.Components, a.scoring.CompositeWeights)
	return s, nil
}

type RecomputeResult struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// Recompute refreshes the persisted relief fields of completed instances
// whose cached values are missing or disagree with the snapshots. Instances
// without both relief inputs are skipped.
func (a *Aggregator) Recompute(ctx context.Context, userID string) (*RecomputeResult, error) {
	completed, err := a.loader.LoadInstances(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	res := &RecomputeResult{Scanned: len(completed)}
	for _, t := range completed {
		r, ok := metrics.ComputeRelief(t.Predicted, t.Actual)
		if !ok {
			res.Skipped++
			continue
		}
		if sameValue(t.NetRelief, r.Net) && sameValue(t.SerendipityFactor, r.Serendipity) && sameValue(t.DisappointmentFactor, r.Disappointment) {
			continue
		}
		if _, err := a.repo.Update(ctx, t.ID, userID, &instance.Patch{
			NetRelief:            &r.Net,
			SerendipityFactor:    &r.Serendipity,
			DisappointmentFactor: &r.Disappointment,
		}); err != nil {
			return nil, err
		}
		res.Updated++
		a.logger.InfoContext(ctx, "relief recomputed", "instance_id", t.ID, "net_relief", r.Net)
	}
	return res, nil
}

// windowDays lists the UTC dates of the consistency window, oldest first,
// ending today.
func (a *Aggregator) windowDays() []string {
	n := a.scoring.ConsistencyWindowDays
	if n <= 0 {
		return nil
	}
	today := a.now().UTC()
	days := make([]string, 0, n)
	for i := n - 1; i >= 0; i-- {
		days = append(days, today.AddDate(0, 0, -i).Format(dayLayout))
	}
	return days
}

// isWork counts unknown task types as work, matching their 1.0 multiplier.
func isWork(taskType string) bool {
	return metrics.TaskTypeMultiplier(taskType) == 1.0
}

func sameValue(p *float64, v float64) bool {
	return p != nil && math.Abs(*p-v) < 1e-9
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
