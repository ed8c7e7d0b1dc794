package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"

	"github.com/kazz187/taskpulse/internal/analytics"
	"github.com/kazz187/taskpulse/internal/config"
	"github.com/kazz187/taskpulse/internal/instance/repositoryimpl"
	"github.com/kazz187/taskpulse/pkg/clog"
	"github.com/kazz187/taskpulse/pkg/panicerr"
)

var (
	app     = kingpin.New("taskpulse", "Operator tool for the task instance store")
	verbose = app.Flag("verbose", "Log debug output").Short('v').Bool()

	recomputeCmd  = app.Command("recompute", "Backfill net relief and relief factors of completed instances")
	recomputeUser = recomputeCmd.Flag("user", "User ID").Required().String()

	summaryCmd  = app.Command("summary", "Print the component and composite scores of a user")
	summaryUser = summaryCmd.Flag("user", "User ID").Required().String()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(clog.NewTextHandler(os.Stderr, clog.WithLevel(level)))))

	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading env: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run := panicerr.SafeContext(func(ctx context.Context) error {
		repo, closeRepo, err := repositoryimpl.New(ctx, &env.StorageEnv)
		if err != nil {
			return fmt.Errorf("failed to open instance store: %w", err)
		}
		defer closeRepo()

		agg := analytics.NewAggregator(repo, env.ScoringEnv)
		switch command {
		case recomputeCmd.FullCommand():
			return handleRecompute(ctx, os.Stdout, agg, *recomputeUser)
		case summaryCmd.FullCommand():
			return handleSummary(ctx, os.Stdout, agg, *summaryUser)
		default:
			return fmt.Errorf("unknown command %q", command)
		}
	})
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func handleRecompute(ctx context.Context, w io.Writer, agg *analytics.Aggregator, userID string) error {
	res, err := agg.Recompute(ctx, userID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "scanned %d completed instances: %s, %s\n",
		res.Scanned,
		color.GreenString("%d updated", res.Updated),
		color.YellowString("%d without relief inputs", res.Skipped),
	)
	return nil
}

func handleSummary(ctx context.Context, w io.Writer, agg *analytics.Aggregator, userID string) error {
	s, err := agg.Summary(ctx, userID)
	if err != nil {
		return err
	}
	bold := color.New(color.Bold)
	bold.Fprintf(w, "%s\n", userID)
	fmt.Fprintf(w, "  instances: %d (active %d, completed %d, cancelled %d)\n",
		s.InstanceCount, s.ActiveCount, s.CompletedCount, s.CancelledCount)
	for _, name := range slices.Sorted(maps.Keys(s.Components)) {
		score := s.Components[name]
		fmt.Fprintf(w, "  %-13s %s  weight %.2f\n", name, scoreColor(score).Sprintf("%6.1f", score), s.Composite.NormalizedWeights[name])
	}
	bold.Fprintf(w, "  %-13s %s\n", "composite", scoreColor(s.Composite.Score).Sprintf("%6.1f", s.Composite.Score))
	return nil
}

func scoreColor(score float64) *color.Color {
	switch {
	case score >= 70:
		return color.New(color.FgGreen)
	case score >= 40:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}
