package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	server "github.com/kazz187/taskpulse/internal"
	"github.com/kazz187/taskpulse/internal/analytics"
	"github.com/kazz187/taskpulse/internal/config"
	"github.com/kazz187/taskpulse/internal/instance/repositoryimpl"
	"github.com/kazz187/taskpulse/internal/lifecycle"
	"github.com/kazz187/taskpulse/pkg/clog"
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// Setup instance store
	repo, closeRepo, err := repositoryimpl.New(ctx, &env.StorageEnv)
	if err != nil {
		slog.Error("failed to open instance store", "backend", env.Backend, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeRepo(); err != nil {
			slog.Error("failed to close instance store", "error", err)
		}
	}()

	// Setup servers
	manager := lifecycle.NewManager(repo)
	aggregator := analytics.NewAggregator(repo, env.ScoringEnv)
	srv := server.NewServer(env, lifecycle.NewServer(manager), analytics.NewServer(aggregator))

	go func() {
		if err := srv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
