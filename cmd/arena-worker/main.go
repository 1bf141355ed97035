package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"arena/internal/app"
	"arena/internal/arena"
	"arena/internal/config"

	"github.com/go-co-op/gocron/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	rt, err := app.Open(ctx, app.Options{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DBMaxConns,
		RedisURL:    cfg.RedisURL,
		Engine:      cfg.Engine,
	}, logger)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer rt.Close()

	tick := func() {
		tickCtx, cancel := context.WithTimeout(ctx, cfg.TickEvery)
		defer cancel()
		res, err := rt.Service.TickDay(tickCtx, rt.Service.Today(), 0, cfg.ResolveImmediately)
		if err != nil {
			logger.Error("arena tick failed", "err", err)
			return
		}
		if res.Failed > 0 {
			logger.Warn("arena tick had failures", "day", res.Day, "failed", res.Failed)
		}
	}

	runOnce := strings.EqualFold(strings.TrimSpace(os.Getenv("ARENA_WORKER_RUN_ONCE")), "true")
	if runOnce {
		tick()
		logger.Info("worker run-once completed")
		return
	}

	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		logger.Error("scheduler init failed", "err", err)
		os.Exit(1)
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(cfg.TickEvery),
		gocron.NewTask(tick),
		gocron.WithName("arena-tick"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	); err != nil {
		logger.Error("schedule tick failed", "err", err)
		os.Exit(1)
	}
	sched.Start()

	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           rt.Metrics.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
		}
	}()

	logger.Info("worker started",
		"tick_every", cfg.TickEvery.String(),
		"matches_per_day", cfg.Engine.MatchesPerDay,
		"live_window", cfg.Engine.LiveWindow.String(),
		"max_matches_per_day", arena.MaxMatchesPerDay,
	)
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
	if err := sched.Shutdown(); err != nil {
		logger.Error("scheduler shutdown", "err", err)
	}
	logger.Info("worker shutdown")
}
