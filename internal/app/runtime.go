// Package app assembles the engine for the binaries: store, notifier sinks,
// metrics and the arena service.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"arena/internal/arena"
	"arena/internal/config"
	"arena/internal/db"
	"arena/internal/metrics"
	"arena/internal/notify"
)

type Options struct {
	DatabaseURL string
	MaxConns    int32
	RedisURL    string
	Engine      config.EngineConfig
	// LiveFeed starts a WebSocket hub and adds it as a notification sink.
	LiveFeed bool
}

type Runtime struct {
	Store   arena.Store
	Service *arena.Service
	Metrics *metrics.Metrics
	Hub     *notify.Hub

	closers []func()
}

// Open builds the runtime. Without a database URL it falls back to the
// in-memory store, which does not survive a restart.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	settings, err := opts.Engine.Settings()
	if err != nil {
		return nil, err
	}
	rt := &Runtime{Metrics: metrics.New()}

	if opts.DatabaseURL != "" {
		pool, err := db.Connect(ctx, opts.DatabaseURL, opts.MaxConns)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, pool.Close)
		if err := db.Migrate(ctx, pool, logger); err != nil {
			rt.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		store := db.NewStore(pool, logger)
		if opts.Engine.SeedDemo {
			if err := store.SeedActors(ctx, arena.DemoRoster(), opts.Engine.DemoBalance); err != nil {
				rt.Close()
				return nil, fmt.Errorf("seed demo roster: %w", err)
			}
		}
		rt.Store = store
	} else {
		logger.Warn("DATABASE_URL not set, using the in-memory store")
		mem := arena.NewMemoryStore()
		if opts.Engine.SeedDemo {
			arena.SeedDemo(mem, opts.Engine.DemoBalance)
		}
		rt.Store = mem
	}

	var (
		sinks notify.Fanout
		crowd arena.CrowdGauge
	)
	if opts.LiveFeed {
		hubCtx, cancel := context.WithCancel(context.Background())
		rt.Hub = notify.NewHub(logger)
		rt.Hub.OnClients = rt.Metrics.ClientsChanged
		go rt.Hub.Run(hubCtx)
		rt.closers = append(rt.closers, cancel)
		sinks = append(sinks, rt.Hub)
	}
	if opts.RedisURL != "" {
		rdb, err := notify.Connect(ctx, opts.RedisURL)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = rdb.Close() })
		sinks = append(sinks, notify.NewRedisPublisher(rdb))
		crowd = notify.NewRedisCrowdGauge(rdb)
	}

	svcOpts := []arena.Option{arena.WithRecorder(rt.Metrics)}
	if crowd != nil {
		svcOpts = append(svcOpts, arena.WithCrowdGauge(crowd))
	}
	if len(sinks) > 0 {
		svcOpts = append(svcOpts, arena.WithNotifier(sinks))
	}
	rt.Service = arena.NewService(rt.Store, logger, settings, svcOpts...)
	return rt, nil
}

// Close releases resources in reverse order of acquisition.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
