package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pkarpov/duskwatch/internal/api"
	"github.com/pkarpov/duskwatch/internal/clock"
	"github.com/pkarpov/duskwatch/internal/config"
	"github.com/pkarpov/duskwatch/internal/db"
	"github.com/pkarpov/duskwatch/internal/night"
	"github.com/pkarpov/duskwatch/internal/objective"
	"github.com/pkarpov/duskwatch/internal/plan"
	"github.com/pkarpov/duskwatch/internal/unit"
)

const ConfigPath = "config/duskwatch.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := ConfigPath
	if p := os.Getenv("DUSKWATCH_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))

	slog.Info("duskwatch starting", "log_level", cfg.LogLevel)

	spawnPlan, err := plan.Load(cfg.Night.PlanPath)
	if err != nil {
		return fmt.Errorf("loading spawn plan: %w", err)
	}

	// Unit roster
	types := make(map[string]unit.TypeDef, len(cfg.Units))
	for name, def := range cfg.Units {
		types[name] = unit.TypeDef{Health: def.Health, Speed: def.Speed}
	}
	factory := unit.NewFactory(types)

	// A plan referencing an unconfigured type would fail every spawn of
	// that type at runtime. Surface it now.
	for _, t := range spawnPlan.UnitTypes() {
		if !factory.HasType(t) {
			slog.Warn("spawn plan references unconfigured unit type", "type", t)
		}
	}

	// Optional persistence
	var records night.RecordStore
	var recordRepo *db.NightRecordRepository
	if cfg.Database.Enabled {
		database, err := db.New(ctx, cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer database.Close()

		if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("database connected, migrations applied")

		recordRepo = db.NewNightRecordRepository(database.Pool())
		records = recordRepo
	}

	gameClock := clock.New(cfg.Clock.StartDay, cfg.Clock.StartTimeOfDay, cfg.Clock.DayLengthSeconds)
	gameClock.SetSpeed(cfg.Clock.SpeedMultiplier)

	objectives := objective.NewTracker()

	scheduler := night.NewScheduler(night.SchedulerConfig{
		ObjectiveID:        cfg.Night.ObjectiveID,
		PostClearTimeOfDay: cfg.Night.PostClearTimeOfDay,
	}, &factoryAdapter{factory}, gameClock, objectives, records)

	monitor, err := night.NewMonitor(night.MonitorConfig{
		Threshold:   cfg.Night.StartThreshold,
		ObjectiveID: cfg.Night.ObjectiveID,
	}, gameClock, scheduler, objectives, spawnPlan)
	if err != nil {
		return fmt.Errorf("creating night monitor: %w", err)
	}
	gameClock.SubscribeDayChanged(monitor.OnDayChanged)

	loop := night.NewLoop(gameClock, monitor, scheduler,
		time.Duration(cfg.Night.TickIntervalMS)*time.Millisecond,
		time.Duration(cfg.Night.PollIntervalMS)*time.Millisecond)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := loop.Run(gctx); err != nil {
			return fmt.Errorf("game loop: %w", err)
		}
		return nil
	})

	if cfg.API.Enabled {
		routerCfg := api.RouterConfig{
			Clock:     gameClock,
			Scheduler: scheduler,
			Monitor:   monitor,
			Plan:      spawnPlan,
		}
		if recordRepo != nil {
			routerCfg.Records = recordRepo
		}
		server := api.NewServer(cfg.API.ListenAddr, api.NewRouter(routerCfg))
		g.Go(func() error {
			if err := server.Run(gctx); err != nil {
				return fmt.Errorf("debug overlay: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
