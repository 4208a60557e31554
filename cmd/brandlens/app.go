package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mohammad-safakhou/brandlens/config"
	"github.com/mohammad-safakhou/brandlens/internal/insight/core"
	"github.com/mohammad-safakhou/brandlens/internal/insight/providers"
	"github.com/mohammad-safakhou/brandlens/internal/logging"
	"github.com/mohammad-safakhou/brandlens/internal/queue/streams"
	"github.com/mohammad-safakhou/brandlens/internal/runtime"
	"github.com/mohammad-safakhou/brandlens/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// app holds the process-wide dependencies shared by the commands.
type app struct {
	cfg   *config.Config
	log   zerolog.Logger
	tel   *runtime.Telemetry
	store *store.Store
	rdb   *redis.Client
	orch  *core.Orchestrator
}

func loadApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	log := logging.New(logging.Config{
		Level:  cfg.General.LogLevel,
		Format: cfg.General.LogFormat,
		Output: os.Stderr,
	})
	a := &app{cfg: cfg, log: log}

	if cfg.Storage.Driver != config.DriverNone {
		driver, dsn, err := cfg.Storage.DSN()
		if err != nil {
			return nil, err
		}
		st, err := store.NewWithDSN(ctx, driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("store (%s): %w", driver, err)
		}
		a.store = st
	}
	if cfg.Storage.Redis.Enabled() {
		r := cfg.Storage.Redis
		a.rdb = redis.NewClient(&redis.Options{
			Addr:        r.Addr(),
			Password:    r.Password,
			DB:          r.DB,
			DialTimeout: r.Timeout,
		})
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("redis connection failed (%s): %w", r.Addr(), err)
		}
	}
	return a, nil
}

// requireStore fails commands that only make sense with persistence.
func (a *app) requireStore() error {
	if a.store == nil {
		return errors.New("storage.driver is none; configure postgres or sqlite")
	}
	return nil
}

// buildOrchestrator sets up telemetry and the provider fan-out.
func (a *app) buildOrchestrator(ctx context.Context) error {
	tel, err := runtime.SetupTelemetry(ctx, a.cfg.Telemetry, runtime.TelemetryOptions{ServiceVersion: version, Logger: a.log})
	if err != nil {
		return err
	}
	a.tel = tel

	set := providers.NewSet(a.cfg.Providers, a.log, providers.Options{})
	reg, err := set.Registry()
	if err != nil {
		return err
	}

	opts := core.Options{
		Registry:       reg,
		Resolver:       set.Resolver(a.log),
		Logger:         a.log,
		Tracer:         tel.Tracer,
		Meter:          tel.Meter,
		PersistTimeout: a.cfg.Storage.PersistTimeout,
	}
	var sinks []core.NamedSink
	if a.store != nil {
		opts.Workspaces = a.store
		sinks = append(sinks, core.NamedSink{Name: "sql", Sink: core.Guard("sql", a.store, a.log)})
	}
	if a.rdb != nil && a.store != nil {
		mirror := streams.NewFactMirror(streams.NewPublisher(a.rdb), a.cfg.Storage.Stream.Name, a.cfg.Storage.Stream.MaxLen)
		sinks = append(sinks, core.NamedSink{Name: "stream", Sink: core.Guard("stream", mirror, a.log)})
	}
	if len(sinks) > 0 {
		opts.Sink = core.NewMultiSink(a.log, sinks...)
	}

	orch, err := core.New(opts)
	if err != nil {
		return err
	}
	a.orch = orch
	a.log.Info().
		Int("providers", reg.Len()).
		Bool("classifier", set.Classifier != nil).
		Int("sinks", len(sinks)).
		Msg("orchestrator ready")
	return nil
}

// close stops fact writes, drains pending ones and releases connections.
func (a *app) close(ctx context.Context) {
	if a.orch != nil {
		if err := a.orch.Close(ctx); err != nil {
			a.log.Warn().Err(err).Msg("pending fact writes abandoned")
		}
	}
	if a.tel != nil {
		if err := a.tel.Shutdown(ctx); err != nil {
			a.log.Warn().Err(err).Msg("telemetry shutdown")
		}
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}
