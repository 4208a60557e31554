package main

import (
	"context"

	"github.com/mohammad-safakhou/brandlens/internal/server"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

type redisPinger struct{ rdb *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.rdb.Ping(ctx).Err() }

func serveCMD(cfgPath *string) *cobra.Command {
	var addr string
	var migrateFirst bool
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the refresh scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx, *cfgPath)
			if err != nil {
				return err
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
				defer cancel()
				a.close(sctx)
			}()

			if migrateFirst && a.store != nil {
				url, err := a.cfg.Storage.MigrationURL()
				if err != nil {
					return err
				}
				if err := server.Migrate("file://migrations", url, "up", 0); err != nil {
					return err
				}
			}
			if err := a.buildOrchestrator(ctx); err != nil {
				return err
			}

			deps := server.Deps{
				Config:     a.cfg.Server,
				Aggregator: a.orch,
				Metrics:    a.tel.Handler(),
				Logger:     a.log,
			}
			if a.store != nil {
				deps.Workspaces = a.store
				deps.Health = append(deps.Health, a.store)
			}
			if a.rdb != nil {
				deps.Health = append(deps.Health, redisPinger{a.rdb})
			}

			if a.cfg.Scheduler.Enabled {
				if err := a.requireStore(); err != nil {
					return err
				}
				var locker server.Locker
				if a.rdb != nil {
					locker = a.rdb
				}
				sched := server.NewScheduler(a.cfg.Scheduler, a.store, a.orch, locker, a.log)
				if err := sched.Start(); err != nil {
					return err
				}
				defer func() {
					sctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
					defer cancel()
					if err := sched.Stop(sctx); err != nil {
						a.log.Warn().Err(err).Msg("late facts from the running tick will be dropped")
					}
				}()
			}

			if addr == "" {
				addr = a.cfg.Server.Address
			}
			return server.Run(ctx, server.New(deps), addr, a.cfg.Server.ShutdownTimeout, a.log)
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.address)")
	serve.Flags().BoolVar(&migrateFirst, "migrate", false, "apply migrations from ./migrations before serving")
	return serve
}
