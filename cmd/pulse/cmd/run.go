package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/pulse"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	c := &cobra.Command{
		Use:   "run",
		Short: "Run the worker until interrupted",
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, cfg)
		},
	}

	f := c.Flags()
	f.String("ops-address", "", "ops HTTP listen address")
	f.Duration("cycle-interval", 0, "sleep between work cycles")
	f.Duration("heartbeat-interval", 0, "heartbeat period")
	f.String("dependency-url", "", "dependency endpoint called every cycle")
	f.String("environment", "", "environment label")
	f.String("log-level", "", "log level: debug, info, warn, error")

	for key, flag := range map[string]string{
		"ops.address":                "ops-address",
		"service.cycle_interval":     "cycle-interval",
		"service.heartbeat_interval": "heartbeat-interval",
		"work.dependency_url":        "dependency-url",
		"service.environment":        "environment",
		"log.level":                  "log-level",
	} {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}
	return c
}

// run starts the supervisor and the ops server and blocks until ctx is done
// or either of them fails. Telemetry is released after both have stopped.
func run(ctx context.Context, cfg Config) error {
	st, err := buildStack(ctx, cfg, nil)
	if err != nil {
		return err
	}
	log := st.logger

	sup, err := pulse.New(st.unit, st.sink,
		pulse.WithCustomLogger(log),
		pulse.WithServiceName(cfg.Service.Name),
		pulse.WithMetricPrefix(cfg.Service.MetricPrefix),
		pulse.WithEnvironment(cfg.Service.Environment),
		pulse.WithHeartbeatServices(cfg.Service.HeartbeatServices...),
		pulse.WithCycleInterval(cfg.Service.CycleInterval),
		pulse.WithCycleTimeout(cfg.Service.CycleTimeout),
		pulse.WithHeartbeatInterval(cfg.Service.HeartbeatInterval),
		pulse.WithShutdownTimeout(cfg.Service.ShutdownTimeout),
		pulse.WithFailureEvent(cfg.Service.FailureEvent),
	)
	if err != nil {
		return errors.Join(err, st.close(context.Background()))
	}
	st.checks["heartbeat"] = sup.Healthcheck()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serveOps(gctx, log, cfg.Ops.Address, newOpsRouter(log, st.registry, st.checks), cfg.Service.ShutdownTimeout)
	})
	g.Go(func() error {
		if err := sup.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()

		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
		defer cancel()
		return sup.Stop(stopCtx)
	})

	runErr := g.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
	defer cancel()
	if err := st.close(closeCtx); err != nil {
		log.Error("release telemetry", slog.Any("error", err))
		runErr = errors.Join(runErr, err)
	}

	if runErr != nil {
		log.Error("pulse stopped with errors", slog.Any("error", runErr))
		return runErr
	}
	log.Info("pulse stopped")
	return nil
}
