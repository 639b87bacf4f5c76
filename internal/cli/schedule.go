package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/BartekS5/dailyetl/internal/api"
	"github.com/BartekS5/dailyetl/internal/config"
	"github.com/BartekS5/dailyetl/internal/etl"
	"github.com/BartekS5/dailyetl/internal/scheduler"
	"github.com/BartekS5/dailyetl/pkg/database"
	"github.com/BartekS5/dailyetl/pkg/logger"
	"github.com/BartekS5/dailyetl/pkg/metrics"
)

type ScheduleOptions struct {
	RunNow bool
}

func newScheduleCmd(opts *Options) *cobra.Command {
	sopts := &ScheduleOptions{}

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline on its cron schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runScheduler(ctx, opts.cfg, sopts)
		},
	}

	cmd.Flags().BoolVar(&sopts.RunNow, "run-now", false, "Trigger one run immediately on start")
	return cmd
}

func runScheduler(ctx context.Context, cfg *config.Config, sopts *ScheduleOptions) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	pipeline, err := etl.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	pipeline.Recorder = metrics.New(reg)

	locker, closeLocker, err := newLocker(ctx, cfg.Lock)
	if err != nil {
		return err
	}
	defer closeLocker()

	sched, err := scheduler.New(cfg.Schedule, pipeline, locker)
	if err != nil {
		return err
	}
	sched.Start(ctx)

	var server *api.Server
	if cfg.HTTP.Addr != "" {
		server = api.NewServer(cfg.HTTP.Addr, cfg.Schedule.Workflow, sched, reg)
		go func() {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorw("status server failed", "addr", cfg.HTTP.Addr, "error", err)
			}
		}()
		logger.Infow("status server started", "addr", cfg.HTTP.Addr)
	}

	if sopts.RunNow {
		sched.RunNow()
	}

	<-ctx.Done()
	logger.Infow("shutting down scheduler...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warnw("status server shutdown failed", "error", err)
		}
	}
	return sched.Stop(shutdownCtx)
}

func newLocker(ctx context.Context, cfg config.LockConfig) (scheduler.Locker, func(), error) {
	if cfg.RedisAddr == "" {
		return scheduler.NewMemoryLocker(), func() {}, nil
	}
	client, err := database.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	logger.Infow("using redis run lock", "addr", cfg.RedisAddr, "key", cfg.Key)
	return scheduler.NewRedisLocker(client, cfg.Key, cfg.TTL), func() { client.Close() }, nil
}
