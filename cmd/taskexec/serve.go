package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/fluxorio/taskexec/pkg/admin"
	"github.com/fluxorio/taskexec/pkg/config"
	"github.com/fluxorio/taskexec/pkg/core"
	"github.com/fluxorio/taskexec/pkg/core/concurrency"
	"github.com/fluxorio/taskexec/pkg/intake"
	metrics "github.com/fluxorio/taskexec/pkg/observability/prometheus"
	"github.com/fluxorio/taskexec/pkg/observability/tracing"
	"github.com/fluxorio/taskexec/pkg/workload"
)

func newServeCommand(stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the worker pool until interrupted.",
		Long: `Starts the worker pool together with the admin endpoint, the optional
NATS intake and the optional load generator. SIGINT or SIGTERM stops intake,
drains the queue and exits once every worker is done or
pool.shutdown_timeout has passed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, stderr)
		},
	}
}

func newLogger(level string, out io.Writer) (core.Logger, error) {
	lvl, err := core.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return core.NewLogger(core.LoggerConfig{Level: lvl, Output: out}), nil
}

// runServe blocks until ctx is done, then shuts everything down in order:
// intake, pool, admin, tracing.
func runServe(ctx context.Context, cfg *config.File, logOut io.Writer) error {
	logger, err := newLogger(cfg.Log.Level, logOut)
	if err != nil {
		return err
	}

	tp, shutdownTracing, err := tracing.NewProvider(tracing.Config{
		Exporter:    cfg.Tracing.Exporter,
		ZipkinURL:   cfg.Tracing.ZipkinURL,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return err
	}
	otel.SetTracerProvider(tp)

	policy, err := concurrency.PolicyByName(cfg.Pool.Policy)
	if err != nil {
		return err
	}
	m := metrics.GetMetrics()

	// The pool outlives ctx so intake can drain into it first.
	pool, err := concurrency.NewWorkerPool(context.Background(), concurrency.WorkerPoolConfig{
		Name:          cfg.Pool.Name,
		Workers:       cfg.Pool.Workers,
		QueueCapacity: cfg.Pool.QueueCapacity,
		Policy:        policy,
		Logger:        logger.Named("pool"),
		Observer:      m.Observer(cfg.Pool.Name),
		Tracer:        tp.Tracer(concurrency.TracerName),
	})
	if err != nil {
		return err
	}
	if err := m.RegisterPool(pool); err != nil {
		logger.Warnf("register pool metrics: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	var srv *admin.Server
	if cfg.Admin.Enabled {
		srv = admin.New(admin.Config{Addr: cfg.Admin.Addr, Logger: logger, Metrics: m}, pool)
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil {
				return fmt.Errorf("admin server: %w", err)
			}
			return nil
		})
	}

	var in *intake.Intake
	if cfg.Intake.Enabled {
		in, err = intake.Start(intake.Config{
			URL:     cfg.Intake.URL,
			Subject: cfg.Intake.Subject,
			Queue:   cfg.Intake.Queue,
			Name:    "taskexec-" + pool.Name(),
			Logger:  logger,
			Metrics: m,
		}, pool, intake.JobDecoder)
		if err != nil {
			pool.Shutdown()
			if srv != nil {
				srv.Shutdown(context.Background())
			}
			return err
		}
	}

	if cfg.Load.Rate > 0 {
		g.Go(func() error {
			return generateLoad(gctx, pool, cfg.Load, logger.Named("load"))
		})
	}

	if srv != nil {
		srv.SetReady(true)
	}
	logger.Infof("serving pool %s", pool.Name())
	<-gctx.Done()
	logger.Infof("shutting down")

	timeout := cfg.Pool.ShutdownTimeout.Std()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if in != nil {
		if err := in.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	pool.Shutdown()
	if err := pool.AwaitTerminationContext(shutdownCtx); err != nil {
		logger.Warnf("pool did not drain in %s: %v", timeout, err)
		errs = append(errs, err)
	}
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}

	s := pool.Stats()
	logger.Infof("final stats: submitted=%d completed=%d failed=%d rejected=%d discarded=%d",
		s.Submitted, s.Completed, s.Failed, s.Rejected, s.Discarded)
	return errors.Join(errs...)
}

// generateLoad submits synthetic jobs at cfg.Rate per second until ctx ends.
func generateLoad(ctx context.Context, pool *concurrency.WorkerPool, cfg config.LoadConfig, logger core.Logger) error {
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	gen := workload.NewGenerator("load", cfg.TaskDuration.Std(), cfg.FailureRatio, time.Now().UnixNano())
	logger.Infof("generating %.1f tasks/s (burst %d)", cfg.Rate, burst)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
		err := pool.Submit(gen.Next().Task())
		switch {
		case err == nil:
		case errors.Is(err, concurrency.ErrPoolShutdown):
			return nil
		default:
			logger.Debugf("submit: %v", err)
		}
	}
}
