package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/fincommerce/internal/app"
	"github.com/nikhilbhutani/fincommerce/internal/catalog"
	"github.com/nikhilbhutani/fincommerce/internal/config"
	"github.com/nikhilbhutani/fincommerce/internal/metrics"
	"github.com/nikhilbhutani/fincommerce/internal/queue"
	"github.com/nikhilbhutani/fincommerce/internal/queue/workers"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	srv := asynq.NewServer(queue.RedisOpt(cfg.Redis), asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues:      queue.Priorities,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			if retried >= maxRetry {
				slog.Error("task retries exhausted", "type", task.Type(), "retried", retried, "error", err)
			}
		}),
	})

	registry := queue.NewRegistry()
	pruneWorker := workers.NewPruneWorker(a.Events, cfg.Behavior.Retention)
	catalogWorker := workers.NewCatalogWorker(catalog.NewIngester(a.Products, catalog.DefaultBatchSize))
	registry.Register(queue.TypeBehaviorPrune, pruneWorker.ProcessTask)
	registry.Register(queue.TypeCatalogIngest, catalogWorker.ProcessTask)

	var metricsSrv *http.Server
	if cfg.Worker.MetricsAddr != "" {
		metricsSrv = &http.Server{
			Addr:              cfg.Worker.MetricsAddr,
			Handler:           metrics.Handler(metrics.NewRegistry()),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics listener error", "error", err)
			}
		}()
	}

	scheduler, err := queue.NewPruneScheduler(cfg.Redis, cfg.Behavior.PruneInterval)
	if err != nil {
		slog.Error("failed to schedule pruning", "error", err)
		os.Exit(1)
	}
	if err := scheduler.Start(); err != nil {
		slog.Error("scheduler error", "error", err)
		os.Exit(1)
	}
	defer scheduler.Shutdown()

	if err := srv.Start(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
	slog.Info("worker started", "retention", cfg.Behavior.Retention.String(), "prune_every", cfg.Behavior.PruneInterval.String())

	<-ctx.Done()
	slog.Info("shutting down worker...")
	srv.Shutdown()
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}
