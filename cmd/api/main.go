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

	"github.com/nikhilbhutani/fincommerce/internal/api"
	"github.com/nikhilbhutani/fincommerce/internal/api/middleware"
	"github.com/nikhilbhutani/fincommerce/internal/app"
	"github.com/nikhilbhutani/fincommerce/internal/auth"
	"github.com/nikhilbhutani/fincommerce/internal/config"
	"github.com/nikhilbhutani/fincommerce/internal/metrics"
	"github.com/nikhilbhutani/fincommerce/internal/queue"
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

	queueClient := queue.NewClient(cfg.Redis)
	defer queueClient.Close()

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	go limiter.Cleanup(ctx)

	handler := api.NewRouter(api.Deps{
		Search:        a.Products,
		Assistant:     a.Assistant(),
		Recorder:      a.Tracker,
		Feed:          a.FeedService(),
		Users:         a.Users,
		Usage:         a.Audit,
		Pruner:        queueClient,
		Checks:        a.Checks(),
		Registry:      metrics.NewRegistry(),
		RateLimiter:   limiter,
		AdminAuth:     auth.NewJWTMiddleware(cfg.Auth.AdminJWTSecret),
		CORSOrigins:   cfg.Server.CORSOrigins,
		MaxImageBytes: cfg.Assistant.MaxImageBytes,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr(), "behavior_store", cfg.Behavior.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
