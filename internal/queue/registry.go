package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/fincommerce/internal/metrics"
)

// Registry routes task types to handlers. Every task passes through a
// middleware that logs its outcome and records its duration.
type Registry struct {
	mux *asynq.ServeMux
}

func NewRegistry() *Registry {
	mux := asynq.NewServeMux()
	mux.Use(observe)
	return &Registry{mux: mux}
}

func (r *Registry) Register(taskType string, handler asynq.HandlerFunc) {
	r.mux.Handle(taskType, handler)
}

func (r *Registry) Mux() *asynq.ServeMux {
	return r.mux
}

func observe(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		err := next.ProcessTask(ctx, t)
		metrics.TaskDuration.WithLabelValues(t.Type(), metrics.Status(err)).Observe(time.Since(start).Seconds())

		if err != nil {
			slog.Error("task failed", "type", t.Type(), "duration", time.Since(start).String(), "error", err)
			return err
		}
		slog.Info("task done", "type", t.Type(), "duration", time.Since(start).String())
		return nil
	})
}
