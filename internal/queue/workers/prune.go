package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/fincommerce/internal/behavior"
	"github.com/nikhilbhutani/fincommerce/internal/queue"
)

// PruneWorker enforces behavior-event retention.
type PruneWorker struct {
	pruner    behavior.Pruner
	retention time.Duration
	now       func() time.Time
}

func NewPruneWorker(pruner behavior.Pruner, retention time.Duration) *PruneWorker {
	return &PruneWorker{pruner: pruner, retention: retention, now: time.Now}
}

func (w *PruneWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.BehaviorPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	if payload.Before.IsZero() && w.retention <= 0 {
		return fmt.Errorf("retention must be positive, got %s: %w", w.retention, asynq.SkipRetry)
	}

	cutoff := w.Cutoff(payload)
	slog.Info("pruning behavior events", "before", cutoff)
	if err := w.pruner.PruneBefore(ctx, cutoff); err != nil {
		return fmt.Errorf("prune behavior events: %w", err)
	}
	return nil
}

// Cutoff is the explicit payload time, or now minus retention.
func (w *PruneWorker) Cutoff(payload queue.BehaviorPrunePayload) time.Time {
	if !payload.Before.IsZero() {
		return payload.Before.UTC()
	}
	return w.now().UTC().Add(-w.retention)
}
