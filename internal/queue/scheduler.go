package queue

import (
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/fincommerce/internal/config"
)

// NewPruneScheduler registers the periodic retention prune. The returned
// scheduler is not started.
func NewPruneScheduler(cfg config.RedisConfig, every time.Duration) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(RedisOpt(cfg), &asynq.SchedulerOpts{Location: time.UTC})

	task, err := NewBehaviorPruneTask(BehaviorPrunePayload{})
	if err != nil {
		return nil, err
	}
	schedule := fmt.Sprintf("@every %s", every)
	if _, err := scheduler.Register(schedule, task, asynq.Queue(QueueLow), asynq.MaxRetry(1), asynq.Unique(every)); err != nil {
		return nil, fmt.Errorf("register prune schedule %q: %w", schedule, err)
	}
	return scheduler, nil
}
