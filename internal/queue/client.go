package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/fincommerce/internal/config"
)

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{client: asynq.NewClient(RedisOpt(cfg))}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueBehaviorPrune returns the task id.
func (c *Client) EnqueueBehaviorPrune(ctx context.Context, payload BehaviorPrunePayload) (string, error) {
	task, err := NewBehaviorPruneTask(payload)
	if err != nil {
		return "", err
	}
	return c.enqueue(ctx, task, asynq.Queue(QueueLow), asynq.MaxRetry(3), asynq.Timeout(5*time.Minute))
}

func (c *Client) EnqueueCatalogIngest(ctx context.Context, payload CatalogIngestPayload) (string, error) {
	task, err := newTask(TypeCatalogIngest, payload)
	if err != nil {
		return "", err
	}
	return c.enqueue(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(2), asynq.Timeout(30*time.Minute))
}

func NewBehaviorPruneTask(payload BehaviorPrunePayload) (*asynq.Task, error) {
	return newTask(TypeBehaviorPrune, payload)
}

func newTask(taskType string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", taskType, err)
	}
	return asynq.NewTask(taskType, data), nil
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (string, error) {
	info, err := c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	return info.ID, nil
}
