package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/nikhilbhutani/fincommerce/internal/config"
	"github.com/nikhilbhutani/fincommerce/internal/metrics"
)

// Named vectors of the products collection.
const (
	DenseVector           = "text-dense"
	SparseVector          = "text-sparse"
	LateInteractionVector = "text-late-interaction"
	BehaviorVector        = "behavior"
)

func NewQdrantClient(cfg config.QdrantConfig) (*qdrant.Client, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return client, nil
}

// Ping reports whether Qdrant answers its health check.
func Ping(ctx context.Context, client *qdrant.Client) error {
	if _, err := client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check: %w", err)
	}
	return nil
}

func observe(operation string, start time.Time, err error) {
	metrics.RetrievalDuration.WithLabelValues(operation, metrics.Status(err)).Observe(time.Since(start).Seconds())
}
