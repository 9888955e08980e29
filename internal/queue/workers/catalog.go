package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/fincommerce/internal/catalog"
	"github.com/nikhilbhutani/fincommerce/internal/queue"
)

type CatalogWorker struct {
	ingester *catalog.Ingester
}

func NewCatalogWorker(ingester *catalog.Ingester) *CatalogWorker {
	return &CatalogWorker{ingester: ingester}
}

func (w *CatalogWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.CatalogIngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	products, err := catalog.Load(payload.Path)
	if err != nil {
		// A missing or malformed file will not fix itself on retry.
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	slog.Info("ingesting catalog", "path", payload.Path, "products", len(products), "recreate", payload.Recreate)
	if _, err := w.ingester.Ingest(ctx, products, catalog.IngestOptions{Recreate: payload.Recreate}); err != nil {
		return fmt.Errorf("ingest catalog: %w", err)
	}
	return nil
}
