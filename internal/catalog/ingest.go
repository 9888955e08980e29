package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nikhilbhutani/fincommerce/internal/models"
	"github.com/nikhilbhutani/fincommerce/internal/vectorstore"
)

const DefaultBatchSize = 100

// ProgressFunc is called after every batch with the number of products
// written so far.
type ProgressFunc func(done, total int)

type Ingester struct {
	store     vectorstore.ProductWriter
	batchSize int
}

func NewIngester(store vectorstore.ProductWriter, batchSize int) *Ingester {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Ingester{store: store, batchSize: batchSize}
}

type IngestOptions struct {
	Recreate bool
	Progress ProgressFunc
}

// Ingest prepares the collection and its payload indexes, then upserts the
// products in batches. It stops at the first failed batch; products in
// earlier batches stay indexed.
func (in *Ingester) Ingest(ctx context.Context, products []models.Product, opts IngestOptions) (int, error) {
	if err := in.store.EnsureCollection(ctx, opts.Recreate); err != nil {
		return 0, fmt.Errorf("ensure collection: %w", err)
	}
	if err := in.store.EnsurePayloadIndexes(ctx); err != nil {
		return 0, fmt.Errorf("ensure payload indexes: %w", err)
	}

	done := 0
	for start := 0; start < len(products); start += in.batchSize {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		end := min(start+in.batchSize, len(products))
		if err := in.store.Upsert(ctx, products[start:end]); err != nil {
			return done, fmt.Errorf("upsert batch %d-%d: %w", start, end, err)
		}
		done = end
		if opts.Progress != nil {
			opts.Progress(done, len(products))
		}
	}

	slog.Info("catalog ingested", "products", done, "recreate", opts.Recreate)
	return done, nil
}
