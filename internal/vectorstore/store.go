package vectorstore

import (
	"context"

	"github.com/nikhilbhutani/fincommerce/internal/models"
)

// Filter narrows product retrieval. Zero values mean "no constraint".
type Filter struct {
	MaxPrice  float64
	MinPrice  float64
	MinRating float64
	Category  string
}

func (f Filter) IsZero() bool {
	return f == Filter{}
}

type SearchRequest struct {
	Query  string
	Filter Filter
	Limit  int
}

type ListRequest struct {
	Filter Filter
	Offset int
	Limit  int
}

// ProductSearcher runs a ranked hybrid search over the catalog.
type ProductSearcher interface {
	Search(ctx context.Context, req SearchRequest) ([]models.Product, error)
}

// ProductCatalog lists and counts catalog entries without ranking.
type ProductCatalog interface {
	List(ctx context.Context, req ListRequest) ([]models.Product, error)
	Count(ctx context.Context, filter Filter) (int, error)
}

type ProductWriter interface {
	EnsureCollection(ctx context.Context, recreate bool) error
	EnsurePayloadIndexes(ctx context.Context) error
	Upsert(ctx context.Context, products []models.Product) error
}

// ProductStore is the full catalog surface backed by Qdrant.
type ProductStore interface {
	ProductSearcher
	ProductCatalog
	ProductWriter
}
