package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/nikhilbhutani/fincommerce/internal/config"
	"github.com/nikhilbhutani/fincommerce/internal/models"
)

var ErrEmptyQuery = errors.New("search query is empty")

const defaultSearchLimit = 10

// QdrantProductStore serves the product catalog from a Qdrant collection
// with dense, sparse and late-interaction named vectors. Embeddings are
// produced by Qdrant's inference from the document text.
type QdrantProductStore struct {
	client *qdrant.Client
	cfg    config.QdrantConfig
}

func NewQdrantProductStore(client *qdrant.Client, cfg config.QdrantConfig) *QdrantProductStore {
	return &QdrantProductStore{client: client, cfg: cfg}
}

// Search runs a hybrid query: dense and sparse candidates are prefetched
// and then reranked by late interaction, or fused with RRF when no
// late-interaction model is configured.
func (s *QdrantProductStore) Search(ctx context.Context, req SearchRequest) (products []models.Product, err error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}
	defer func(start time.Time) { observe("search", start, err) }(time.Now())

	points, err := s.client.Query(ctx, s.searchQuery(req))
	if err != nil {
		return nil, fmt.Errorf("hybrid search %q: %w", req.Query, err)
	}

	products = make([]models.Product, 0, len(points))
	for _, pt := range points {
		products = append(products, productFromPayload(pt.GetId(), pt.GetPayload(), pt.GetScore()))
	}
	slog.Debug("hybrid search", "query", req.Query, "results", len(products))
	return products, nil
}

func (s *QdrantProductStore) searchQuery(req SearchRequest) *qdrant.QueryPoints {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	prefetchLimit := uint64(max(s.cfg.PrefetchLimit, limit))
	filter := buildFilter(req.Filter)

	document := func(model string) *qdrant.VectorInput {
		return qdrant.NewVectorInputDocument(&qdrant.Document{Text: req.Query, Model: model})
	}

	q := &qdrant.QueryPoints{
		CollectionName: s.cfg.ProductsCollection,
		Prefetch: []*qdrant.PrefetchQuery{
			{
				Query:  qdrant.NewQueryNearest(document(s.cfg.DenseModel)),
				Using:  qdrant.PtrOf(DenseVector),
				Filter: filter,
				Limit:  qdrant.PtrOf(prefetchLimit),
			},
			{
				Query:  qdrant.NewQueryNearest(document(s.cfg.SparseModel)),
				Using:  qdrant.PtrOf(SparseVector),
				Filter: filter,
				Limit:  qdrant.PtrOf(prefetchLimit),
			},
		},
		Filter:      filter,
		Limit:       qdrant.PtrOf(uint64(limit)),
		WithPayload: qdrant.NewWithPayload(true),
	}

	if s.cfg.LateInteractionModel != "" {
		q.Query = qdrant.NewQueryNearest(document(s.cfg.LateInteractionModel))
		q.Using = qdrant.PtrOf(LateInteractionVector)
	} else {
		q.Query = qdrant.NewQueryFusion(qdrant.Fusion_RRF)
	}
	return q
}

// List pages through the catalog in storage order.
func (s *QdrantProductStore) List(ctx context.Context, req ListRequest) (products []models.Product, err error) {
	defer func(start time.Time) { observe("list", start, err) }(time.Now())

	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.ProductsCollection,
		Filter:         buildFilter(req.Filter),
		Offset:         qdrant.PtrOf(uint64(max(req.Offset, 0))),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	products = make([]models.Product, 0, len(points))
	for _, pt := range points {
		products = append(products, productFromPayload(pt.GetId(), pt.GetPayload(), 0))
	}
	return products, nil
}

func (s *QdrantProductStore) Count(ctx context.Context, filter Filter) (n int, err error) {
	defer func(start time.Time) { observe("count", start, err) }(time.Now())

	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.ProductsCollection,
		Filter:         buildFilter(filter),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return int(count), nil
}

// EnsureCollection creates the products collection if it is missing. With
// recreate set an existing collection is dropped first.
func (s *QdrantProductStore) EnsureCollection(ctx context.Context, recreate bool) error {
	name := s.cfg.ProductsCollection
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", name, err)
	}
	if exists && !recreate {
		return nil
	}
	if exists {
		if err := s.client.DeleteCollection(ctx, name); err != nil {
			return fmt.Errorf("drop collection %s: %w", name, err)
		}
		slog.Info("dropped collection", "collection", name)
	}

	vectors := map[string]*qdrant.VectorParams{
		DenseVector: {
			Size:     uint64(s.cfg.DenseSize),
			Distance: qdrant.Distance_Cosine,
		},
	}
	if s.cfg.LateInteractionModel != "" {
		vectors[LateInteractionVector] = &qdrant.VectorParams{
			Size:     uint64(s.cfg.LateInteractionSize),
			Distance: qdrant.Distance_Cosine,
			MultivectorConfig: &qdrant.MultiVectorConfig{
				Comparator: qdrant.MultiVectorComparator_MaxSim,
			},
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig:  qdrant.NewVectorsConfigMap(vectors),
		SparseVectorsConfig: qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
			SparseVector: {Modifier: qdrant.Modifier_Idf.Enum()},
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	slog.Info("created collection", "collection", name)
	return nil
}

// EnsurePayloadIndexes indexes the fields used by range and keyword
// filters. Creating an existing index is a no-op on the server.
func (s *QdrantProductStore) EnsurePayloadIndexes(ctx context.Context) error {
	indexes := []struct {
		field string
		kind  qdrant.FieldType
	}{
		{fieldDiscountedPrice, qdrant.FieldType_FieldTypeFloat},
		{fieldActualPrice, qdrant.FieldType_FieldTypeFloat},
		{fieldRating, qdrant.FieldType_FieldTypeFloat},
		{fieldCategory, qdrant.FieldType_FieldTypeKeyword},
	}
	for _, idx := range indexes {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.cfg.ProductsCollection,
			FieldName:      idx.field,
			FieldType:      idx.kind.Enum(),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("index %s: %w", idx.field, err)
		}
		slog.Info("payload index ready", "collection", s.cfg.ProductsCollection, "field", idx.field)
	}
	return nil
}

// Upsert writes one batch of products. Callers split large catalogs.
func (s *QdrantProductStore) Upsert(ctx context.Context, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, 0, len(products))
	for _, p := range products {
		pt, err := s.productPoint(p)
		if err != nil {
			return err
		}
		points = append(points, pt)
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.ProductsCollection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert %d products: %w", len(points), err)
	}
	return nil
}

func (s *QdrantProductStore) productPoint(p models.Product) (*qdrant.PointStruct, error) {
	payload, err := qdrant.TryValueMap(productPayload(p))
	if err != nil {
		return nil, fmt.Errorf("encode product %s: %w", p.ID, err)
	}

	text := p.EmbeddingText()
	vectors := map[string]*qdrant.Vector{
		DenseVector:  qdrant.NewVectorDocument(&qdrant.Document{Text: text, Model: s.cfg.DenseModel}),
		SparseVector: qdrant.NewVectorDocument(&qdrant.Document{Text: text, Model: s.cfg.SparseModel}),
	}
	if s.cfg.LateInteractionModel != "" {
		vectors[LateInteractionVector] = qdrant.NewVectorDocument(&qdrant.Document{Text: text, Model: s.cfg.LateInteractionModel})
	}

	return &qdrant.PointStruct{
		Id:      pointID(p.ID),
		Vectors: qdrant.NewVectorsMap(vectors),
		Payload: payload,
	}, nil
}
