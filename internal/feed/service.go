package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nikhilbhutani/fincommerce/internal/config"
	"github.com/nikhilbhutani/fincommerce/internal/metrics"
	"github.com/nikhilbhutani/fincommerce/internal/models"
	"github.com/nikhilbhutani/fincommerce/internal/vectorstore"
)

// Profiler is the part of the behavior tracker the feed reads from.
type Profiler interface {
	InterestProfile(ctx context.Context, sessionID string, limit int) ([]models.Interest, error)
	CumulativeContext(ctx context.Context, sessionID string, limit int) (string, error)
}

type Catalog interface {
	List(ctx context.Context, req vectorstore.ListRequest) ([]models.Product, error)
	Count(ctx context.Context, filter vectorstore.Filter) (int, error)
}

// Mode tells the client which source filled a page.
type Mode string

const (
	ModeCatalog      Mode = "catalog"
	ModePersonalized Mode = "personalized"
	ModeTrending     Mode = "trending"
)

type PageRequest struct {
	SessionID string
	Page      int
	Limit     int
	MaxPrice  float64
}

// Page is one page of a feed. TotalCount and TotalPages are only known for
// catalog pages.
type Page struct {
	Products    []models.Product `json:"products"`
	Mode        Mode             `json:"mode"`
	CurrentPage int              `json:"current_page"`
	Limit       int              `json:"limit"`
	TotalCount  int              `json:"total_count,omitempty"`
	TotalPages  int              `json:"total_pages,omitempty"`
	HasNext     bool             `json:"has_next"`
	HasPrev     bool             `json:"has_prev"`
	FailedTerms []TermFailure    `json:"failed_terms,omitempty"`
}

type Recommendations struct {
	Interests []models.Interest `json:"interests"`
	Context   string            `json:"context"`
	Products  []models.Product  `json:"products"`
	Mode      Mode              `json:"mode"`
}

// ErrPageOutOfRange is returned for a page number above the configured
// maximum.
var ErrPageOutOfRange = errors.New("page out of range")

type ServiceConfig struct {
	TrendingQuery   string
	DefaultPageSize int
	MaxPageSize     int
	// MaxPage bounds the ranked window of personalized and trending pages
	// to MaxPage*MaxPageSize products.
	MaxPage         int
	ProfileWindow   int
	ContextWindow   int
}

func ServiceConfigFrom(cfg *config.Config) ServiceConfig {
	return ServiceConfig{
		TrendingQuery:   cfg.Feed.TrendingQuery,
		DefaultPageSize: cfg.Feed.DefaultPageSize,
		MaxPageSize:     cfg.Feed.MaxPageSize,
		MaxPage:         cfg.Feed.MaxPage,
		ProfileWindow:   cfg.Behavior.ProfileWindow,
		ContextWindow:   cfg.Behavior.ContextWindow,
	}
}

// Service assembles product pages, personalized when the session has a
// behavior history and trending otherwise.
type Service struct {
	profiler   Profiler
	aggregator *Aggregator
	search     Retriever
	catalog    Catalog
	cfg        ServiceConfig
}

func NewService(profiler Profiler, aggregator *Aggregator, search Retriever, catalog Catalog, cfg ServiceConfig) *Service {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 12
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = cfg.DefaultPageSize
	}
	if cfg.MaxPage <= 0 {
		cfg.MaxPage = 100
	}
	if cfg.ProfileWindow <= 0 {
		cfg.ProfileWindow = 50
	}
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = 15
	}
	return &Service{
		profiler:   profiler,
		aggregator: aggregator,
		search:     search,
		catalog:    catalog,
		cfg:        cfg,
	}
}

// Page returns one page of products. Pages after the first re-run the
// ranked query over a window of page*limit and return its last slice, so
// later pages cost more and ranking stays consistent across pages.
func (s *Service) Page(ctx context.Context, req PageRequest) (*Page, error) {
	req, err := s.normalize(req)
	if err != nil {
		return nil, err
	}
	filter := vectorstore.Filter{MaxPrice: req.MaxPrice}

	if req.SessionID == "" {
		return s.catalogPage(ctx, req, filter)
	}

	window := req.Page * req.Limit
	interests, err := s.profiler.InterestProfile(ctx, req.SessionID, s.cfg.ProfileWindow)
	switch {
	case err != nil:
		slog.Warn("interest profile unavailable, serving trending", "session_id", req.SessionID, "error", err)
		return s.trendingPage(ctx, req, filter, "profile_error")
	case len(interests) == 0:
		return s.trendingPage(ctx, req, filter, "no_interests")
	}

	mixed, err := s.aggregator.BuildMixedFeed(ctx, interests, window, filter)
	if err != nil {
		slog.Warn("mixed feed failed, serving trending", "session_id", req.SessionID, "error", err)
		return s.trendingPage(ctx, req, filter, "feed_error")
	}

	page := windowPage(mixed.Products, req, ModePersonalized)
	page.FailedTerms = mixed.Failed
	return page, nil
}

// Recommend returns the session's interests, its cumulative context and
// products retrieved with that context as the query.
func (s *Service) Recommend(ctx context.Context, sessionID string, limit int) (*Recommendations, error) {
	if limit <= 0 {
		limit = s.cfg.DefaultPageSize
	}
	limit = min(limit, s.cfg.MaxPageSize)

	interests, err := s.profiler.InterestProfile(ctx, sessionID, s.cfg.ProfileWindow)
	if err != nil {
		return nil, fmt.Errorf("interest profile: %w", err)
	}
	query, err := s.profiler.CumulativeContext(ctx, sessionID, s.cfg.ContextWindow)
	if err != nil {
		return nil, fmt.Errorf("cumulative context: %w", err)
	}

	out := &Recommendations{Interests: interests, Context: query, Mode: ModePersonalized}
	if query == "" {
		query = s.cfg.TrendingQuery
		out.Mode = ModeTrending
		metrics.FeedFallbacks.WithLabelValues("no_context").Inc()
	}

	products, err := s.search.Search(ctx, vectorstore.SearchRequest{Query: query, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("recommendation search: %w", err)
	}
	out.Products = nonNil(products)
	if out.Interests == nil {
		out.Interests = []models.Interest{}
	}
	return out, nil
}

func (s *Service) catalogPage(ctx context.Context, req PageRequest, filter vectorstore.Filter) (*Page, error) {
	products, err := s.catalog.List(ctx, vectorstore.ListRequest{
		Filter: filter,
		Offset: (req.Page - 1) * req.Limit,
		Limit:  req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	total, err := s.catalog.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count catalog: %w", err)
	}

	pages := (total + req.Limit - 1) / req.Limit
	return &Page{
		Products:    nonNil(products),
		Mode:        ModeCatalog,
		CurrentPage: req.Page,
		Limit:       req.Limit,
		TotalCount:  total,
		TotalPages:  pages,
		HasNext:     req.Page < pages,
		HasPrev:     req.Page > 1,
	}, nil
}

func (s *Service) trendingPage(ctx context.Context, req PageRequest, filter vectorstore.Filter, reason string) (*Page, error) {
	metrics.FeedFallbacks.WithLabelValues(reason).Inc()

	products, err := s.search.Search(ctx, vectorstore.SearchRequest{
		Query:  s.cfg.TrendingQuery,
		Filter: filter,
		Limit:  req.Page * req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("trending search: %w", err)
	}
	return windowPage(products, req, ModeTrending), nil
}

func (s *Service) normalize(req PageRequest) (PageRequest, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Page > s.cfg.MaxPage {
		return req, fmt.Errorf("%w: page %d exceeds %d", ErrPageOutOfRange, req.Page, s.cfg.MaxPage)
	}
	if req.Limit <= 0 {
		req.Limit = s.cfg.DefaultPageSize
	}
	req.Limit = min(req.Limit, s.cfg.MaxPageSize)
	if req.MaxPrice < 0 {
		req.MaxPrice = 0
	}
	return req, nil
}

// windowPage slices page req.Page out of a ranked window of
// req.Page*req.Limit products. A full window implies more may follow.
func windowPage(window []models.Product, req PageRequest, mode Mode) *Page {
	start := (req.Page - 1) * req.Limit
	var products []models.Product
	if start < len(window) {
		products = window[start:min(len(window), start+req.Limit)]
	}
	return &Page{
		Products:    nonNil(products),
		Mode:        mode,
		CurrentPage: req.Page,
		Limit:       req.Limit,
		HasNext:     len(window) >= req.Page*req.Limit,
		HasPrev:     req.Page > 1,
	}
}

func nonNil(products []models.Product) []models.Product {
	if products == nil {
		return []models.Product{}
	}
	return products
}
