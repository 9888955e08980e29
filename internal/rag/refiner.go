package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/nikhilbhutani/fincommerce/internal/cache"
	"github.com/nikhilbhutani/fincommerce/internal/llm"
	"github.com/nikhilbhutani/fincommerce/internal/prompt"
)

// Cache is the subset of the Redis cache the refiner needs.
type Cache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Refinement is the structured search intent extracted from a shopper's
// free-text request.
type Refinement struct {
	SemanticQuery     string         `json:"semantic_query"`
	Filters           RefinedFilters `json:"filters"`
	FinancialPriority string         `json:"financial_priority"`
}

type RefinedFilters struct {
	MaxPrice Price  `json:"max_price"`
	Category string `json:"category"`
}

// Price decodes numbers that models emit as numbers, numeric strings or
// strings like "$1,200". Anything unreadable decodes as 0.
type Price float64

func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*p = 0
			return nil
		}
		*p = Price(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		*p = 0
		return nil
	}
	*p = Price(f)
	return nil
}

var ErrNoJSON = errors.New("no JSON object in model output")

// QueryRefiner asks the LLM for a Refinement and caches the answer per
// query and model.
type QueryRefiner struct {
	gateway llm.Gateway
	cache   Cache
	model   string
	ttl     time.Duration
}

func NewQueryRefiner(gw llm.Gateway, c Cache, model string, ttl time.Duration) *QueryRefiner {
	return &QueryRefiner{gateway: gw, cache: c, model: model, ttl: ttl}
}

// Refine returns the refinement and, when the model was called, its
// response for usage accounting. A cache hit returns a nil response.
func (r *QueryRefiner) Refine(ctx context.Context, query string) (*Refinement, *llm.ChatResponse, error) {
	key := cache.HashKey("refine", strings.ToLower(strings.TrimSpace(query)), r.model)
	if r.cache != nil {
		var cached Refinement
		err := r.cache.Get(ctx, key, &cached)
		if err == nil {
			return &cached, nil, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("refinement cache read failed", "error", err)
		}
	}

	content, err := prompt.QueryRefinement.Render(map[string]string{"query": query})
	if err != nil {
		return nil, nil, err
	}

	resp, err := r.gateway.Chat(ctx, llm.ChatRequest{
		Model:       r.model,
		Temperature: 0.1,
		JSONMode:    true,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: content}},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("refine query: %w", err)
	}

	refined, err := ParseRefinement(resp.Content)
	if err != nil {
		return nil, resp, fmt.Errorf("parse refinement: %w", err)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, refined, r.ttl); err != nil {
			slog.Warn("refinement cache write failed", "error", err)
		}
	}
	return refined, resp, nil
}

// ParseRefinement extracts the first JSON object from model output,
// tolerating markdown code fences and surrounding prose.
func ParseRefinement(content string) (*Refinement, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, ErrNoJSON
	}

	var r Refinement
	if err := json.Unmarshal([]byte(content[start:end+1]), &r); err != nil {
		return nil, err
	}
	r.SemanticQuery = strings.TrimSpace(r.SemanticQuery)
	r.Filters.Category = strings.TrimSpace(r.Filters.Category)
	if r.Filters.MaxPrice < 0 {
		r.Filters.MaxPrice = 0
	}
	return &r, nil
}
