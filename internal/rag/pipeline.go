package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nikhilbhutani/fincommerce/internal/guardrails"
	"github.com/nikhilbhutani/fincommerce/internal/llm"
	"github.com/nikhilbhutani/fincommerce/internal/metrics"
	"github.com/nikhilbhutani/fincommerce/internal/models"
	"github.com/nikhilbhutani/fincommerce/internal/multimodal"
	"github.com/nikhilbhutani/fincommerce/internal/vectorstore"
)

var ErrEmptyRequest = errors.New("a text query or an image is required")

type Searcher interface {
	Search(ctx context.Context, req vectorstore.SearchRequest) ([]models.Product, error)
}

type ImageDescriber interface {
	DescribeProduct(ctx context.Context, img llm.Image) (*multimodal.Description, error)
}

type PromptScreen interface {
	Check(text string) guardrails.Result
}

type UsageLogger interface {
	LogLLMUsage(ctx context.Context, record models.LLMUsageLog) error
}

type AssistRequest struct {
	Query     string
	MaxBudget float64
	Image     *llm.Image
	SessionID string
	User      *models.User
}

type AssistResponse struct {
	Products         []models.Product `json:"products"`
	AIResponse       string           `json:"ai_response,omitempty"`
	Query            string           `json:"query"`
	ImageDescription string           `json:"image_description,omitempty"`
	Refinement       *Refinement      `json:"refinement,omitempty"`
	MaxPrice         float64          `json:"max_price,omitempty"`
	Screened         bool             `json:"screened,omitempty"`
}

// Assistant runs the shopping chain: describe image, refine query, search
// under a price ceiling, and let the LLM choose among the results. Only the
// search step is mandatory; LLM steps degrade to the plain search. Queries
// the screen rejects skip the LLM steps entirely.
type Assistant struct {
	search  Searcher
	refiner *QueryRefiner
	chooser *ProductChooser
	vision  ImageDescriber
	screen  PromptScreen
	usage   UsageLogger
	limit   int
}

type AssistantDeps struct {
	Search  Searcher
	Refiner *QueryRefiner
	Chooser *ProductChooser
	Vision  ImageDescriber
	Screen  PromptScreen
	Usage   UsageLogger
	Limit   int
}

func NewAssistant(deps AssistantDeps) *Assistant {
	limit := deps.Limit
	if limit <= 0 {
		limit = 5
	}
	return &Assistant{
		search:  deps.Search,
		refiner: deps.Refiner,
		chooser: deps.Chooser,
		vision:  deps.Vision,
		screen:  deps.Screen,
		usage:   deps.Usage,
		limit:   limit,
	}
}

func (a *Assistant) Assist(ctx context.Context, req AssistRequest) (*AssistResponse, error) {
	query := strings.TrimSpace(req.Query)
	out := &AssistResponse{}

	if req.Image != nil && a.vision != nil {
		desc, err := a.vision.DescribeProduct(ctx, *req.Image)
		metrics.LLMCalls.WithLabelValues("vision", metrics.Status(err)).Inc()
		if err != nil {
			slog.Warn("image description failed, using text only", "session_id", req.SessionID, "error", err)
		} else {
			a.logUsage(ctx, req.SessionID, "vision", desc.Response)
			out.ImageDescription = desc.Text
			query = strings.TrimSpace(query + " " + desc.Text)
		}
	}
	if query == "" {
		return nil, ErrEmptyRequest
	}
	out.Query = query
	out.Screened = !a.allowLLM(req.SessionID, query)

	searchQuery := query
	if a.refiner != nil && !out.Screened {
		refined, resp, err := a.refiner.Refine(ctx, query)
		metrics.LLMCalls.WithLabelValues("refine", metrics.Status(err)).Inc()
		a.logUsage(ctx, req.SessionID, "refine", resp)
		if err != nil {
			slog.Warn("query refinement failed, using raw query", "query", query, "error", err)
		} else {
			out.Refinement = refined
			if refined.SemanticQuery != "" {
				searchQuery = refined.SemanticQuery
			}
		}
	}

	out.MaxPrice = MaxPrice(req.MaxBudget, out.Refinement)

	products, err := a.search.Search(ctx, vectorstore.SearchRequest{
		Query:  searchQuery,
		Filter: vectorstore.Filter{MaxPrice: out.MaxPrice},
		Limit:  a.limit,
	})
	if err != nil {
		return nil, fmt.Errorf("assistant search: %w", err)
	}
	out.Products = products

	if a.chooser != nil && !out.Screened && len(products) > 0 {
		resp, err := a.chooser.Choose(ctx, query, products, req.User)
		metrics.LLMCalls.WithLabelValues("choose", metrics.Status(err)).Inc()
		if err != nil {
			slog.Warn("product choice failed, returning search results only", "query", query, "error", err)
		} else {
			a.logUsage(ctx, req.SessionID, "choose", resp)
			out.AIResponse = strings.TrimSpace(resp.Content)
		}
	}
	return out, nil
}

func (a *Assistant) allowLLM(sessionID, query string) bool {
	if a.screen == nil {
		return true
	}
	res := a.screen.Check(query)
	for _, flag := range res.Flags {
		metrics.GuardrailFlags.WithLabelValues(flag).Inc()
	}
	if !res.Allowed {
		slog.Warn("query failed prompt screen, serving plain search", "session_id", sessionID, "flags", res.Flags, "score", res.Score)
	}
	return res.Allowed
}

// MaxPrice picks the price ceiling: an explicit budget wins over the
// model's estimate. Zero means unfiltered.
func MaxPrice(budget float64, refined *Refinement) float64 {
	if budget > 0 {
		return budget
	}
	if refined != nil && refined.Filters.MaxPrice > 0 {
		return float64(refined.Filters.MaxPrice)
	}
	return 0
}

func (a *Assistant) logUsage(ctx context.Context, sessionID, step string, resp *llm.ChatResponse) {
	if a.usage == nil || resp == nil {
		return
	}
	err := a.usage.LogLLMUsage(ctx, models.LLMUsageLog{
		SessionID:    sessionID,
		Provider:     resp.Provider,
		Model:        resp.Model,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		TotalTokens:  resp.TotalTokens,
		CostUSD:      resp.CostUSD,
		LatencyMs:    resp.LatencyMs,
		Endpoint:     "assistant." + step,
	})
	if err != nil {
		slog.Warn("failed to log LLM usage", "step", step, "error", err)
	}
}
