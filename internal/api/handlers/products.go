package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nikhilbhutani/fincommerce/internal/feed"
)

type FeedService interface {
	Page(ctx context.Context, req feed.PageRequest) (*feed.Page, error)
	Recommend(ctx context.Context, sessionID string, limit int) (*feed.Recommendations, error)
}

type ProductsHandler struct {
	feed FeedService
}

func NewProductsHandler(f FeedService) *ProductsHandler {
	return &ProductsHandler{feed: f}
}

func (h *ProductsHandler) List(w http.ResponseWriter, r *http.Request) {
	req := feed.PageRequest{
		SessionID: sessionID(r),
		Page:      queryInt(r, "page", 1),
		Limit:     queryInt(r, "limit", 0),
		MaxPrice:  queryFloat(r, "max_price"),
	}

	page, err := h.feed.Page(r.Context(), req)
	if errors.Is(err, feed.ErrPageOutOfRange) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.Error("product feed failed", "session_id", req.SessionID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to load products")
		return
	}

	resp := map[string]any{
		"success":      true,
		"data":         page.Products,
		"count":        len(page.Products),
		"mode":         page.Mode,
		"current_page": page.CurrentPage,
		"has_next":     page.HasNext,
		"has_prev":     page.HasPrev,
	}
	if page.Mode == feed.ModeCatalog {
		resp["total_count"] = page.TotalCount
		resp["total_pages"] = page.TotalPages
	}
	if len(page.FailedTerms) > 0 {
		resp["failed_terms"] = page.FailedTerms
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ProductsHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r)
	if sid == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	rec, err := h.feed.Recommend(r.Context(), sid, queryInt(r, "limit", 0))
	if err != nil {
		slog.Error("recommendations failed", "session_id", sid, "error", err)
		writeError(w, http.StatusBadGateway, "failed to load recommendations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"data":      rec.Products,
		"count":     len(rec.Products),
		"interests": rec.Interests,
		"context":   rec.Context,
		"mode":      rec.Mode,
	})
}

// sessionID prefers the query parameter and falls back to X-Session-ID.
func sessionID(r *http.Request) string {
	if s := strings.TrimSpace(r.URL.Query().Get("session_id")); s != "" {
		return s
	}
	return strings.TrimSpace(r.Header.Get("X-Session-ID"))
}
