package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/nikhilbhutani/fincommerce/internal/models"
	"github.com/nikhilbhutani/fincommerce/internal/vectorstore"
)

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

type SearchHandler struct {
	search vectorstore.ProductSearcher
	users  UserLookup
}

func NewSearchHandler(search vectorstore.ProductSearcher, users UserLookup) *SearchHandler {
	return &SearchHandler{search: search, users: users}
}

// Search runs a plain hybrid search. With user_id the shopper's financial
// context is attached; an unknown user is not an error.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	products, err := h.search.Search(r.Context(), vectorstore.SearchRequest{
		Query:  q,
		Limit:  min(queryInt(r, "limit", 10), 50),
		Filter: vectorstore.Filter{MaxPrice: queryFloat(r, "max_price")},
	})
	if err != nil {
		slog.Error("search failed", "query", q, "error", err)
		writeError(w, http.StatusBadGateway, "search failed")
		return
	}
	if products == nil {
		products = []models.Product{}
	}

	resp := map[string]any{"success": true, "data": products, "count": len(products)}
	if u := lookupUser(r.Context(), h.users, r.URL.Query().Get("user_id")); u != nil {
		resp["user_context"] = u.Context()
	}
	writeJSON(w, http.StatusOK, resp)
}

func lookupUser(ctx context.Context, users UserLookup, rawID string) *models.User {
	if users == nil || rawID == "" {
		return nil
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return nil
	}
	u, err := users.GetByID(ctx, id)
	if err != nil {
		slog.Warn("user context unavailable", "user_id", id, "error", err)
		return nil
	}
	return u
}
