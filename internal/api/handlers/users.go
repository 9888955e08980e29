package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/fincommerce/internal/models"
	"github.com/nikhilbhutani/fincommerce/internal/user"
)

type UsersHandler struct {
	users UserLookup
}

func NewUsersHandler(users UserLookup) *UsersHandler {
	return &UsersHandler{users: users}
}

func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	u, err := h.users.GetByID(r.Context(), id)
	h.respond(w, u, err)
}

func (h *UsersHandler) Find(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	u, err := h.users.GetByUsername(r.Context(), username)
	h.respond(w, u, err)
}

func (h *UsersHandler) respond(w http.ResponseWriter, u *models.User, err error) {
	switch {
	case errors.Is(err, user.ErrNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, user.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to load user")
	default:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": u})
	}
}
