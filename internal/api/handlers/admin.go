package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/nikhilbhutani/fincommerce/internal/audit"
	"github.com/nikhilbhutani/fincommerce/internal/queue"
)

type UsageReporter interface {
	GetUsageSummary(ctx context.Context, start, end *time.Time) ([]audit.UsageSummary, error)
}

type PruneEnqueuer interface {
	EnqueueBehaviorPrune(ctx context.Context, payload queue.BehaviorPrunePayload) (string, error)
}

type AdminHandler struct {
	usage  UsageReporter
	pruner PruneEnqueuer
}

func NewAdminHandler(usage UsageReporter, pruner PruneEnqueuer) *AdminHandler {
	return &AdminHandler{usage: usage, pruner: pruner}
}

func (h *AdminHandler) Usage(w http.ResponseWriter, r *http.Request) {
	startDate, err := queryTime(r, "start_date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_date must be RFC3339")
		return
	}
	endDate, err := queryTime(r, "end_date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_date must be RFC3339")
		return
	}

	summary, err := h.usage.GetUsageSummary(r.Context(), startDate, endDate)
	switch {
	case errors.Is(err, audit.ErrDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if summary == nil {
		summary = []audit.UsageSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": summary, "count": len(summary)})
}

// Prune enqueues a retention run. Without "before" the worker applies the
// configured retention.
func (h *AdminHandler) Prune(w http.ResponseWriter, r *http.Request) {
	before, err := queryTime(r, "before")
	if err != nil {
		writeError(w, http.StatusBadRequest, "before must be RFC3339")
		return
	}
	payload := queue.BehaviorPrunePayload{}
	if before != nil {
		payload.Before = *before
	}

	id, err := h.pruner.EnqueueBehaviorPrune(r.Context(), payload)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "failed to enqueue prune")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"success": true, "data": map[string]string{"task_id": id}})
}

func queryTime(r *http.Request, key string) (*time.Time, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
