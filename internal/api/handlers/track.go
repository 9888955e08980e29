package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/nikhilbhutani/fincommerce/internal/models"
)

type EventRecorder interface {
	RecordEvent(ctx context.Context, sessionID, eventType string, attrs map[string]any) (*models.BehaviorEvent, error)
}

type TrackHandler struct {
	recorder EventRecorder
	validate *validator.Validate
}

func NewTrackHandler(recorder EventRecorder) *TrackHandler {
	return &TrackHandler{recorder: recorder, validate: validator.New()}
}

type trackInput struct {
	SessionID string `json:"session_id" validate:"required,max=128"`
	EventType string `json:"event_type" validate:"required,max=64"`
}

// Track records one behavior event. Besides session_id and event_type the
// body is free-form: attributes may sit at the top level or under "data".
func (h *TrackHandler) Track(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := trackInput{}
	input.SessionID, _ = body["session_id"].(string)
	input.EventType, _ = body["event_type"].(string)
	if err := h.validate.Struct(&input); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ev, err := h.recorder.RecordEvent(r.Context(), input.SessionID, input.EventType, eventAttributes(body))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "failed to record event")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": ev})
}

// eventAttributes merges top-level fields with a nested "data" object; the
// nested value wins on conflict.
func eventAttributes(body map[string]any) map[string]any {
	attrs := make(map[string]any, len(body))
	for k, v := range body {
		switch k {
		case "session_id", "event_type", "data":
			continue
		}
		attrs[k] = v
	}
	if nested, ok := body["data"].(map[string]any); ok {
		for k, v := range nested {
			attrs[k] = v
		}
	}
	return attrs
}
