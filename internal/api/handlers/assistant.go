package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/nikhilbhutani/fincommerce/internal/llm"
	"github.com/nikhilbhutani/fincommerce/internal/multimodal"
	"github.com/nikhilbhutani/fincommerce/internal/rag"
)

type Assistant interface {
	Assist(ctx context.Context, req rag.AssistRequest) (*rag.AssistResponse, error)
}

type AssistantHandler struct {
	assistant     Assistant
	users         UserLookup
	maxImageBytes int64
}

func NewAssistantHandler(assistant Assistant, users UserLookup, maxImageBytes int64) *AssistantHandler {
	return &AssistantHandler{assistant: assistant, users: users, maxImageBytes: maxImageBytes}
}

// assistJSON is the JSON form of the assistant request. Image is base64,
// optionally as a data URL.
type assistJSON struct {
	Query     string  `json:"query"`
	MaxBudget float64 `json:"max_budget"`
	SessionID string  `json:"session_id"`
	UserID    string  `json:"user_id"`
	Image     string  `json:"image"`
	ImageMIME string  `json:"image_mime"`
}

// SearchProducts runs the shopping assistant. It accepts multipart forms
// (query, max_budget, image file) and JSON bodies.
func (h *AssistantHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	req, userID, err := h.parse(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.User = lookupUser(r.Context(), h.users, userID)

	resp, err := h.assistant.Assist(r.Context(), req)
	switch {
	case errors.Is(err, rag.ErrEmptyRequest):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("assistant failed", "session_id", req.SessionID, "error", err)
		writeError(w, http.StatusBadGateway, "product search failed")
		return
	}

	out := map[string]any{
		"success":     true,
		"data":        resp.Products,
		"count":       len(resp.Products),
		"ai_response": resp.AIResponse,
		"query":       resp.Query,
	}
	if resp.ImageDescription != "" {
		out["image_description"] = resp.ImageDescription
	}
	if resp.Refinement != nil {
		out["refinement"] = resp.Refinement
	}
	if resp.Screened {
		out["screened"] = true
	}
	if resp.MaxPrice > 0 {
		out["max_price"] = resp.MaxPrice
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AssistantHandler) parse(r *http.Request) (rag.AssistRequest, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return h.parseMultipart(r)
	}

	var body assistJSON
	if err := json.NewDecoder(io.LimitReader(r.Body, h.bodyLimit())).Decode(&body); err != nil {
		return rag.AssistRequest{}, "", errors.New("invalid request body")
	}
	req := rag.AssistRequest{
		Query:     body.Query,
		MaxBudget: max(body.MaxBudget, 0),
		SessionID: body.SessionID,
	}
	if body.Image != "" {
		img, err := decodeBase64Image(body.Image, body.ImageMIME)
		if err != nil {
			return rag.AssistRequest{}, "", err
		}
		req.Image = img
	}
	return req, body.UserID, nil
}

func (h *AssistantHandler) parseMultipart(r *http.Request) (rag.AssistRequest, string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, h.bodyLimit())
	if err := r.ParseMultipartForm(h.bodyLimit()); err != nil {
		return rag.AssistRequest{}, "", errors.New("invalid multipart form")
	}

	req := rag.AssistRequest{
		Query:     r.FormValue("query"),
		SessionID: r.FormValue("session_id"),
	}
	if v := r.FormValue("max_budget"); v != "" {
		budget, err := strconv.ParseFloat(v, 64)
		if err != nil || budget < 0 {
			return rag.AssistRequest{}, "", errors.New("max_budget must be a non-negative number")
		}
		req.MaxBudget = budget
	}

	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		return rag.AssistRequest{}, "", errors.New("invalid image upload")
	default:
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return rag.AssistRequest{}, "", errors.New("invalid image upload")
		}
		mimeType := header.Header.Get("Content-Type")
		if mimeType == "" || mimeType == "application/octet-stream" {
			mimeType = multimodal.MIMEFromFilename(header.Filename)
		}
		req.Image = &llm.Image{MIMEType: mimeType, Data: data}
	}
	return req, r.FormValue("user_id"), nil
}

func (h *AssistantHandler) bodyLimit() int64 {
	// base64 inflates by 4/3; leave room for the other fields.
	return h.maxImageBytes*4/3 + 1<<20
}

func decodeBase64Image(s, mimeType string) (*llm.Image, error) {
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found {
			return nil, errors.New("invalid image data URL")
		}
		mimeType = strings.TrimSuffix(meta, ";base64")
		s = payload
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.New("image must be base64 encoded")
	}
	return &llm.Image{MIMEType: mimeType, Data: data}, nil
}
