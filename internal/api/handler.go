// Package api provides HTTP handlers for the sequence assistant API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kaihuan-huang/HR-AI/internal/store"
)

// defaultMaxRequestBodySize bounds the stateless sequence endpoints (1MB).
const defaultMaxRequestBodySize = 1 << 20

// CompletionInfo describes the configured completion backends.
type CompletionInfo interface {
	Providers() []string
	HistoryWindow() int
}

// Handler serves account, configuration and sequence endpoints.
type Handler struct {
	repo       store.Repository
	completion CompletionInfo
	maxBody    int64
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, completion CompletionInfo, maxBody int64) *Handler {
	if maxBody <= 0 {
		maxBody = defaultMaxRequestBodySize
	}
	return &Handler{
		repo:       repo,
		completion: completion,
		maxBody:    maxBody,
	}
}

// RegisterRoutes registers the API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/me", h.GetMe)
	r.Get("/api/config", h.GetConfig)
	r.Route("/api/sequence", func(r chi.Router) {
		r.Post("/parse", h.ParseSequence)
		r.Post("/render", h.RenderSequence)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
