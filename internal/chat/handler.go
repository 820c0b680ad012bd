package chat

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kaihuan-huang/HR-AI/internal/api"
	"github.com/kaihuan-huang/HR-AI/internal/domain"
	"github.com/kaihuan-huang/HR-AI/internal/identity"
	"github.com/kaihuan-huang/HR-AI/internal/metrics"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20

// retryAfter is the hint sent with 503 responses.
const retryAfter = 5 * time.Second

// HandlerConfig tunes the HTTP surface.
type HandlerConfig struct {
	MaxRequestBodySize int64
}

// Handler serves the conversation endpoints.
type Handler struct {
	svc         *Service
	rateLimiter *RateLimiter
	inFlight    *inFlightSet
	maxBody     int64
	metrics     *metrics.Metrics
}

// NewHandler creates a conversation handler.
func NewHandler(svc *Service, rateLimiter *RateLimiter, cfg HandlerConfig, m *metrics.Metrics) *Handler {
	maxBody := cfg.MaxRequestBodySize
	if maxBody <= 0 {
		maxBody = defaultMaxRequestBodySize
	}
	return &Handler{
		svc:         svc,
		rateLimiter: rateLimiter,
		inFlight:    newInFlightSet(),
		maxBody:     maxBody,
		metrics:     m,
	}
}

// RegisterRoutes registers conversation routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/messages", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleSubmit)
	})
}

// HandleList handles GET /api/messages.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	turns, err := h.svc.History(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to list turns", "error", err, "user_id", userID)
		api.Error(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	api.JSON(w, http.StatusOK, turns)
}

// HandleSubmit handles POST /api/messages.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.metrics.Rejected("validation")
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Validate before consuming rate limit budget.
	submit := SubmitRequest{
		UserID:    userID,
		SessionID: sessionID,
		RequestID: chiMiddleware.GetReqID(r.Context()),
		Content:   req.Content,
	}
	if req.Context != nil {
		submit.Workspace = req.Context.Workspace
	}
	if err := validate(submit); err != nil {
		h.metrics.Rejected("validation")
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	// Rate-limit by userID only so clients cannot bypass throttling by
	// rotating session IDs.
	if h.rateLimiter != nil && !h.rateLimiter.Allow(userID) {
		h.metrics.Rejected("rate_limited")
		api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	// At most one completion in flight per session.
	key := userID + ":" + sessionID
	if !h.inFlight.acquire(key) {
		slog.Warn("Completion already in flight", "user_id", userID, "session_id", sessionID)
		h.metrics.Rejected("in_flight")
		api.Error(w, http.StatusConflict, "request_in_flight")
		return
	}
	defer h.inFlight.release(key)

	slog.Info("Chat request",
		"user_id", userID,
		"session_id", sessionID,
		"request_id", submit.RequestID,
		"message_length", len(submit.Content),
		"has_workspace", submit.Workspace != "",
	)

	result, err := h.svc.Submit(r.Context(), submit)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			api.Error(w, http.StatusBadRequest, verr.Error())
		case IsUnavailable(err):
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			var userTurn *domain.Turn
			if result != nil {
				userTurn = result.UserTurn
			}
			api.JSON(w, http.StatusServiceUnavailable, map[string]any{
				"error":     UnavailableMessage,
				"user_turn": userTurn,
			})
		default:
			slog.Error("Chat request failed", "error", err, "user_id", userID)
			api.Error(w, http.StatusInternalServerError, UnavailableMessage)
		}
		return
	}

	api.JSON(w, http.StatusOK, result)
}

// inFlightSet tracks the sessions with a completion in progress.
type inFlightSet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newInFlightSet() *inFlightSet {
	return &inFlightSet{keys: make(map[string]struct{})}
}

// acquire marks key busy and reports false if it already was.
func (s *inFlightSet) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.keys[key]; busy {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

func (s *inFlightSet) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
}

func validate(req SubmitRequest) error {
	if req.UserID == "" {
		return &ValidationError{Field: "user_id", Message: "user is required"}
	}
	if isBlank(req.Content) {
		return &ValidationError{Field: "content", Message: "content is required"}
	}
	return nil
}
