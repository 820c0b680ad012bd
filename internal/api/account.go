package api

import (
	"net/http"

	"github.com/kaihuan-huang/HR-AI/internal/identity"
)

// GetMe returns the current user's information.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"user_id":    user.UserID,
		"username":   user.Username,
		"session_id": identity.SessionIDFromContext(r.Context()),
		"created_at": user.CreatedAt,
	})
}

// GetConfig returns the server configuration for the frontend.
func (h *Handler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	providers := []string{}
	historyWindow := 0
	if h.completion != nil {
		providers = append(providers, h.completion.Providers()...)
		historyWindow = h.completion.HistoryWindow()
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"ai_enabled":     len(providers) > 0,
		"providers":      providers,
		"history_window": historyWindow,
	})
}
