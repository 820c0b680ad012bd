package identity

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/kaihuan-huang/HR-AI/internal/domain"
	"github.com/kaihuan-huang/HR-AI/internal/store"
)

const (
	anonCookieMaxAge = 30 * 24 * time.Hour

	// DefaultTouchInterval bounds how often a user's last_seen_at is written.
	DefaultTouchInterval = time.Minute
)

// Toucher keeps users' last_seen_at current, which is what the retention
// sweep expires on. Users are created on first sight. Writes for the same
// user are coalesced to one per interval.
type Toucher struct {
	repo     store.Repository
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	touched map[string]time.Time
}

// NewToucher creates a Toucher. A non-positive interval uses DefaultTouchInterval.
func NewToucher(repo store.Repository, interval time.Duration) *Toucher {
	if interval <= 0 {
		interval = DefaultTouchInterval
	}
	return &Toucher{
		repo:     repo,
		interval: interval,
		now:      time.Now,
		touched:  make(map[string]time.Time),
	}
}

// Touch records activity for userID.
func (t *Toucher) Touch(ctx context.Context, userID string) error {
	now := t.now()

	t.mu.Lock()
	last, seen := t.touched[userID]
	t.mu.Unlock()
	if seen && now.Sub(last) < t.interval {
		return nil
	}

	if err := t.write(ctx, userID, now); err != nil {
		return err
	}

	t.mu.Lock()
	t.touched[userID] = now
	t.evictLocked(now)
	t.mu.Unlock()
	return nil
}

// Forget drops the cached touch time so the next request re-creates the
// user. The retention sweep calls it after deleting a user.
func (t *Toucher) Forget(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.touched, userID)
}

func (t *Toucher) write(ctx context.Context, userID string, now time.Time) error {
	user, err := t.repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user != nil {
		return t.repo.UpdateLastSeen(ctx, userID, now)
	}
	return t.repo.UpsertUser(ctx, &domain.User{
		UserID:     userID,
		Username:   Username(userID),
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

// evictLocked drops entries old enough that the next request writes anyway.
func (t *Toucher) evictLocked(now time.Time) {
	if len(t.touched) < 1024 {
		return
	}
	for id, at := range t.touched {
		if now.Sub(at) >= t.interval {
			delete(t.touched, id)
		}
	}
}

// Middleware resolves the caller, refreshes its activity through toucher and
// stores the Identity in the request context.
func Middleware(toucher *Toucher, secureCookie bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := ""
			if c, err := r.Cookie(AnonCookieName); err == nil && ValidAnonID(c.Value) {
				userID = c.Value
			} else {
				id, err := NewAnonID()
				if err != nil {
					slog.Error("Failed to create anonymous id", "error", err)
					writeError(w, "failed to establish anonymous identity")
					return
				}
				userID = id
			}
			setAnonCookie(w, userID, secureCookie)

			if err := toucher.Touch(r.Context(), userID); err != nil {
				slog.Error("Failed to record user activity", "error", err, "user_id", userID)
				writeError(w, "failed to initialize anonymous user")
				return
			}

			ctx := WithIdentity(r.Context(), Identity{
				UserID:    userID,
				Username:  Username(userID),
				SessionID: SessionIDFromRequest(r),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// setAnonCookie issues or slides the device cookie.
func setAnonCookie(w http.ResponseWriter, userID string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AnonCookieName,
		Value:    userID,
		Path:     "/",
		MaxAge:   int(anonCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(anonCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	})
}

func writeError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
