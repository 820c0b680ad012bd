// Package retention deletes the data of users who have been inactive for
// longer than the configured TTL.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/kaihuan-huang/HR-AI/internal/metrics"
	"github.com/kaihuan-huang/HR-AI/internal/shared"
	"github.com/kaihuan-huang/HR-AI/internal/store"
)

const (
	deleteAttempts  = 3
	deleteBaseDelay = 100 * time.Millisecond
)

// LiveSessions is the view of connected sessions the sweeper needs.
type LiveSessions interface {
	HasUser(userID string) bool
	CloseUser(userID string)
}

// CleanupCallback is called after a user's data has been deleted.
type CleanupCallback func(userID string)

// Sweeper periodically removes expired users and their turns.
type Sweeper struct {
	repo     store.Repository
	sessions LiveSessions
	ttl      time.Duration
	interval time.Duration
	metrics  *metrics.Metrics
	onRemove CleanupCallback
}

// NewSweeper creates a sweeper. A ttl of zero or less disables sweeping.
func NewSweeper(repo store.Repository, sessions LiveSessions, ttl, interval time.Duration, m *metrics.Metrics, onRemove CleanupCallback) *Sweeper {
	return &Sweeper{
		repo:     repo,
		sessions: sessions,
		ttl:      ttl,
		interval: interval,
		metrics:  m,
		onRemove: onRemove,
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.ttl <= 0 || s.interval <= 0 {
		slog.Info("Retention sweeper disabled")
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	slog.Info("Retention sweeper started", "interval", s.interval, "ttl", s.ttl)

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			slog.Info("Retention sweeper shutting down", "reason", ctx.Err())
			return nil
		}
	}
}

// Sweep runs one pass and returns the number of users removed.
func (s *Sweeper) Sweep(ctx context.Context) int {
	users, err := s.repo.GetInactiveUsers(ctx, s.ttl)
	if err != nil {
		slog.Error("Retention sweep failed to list inactive users", "error", err)
		return 0
	}
	if len(users) == 0 {
		return 0
	}

	removed := 0
	for _, user := range users {
		if s.sessions != nil && s.sessions.HasUser(user.UserID) {
			continue
		}

		var turns int64
		err := shared.RetryOnConflict(ctx, deleteAttempts, deleteBaseDelay, func() error {
			var derr error
			turns, derr = s.repo.DeleteUserData(ctx, user.UserID)
			return derr
		})
		if err != nil {
			slog.Warn("Retention sweep failed to delete user", "error", err, "user_id", user.UserID)
			continue
		}
		if s.sessions != nil {
			s.sessions.CloseUser(user.UserID)
		}
		if s.onRemove != nil {
			s.onRemove(user.UserID)
		}
		removed++
		slog.Info("Retention sweep removed user", "user_id", user.UserID, "turns", turns)
	}

	s.metrics.Expired(removed)
	if removed > 0 {
		slog.Info("Retention sweep completed", "removed", removed, "candidates", len(users))
	}
	return removed
}
