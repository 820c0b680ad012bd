// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/kaihuan-huang/HR-AI/internal/domain"
)

// Repository defines the interface for persisting users and their conversations.
type Repository interface {
	// GetUser retrieves a user by their user ID. A missing user is (nil, nil).
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// AppendTurn stores a turn at the end of the user's conversation.
	// An empty ID or zero CreatedAt is filled in.
	AppendTurn(ctx context.Context, turn *domain.Turn) error

	// ListTurns returns every turn for the user in creation order.
	ListTurns(ctx context.Context, userID string) ([]domain.Turn, error)

	// ListRecentTurns returns the last limit turns for the user in creation order.
	ListRecentTurns(ctx context.Context, userID string, limit int) ([]domain.Turn, error)

	// GetInactiveUsers retrieves users not seen within ttl.
	GetInactiveUsers(ctx context.Context, ttl time.Duration) ([]*domain.User, error)

	// DeleteUserData removes the user and their turns, returning the number of turns removed.
	DeleteUserData(ctx context.Context, userID string) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
