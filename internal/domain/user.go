// Package domain contains core domain types for the sequence assistant.
package domain

import (
	"time"
)

// User represents an anonymous per-device user owning one conversation.
type User struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// InactiveFor reports whether the user has not been seen for at least ttl.
// A non-positive ttl never expires.
func (u *User) InactiveFor(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(u.LastSeenAt) >= ttl
}
