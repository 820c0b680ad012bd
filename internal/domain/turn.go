package domain

import (
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser marks a message written by the user.
	RoleUser Role = "user"
	// RoleAssistant marks a message produced by a completion provider.
	RoleAssistant Role = "assistant"
	// RoleSystem marks prompt instructions. Never persisted.
	RoleSystem Role = "system"
)

// Valid reports whether r is a role a provider accepts.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Persistable reports whether a turn with this role may be stored.
func (r Role) Persistable() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one immutable message in a user's conversation.
type Turn struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
