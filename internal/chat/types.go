// Package chat persists conversation turns and asks the orchestrator for replies.
package chat

import (
	"context"

	"github.com/kaihuan-huang/HR-AI/internal/domain"
	"github.com/kaihuan-huang/HR-AI/internal/orchestrator"
)

// UnavailableMessage is shown to the user when no provider answered.
const UnavailableMessage = "Failed to get AI response. Please try again in a moment."

// Completer produces an assistant reply for a conversation.
type Completer interface {
	Complete(ctx context.Context, req orchestrator.Request) (string, error)
}

// SubmitRequest is one user message with optional workspace context.
type SubmitRequest struct {
	UserID    string
	SessionID string
	RequestID string
	Content   string
	Workspace string
}

// SubmitResult holds the persisted turns. AssistantTurn is nil when the
// completion failed; UserTurn is set whenever the user message was stored.
type SubmitResult struct {
	UserTurn      *domain.Turn `json:"user_turn"`
	AssistantTurn *domain.Turn `json:"assistant_turn,omitempty"`
}

// MessageRequest is the POST /api/messages body.
type MessageRequest struct {
	Content string          `json:"content"`
	Context *MessageContext `json:"context,omitempty"`
}

// MessageContext carries the client's current workspace.
type MessageContext struct {
	Workspace string `json:"workspace"`
}

// ValidationError rejects a request before any side effect.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
