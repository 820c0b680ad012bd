// Package llm adapts chat-completion backends to a single Provider interface.
package llm

import (
	"context"
	"fmt"

	"github.com/kaihuan-huang/HR-AI/internal/domain"
)

// Message is one prompt entry sent to a provider.
type Message struct {
	Role    domain.Role `json:"role"`
	Content string      `json:"content"`
}

// Provider is a chat-completion backend bound to one model.
//
// Complete never retries. Every failure is returned as a *ProviderError.
type Provider interface {
	Name() string
	Complete(ctx context.Context, systemPrompt string, turns []Message) (string, error)
}

// ValidateMessages checks that every message carries a role a provider accepts.
func ValidateMessages(turns []Message) error {
	for i, m := range turns {
		if !m.Role.Valid() {
			return fmt.Errorf("message %d: invalid role %q", i, m.Role)
		}
	}
	return nil
}
