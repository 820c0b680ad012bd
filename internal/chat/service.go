package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kaihuan-huang/HR-AI/internal/domain"
	"github.com/kaihuan-huang/HR-AI/internal/llm"
	"github.com/kaihuan-huang/HR-AI/internal/metrics"
	"github.com/kaihuan-huang/HR-AI/internal/orchestrator"
	"github.com/kaihuan-huang/HR-AI/internal/store"
)

// Service records turns and produces assistant replies.
type Service struct {
	repo          store.Repository
	completer     Completer
	historyWindow int
	log           ConversationLogger
	metrics       *metrics.Metrics
}

// NewService creates a chat service. historyWindow is the number of most
// recent turns, including the new user turn, sent with each completion.
func NewService(repo store.Repository, completer Completer, historyWindow int, conversationLogger ConversationLogger, m *metrics.Metrics) *Service {
	if historyWindow <= 0 {
		historyWindow = orchestrator.DefaultHistoryWindow
	}
	if conversationLogger == nil {
		conversationLogger = noopConversationLogger{}
	}
	return &Service{
		repo:          repo,
		completer:     completer,
		historyWindow: historyWindow,
		log:           conversationLogger,
		metrics:       m,
	}
}

// Submit appends the user turn, asks for a reply and appends the assistant
// turn. When every provider fails the user turn stays recorded, the result
// carries it and the error is an *llm.AllProvidersFailedError.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	userTurn := &domain.Turn{
		UserID:  req.UserID,
		Role:    domain.RoleUser,
		Content: req.Content,
	}
	if err := s.repo.AppendTurn(ctx, userTurn); err != nil {
		return nil, fmt.Errorf("store user turn: %w", err)
	}
	s.metrics.TurnAppended(string(domain.RoleUser))
	s.logTurn(req, "outbound", "chat_user_message", req.Content, map[string]any{
		"workspace_bytes": len(req.Workspace),
	})

	result := &SubmitResult{UserTurn: userTurn}

	recent, err := s.repo.ListRecentTurns(ctx, req.UserID, s.historyWindow)
	if err != nil {
		return result, fmt.Errorf("load recent turns: %w", err)
	}

	reply, err := s.completer.Complete(ctx, orchestrator.Request{Turns: recent, Workspace: req.Workspace})
	if err != nil {
		slog.Error("Completion failed",
			"user_id", req.UserID,
			"session_id", req.SessionID,
			"request_id", req.RequestID,
			"error", err,
		)
		s.logTurn(req, "inbound", "chat_completion_failed", "", map[string]any{
			"error": err.Error(),
		})
		return result, err
	}

	// The reply is kept even if the caller went away while waiting for it.
	persistCtx := context.WithoutCancel(ctx)
	assistantTurn := &domain.Turn{
		UserID:  req.UserID,
		Role:    domain.RoleAssistant,
		Content: reply,
	}
	if err := s.repo.AppendTurn(persistCtx, assistantTurn); err != nil {
		return result, fmt.Errorf("store assistant turn: %w", err)
	}
	s.metrics.TurnAppended(string(domain.RoleAssistant))
	s.logTurn(req, "inbound", "chat_assistant_message", reply, nil)

	result.AssistantTurn = assistantTurn
	return result, nil
}

// History returns every turn for the user in creation order.
func (s *Service) History(ctx context.Context, userID string) ([]domain.Turn, error) {
	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Message: "user is required"}
	}
	turns, err := s.repo.ListTurns(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	return turns, nil
}

// Close flushes the conversation log.
func (s *Service) Close() error {
	return s.log.Close()
}

func (s *Service) logTurn(req SubmitRequest, direction, eventType, content string, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["request_id"] = req.RequestID
	s.log.Log(ConversationLogEvent{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		UserID:     req.UserID,
		SessionID:  req.SessionID,
		Channel:    "chat",
		Direction:  direction,
		EventType:  eventType,
		ContentRaw: content,
		Content:    cleanForReadability(content),
		Meta:       meta,
	})
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// IsUnavailable reports whether err means no provider produced a reply.
func IsUnavailable(err error) bool {
	var all *llm.AllProvidersFailedError
	return errors.As(err, &all)
}
