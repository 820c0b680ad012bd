package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/coder/websocket"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kaihuan-huang/HR-AI/internal/chat"
	"github.com/kaihuan-huang/HR-AI/internal/domain"
	"github.com/kaihuan-huang/HR-AI/internal/identity"
	"github.com/kaihuan-huang/HR-AI/internal/metrics"
	"github.com/kaihuan-huang/HR-AI/internal/workspace"
)

const (
	writeTimeout   = 10 * time.Second
	maxMessageSize = 1 << 20
)

// ChatService is the conversation backend used by live sessions.
type ChatService interface {
	Submit(ctx context.Context, req chat.SubmitRequest) (*chat.SubmitResult, error)
	History(ctx context.Context, userID string) ([]domain.Turn, error)
}

// WebSocketHandler serves GET /ws/workspace.
type WebSocketHandler struct {
	chat           ChatService
	sm             *SessionManager
	allowedOrigins []string
	isDev          bool
	metrics        *metrics.Metrics
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(chatSvc ChatService, sm *SessionManager, allowedOrigins []string, isDev bool, m *metrics.Metrics) *WebSocketHandler {
	return &WebSocketHandler{
		chat:           chatSvc,
		sm:             sm,
		allowedOrigins: allowedOrigins,
		isDev:          isDev,
		metrics:        m,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	slog.Info("WebSocket connection request", "user_id", userID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	ws.SetReadLimit(maxMessageSize)

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	sess := NewSession(userID, sessionID, ws, cancel)
	defer sess.Close("session ended")

	h.sm.Register(userID, sessionID, sess)
	defer h.sm.Unregister(userID, sessionID, sess)
	h.metrics.SessionOpened()
	defer h.metrics.SessionClosed()

	conn := &connection{
		h:         h,
		sess:      sess,
		requestID: chiMiddleware.GetReqID(r.Context()),
	}
	conn.run(ctx)
	slog.Info("Workspace session ended", "user_id", userID, "session_id", sessionID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(h.allowedOrigins, "*") || slices.Contains(h.allowedOrigins, origin) {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigins)
	return false
}

// connection runs the message loop of one session.
type connection struct {
	h         *WebSocketHandler
	sess      *Session
	requestID string
	inFlight  sync.WaitGroup
}

func (c *connection) run(ctx context.Context) {
	defer c.inFlight.Wait()
	defer c.sess.Workspace.Abandon()
	defer c.sess.cancel()

	if turns, err := c.h.chat.History(ctx, c.sess.UserID); err != nil {
		slog.Warn("Failed to load history", "error", err, "user_id", c.sess.UserID)
	} else {
		c.send(ctx, Event{Type: EventHistory, Turns: turns})
	}
	c.sendState(ctx, nil)

	for {
		_, data, err := c.sess.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("WebSocket closed", "user_id", c.sess.UserID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", c.sess.UserID)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError(ctx, "invalid_message", "message must be JSON", false)
			continue
		}
		c.dispatch(ctx, msg)
	}
}

//nolint:gocyclo // Message dispatch keeps every protocol branch in one place.
func (c *connection) dispatch(ctx context.Context, msg clientMessage) {
	ws := c.sess.Workspace

	switch msg.Type {
	case msgSend:
		c.submit(ctx, msg.Content)

	case msgLoad:
		change := ws.Load(msg.Text)
		c.sendState(ctx, &change)

	case msgBeginEdit:
		if err := ws.BeginEdit(msg.StepID); err != nil {
			c.sendWorkspaceError(ctx, err)
			return
		}
		c.sendState(ctx, nil)

	case msgCommitEdit:
		ok, err := ws.CommitEdit(msg.StepID, msg.Content)
		if err != nil {
			c.sendWorkspaceError(ctx, err)
			return
		}
		if !ok {
			c.send(ctx, Event{Type: EventEditRejected, StepID: msg.StepID, Error: "step content cannot be blank"})
			return
		}
		c.sendState(ctx, nil)

	case msgCancelEdit:
		if err := ws.CancelEdit(msg.StepID); err != nil {
			c.sendWorkspaceError(ctx, err)
			return
		}
		c.sendState(ctx, nil)

	case msgSetVariable:
		if err := ws.SetVariable(msg.Key, msg.Value); err != nil {
			c.sendError(ctx, "invalid_variable", err.Error(), false)
			return
		}
		c.sendState(ctx, nil)

	case msgDeleteVariable:
		ws.DeleteVariable(msg.Key)
		c.sendState(ctx, nil)

	case msgReset:
		change := ws.Load("")
		c.sendState(ctx, &change)

	case msgPing:
		c.send(ctx, Event{Type: EventPong})

	default:
		c.sendError(ctx, "unknown_type", "unknown message type "+msg.Type, false)
	}
}

// submit starts a completion tagged with a new request id. The reply is
// loaded only if the request is still the latest one when it returns.
func (c *connection) submit(ctx context.Context, content string) {
	ws := c.sess.Workspace
	id, err := ws.BeginRequest()
	if err != nil {
		c.sendWorkspaceError(ctx, err)
		return
	}
	c.sendState(ctx, nil)

	req := chat.SubmitRequest{
		UserID:    c.sess.UserID,
		SessionID: c.sess.SessionID,
		RequestID: c.requestID,
		Content:   content,
		Workspace: ws.Serialize(),
	}

	c.inFlight.Add(1)
	go func() {
		defer c.inFlight.Done()

		res, err := c.h.chat.Submit(ctx, req)
		if err != nil {
			ws.FailRequest(id)
			c.sendSubmitError(ctx, id, res, err)
			c.sendState(ctx, nil)
			return
		}

		change, applied := ws.CompleteRequest(id, res.AssistantTurn.Content)
		c.send(ctx, Event{
			Type:          EventTurns,
			RequestID:     id,
			UserTurn:      res.UserTurn,
			AssistantTurn: res.AssistantTurn,
			Applied:       applied,
		})
		if !applied {
			slog.Info("Dropped stale completion", "user_id", c.sess.UserID, "session_id", c.sess.SessionID, "request", id)
			c.sendState(ctx, nil)
			return
		}
		c.sendState(ctx, &change)
	}()
}

func (c *connection) sendSubmitError(ctx context.Context, id uint64, res *chat.SubmitResult, err error) {
	ev := Event{Type: EventError, RequestID: id}
	if res != nil {
		ev.UserTurn = res.UserTurn
	}

	var verr *chat.ValidationError
	switch {
	case errors.As(err, &verr):
		ev.Code = "validation"
		ev.Error = verr.Error()
	case chat.IsUnavailable(err):
		ev.Code = "unavailable"
		ev.Error = chat.UnavailableMessage
		ev.Retryable = true
	case errors.Is(err, context.Canceled):
		return
	default:
		slog.Error("Live submit failed", "error", err, "user_id", c.sess.UserID)
		ev.Code = "internal"
		ev.Error = chat.UnavailableMessage
		ev.Retryable = true
	}
	c.send(ctx, ev)
}

func (c *connection) sendWorkspaceError(ctx context.Context, err error) {
	switch {
	case errors.Is(err, workspace.ErrStepNotFound):
		c.sendError(ctx, "step_not_found", err.Error(), false)
	case errors.Is(err, workspace.ErrNotEditing):
		c.sendError(ctx, "not_editing", err.Error(), false)
	case errors.Is(err, workspace.ErrRequestInFlight):
		c.sendError(ctx, "request_in_flight", err.Error(), true)
	default:
		c.sendError(ctx, "workspace", err.Error(), false)
	}
}

func (c *connection) sendError(ctx context.Context, code, message string, retryable bool) {
	c.send(ctx, Event{Type: EventError, Code: code, Error: message, Retryable: retryable})
}

func (c *connection) sendState(ctx context.Context, change *workspace.Change) {
	snap := c.sess.Workspace.Snapshot()
	ev := Event{Type: EventState, State: &snap}
	if change != nil {
		ev.Diff = change.Diff
	}
	c.send(ctx, ev)
}

func (c *connection) send(ctx context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("Failed to marshal event", "error", err, "type", ev.Type)
		return
	}

	c.sess.writeMu.Lock()
	defer c.sess.writeMu.Unlock()

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := c.sess.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		slog.Debug("WebSocket write error", "error", err, "user_id", c.sess.UserID)
	}
}
