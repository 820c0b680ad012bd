package live

import (
	"context"
	"sync"

	"github.com/coder/websocket"

	"github.com/kaihuan-huang/HR-AI/internal/workspace"
)

// Session is one connected client and the workspace it owns.
type Session struct {
	UserID    string
	SessionID string
	Workspace *workspace.Workspace

	conn   *websocket.Conn
	cancel context.CancelFunc

	closeOnce sync.Once
	writeMu   sync.Mutex
}

// NewSession creates a session owning a fresh workspace. conn may be nil
// for sessions that are not backed by a socket.
func NewSession(userID, sessionID string, conn *websocket.Conn, cancel context.CancelFunc) *Session {
	if cancel == nil {
		cancel = func() {}
	}
	return &Session{
		UserID:    userID,
		SessionID: sessionID,
		Workspace: workspace.New(),
		conn:      conn,
		cancel:    cancel,
	}
}

// Close abandons in-flight requests and closes the connection.
func (s *Session) Close(reason string) {
	s.closeOnce.Do(func() {
		s.Workspace.Abandon()
		s.cancel()
		if s.conn != nil {
			_ = s.conn.Close(websocket.StatusNormalClosure, reason)
		}
	})
}
