// Package live serves workspace sessions over WebSocket.
package live

import (
	"log/slog"
	"sync"
)

// SessionManager tracks the live session for each user and tab session.
type SessionManager struct {
	mu     sync.RWMutex
	active map[string]map[string]*Session
}

// NewSessionManager creates a new session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		active: make(map[string]map[string]*Session),
	}
}

// GetActive returns the active session for a user and tab session.
func (m *SessionManager) GetActive(userID, sessionID string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sessions, ok := m.active[userID]; ok {
		return sessions[sessionID]
	}
	return nil
}

// Register makes s the active session for userID/sessionID. A previous
// session for the same key is closed.
func (m *SessionManager) Register(userID, sessionID string, s *Session) {
	m.mu.Lock()
	if _, exists := m.active[userID]; !exists {
		m.active[userID] = make(map[string]*Session)
	}
	existing := m.active[userID][sessionID]
	m.active[userID][sessionID] = s
	m.mu.Unlock()

	if existing != nil && existing != s {
		existing.Close("session replaced")
	}
	slog.Info("Workspace session registered", "user_id", userID, "session_id", sessionID)
}

// Unregister removes s if it is still the active session for its key.
func (m *SessionManager) Unregister(userID, sessionID string, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessions, ok := m.active[userID]; ok {
		if current, exists := sessions[sessionID]; exists && current == s {
			delete(sessions, sessionID)
			if len(sessions) == 0 {
				delete(m.active, userID)
			}
			slog.Info("Workspace session unregistered", "user_id", userID, "session_id", sessionID)
		}
	}
}

// CloseUser terminates every live session for a user.
func (m *SessionManager) CloseUser(userID string) {
	m.mu.Lock()
	sessions := m.active[userID]
	delete(m.active, userID)
	m.mu.Unlock()

	for sid, s := range sessions {
		s.Close("session closed")
		slog.Info("Workspace session closed", "user_id", userID, "session_id", sid)
	}
}

// HasUser reports whether userID has at least one live session.
func (m *SessionManager) HasUser(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active[userID]) > 0
}

// Users returns the ids of users with at least one live session.
func (m *SessionManager) Users() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make([]string, 0, len(m.active))
	for uid := range m.active {
		users = append(users, uid)
	}
	return users
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, sessions := range m.active {
		n += len(sessions)
	}
	return n
}
