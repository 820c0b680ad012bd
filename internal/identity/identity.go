// Package identity resolves the anonymous caller of every request: a
// per-device user id kept in a cookie and a per-tab session id sent by the
// client.
package identity

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	// AnonCookieName carries the per-device user id.
	AnonCookieName = "seq_anon_id"
	// SessionHeaderName carries the per-tab session id. Browsers cannot set
	// headers on a WebSocket upgrade, so the session_id query parameter is
	// accepted as well.
	SessionHeaderName = "X-Session-ID"
	// SessionQueryParam is the query fallback for SessionHeaderName.
	SessionQueryParam = "session_id"
	// DefaultSessionIDValue is used when the client sends no usable session id.
	DefaultSessionIDValue = "default"
)

// Identity is the caller of one request.
type Identity struct {
	UserID    string
	Username  string
	SessionID string
}

type contextKey struct{}

var (
	anonIDPattern    = regexp.MustCompile(`^anon_[a-f0-9]{32}$`)
	sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
)

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the caller stored by Middleware. The zero Identity,
// with the default session id, is returned outside the middleware.
func FromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(contextKey{}).(Identity); ok {
		return id
	}
	return Identity{SessionID: DefaultSessionIDValue}
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	return FromContext(ctx).UserID
}

// SessionIDFromContext extracts the tab session ID from the request context.
func SessionIDFromContext(ctx context.Context) string {
	return FromContext(ctx).SessionID
}

// NewAnonID returns a fresh user id of the form anon_<32 hex>.
func NewAnonID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate anonymous id: %w", err)
	}
	return "anon_" + strings.ReplaceAll(u.String(), "-", ""), nil
}

// ValidAnonID reports whether id was issued by NewAnonID.
func ValidAnonID(id string) bool {
	return anonIDPattern.MatchString(id)
}

// Username derives the display name shown for an anonymous user.
func Username(userID string) string {
	if len(userID) > 13 {
		return "anon-" + userID[len(userID)-8:]
	}
	return "anon-user"
}

// SessionIDFromRequest reads the tab session id from the header or the
// query fallback. Missing or malformed values map to DefaultSessionIDValue so
// one bad client cannot address another tab's session key space.
func SessionIDFromRequest(r *http.Request) string {
	sid := strings.TrimSpace(r.Header.Get(SessionHeaderName))
	if sid == "" {
		sid = strings.TrimSpace(r.URL.Query().Get(SessionQueryParam))
	}
	if !sessionIDPattern.MatchString(sid) {
		return DefaultSessionIDValue
	}
	return sid
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
