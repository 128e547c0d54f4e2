package auth

import (
	"context"
	"time"

	"github.com/rogerio-castellano/stock-ledger/internal/models"
)

// Session is the authenticated identity attached to a request.
type Session struct {
	UserID    int64       `json:"user_id"`
	Username  string      `json:"username"`
	Role      models.Role `json:"role"`
	TokenID   string      `json:"-"`
	ExpiresAt time.Time   `json:"expires_at"`
}

func sessionFromClaims(c *Claims) *Session {
	s := &Session{UserID: c.UserID, Username: c.Username, Role: c.Role, TokenID: c.ID}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Time
	}
	return s
}

type contextKey string

const sessionKey = contextKey("session")

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFrom returns the session stored in ctx, or nil.
func SessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}

// Require is the single capability check run before every mutation. A nil
// session is unauthenticated; an admin satisfies any role.
func Require(s *Session, role models.Role) error {
	if s == nil {
		return models.ErrUnauthenticated
	}
	if s.Role == role || s.Role == models.RoleAdmin {
		return nil
	}
	return models.ErrForbidden
}
