package auth

import (
	"context"
	"time"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// ParseRole accepts the stored role names. The original clinic apps called
// ordinary staff "user"; that spelling maps to employee.
func ParseRole(s string) (Role, bool) {
	switch s {
	case "admin":
		return RoleAdmin, true
	case "employee", "user":
		return RoleEmployee, true
	}
	return "", false
}

// Session is the identity attached to an authenticated staff request. It is
// created at login, travels inside the signed token and is rebuilt per request
// by SessionMiddleware; logout revokes its TokenID.
type Session struct {
	TokenID   string    `json:"-"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	ClinicID  string    `json:"clinic_id,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == RoleAdmin
}

type sessionKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the current staff session, or nil for anonymous
// requests such as the public questionnaire links.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

// ActorFromContext names the staff member behind ctx for audit columns.
func ActorFromContext(ctx context.Context) string {
	if s := SessionFromContext(ctx); s != nil {
		if s.Email != "" {
			return s.Email
		}
		return s.UserID
	}
	return ""
}
