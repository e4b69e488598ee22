package auth

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// RevocationChecker reports logged-out tokens.
type RevocationChecker interface {
	IsRevoked(jti string) bool
}

type SessionConfig struct {
	Issuer      *Issuer
	Revocations RevocationChecker
	// Skipper lets public routes such as login through without a session.
	Skipper func(echo.Context) bool
	// DevMode attaches an admin development session to requests that carry
	// no Authorization header. Never enable outside ENV=development.
	DevMode bool
}

// SessionMiddleware verifies the bearer token and attaches the Session to the
// request context. Failures surface as apperr Unauthenticated errors so the
// error handler can send the client back to the login screen.
func SessionMiddleware(cfg SessionConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				if cfg.DevMode {
					return next(attach(c, DevSession()))
				}
				return apperr.Unauthenticated("missing authorization header")
			}

			scheme, tokenStr, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || tokenStr == "" {
				return apperr.Unauthenticated("invalid authorization format")
			}

			sess, err := cfg.Issuer.Parse(strings.TrimSpace(tokenStr))
			if err != nil {
				return apperr.Wrap(apperr.KindUnauthenticated, err, "invalid session token")
			}
			if cfg.Revocations != nil && cfg.Revocations.IsRevoked(sess.TokenID) {
				return apperr.Unauthenticated("session has been logged out")
			}

			return next(attach(c, sess))
		}
	}
}

func attach(c echo.Context, sess *Session) echo.Context {
	if sess.ClinicID != "" {
		c.Set("jwt_clinic_id", sess.ClinicID)
	}
	c.SetRequest(c.Request().WithContext(WithSession(c.Request().Context(), sess)))
	return c
}

// DevSession is the identity used by development mode.
func DevSession() *Session {
	now := time.Now()
	return &Session{
		UserID:    "dev-user",
		Email:     "dev@localhost",
		Name:      "Udvikler",
		Role:      RoleAdmin,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
}
