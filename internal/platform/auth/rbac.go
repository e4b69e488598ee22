package auth

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// RequireRole returns middleware that checks if the session holds one of the
// given roles. Admins always pass.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess := SessionFromContext(c.Request().Context())
			if sess == nil {
				return apperr.Unauthenticated("no session")
			}
			if HasRole(sess, roles...) {
				return next(c)
			}
			names := make([]string, len(roles))
			for i, r := range roles {
				names[i] = string(r)
			}
			return apperr.Unauthorized(fmt.Sprintf("required role: %s", strings.Join(names, " or ")))
		}
	}
}

// RequireAdmin gates template management and staff administration.
func RequireAdmin() echo.MiddlewareFunc {
	return RequireRole(RoleAdmin)
}

func HasRole(sess *Session, roles ...Role) bool {
	if sess.IsAdmin() {
		return true
	}
	for _, r := range roles {
		if sess != nil && sess.Role == r {
			return true
		}
	}
	return false
}
