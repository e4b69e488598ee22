package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists API routes reachable without a staff session.
var publicPaths = map[string]bool{
	"/api/v1/auth/login": true,
	"/health":            true,
	"/health/db":         true,
}

// AuthSkipper returns true for requests whose matched route needs no
// session. Pass it as SessionConfig.Skipper.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether path is reachable without a session.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
