package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/i18n"
)

// Locale negotiates the response language from ?lang= and Accept-Language
// and stores it in the request context for the error handler and exports.
func Locale(defaultLocale string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			loc := i18n.Negotiate(c.QueryParam("lang"), req.Header.Get("Accept-Language"), defaultLocale)
			c.SetRequest(req.WithContext(i18n.WithLocale(req.Context(), loc)))
			c.Response().Header().Set("Content-Language", loc)
			return next(c)
		}
	}
}
