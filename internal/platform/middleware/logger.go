package middleware

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/auth"
)

func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid, _ := c.Get("request_id").(string)

			err := next(c)

			evt := logger.Info()
			if err != nil {
				evt = logger.Error().Err(err)
			}

			clinic, _ := c.Get("clinic_id").(string)
			evt.
				Str("request_id", rid).
				Str("method", req.Method).
				Str("path", redactPath(req.URL.Path)).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Str("clinic", clinic)
			if sess := auth.SessionFromContext(c.Request().Context()); sess != nil {
				evt.Str("user_id", sess.UserID)
			}
			evt.Msg("request")

			return err
		}
	}
}

// redactPath hides the access token in public questionnaire links; possession
// of the token is the only credential those links carry.
func redactPath(path string) string {
	if !strings.HasPrefix(path, "/questionnaire/") {
		return path
	}
	segments := strings.Split(path, "/")
	// "", "questionnaire", patientID, instanceID, token
	if len(segments) >= 5 && segments[4] != "" {
		segments[4] = "REDACTED"
	}
	return strings.Join(segments, "/")
}
