package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/auth"
)

// AccessEntry records a staff member touching patient data.
type AccessEntry struct {
	UserID     string
	Role       string
	ClinicID   string
	Resource   string
	PatientID  string
	Action     string // read, create, update, delete, export
	IPAddress  string
	Path       string
	Method     string
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

// AccessRecorder persists access entries. The middleware always logs; a
// recorder is optional.
type AccessRecorder interface {
	RecordAccess(entry AccessEntry) error
}

// Audit logs every authenticated request against patient and questionnaire
// resources. Public questionnaire links are not audited here since the
// instance itself records completion.
func Audit(logger zerolog.Logger, recorders ...AccessRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			path := c.Request().URL.Path
			if !isAuditablePath(path) {
				return err
			}
			sess := auth.SessionFromContext(c.Request().Context())
			if sess == nil {
				return err
			}

			rid, _ := c.Get("request_id").(string)
			clinic, _ := c.Get("clinic_id").(string)
			entry := AccessEntry{
				UserID:     sess.UserID,
				Role:       string(sess.Role),
				ClinicID:   clinic,
				Resource:   extractResource(path),
				PatientID:  extractPatientID(path),
				Action:     httpMethodToAction(c.Request().Method, path),
				IPAddress:  c.RealIP(),
				Path:       path,
				Method:     c.Request().Method,
				Timestamp:  time.Now().UTC(),
				RequestID:  rid,
				StatusCode: c.Response().Status,
			}

			logger.Info().
				Str("user_id", entry.UserID).
				Str("role", entry.Role).
				Str("clinic", entry.ClinicID).
				Str("resource", entry.Resource).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Int("status", entry.StatusCode).
				Str("request_id", entry.RequestID).
				Msg("patient data access")

			for _, r := range recorders {
				if rerr := r.RecordAccess(entry); rerr != nil {
					logger.Warn().Err(rerr).Str("request_id", rid).Msg("failed to record access")
				}
			}
			return err
		}
	}
}

func isAuditablePath(path string) bool {
	return strings.HasPrefix(path, "/api/v1/patients") ||
		strings.HasPrefix(path, "/api/v1/questionnaires")
}

func httpMethodToAction(method, path string) string {
	if method == http.MethodGet && strings.HasSuffix(path, "/export") {
		return "export"
	}
	switch method {
	case http.MethodGet, http.MethodHead:
		return "read"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}

// extractResource returns "patients" or "questionnaires" from an API path.
func extractResource(path string) string {
	rest := strings.TrimPrefix(path, "/api/v1/")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[:i]
	}
	return rest
}

func extractPatientID(path string) string {
	rest := strings.TrimPrefix(path, "/api/v1/patients/")
	if rest == path || rest == "" {
		return ""
	}
	id := rest
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		id = rest[:i]
	}
	if isUUIDLike(id) {
		return id
	}
	return ""
}

func isUUIDLike(s string) bool {
	if len(s) != 36 {
		return false
	}
	for i, ch := range s {
		if i == 8 || i == 13 || i == 18 || i == 23 {
			if ch != '-' {
				return false
			}
			continue
		}
		if !strings.ContainsRune("0123456789abcdefABCDEF", ch) {
			return false
		}
	}
	return true
}
