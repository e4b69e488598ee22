// Package httperr renders every error leaving a handler as one JSON shape with
// a localized message. It is installed as echo's HTTPErrorHandler.
package httperr

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/i18n"
)

const LoginRedirect = "/login"

// Body is the error response document.
type Body struct {
	Error    string   `json:"error"`
	Message  string   `json:"message"`
	Fields   []string `json:"fields,omitempty"`
	Logout   bool     `json:"logout,omitempty"`
	Redirect string   `json:"redirect,omitempty"`
}

// SessionRevoker ends a session server side when a response forces logout.
type SessionRevoker interface {
	RevokeSession(s *auth.Session)
}

type Handler struct {
	logger  zerolog.Logger
	revoker SessionRevoker
}

func New(logger zerolog.Logger, revoker SessionRevoker) *Handler {
	return &Handler{logger: logger, revoker: revoker}
}

var kindStatus = map[apperr.Kind]int{
	apperr.KindNotFound:           http.StatusNotFound,
	apperr.KindValidation:         http.StatusUnprocessableEntity,
	apperr.KindAlreadyCompleted:   http.StatusConflict,
	apperr.KindExpired:            http.StatusGone,
	apperr.KindInvalidCredentials: http.StatusUnauthorized,
	apperr.KindAccountDisabled:    http.StatusForbidden,
	apperr.KindUnauthenticated:    http.StatusUnauthorized,
	apperr.KindUnauthorized:       http.StatusForbidden,
	apperr.KindConflict:           http.StatusConflict,
	apperr.KindBackendUnavailable: http.StatusServiceUnavailable,
}

var statusKey = map[int]string{
	http.StatusBadRequest:            i18n.KeyBadRequest,
	http.StatusUnauthorized:          string(apperr.KindUnauthenticated),
	http.StatusForbidden:             string(apperr.KindUnauthorized),
	http.StatusNotFound:              string(apperr.KindNotFound),
	http.StatusMethodNotAllowed:      i18n.KeyBadRequest,
	http.StatusRequestEntityTooLarge: i18n.KeyTooLarge,
	http.StatusUnsupportedMediaType:  i18n.KeyBadRequest,
	http.StatusTooManyRequests:       i18n.KeyRateLimited,
	http.StatusServiceUnavailable:    string(apperr.KindBackendUnavailable),
}

// Resolve classifies err into a status code and response body for locale.
// Deadline errors that escaped the store layer are reported as the store
// being unavailable.
func Resolve(err error, locale string) (int, Body) {
	if errors.Is(err, context.DeadlineExceeded) && apperr.KindOf(err) == "" {
		err = apperr.BackendUnavailable(err)
	}

	if kind := apperr.KindOf(err); kind != "" {
		status, ok := kindStatus[kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		body := Body{
			Error:   string(kind),
			Message: i18n.T(locale, string(kind)),
			Fields:  apperr.FieldsOf(err),
		}
		if apperr.ReasonOf(err) == apperr.ReasonMissingAnswers {
			body.Message = i18n.T(locale, i18n.KeyMissingAnswers)
		}
		switch kind {
		case apperr.KindBackendUnavailable, apperr.KindUnauthenticated:
			body.Logout, body.Redirect = true, LoginRedirect
		}
		return status, body
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		key, ok := statusKey[he.Code]
		if !ok {
			key = i18n.KeyInternal
			if he.Code < http.StatusInternalServerError {
				key = i18n.KeyBadRequest
			}
		}
		return he.Code, Body{Error: key, Message: i18n.T(locale, key)}
	}

	return http.StatusInternalServerError, Body{Error: i18n.KeyInternal, Message: i18n.T(locale, i18n.KeyInternal)}
}

// Handle is the echo.HTTPErrorHandler. An authorization failure on a live
// session and a store outage both end the session: the token is revoked and
// the client is told to return to the login page.
func (h *Handler) Handle(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	ctx := c.Request().Context()
	status, body := Resolve(err, i18n.FromContext(ctx))

	sess := auth.SessionFromContext(ctx)
	kind := apperr.KindOf(err)
	if sess != nil && (kind == apperr.KindUnauthorized || kind == apperr.KindBackendUnavailable) {
		body.Logout, body.Redirect = true, LoginRedirect
		if h.revoker != nil {
			h.revoker.RevokeSession(sess)
		}
	}

	rid, _ := c.Get("request_id").(string)
	evt := h.logger.Warn()
	if status >= http.StatusInternalServerError {
		evt = h.logger.Error()
	}
	evt.Err(err).
		Str("request_id", rid).
		Int("status", status).
		Str("kind", body.Error).
		Bool("logout", body.Logout).
		Msg("request failed")

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		h.logger.Error().Err(err).Str("request_id", rid).Msg("failed to write error response")
	}
}
