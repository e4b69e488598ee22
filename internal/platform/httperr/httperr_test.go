package httperr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/i18n"
)

type recordingRevoker struct {
	revoked []*auth.Session
}

func (r *recordingRevoker) RevokeSession(s *auth.Session) {
	r.revoked = append(r.revoked, s)
}

func TestResolve_Kinds(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
		logout bool
	}{
		{apperr.NotFound("instance"), http.StatusNotFound, "not_found", false},
		{apperr.Validation("bad", "q1"), http.StatusUnprocessableEntity, "validation", false},
		{apperr.AlreadyCompleted("done"), http.StatusConflict, "already_completed", false},
		{apperr.Expired("old"), http.StatusGone, "expired", false},
		{apperr.InvalidCredentials(), http.StatusUnauthorized, "invalid_credentials", false},
		{apperr.AccountDisabled(), http.StatusForbidden, "account_disabled", false},
		{apperr.Unauthenticated("no token"), http.StatusUnauthorized, "unauthenticated", true},
		{apperr.Unauthorized("admin only"), http.StatusForbidden, "unauthorized", false},
		{apperr.Conflict("dup"), http.StatusConflict, "conflict", false},
		{apperr.BackendUnavailable(errors.New("conn refused")), http.StatusServiceUnavailable, "backend_unavailable", true},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, body := Resolve(fmt.Errorf("wrapped: %w", tt.err), i18n.Danish)
			if status != tt.status {
				t.Errorf("expected %d, got %d", tt.status, status)
			}
			if body.Error != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, body.Error)
			}
			if body.Message == "" {
				t.Error("expected a localized message")
			}
			if body.Logout != tt.logout {
				t.Errorf("expected logout=%v, got %v", tt.logout, body.Logout)
			}
		})
	}
}

func TestResolve_MissingAnswersMessage(t *testing.T) {
	_, body := Resolve(fmt.Errorf("submit: %w", apperr.MissingAnswers("missing", "q1", "q3")), i18n.English)
	if body.Message != i18n.T(i18n.English, i18n.KeyMissingAnswers) {
		t.Errorf("unexpected message %q", body.Message)
	}
	if len(body.Fields) != 2 || body.Fields[0] != "q1" {
		t.Errorf("expected offending fields, got %v", body.Fields)
	}
}

func TestResolve_OtherValidationKeepsGenericMessage(t *testing.T) {
	tests := []error{
		apperr.Validation("invalid email", "email"),
		apperr.Validation("invalid template: q1: min must not exceed max", "q1"),
		apperr.Validation("completion date lies in the future", "date"),
	}
	want := i18n.T(i18n.English, string(apperr.KindValidation))
	for _, err := range tests {
		_, body := Resolve(err, i18n.English)
		if body.Message != want {
			t.Errorf("%v: expected %q, got %q", err, want, body.Message)
		}
		if len(body.Fields) != 1 {
			t.Errorf("%v: expected fields kept, got %v", err, body.Fields)
		}
	}
}

func TestResolve_EchoAndUnknown(t *testing.T) {
	status, body := Resolve(echo.NewHTTPError(http.StatusTooManyRequests), i18n.Danish)
	if status != http.StatusTooManyRequests || body.Error != i18n.KeyRateLimited {
		t.Errorf("unexpected 429 mapping: %d %+v", status, body)
	}
	status, body = Resolve(echo.ErrNotFound, i18n.Danish)
	if status != http.StatusNotFound || body.Error != "not_found" {
		t.Errorf("unexpected 404 mapping: %d %+v", status, body)
	}
	status, body = Resolve(errors.New("nil pointer"), i18n.Danish)
	if status != http.StatusInternalServerError || body.Error != i18n.KeyInternal {
		t.Errorf("unexpected fallback: %d %+v", status, body)
	}
}

func TestResolve_DeadlineIsBackendUnavailable(t *testing.T) {
	status, body := Resolve(fmt.Errorf("query: %w", context.DeadlineExceeded), i18n.Danish)
	if status != http.StatusServiceUnavailable || !body.Logout {
		t.Errorf("expected 503 with logout, got %d %+v", status, body)
	}
}

func runHandle(t *testing.T, err error, sess *auth.Session, rev *recordingRevoker) (*httptest.ResponseRecorder, Body) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/staff", nil)
	ctx := i18n.WithLocale(req.Context(), i18n.English)
	if sess != nil {
		ctx = auth.WithSession(ctx, sess)
	}
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	New(zerolog.Nop(), rev).Handle(err, c)

	var body Body
	if jerr := json.Unmarshal(rec.Body.Bytes(), &body); jerr != nil {
		t.Fatalf("invalid json body: %v", jerr)
	}
	return rec, body
}

func TestHandle_UnauthorizedWithSessionForcesLogout(t *testing.T) {
	rev := &recordingRevoker{}
	sess := &auth.Session{TokenID: "jti-1", UserID: "u", Role: auth.RoleEmployee}
	rec, body := runHandle(t, apperr.Unauthorized("admin only"), sess, rev)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
	if !body.Logout || body.Redirect != LoginRedirect {
		t.Errorf("expected forced logout, got %+v", body)
	}
	if len(rev.revoked) != 1 || rev.revoked[0].TokenID != "jti-1" {
		t.Errorf("expected session revoked, got %v", rev.revoked)
	}
	if body.Message != i18n.T(i18n.English, "unauthorized") {
		t.Errorf("expected english message, got %q", body.Message)
	}
}

func TestHandle_BackendUnavailableRevokes(t *testing.T) {
	rev := &recordingRevoker{}
	sess := &auth.Session{TokenID: "jti-2", UserID: "u", Role: auth.RoleAdmin}
	rec, body := runHandle(t, apperr.BackendUnavailable(errors.New("down")), sess, rev)
	if rec.Code != http.StatusServiceUnavailable || !body.Logout {
		t.Errorf("expected 503 logout, got %d %+v", rec.Code, body)
	}
	if len(rev.revoked) != 1 {
		t.Error("expected session revoked on backend outage")
	}
}

func TestHandle_NotFoundKeepsSession(t *testing.T) {
	rev := &recordingRevoker{}
	sess := &auth.Session{TokenID: "jti-3", UserID: "u", Role: auth.RoleEmployee}
	_, body := runHandle(t, apperr.NotFound("patient"), sess, rev)
	if body.Logout || len(rev.revoked) != 0 {
		t.Errorf("not found must not end the session: %+v", body)
	}
}

func TestHandle_UnauthorizedWithoutSession(t *testing.T) {
	rev := &recordingRevoker{}
	_, body := runHandle(t, apperr.Unauthorized("nope"), nil, rev)
	if body.Logout || len(rev.revoked) != 0 {
		t.Errorf("anonymous request has nothing to log out: %+v", body)
	}
}
