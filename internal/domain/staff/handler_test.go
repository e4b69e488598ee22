package staff

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/httperr"
)

func newContext(method, body string, sess *auth.Session) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, "/", nil)
	}
	ctx := context.WithValue(req.Context(), db.ClinicIDKey, "marianne")
	if sess != nil {
		ctx = auth.WithSession(ctx, sess)
	}
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_Login(t *testing.T) {
	svc, _, _ := newTestService()
	mustCreate(t, svc, "mette@klinik.dk", "employee")
	h := NewHandler(svc)

	c, rec := newContext(http.MethodPost, `{"email":"mette@klinik.dk","password":"hemmelig-123"}`, nil)
	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var res struct {
		Token string `json:"token"`
		User  struct {
			Role     string `json:"role"`
			ClinicID string `json:"clinic_id"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if res.Token == "" || res.User.Role != "employee" || res.User.ClinicID != "marianne" {
		t.Errorf("unexpected login response %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("login response must not echo credentials")
	}
}

func TestHandler_Login_WrongPassword(t *testing.T) {
	svc, _, _ := newTestService()
	mustCreate(t, svc, "mette@klinik.dk", "employee")
	h := NewHandler(svc)

	c, _ := newContext(http.MethodPost, `{"email":"mette@klinik.dk","password":"nej"}`, nil)
	if err := h.Login(c); !errors.Is(err, apperr.ErrInvalidCredentials) {
		t.Errorf("expected invalid credentials, got %v", err)
	}
}

func TestHandler_LogoutAndMe(t *testing.T) {
	svc, _, rev := newTestService()
	h := NewHandler(svc)
	sess := &auth.Session{TokenID: "jti-1", UserID: "u1", Name: "Mette", Role: auth.RoleEmployee}

	c, rec := newContext(http.MethodGet, "", sess)
	if err := h.Me(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"name":"Mette"`) {
		t.Errorf("unexpected me body %s", rec.Body.String())
	}

	c, rec = newContext(http.MethodPost, "", sess)
	if err := h.Logout(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent || len(rev.revoked) != 1 {
		t.Errorf("expected 204 and one revocation, got %d and %d", rec.Code, len(rev.revoked))
	}

	c, _ = newContext(http.MethodGet, "", nil)
	if err := h.Me(c); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("expected unauthenticated, got %v", err)
	}
}

func TestHandler_CreateListUpdate(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc)
	admin := &auth.Session{UserID: "admin-1", Role: auth.RoleAdmin}

	c, rec := newContext(http.MethodPost, `{"email":"ny@klinik.dk","name":"Ny","role":"employee","password":"hemmelig-123"}`, admin)
	if err := h.CreateAccount(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "hash") || strings.Contains(rec.Body.String(), "hemmelig") {
		t.Errorf("account response leaks credentials: %s", rec.Body.String())
	}
	var created Account
	_ = json.Unmarshal(rec.Body.Bytes(), &created)

	c, rec = newContext(http.MethodGet, "", admin)
	if err := h.ListAccounts(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "ny@klinik.dk") {
		t.Errorf("unexpected list %s", rec.Body.String())
	}

	c, rec = newContext(http.MethodPatch, `{"active":false}`, admin)
	c.SetParamNames("id")
	c.SetParamValues(created.ID.String())
	if err := h.UpdateAccount(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"active":false`) {
		t.Errorf("unexpected update body %s", rec.Body.String())
	}
}

func TestHandler_UpdateAccount_InvalidID(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc)
	c, _ := newContext(http.MethodPatch, `{}`, &auth.Session{UserID: "a", Role: auth.RoleAdmin})
	c.SetParamNames("id")
	c.SetParamValues("nope")
	var he *echo.HTTPError
	if err := h.UpdateAccount(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestRegisterRoutes_AdminGate(t *testing.T) {
	svc, _, _ := newTestService()
	e := echo.New()
	e.HTTPErrorHandler = httperr.New(zerolog.Nop(), nil).Handle
	NewHandler(svc).RegisterRoutes(e.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/staff", nil)
	req = req.WithContext(auth.WithSession(req.Context(), &auth.Session{UserID: "u", Role: auth.RoleEmployee}))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected employee blocked from staff list, got %d", rec.Code)
	}
}

func TestRegisterRoutes_ChangePassword(t *testing.T) {
	svc, _, _ := newTestService()
	a := mustCreate(t, svc, "mette@klinik.dk", "employee")
	e := echo.New()
	e.HTTPErrorHandler = httperr.New(zerolog.Nop(), nil).Handle
	NewHandler(svc).RegisterRoutes(e.Group("/api/v1"))
	sess := &auth.Session{UserID: a.ID.String(), Role: auth.RoleEmployee}

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/password", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req = req.WithContext(auth.WithSession(req.Context(), sess))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	if rec := send(`{"current_password":"forkert-kode","new_password":"nyt-kodeord-1"}`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for a wrong current password, got %d", rec.Code)
	}
	if rec := send(`{"current_password":"hemmelig-123","new_password":"nyt-kodeord-1"}`); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if _, err := svc.Login(context.Background(), "", "mette@klinik.dk", "nyt-kodeord-1"); err != nil {
		t.Errorf("expected login with changed password, got %v", err)
	}
}
