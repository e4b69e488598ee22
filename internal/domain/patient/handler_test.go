package patient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

func newTestHandler() (*Handler, *testEnv, *echo.Echo) {
	env := newTestEnv()
	return NewHandler(env.svc), env, echo.New()
}

func newContext(e *echo.Echo, method, body string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, "/", nil)
	}
	req = req.WithContext(auth.WithSession(req.Context(), &auth.Session{UserID: "emp-1", Email: "mette@klinik.dk", Role: auth.RoleEmployee}))
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_CreatePatient(t *testing.T) {
	h, env, e := newTestHandler()
	body := `{"name":"Ida","age":42,"template_ids":["` + env.template.ID.String() + `"]}`
	c, rec := newContext(e, http.MethodPost, body)
	if err := h.CreatePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var out struct {
		Patient        Patient           `json:"patient"`
		Questionnaires []json.RawMessage `json:"questionnaires"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if out.Patient.Name != "Ida" || out.Patient.CreatedBy != "mette@klinik.dk" || len(out.Questionnaires) != 1 {
		t.Errorf("unexpected response %s", rec.Body.String())
	}
}

func TestHandler_CreatePatient_Invalid(t *testing.T) {
	h, _, e := newTestHandler()
	c, _ := newContext(e, http.MethodPost, `{"age":42}`)
	if err := h.CreatePatient(c); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHandler_GetPatient(t *testing.T) {
	h, env, e := newTestHandler()
	created, _ := env.svc.CreatePatient(context.Background(), &Patient{Name: "Ida"}, nil, "emp-1")

	c, rec := newContext(e, http.MethodGet, "")
	c.SetParamNames("id")
	c.SetParamValues(created.Patient.ID.String())
	if err := h.GetPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c, _ = newContext(e, http.MethodGet, "")
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())
	if err := h.GetPatient(c); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestHandler_GetPatient_InvalidID(t *testing.T) {
	h, _, e := newTestHandler()
	c, _ := newContext(e, http.MethodGet, "")
	c.SetParamNames("id")
	c.SetParamValues("xyz")
	var he *echo.HTTPError
	if err := h.GetPatient(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_ListPatients(t *testing.T) {
	h, env, e := newTestHandler()
	_, _ = env.svc.CreatePatient(context.Background(), &Patient{Name: "Ida"}, nil, "emp-1")
	c, rec := newContext(e, http.MethodGet, "")
	if err := h.ListPatients(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("unexpected list %s", rec.Body.String())
	}
}

func TestHandler_UpdateAndDeletePatient(t *testing.T) {
	h, env, e := newTestHandler()
	created, _ := env.svc.CreatePatient(context.Background(), &Patient{Name: "Ida"}, []uuid.UUID{env.template.ID}, "emp-1")
	id := created.Patient.ID.String()

	c, rec := newContext(e, http.MethodPut, `{"name":"Ida Jensen","phone":"11223344"}`)
	c.SetParamNames("id")
	c.SetParamValues(id)
	if err := h.UpdatePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "Ida Jensen") {
		t.Errorf("unexpected update body %s", rec.Body.String())
	}

	c, rec = newContext(e, http.MethodDelete, "")
	c.SetParamNames("id")
	c.SetParamValues(id)
	if err := h.DeletePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if len(env.instances.data) != 0 {
		t.Errorf("expected questionnaires removed with the patient, %d left", len(env.instances.data))
	}
}
