package questionnaire

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
)

func newPublicContext(e *echo.Echo, method, body string, inst *Instance, token string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, "/", nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("patient_id", "instance_id", "token")
	c.SetParamValues(inst.PatientID.String(), inst.ID.String(), token)
	return c, rec
}

func publicFixture(t *testing.T) (*PublicHandler, *testEnv, *Instance) {
	t.Helper()
	env := newTestEnv(Options{})
	tmpl := env.createTemplate(who5Template())
	inst, err := env.svc.CreateInstance(context.Background(), uuid.New(), tmpl.ID, "emp-1")
	if err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	return NewPublicHandler(env.svc), env, inst
}

func TestPublic_ShowHidesStaffFields(t *testing.T) {
	h, _, inst := publicFixture(t)
	c, rec := newPublicContext(echo.New(), http.MethodGet, "", inst, inst.AccessToken)
	if err := h.Show(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := rec.Body.String()
	for _, hidden := range []string{inst.AccessToken, "created_by", "responses", "template_id"} {
		if strings.Contains(body, hidden) {
			t.Errorf("public view leaks %q: %s", hidden, body)
		}
	}
	if !strings.Contains(body, `"points":[0,1,2,3,4,5]`) {
		t.Errorf("expected render plan in view, got %s", body)
	}
}

func TestPublic_PathIDsAreNotAuthoritative(t *testing.T) {
	h, _, inst := publicFixture(t)
	other := &Instance{ID: uuid.New(), PatientID: uuid.New()}
	c, rec := newPublicContext(echo.New(), http.MethodGet, "", other, inst.AccessToken)
	if err := h.Show(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), inst.ID.String()) {
		t.Error("expected the token's instance regardless of path ids")
	}
}

func TestPublic_ShowUnknownToken(t *testing.T) {
	h, _, inst := publicFixture(t)
	c, _ := newPublicContext(echo.New(), http.MethodGet, "", inst, "deadbeef")
	if err := h.Show(c); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestPublic_SubmitFlow(t *testing.T) {
	h, env, inst := publicFixture(t)
	e := echo.New()
	body := `{"responses":{"q1":3,"q2":4,"q3":2,"q4":5,"q5":1}}`

	c, rec := newPublicContext(e, http.MethodPost, body, inst, inst.AccessToken)
	if err := h.Submit(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"completed"`) {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
	stored, _ := env.svc.GetInstance(context.Background(), inst.ID)
	if !reflect.DeepEqual(stored.Responses, who5Answers()) {
		t.Errorf("unexpected stored responses %v", stored.Responses)
	}

	c, _ = newPublicContext(e, http.MethodPost, body, inst, inst.AccessToken)
	if err := h.Submit(c); !errors.Is(err, apperr.ErrAlreadyCompleted) {
		t.Errorf("expected already completed on resubmit, got %v", err)
	}
}

func TestPublic_SubmitRejectsBadAnswers(t *testing.T) {
	h, env, inst := publicFixture(t)
	body := `{"responses":{"q1":9,"q2":"fire","q3":2,"q4":5,"q5":1,"zz":1}}`
	c, _ := newPublicContext(echo.New(), http.MethodPost, body, inst, inst.AccessToken)
	err := h.Submit(c)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if fields := apperr.FieldsOf(err); !reflect.DeepEqual(fields, []string{"q1", "q2", "zz"}) {
		t.Errorf("expected [q1 q2 zz], got %v", fields)
	}
	stored, _ := env.svc.GetInstance(context.Background(), inst.ID)
	if stored.Status != StatusPending {
		t.Error("rejected submission changed the instance")
	}
}

func TestPublic_SubmitMissingRequired(t *testing.T) {
	h, _, inst := publicFixture(t)
	body := `{"responses":{"q1":3,"q2":4,"q3":2,"q5":1}}`
	c, _ := newPublicContext(echo.New(), http.MethodPost, body, inst, inst.AccessToken)
	err := h.Submit(c)
	if fields := apperr.FieldsOf(err); !errors.Is(err, apperr.ErrValidation) || !reflect.DeepEqual(fields, []string{"q4"}) {
		t.Errorf("expected q4 missing, got %v (%v)", err, fields)
	}
}
