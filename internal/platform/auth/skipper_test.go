package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestAuthSkipper(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/api/v1/auth/login", true},
		{"/health", true},
		{"/health/db", true},
		{"/api/v1/auth/logout", false},
		{"/api/v1/auth/me", false},
		{"/api/v1/patients", false},
		{"/health/extra", false},
		{"/", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			c := e.NewContext(req, httptest.NewRecorder())
			c.SetPath(tt.path)
			if got := AuthSkipper(c); got != tt.want {
				t.Errorf("AuthSkipper(%s) = %v, want %v", tt.path, got, tt.want)
			}
			if got := IsPublicPath(tt.path); got != tt.want {
				t.Errorf("IsPublicPath(%s) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestSessionMiddleware_SkipsLogin(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/v1/auth/login")

	var called bool
	handler := func(c echo.Context) error {
		called = true
		if SessionFromContext(c.Request().Context()) != nil {
			t.Error("expected no session on skipped route")
		}
		return c.NoContent(http.StatusOK)
	}
	mw := SessionMiddleware(SessionConfig{Issuer: NewIssuer(testKey, time.Hour), Skipper: AuthSkipper})
	if err := mw(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected handler to run without a session")
	}
}
