package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/azalio/gatewayd/internal/apperr"
)

func TestDisabledResolver_AlwaysAnonymous(t *testing.T) {
	r := New(false, nil)
	req := httptest.NewRequest("GET", "/api/sessions", nil)
	p, err := r.Resolve(req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p != Anonymous {
		t.Errorf("Resolve() = %+v, want Anonymous", p)
	}
}

func TestTokenResolver_BearerHeader(t *testing.T) {
	r := New(true, map[string]string{"secret": "alice"})
	req := httptest.NewRequest("GET", "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer secret")

	p, err := r.Resolve(req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.UserID != "alice" {
		t.Errorf("UserID = %q, want %q", p.UserID, "alice")
	}
}

func TestTokenResolver_QueryParamFallback(t *testing.T) {
	r := New(true, map[string]string{"secret": "alice"})
	req := httptest.NewRequest("GET", "/ws?token=secret", nil)

	p, err := r.Resolve(req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.UserID != "alice" {
		t.Errorf("UserID = %q, want %q", p.UserID, "alice")
	}
}

func TestTokenResolver_CookieFallback(t *testing.T) {
	r := New(true, map[string]string{"secret": "alice"})
	req := httptest.NewRequest("GET", "/ws", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: "secret"})

	p, err := r.Resolve(req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.UserID != "alice" {
		t.Errorf("UserID = %q, want %q", p.UserID, "alice")
	}
}

func TestTokenResolver_MissingCredential(t *testing.T) {
	r := New(true, map[string]string{"secret": "alice"})
	req := httptest.NewRequest("GET", "/ws", nil)

	if _, err := r.Resolve(req); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("Resolve err = %v, want KindUnauthorized", err)
	}
}

func TestTokenResolver_InvalidCredential(t *testing.T) {
	r := New(true, map[string]string{"secret": "alice"})
	req := httptest.NewRequest("GET", "/ws?token=wrong", nil)

	if _, err := r.Resolve(req); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("Resolve err = %v, want KindUnauthorized", err)
	}
}
