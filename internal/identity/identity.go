// Package identity resolves the calling principal for HTTP and
// websocket requests, adapted from the teacher's
// authMiddleware/authTerminal bearer-then-query-then-cookie chain
// (internal/http/handlers.go) and generalized into a Resolver
// collaborator per spec §9.
package identity

import (
	"net/http"
	"strings"

	"github.com/azalio/gatewayd/internal/apperr"
)

// Principal identifies the caller of a request, used to scope sessions
// and categories and to gate notification preferences.
type Principal struct {
	UserID string
}

// Anonymous is returned by disabledResolver, and used as the owner of
// every session when auth is turned off.
var Anonymous = Principal{UserID: "anonymous"}

// Resolver authenticates an inbound HTTP request into a Principal.
type Resolver interface {
	Resolve(r *http.Request) (Principal, error)
	// Enabled reports whether this Resolver actually checks credentials,
	// for the health check's identity-provider status field.
	Enabled() bool
}

// disabledResolver accepts every request as Anonymous, for
// single-operator deployments (spec §6 auth.enabled=false).
type disabledResolver struct{}

func (disabledResolver) Resolve(r *http.Request) (Principal, error) {
	return Anonymous, nil
}

func (disabledResolver) Enabled() bool { return false }

// tokenResolver validates a bearer/query/cookie token against a set of
// allowed users, following the teacher's authTerminal precedence order
// (header, then query param, then cookie) so the same gate covers both
// the JSON API and the websocket upgrade, which cannot set a header
// from a browser's native WebSocket constructor.
type tokenResolver struct {
	allowed map[string]string // token -> user id
}

// NewTokenResolver builds a Resolver validating against allowed, a map
// of bearer token to user id (spec §6 auth.allowedUsers).
func NewTokenResolver(allowed map[string]string) Resolver {
	return &tokenResolver{allowed: allowed}
}

// New selects a Resolver based on whether auth is enabled.
func New(enabled bool, allowed map[string]string) Resolver {
	if !enabled {
		return disabledResolver{}
	}
	return NewTokenResolver(allowed)
}

func (t *tokenResolver) Enabled() bool { return true }

func (t *tokenResolver) Resolve(r *http.Request) (Principal, error) {
	token := extractToken(r)
	if token == "" {
		return Principal{}, apperr.Unauthorized("missing credential")
	}
	userID, ok := t.allowed[token]
	if !ok {
		return Principal{}, apperr.Unauthorized("invalid credential")
	}
	return Principal{UserID: userID}, nil
}

func extractToken(r *http.Request) string {
	token := r.Header.Get("Authorization")
	token = strings.TrimPrefix(token, "Bearer ")
	if token != "" {
		return token
	}
	if q := r.URL.Query().Get("token"); q != "" {
		return q
	}
	if c, err := r.Cookie("auth_token"); err == nil {
		return c.Value
	}
	return ""
}
