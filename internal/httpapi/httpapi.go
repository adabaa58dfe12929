// Package httpapi implements the HTTP surface of spec §6: the
// websocket upgrade endpoint, the notification hook, a health check,
// and a read-only session listing. Built on chi, replacing the
// teacher's raw http.ServeMux (internal/http/handlers.go) once route
// count and middleware needs grew past what ServeMux comfortably
// expresses.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/azalio/gatewayd/internal/apperr"
	"github.com/azalio/gatewayd/internal/category"
	"github.com/azalio/gatewayd/internal/identity"
	"github.com/azalio/gatewayd/internal/notify"
	"github.com/azalio/gatewayd/internal/ratelimit"
	"github.com/azalio/gatewayd/internal/session"
	"github.com/azalio/gatewayd/internal/wsconn"
)

// Server wires the chi router to its collaborators, mirroring the
// teacher's Server{cfg, mgr, mux} shape but with a router instead of a
// bare ServeMux and one resolver in place of the two auth middlewares.
type Server struct {
	router   chi.Router
	sessions *session.Manager
	cats     *category.Service
	bus      *notify.Bus
	limiter  *ratelimit.Limiter
	resolver identity.Resolver
	hub      *wsconn.Hub
	log      zerolog.Logger
}

// New builds the HTTP surface. resolver gates the JSON API and the
// notification hook up front; the websocket upgrade instead resolves
// identity itself after accepting, per spec §4.H's Pending state, so a
// failed resolution can close with 4001 rather than refusing the
// upgrade with a plain HTTP 401.
func New(sessions *session.Manager, cats *category.Service, bus *notify.Bus, limiter *ratelimit.Limiter, resolver identity.Resolver, log zerolog.Logger) *Server {
	s := &Server{
		sessions: sessions,
		cats:     cats,
		bus:      bus,
		limiter:  limiter,
		resolver: resolver,
		hub:      wsconn.NewHub(),
		log:      log.With().Str("component", "httpapi").Logger(),
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	r.Get("/api/sessions", s.authenticated(s.handleListSessions))
	r.Get("/ws", s.handleWebsocket)
	r.Post("/api/notify/{sessionId}/{kind}", s.authenticated(s.handleNotifyHook))

	s.router = r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("httpapi: request")
		next.ServeHTTP(w, r)
	})
}

// authenticated wraps next with s.resolver, replacing the teacher's
// authMiddleware/authTerminal pair with one seam for the JSON API and
// the notification hook. The websocket upgrade does not use it.
func (s *Server) authenticated(next func(http.ResponseWriter, *http.Request, identity.Principal)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := s.resolver.Resolve(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r, p)
	}
}

type healthPayload struct {
	Status                string `json:"status"`
	SessionCount          int    `json:"sessionCount"`
	IdentityProviderReady bool   `json:"identityProviderEnabled"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	list, err := s.sessions.List()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, healthPayload{
		Status:                "ok",
		SessionCount:          len(list),
		IdentityProviderReady: s.resolver.Enabled(),
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request, p identity.Principal) {
	list, err := s.sessions.List()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleWebsocket accepts the upgrade unconditionally and defers
// identity resolution to wsconn.Conn.Run, which closes with 4001 on
// failure instead of this handler refusing the upgrade with a 401.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("httpapi: websocket accept failed")
		return
	}
	conn := wsconn.New(ws, wsconn.Deps{
		Sessions: s.sessions,
		Cats:     s.cats,
		Bus:      s.bus,
		Limiter:  s.limiter,
		Hub:      s.hub,
		Resolver: s.resolver,
		Log:      s.log,
	})
	conn.Run(r.Context(), r)
}

// handleNotifyHook lets an external process (a shell's PROMPT_COMMAND
// hook, for instance) publish a notification for a session without
// going through the websocket, per spec §6.
func (s *Server) handleNotifyHook(w http.ResponseWriter, r *http.Request, p identity.Principal) {
	sessionID := chi.URLParam(r, "sessionId")
	kind := chi.URLParam(r, "kind")

	switch notify.Kind(kind) {
	case notify.KindInputRequired, notify.KindCompleted:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown notification kind"})
		return
	}

	info, err := s.sessions.Get(sessionID)
	if err != nil {
		writeErr(w, err)
		return
	}
	owner := p.UserID
	if info.OwnerID != nil {
		owner = *info.OwnerID
	}
	s.bus.Publish(notify.Notification{SessionID: sessionID, OwnerID: owner, Kind: notify.Kind(kind)})
	writeJSON(w, http.StatusOK, map[string]string{"status": "published"})
}

func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindInvalidInput:
		status = http.StatusBadRequest
	case apperr.KindQuotaExceeded:
		status = http.StatusConflict
	case apperr.KindUnauthorized:
		status = http.StatusUnauthorized
	case apperr.KindRateLimited:
		status = http.StatusTooManyRequests
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
