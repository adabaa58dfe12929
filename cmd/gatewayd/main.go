// Command gatewayd runs the remote multi-client terminal service:
// spawns and multiplexes PTY sessions, persists their metadata, and
// exposes them over a websocket protocol.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/azalio/gatewayd/internal/category"
	"github.com/azalio/gatewayd/internal/config"
	"github.com/azalio/gatewayd/internal/httpapi"
	"github.com/azalio/gatewayd/internal/identity"
	"github.com/azalio/gatewayd/internal/logging"
	"github.com/azalio/gatewayd/internal/notify"
	"github.com/azalio/gatewayd/internal/persistence"
	"github.com/azalio/gatewayd/internal/ratelimit"
	"github.com/azalio/gatewayd/internal/session"
	"github.com/azalio/gatewayd/internal/store"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gatewayd: load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Logging.Level, cfg.Logging.Console)

	s, err := store.Open(cfg.DatabasePath(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("gatewayd: open store")
	}
	defer s.Close()

	helper := persistence.Select(cfg.TmuxPrefix, s, log)
	log.Info().Str("kind", helper.Kind()).Msg("gatewayd: persistence backend selected")

	bus := notify.New(s, log)
	limiter := ratelimit.Default()
	cats := category.New(s, log)

	sessions := session.New(s, helper, bus, log, session.Config{
		MaxSessions:     cfg.Sessions.MaxSessions,
		IdleTimeout:     time.Duration(cfg.Sessions.IdleTimeoutMinutes) * time.Minute,
		ScrollbackLines: cfg.Persistence.ScrollbackLines,
	})
	defer sessions.Shutdown()

	resolver := buildResolver(cfg)

	handler := httpapi.New(sessions, cats, bus, limiter, resolver, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpSrv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("gatewayd: listening")
		serveErr <- httpSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("gatewayd: server error")
		}
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("gatewayd: shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("gatewayd: graceful shutdown failed")
		}
	}
}

// buildResolver constructs the identity.Resolver from config, mapping
// the flat allowedUsers list plus a single shared token into the
// token -> userID map tokenResolver expects. Each entry in
// allowedUsers may be "token:userID"; a bare token defaults its user
// id to itself.
func buildResolver(cfg *config.Config) identity.Resolver {
	if !cfg.Auth.Enabled {
		return identity.New(false, nil)
	}
	allowed := make(map[string]string)
	if cfg.Auth.Token != "" {
		allowed[cfg.Auth.Token] = "anonymous"
	}
	for _, entry := range cfg.Auth.AllowedUsers {
		token, user := splitTokenUser(entry)
		allowed[token] = user
	}
	return identity.New(true, allowed)
}

func splitTokenUser(entry string) (token, user string) {
	for i := 0; i < len(entry); i++ {
		if entry[i] == ':' {
			return entry[:i], entry[i+1:]
		}
	}
	return entry, entry
}
