package persistence

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/azalio/gatewayd/internal/store"
)

// MuxHelper is the external-multiplexer backed Persistence Helper,
// adapted from the teacher's internal/sessions/tmux.go TmuxRunner: the
// same exec.Command("tmux", ...) invocations, repurposed from "the
// whole session lives in tmux" to "tmux is an optional handle that
// survives a gateway restart" per spec §4.D.
type MuxHelper struct {
	prefix string
	log    zerolog.Logger
}

// NewMuxHelper builds a MuxHelper. Callers should only construct one
// after confirming tmux is on PATH via Available.
func NewMuxHelper(prefix string, log zerolog.Logger) *MuxHelper {
	return &MuxHelper{prefix: prefix, log: log.With().Str("component", "persistence.mux").Logger()}
}

// Available reports whether the tmux binary is present on the host.
func Available() bool {
	_, err := exec.LookPath("tmux")
	return err == nil
}

func (m *MuxHelper) Kind() string { return KindMux }

// CreateHandle starts shell detached inside a new tmux session named
// after sessionID, so the shell process keeps running under tmux's own
// server even if the gateway process restarts, and returns an
// "attach-session" command for the PTY Adapter to spawn in shell's
// place: the PTY Adapter then owns only the attach client, never the
// shell itself, so killing it detaches rather than terminates.
func (m *MuxHelper) CreateHandle(sessionID, shell, cwd string) (string, string, []string, error) {
	name := m.prefix + sessionID
	args := []string{"new-session", "-d", "-s", name}
	if cwd != "" {
		args = append(args, "-c", cwd)
	}
	args = append(args, shell)
	out, err := exec.Command("tmux", args...).CombinedOutput()
	if err != nil {
		return "", "", nil, fmt.Errorf("persistence: tmux new-session: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return name, "tmux", []string{"attach-session", "-t", name}, nil
}

func (m *MuxHelper) TeardownHandle(handle string) {
	if handle == "" {
		return
	}
	cmd := exec.Command("tmux", "kill-session", "-t", handle)
	if out, err := cmd.CombinedOutput(); err != nil {
		m.log.Warn().Err(err).Str("handle", handle).Str("output", string(out)).Msg("persistence: tmux kill-session failed")
	}
}

// PersistScrollback is a no-op: the whole point of the mux backend is
// that the multiplexer keeps the shell process (and its own scrollback)
// alive across restarts.
func (m *MuxHelper) PersistScrollback(sessionID, content string) error { return nil }

// SeedScrollback always returns empty: mux-backed sessions rely on
// `tmux attach`, not a stored blob, to recover history.
func (m *MuxHelper) SeedScrollback(sessionID string) (string, error) { return "", nil }

// FallbackHelper persists scrollback to the Metadata Store when no
// external multiplexer is available on the host.
type FallbackHelper struct {
	store *store.Store
	log   zerolog.Logger
}

func NewFallbackHelper(s *store.Store, log zerolog.Logger) *FallbackHelper {
	return &FallbackHelper{store: s, log: log.With().Str("component", "persistence.fallback").Logger()}
}

func (f *FallbackHelper) Kind() string { return KindFallback }

func (f *FallbackHelper) CreateHandle(sessionID, shell, cwd string) (string, string, []string, error) {
	return "", shell, nil, nil
}

func (f *FallbackHelper) TeardownHandle(handle string) {}

func (f *FallbackHelper) PersistScrollback(sessionID, content string) error {
	if err := f.store.SaveScrollback(sessionID, content); err != nil {
		f.log.Warn().Err(err).Str("sessionId", sessionID).Msg("persistence: save scrollback failed")
		return err
	}
	return nil
}

func (f *FallbackHelper) SeedScrollback(sessionID string) (string, error) {
	return f.store.GetScrollback(sessionID)
}

// Select probes the host once and returns the appropriate Helper
// implementation, per spec §9's design note that this is a capability
// selected at Session Manager construction, not a per-call branch.
func Select(prefix string, s *store.Store, log zerolog.Logger) Helper {
	if Available() {
		return NewMuxHelper(prefix, log)
	}
	return NewFallbackHelper(s, log)
}
