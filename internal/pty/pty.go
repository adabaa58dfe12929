// Package pty spawns and controls PTY-attached child processes. Errors
// from Write, Resize, and Kill are logged and swallowed; only Spawn
// fails synchronously, per spec §4.B.
package pty

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrUnsupportedPlatform is returned by Spawn on platforms without a
// PTY implementation wired in (see pty_windows.go).
var ErrUnsupportedPlatform = errors.New("pty: unsupported platform")

// SpawnOptions configures a new PTY-attached child process.
type SpawnOptions struct {
	Shell     string
	Args      []string
	Dir       string
	Cols      int
	Rows      int
	Env       []string // overlay, appended to os.Environ()
	SessionID string   // carried as GATEWAY_SESSION_ID
}

// DataFunc is invoked with each chunk of PTY output.
type DataFunc func([]byte)

// ExitFunc is invoked once with the child's exit code when it terminates.
type ExitFunc func(code int)

// Handle is a live PTY-attached child process.
type Handle struct {
	mu        sync.Mutex
	dataFn    DataFunc
	exitFn    ExitFunc
	log       zerolog.Logger
	sessionID string

	impl handleImpl
}

// handleImpl is the platform-specific half of Handle, implemented by
// pty_unix.go (github.com/creack/pty) or pty_windows.go (stub).
type handleImpl interface {
	write(b []byte) (int, error)
	resize(cols, rows int) error
	kill() error
	wait() (exitCode int, err error)
	readLoop(onData DataFunc)
}

// Spawn forks a child process attached to a new PTY. It always overlays
// TERM=xterm-256color, COLORTERM=truecolor, and GATEWAY_SESSION_ID onto
// the child's environment. Spawn errors propagate synchronously; every
// other Handle operation logs and swallows its error.
func Spawn(log zerolog.Logger, opts SpawnOptions) (*Handle, error) {
	if opts.Cols < 1 {
		opts.Cols = 80
	}
	if opts.Rows < 1 {
		opts.Rows = 24
	}
	impl, err := newPlatformHandle(opts)
	if err != nil {
		return nil, err
	}
	h := &Handle{
		log:       log.With().Str("component", "pty").Str("sessionId", opts.SessionID).Logger(),
		sessionID: opts.SessionID,
		impl:      impl,
	}
	return h, nil
}

// OnData registers the callback invoked with each chunk of PTY output
// and starts the background read loop. Must be called at most once.
func (h *Handle) OnData(fn DataFunc) {
	h.mu.Lock()
	h.dataFn = fn
	h.mu.Unlock()
	go h.impl.readLoop(func(b []byte) {
		h.mu.Lock()
		cb := h.dataFn
		h.mu.Unlock()
		if cb != nil {
			cb(b)
		}
	})
}

// OnExit registers the callback invoked once the child terminates and
// starts the background wait. Must be called at most once.
func (h *Handle) OnExit(fn ExitFunc) {
	h.mu.Lock()
	h.exitFn = fn
	h.mu.Unlock()
	go func() {
		code, err := h.impl.wait()
		if err != nil {
			h.log.Debug().Err(err).Msg("pty: wait returned error")
		}
		h.mu.Lock()
		cb := h.exitFn
		h.mu.Unlock()
		if cb != nil {
			cb(code)
		}
	}()
}

// Write sends bytes to the child's stdin via the PTY master. Errors are
// logged and swallowed.
func (h *Handle) Write(b []byte) {
	if _, err := h.impl.write(b); err != nil {
		h.log.Warn().Err(err).Msg("pty: write failed")
	}
}

// Resize changes the PTY window size. Errors are logged and swallowed.
func (h *Handle) Resize(cols, rows int) {
	if err := h.impl.resize(cols, rows); err != nil {
		h.log.Warn().Err(err).Msg("pty: resize failed")
	}
}

// Kill terminates the child process. Errors are logged and swallowed.
func (h *Handle) Kill() {
	if err := h.impl.kill(); err != nil {
		h.log.Warn().Err(err).Msg("pty: kill failed")
	}
}
