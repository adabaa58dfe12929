// Package persistence implements the optional Persistence Helper of
// spec §4.D: an external multiplexer handle when one is available on
// the host, or a stored-scrollback fallback otherwise. Selection is a
// platform capability probed once, not a per-call branch.
package persistence

// Helper is the seam between the Session Manager and whichever
// persistence backend the host supports.
type Helper interface {
	// Kind reports which backend is active, for logging/health only.
	Kind() string

	// CreateHandle allocates an external-multiplexer handle for a newly
	// created session about to run shell in cwd, and reports the actual
	// command/args the PTY Adapter should spawn in its place: the
	// fallback backend hands shell straight back, the mux backend starts
	// shell detached inside the new handle and returns an attach command
	// instead, so the real process survives the PTY Adapter's own exit.
	CreateHandle(sessionID, shell, cwd string) (handle, spawnCmd string, spawnArgs []string, err error)

	// TeardownHandle releases a previously created handle. A no-op for
	// the fallback backend.
	TeardownHandle(handle string)

	// PersistScrollback is called on terminate/exit/shutdown for
	// sessions using the fallback backend; a no-op for MuxHelper since
	// the external multiplexer itself preserves the shell process.
	PersistScrollback(sessionID, content string) error

	// SeedScrollback returns the previously stored blob for sessionID
	// to seed an attach's outgoing history when the mux handle is gone
	// or was never created.
	SeedScrollback(sessionID string) (string, error)
}

const (
	KindMux      = "mux"
	KindFallback = "fallback"
)
