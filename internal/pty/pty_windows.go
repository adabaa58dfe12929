//go:build windows

package pty

// newPlatformHandle has no Windows implementation wired in; the
// module's PTY-based session multiplexing targets the unix creack/pty
// backend used elsewhere in the retrieved corpus. Callers on Windows
// receive ErrUnsupportedPlatform synchronously from Spawn, matching
// spec §4.B's "adapter selects a platform-appropriate PTY implementation."
func newPlatformHandle(opts SpawnOptions) (handleImpl, error) {
	return nil, ErrUnsupportedPlatform
}
