//go:build !windows

package pty

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/creack/pty"
)

// unixHandle wraps a creack/pty master file descriptor and the child
// os/exec.Cmd, grounded on gluk-w-claworc/agent/src/services/terminal.go's
// pty.Start + pty.Setsize usage.
type unixHandle struct {
	cmd  *exec.Cmd
	ptmx *os.File
}

func newPlatformHandle(opts SpawnOptions) (handleImpl, error) {
	shell := opts.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	cmd := exec.Command(shell, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = append(os.Environ(), opts.Env...)
	cmd.Env = append(cmd.Env,
		"TERM=xterm-256color",
		"COLORTERM=truecolor",
		fmt.Sprintf("GATEWAY_SESSION_ID=%s", opts.SessionID),
	)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Cols: uint16(opts.Cols),
		Rows: uint16(opts.Rows),
	})
	if err != nil {
		return nil, fmt.Errorf("pty: spawn %q: %w", shell, err)
	}

	return &unixHandle{cmd: cmd, ptmx: ptmx}, nil
}

func (h *unixHandle) write(b []byte) (int, error) {
	return h.ptmx.Write(b)
}

func (h *unixHandle) resize(cols, rows int) error {
	return pty.Setsize(h.ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
}

func (h *unixHandle) kill() error {
	if h.cmd.Process == nil {
		return nil
	}
	return h.cmd.Process.Kill()
}

func (h *unixHandle) wait() (int, error) {
	err := h.cmd.Wait()
	_ = h.ptmx.Close()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

func (h *unixHandle) readLoop(onData DataFunc) {
	buf := make([]byte, 32*1024)
	for {
		n, err := h.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			onData(chunk)
		}
		if err != nil {
			return
		}
	}
}
