package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// SocketName is the control socket file inside XDG_RUNTIME_DIR.
const SocketName = "voxlate.sock"

// ErrAlreadyRunning reports a live owner already bound to the socket.
var ErrAlreadyRunning = errors.New("voxlate session already running")

// RuntimeSocketPath returns the per-user control socket path.
func RuntimeSocketPath() (string, error) {
	dir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if dir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(dir, SocketName), nil
}

// Claim describes how a process takes ownership of the control socket.
type Claim struct {
	Path string
	// ProbeTimeout bounds the status roundtrip used to test an existing socket.
	ProbeTimeout time.Duration
	// Attempts is the number of bind tries after a stale socket is cleared.
	Attempts int
	// Backoff is the wait before the n-th retry, scaled linearly.
	Backoff time.Duration
}

// Acquire binds path for a new session owner. A socket left behind by a dead
// owner is removed; a socket with a live owner yields ErrAlreadyRunning.
func Acquire(ctx context.Context, path string, probeTimeout time.Duration, retries int) (net.Listener, error) {
	return Claim{Path: path, ProbeTimeout: probeTimeout, Attempts: retries + 1, Backoff: 25 * time.Millisecond}.Listen(ctx)
}

// Listen binds the claimed path.
func (c Claim) Listen(ctx context.Context) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure runtime socket dir: %w", err)
	}
	attempts := max(c.Attempts, 1)

	for attempt := 1; ; attempt++ {
		listener, err := c.bind()
		if err == nil {
			return listener, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen unix %s: %w", c.Path, err)
		}
		if err := c.clearStale(ctx); err != nil {
			return nil, err
		}
		if attempt >= attempts {
			return nil, fmt.Errorf("socket %s still in use after %d attempts", c.Path, attempts)
		}

		timer := time.NewTimer(time.Duration(attempt) * c.Backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c Claim) bind() (net.Listener, error) {
	listener, err := net.Listen("unix", c.Path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(c.Path, 0o600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("restrict socket %s: %w", c.Path, err)
	}
	return listener, nil
}

// clearStale removes the socket file only when nobody answers on it. An
// inconclusive probe leaves the file in place.
func (c Claim) clearStale(ctx context.Context) error {
	alive, err := Probe(ctx, c.Path, c.ProbeTimeout)
	switch {
	case alive:
		return ErrAlreadyRunning
	case err != nil:
		return fmt.Errorf("probe existing socket %s: %w", c.Path, err)
	}
	if err := os.Remove(c.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket %s: %w", c.Path, err)
	}
	return nil
}
