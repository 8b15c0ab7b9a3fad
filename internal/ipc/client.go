package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

// ErrNotRunning reports that no session owns the control socket.
var ErrNotRunning = errors.New("no voxlate session is running")

// DefaultTimeout bounds one control roundtrip.
const DefaultTimeout = 2 * time.Second

// Call sends req to the session on the per-user runtime socket.
func Call(ctx context.Context, req Request) (Response, error) {
	path, err := RuntimeSocketPath()
	if err != nil {
		return Response{}, err
	}
	return Send(ctx, path, req, DefaultTimeout)
}

// Send performs one request/response roundtrip over the socket at path.
// A missing or refusing socket yields an error wrapping ErrNotRunning.
func Send(ctx context.Context, path string, req Request, timeout time.Duration) (Response, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		if isSocketMissing(err) || isConnectionRefused(err) {
			return Response{}, fmt.Errorf("%w: %w", ErrNotRunning, err)
		}
		return Response{}, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return Response{}, fmt.Errorf("set deadline: %w", err)
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// Probe reports whether a responsive session is listening on path.
func Probe(ctx context.Context, path string, timeout time.Duration) (bool, error) {
	_, err := Send(ctx, path, Request{Command: "status"}, timeout)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotRunning):
		return false, nil
	default:
		return false, fmt.Errorf("probe socket: %w", err)
	}
}

func isSocketMissing(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

func isConnectionRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
