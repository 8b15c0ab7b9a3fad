package riva

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
)

const defaultDialTimeout = 3 * time.Second

// Ping opens a connection to endpoint, waits for it to become ready, and
// closes it.
func Ping(ctx context.Context, endpoint string, timeout time.Duration) error {
	conn, err := dialReady(ctx, endpoint, timeout)
	if err != nil {
		return err
	}
	return conn.Close()
}

// dialReady opens a plaintext connection and blocks until it is usable.
func dialReady(ctx context.Context, endpoint string, timeout time.Duration) (*grpc.ClientConn, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("riva endpoint is empty")
	}
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}

	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial riva grpc %q: %w", endpoint, err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := awaitReady(readyCtx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("wait for riva grpc readiness at %s: %w", endpoint, err)
	}
	return conn, nil
}

// awaitReady kicks the connection out of idle and follows its state changes
// until Ready, Shutdown, or ctx expiry.
func awaitReady(ctx context.Context, conn *grpc.ClientConn) error {
	conn.Connect()
	for state := conn.GetState(); ; state = conn.GetState() {
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("connection shut down")
		case connectivity.Idle:
			conn.Connect()
		}
		if conn.WaitForStateChange(ctx, state) {
			continue
		}
		if err := ctx.Err(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("still %s when the deadline passed", strings.ToLower(state.String()))
	}
}
