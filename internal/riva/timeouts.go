package riva

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
)

// openStreamWithTimeout bounds stream-open latency when the backend stalls.
func openStreamWithTimeout(
	ctx context.Context,
	timeout time.Duration,
	open func() (grpc.ClientStream, error),
) (grpc.ClientStream, error) {
	var stream grpc.ClientStream
	err := runWithTimeout(ctx, timeout, func() error {
		var err error
		stream, err = open()
		return err
	})
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// runWithTimeout bounds one blocking call such as the initial config send.
func runWithTimeout(ctx context.Context, timeout time.Duration, call func() error) error {
	if timeout <= 0 {
		return call()
	}

	resultCh := make(chan error, 1)
	go func() {
		resultCh <- call()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", timeout)
	case err := <-resultCh:
		return err
	}
}
