package resilience

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/errors"
)

// WithTimeout runs fn with a context that expires after timeout. Expiry is
// reported as apperrors.ErrTimeout wrapping context.DeadlineExceeded;
// cancellation of ctx itself comes back as ctx.Err(). A timeout <= 0 runs
// fn directly.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- fn(timeoutCtx)
	}()

	var err error
	select {
	case err = <-done:
	case <-timeoutCtx.Done():
		err = timeoutCtx.Err()
	}
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("%s: %w", name, ctx.Err())
	case timeoutCtx.Err() != nil:
		return fmt.Errorf("%s: %w after %v: %w", name, apperrors.ErrTimeout, timeout, context.DeadlineExceeded)
	}
	return err
}
