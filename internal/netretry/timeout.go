package netretry

import (
	"context"
	"time"

	"github.com/vietddude/netcache/internal/core/domain"
)

type raceResult[T any] struct {
	value T
	err   error
}

// WithTimeout races op against a deadline. Whichever finishes first wins; the
// loser is cancelled through its context. A fired deadline yields a Timeout
// kind. The operation goroutine never leaks: its result channel is buffered
// and cancellation is requested before abandoning it.
func WithTimeout[T any](ctx context.Context, d time.Duration, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if d <= 0 {
		return op(ctx)
	}

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan raceResult[T], 1)
	go func() {
		value, err := op(opCtx)
		done <- raceResult[T]{value: value, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.value, res.err
	case <-timer.C:
		cancel()
		return zero, &domain.NetworkError{Kind: domain.KindTimeout, Cause: context.DeadlineExceeded}
	case <-ctx.Done():
		cancel()
		return zero, ctx.Err()
	}
}
