package netretry

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/vietddude/netcache/internal/core/domain"
	"github.com/vietddude/netcache/internal/metrics"
)

// minDelayFloor is the lower bound applied to jittered delays so randomness
// never produces a near-zero sleep.
const minDelayFloor = 100 * time.Millisecond

// jitterFraction is the uniform adjustment range around the computed delay.
const jitterFraction = 0.25

// Executor runs operations under a RetryPolicy. It is safe for concurrent
// use; the attempts counter tracks invocations of the most recent in-flight
// execution and resets to zero on any success.
type Executor struct {
	attempts atomic.Int64
}

// NewExecutor creates an executor with a zeroed attempts counter.
func NewExecutor() *Executor {
	return &Executor{}
}

// Attempts returns the observable attempt count. It resets to 0 whenever an
// execution succeeds.
func (e *Executor) Attempts() int {
	return int(e.attempts.Load())
}

// Do runs an operation without a result value under the policy.
func (e *Executor) Do(ctx context.Context, policy domain.RetryPolicy, op func(context.Context) error) error {
	_, err := Execute(ctx, e, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Execute invokes op up to policy.MaxRetries+1 times, strictly sequentially,
// classifying every failure. Non-retryable kinds surface immediately; a
// retryable kind sleeps the backoff delay (jittered when the policy says so)
// before the next attempt. The returned error is always the most recent
// classified failure.
func Execute[T any](ctx context.Context, e *Executor, policy domain.RetryPolicy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr *domain.NetworkError

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		e.attempts.Add(1)
		metrics.RetryAttemptsTotal.Inc()

		result, err := op(ctx)
		if err == nil {
			e.attempts.Store(0)
			return result, nil
		}

		lastErr = Classify(err)
		metrics.RetryFailuresTotal.WithLabelValues(lastErr.Kind.String()).Inc()

		if !lastErr.Retryable() {
			return zero, lastErr
		}
		if attempt == policy.MaxRetries {
			break
		}

		delay := sleepDelay(policy, attempt)
		slog.Debug("Retrying after failure",
			"attempt", attempt+1,
			"max_retries", policy.MaxRetries,
			"kind", lastErr.Kind.String(),
			"delay", delay,
		)

		select {
		case <-ctx.Done():
			return zero, lastErr
		case <-time.After(delay):
		}
	}

	if lastErr == nil {
		// Zero attempts ran; misconfigured policy rather than a real failure.
		lastErr = &domain.NetworkError{Kind: domain.KindUnknown}
	}
	metrics.RetriesExhaustedTotal.Inc()
	return zero, lastErr
}

// sleepDelay computes the wait before the retry following attempt, applying
// jitter and the minimum floor when the policy enables jitter.
func sleepDelay(policy domain.RetryPolicy, attempt int) time.Duration {
	delay := policy.Backoff(attempt)
	if !policy.Jitter {
		return delay
	}
	offset := jitterFraction * (2*rand.Float64() - 1)
	delay = time.Duration(float64(delay) * (1 + offset))
	if delay < minDelayFloor {
		delay = minDelayFloor
	}
	return delay
}
