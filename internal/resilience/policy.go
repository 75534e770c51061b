package resilience

import (
	"context"
	"errors"
)

// Policy combines retries with an optional circuit breaker. The zero value
// retries with the default configuration and never trips.
type Policy struct {
	Retry   RetryConfig
	Breaker *CircuitBreaker
}

// Call runs fn under p. Each attempt passes through the breaker, and a
// rejected attempt is not retried.
func Call[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg := p.Retry
	retryable := cfg.ShouldRetry
	if retryable == nil {
		retryable = IsTransient
	}
	cfg.ShouldRetry = func(err error) bool {
		return !errors.Is(err, ErrCircuitOpen) && retryable(err)
	}

	return DoVal(ctx, cfg, func(ctx context.Context) (T, error) {
		if p.Breaker == nil {
			return fn(ctx)
		}
		return ExecuteVal(ctx, p.Breaker, fn)
	})
}
