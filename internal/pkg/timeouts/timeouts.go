package timeouts

import (
	"context"
	"time"
)

const (
	// DefaultSearchTimeout covers a single forum search including a re-login.
	DefaultSearchTimeout = 30 * time.Second
	// MaxSearchTimeout caps how far we extend the adaptive timeout budget.
	MaxSearchTimeout = 3 * time.Minute
	// PerQuerySearchTimeout is the additional budget granted per search query.
	PerQuerySearchTimeout = 10 * time.Second
	// DefaultFetchTimeout bounds a thread or post page fetch.
	DefaultFetchTimeout = 45 * time.Second
)

// AdaptiveSearchTimeout scales the timeout linearly per query (starting from DefaultSearchTimeout)
// and caps the total budget at MaxSearchTimeout.
func AdaptiveSearchTimeout(queryCount int) time.Duration {
	if queryCount <= 1 {
		return DefaultSearchTimeout
	}
	timeout := DefaultSearchTimeout + time.Duration(queryCount-1)*PerQuerySearchTimeout
	if timeout > MaxSearchTimeout {
		return MaxSearchTimeout
	}
	return timeout
}

// WithSearchTimeout enforces a timeout only when the parent context lacks a deadline.
func WithSearchTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultSearchTimeout
	}
	if ctx == nil {
		return context.WithTimeout(context.Background(), timeout)
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
