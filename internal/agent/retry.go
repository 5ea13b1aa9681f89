// Package agent executes planned tasks against a completion provider.
package agent

import (
	"context"
	"time"
)

// RetryPolicy paces task re-attempts. The number of attempts is bounded by
// the task's own MaxRetries.
type RetryPolicy struct {
	// BaseDelay is the wait before the first retry. Zero disables waiting.
	BaseDelay time.Duration
	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration
}

// Backoff returns the delay before the given retry (1-indexed).
// The delay doubles each retry starting at BaseDelay and never exceeds MaxDelay.
func (p RetryPolicy) Backoff(retry int) time.Duration {
	if p.BaseDelay <= 0 || retry < 1 {
		return 0
	}
	// Guard the shift; anything past 2^20 is capped anyway.
	shift := retry - 1
	if shift > 20 {
		shift = 20
	}
	delay := p.BaseDelay * time.Duration(1<<shift)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
