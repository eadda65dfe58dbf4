package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes how often and how patiently an operation is retried.
// MaxRetries counts the retries after the first attempt.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// Returns the policy used when nothing else is configured
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
	}
}

// Check that the policy can produce a sane delay schedule
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative, got %d", p.MaxRetries)
	}
	if p.InitialDelay <= 0 {
		return fmt.Errorf("initial delay must be positive, got %s", p.InitialDelay)
	}
	if p.MaxDelay < p.InitialDelay {
		return fmt.Errorf("max delay %s must not be smaller than initial delay %s", p.MaxDelay, p.InitialDelay)
	}
	if p.Multiplier < 1 {
		return fmt.Errorf("multiplier must be at least 1, got %v", p.Multiplier)
	}
	return nil
}

// Delays returns the first n waits of the schedule, delay(k) = min(InitialDelay * Multiplier^(k-1), MaxDelay).
func (p Policy) Delays(n int) []time.Duration {
	b := p.newBackOff()
	delays := make([]time.Duration, 0, n)
	for range n {
		delays = append(delays, p.next(b))
	}
	return delays
}

func (p Policy) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (p Policy) next(b *backoff.ExponentialBackOff) time.Duration {
	d := b.NextBackOff()
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Suspends until d has passed or ctx is done. Replaced in tests.
var wait = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs op until it succeeds, fails with a non-retryable error or the policy runs out of retries.
// The last error of op is returned as is, so callers can still inspect status codes.
// When ctx is cancelled the pending wait is aborted and ctx.Err() is returned.
func Do[T any](ctx context.Context, policy Policy, label string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	b := policy.newBackOff()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				slog.Debug("Operation succeeded after retry", slog.String("operation", label), slog.Int("attempt", attempt))
			}
			return result, nil
		}

		if Classify(err) == NonRetryable {
			return zero, err
		}
		if attempt > policy.MaxRetries {
			slog.Error("Operation failed, no retries left", slog.String("operation", label), slog.Int("attempts", attempt), slog.String("err", err.Error()))
			return zero, err
		}

		delay := policy.next(b)
		slog.Warn("Operation failed, retrying",
			slog.String("operation", label),
			slog.Int("attempt", attempt),
			slog.Int("maxRetries", policy.MaxRetries),
			slog.Duration("delay", delay),
			slog.String("err", err.Error()),
		)

		if werr := wait(ctx, delay); werr != nil {
			return zero, werr
		}
	}
}
