package payroll

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
)

// RetryPolicy bounds retries of writes that lost a persistence race.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseBackoff: 50 * time.Millisecond,
		MaxBackoff:  time.Second,
	}
}

// backoff returns base * 2^(attempt-1), capped at MaxBackoff.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return p.BaseBackoff
	}
	delay := time.Duration(float64(p.BaseBackoff) * math.Pow(2, float64(attempt-1)))
	if p.MaxBackoff > 0 && delay > p.MaxBackoff {
		return p.MaxBackoff
	}
	return delay
}

// withRetry runs fn until it succeeds, fails with anything other than
// ErrPersistenceConflict, or runs out of attempts.
func withRetry(ctx context.Context, policy RetryPolicy, op string, fn func() error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !errors.Is(err, payroll.ErrPersistenceConflict) || attempt >= attempts {
			return err
		}

		delay := policy.backoff(attempt)
		slog.Warn("payroll write conflict, retrying",
			"operation", op,
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", delay,
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
