package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	goredis "github.com/redis/go-redis/v9"
)

type obtainer interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

// BatchLocker keeps payroll runs for the same month from overlapping across
// processes.
type BatchLocker struct {
	client obtainer
}

func NewBatchLocker(client goredis.UniversalClient) payroll.BatchLocker {
	return &BatchLocker{client: redislock.New(client)}
}

func (l *BatchLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", payroll.ErrBatchInProgress, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}

	return func(ctx context.Context) error {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return fmt.Errorf("failed to release lock %s: %w", key, err)
		}
		return nil
	}, nil
}
