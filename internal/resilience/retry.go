// Package resilience retries and isolates calls to external services.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kongrag/internal/domain"
)

// Policy controls Retry. MaxAttempts counts the first call; 1 disables retries.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Logger          *zap.Logger
}

// DefaultPolicy returns 3 attempts with 500ms..5s exponential backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		exp.MaxInterval = p.MaxInterval
	}
	exp.MaxElapsedTime = 0 // bounded by attempts

	retries := max(p.MaxAttempts-1, 0)
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}

// Retry runs op until it succeeds, fails with an error other than
// domain.ErrRetryableService, or the attempts run out. The last error is returned as is.
func Retry(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var lastErr error
	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		lastErr = op(ctx)
		if lastErr == nil || domain.IsRetryable(lastErr) {
			return lastErr
		}
		return backoff.Permanent(lastErr)
	}, p.backOff(ctx), func(err error, wait time.Duration) {
		logger.Warn("retrying after service error",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})

	// context expiry between attempts surfaces as ctx.Err(); keep the service error with it
	if err != nil && lastErr != nil && !errors.Is(err, lastErr) {
		return errors.Join(lastErr, err)
	}
	return err
}
