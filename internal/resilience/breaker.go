package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kongrag/internal/domain"
)

// BreakerSettings configures a Breaker. ConsecutiveFailures <= 0 disables it.
type BreakerSettings struct {
	Name                string
	ConsecutiveFailures int
	OpenTimeout         time.Duration
	Logger              *zap.Logger
}

// Breaker stops calling a service after consecutive service failures.
// A nil *Breaker runs every call.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker returns nil when the breaker is disabled.
func NewBreaker(s BreakerSettings) *Breaker {
	if s.ConsecutiveFailures <= 0 {
		return nil
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	threshold := uint32(s.ConsecutiveFailures) //nolint:gosec // positive, from config

	return &Breaker{cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// caller mistakes (empty input, bad role) and caller cancellations say
		// nothing about the service
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || !domain.IsServiceError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})}
}

// Do runs fn through the breaker. An open breaker fails fast with domain.ErrRetryableService.
func (b *Breaker) Do(fn func() error) error {
	if b == nil {
		return fn()
	}
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %v: %w", b.cb.Name(), err, domain.ErrRetryableService)
	}
	return err
}

// State reports the breaker state ("closed", "open", "half-open"); "disabled" for nil.
func (b *Breaker) State() string {
	if b == nil {
		return "disabled"
	}
	return b.cb.State().String()
}
