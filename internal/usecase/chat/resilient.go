package chat

import (
	"context"

	"github.com/kailas-cloud/kongrag/internal/domain"
	"github.com/kailas-cloud/kongrag/internal/resilience"
)

// ResilientModel retries retryable chat failures behind a circuit breaker.
type ResilientModel struct {
	inner   domain.ChatModel
	policy  resilience.Policy
	breaker *resilience.Breaker
}

// NewResilientModel wraps inner. A nil breaker disables it.
func NewResilientModel(inner domain.ChatModel, policy resilience.Policy, breaker *resilience.Breaker) *ResilientModel {
	return &ResilientModel{inner: inner, policy: policy, breaker: breaker}
}

// Complete implements domain.ChatModel.
func (r *ResilientModel) Complete(
	ctx context.Context, messages []domain.Message, opts domain.CompletionOptions,
) (domain.Completion, error) {
	var out domain.Completion
	err := resilience.Retry(ctx, r.policy, func(ctx context.Context) error {
		return r.breaker.Do(func() error {
			var err error
			out, err = r.inner.Complete(ctx, messages, opts)
			return err
		})
	})
	if err != nil {
		return domain.Completion{}, err
	}
	return out, nil
}

// HealthCheck delegates when the inner model supports it.
func (r *ResilientModel) HealthCheck(ctx context.Context) error {
	if hc, ok := r.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
