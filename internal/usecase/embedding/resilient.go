package embedding

import (
	"context"

	"github.com/kailas-cloud/kongrag/internal/domain"
	"github.com/kailas-cloud/kongrag/internal/resilience"
)

// ResilientEmbedder retries retryable failures and trips a breaker on repeated service errors.
// Each attempt is a separate outbound request; nothing is cached.
type ResilientEmbedder struct {
	inner   domain.Embedder
	policy  resilience.Policy
	breaker *resilience.Breaker
}

// NewResilientEmbedder wraps inner. A nil breaker disables it.
func NewResilientEmbedder(inner domain.Embedder, policy resilience.Policy, breaker *resilience.Breaker) *ResilientEmbedder {
	return &ResilientEmbedder{inner: inner, policy: policy, breaker: breaker}
}

// Embed implements domain.Embedder.
func (r *ResilientEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	var result domain.EmbeddingResult
	err := resilience.Retry(ctx, r.policy, func(ctx context.Context) error {
		return r.breaker.Do(func() error {
			var err error
			result, err = r.inner.Embed(ctx, text)
			return err
		})
	})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return result, nil
}

// HealthCheck delegates when the inner embedder supports it.
func (r *ResilientEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := r.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
