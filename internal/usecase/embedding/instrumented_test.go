package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/kongrag/internal/domain"
	"github.com/kailas-cloud/kongrag/internal/resilience"
	openaiT "github.com/kailas-cloud/kongrag/internal/transport/openai"
)

type mockEmbedder struct {
	results []domain.EmbeddingResult
	errs    []error
	calls   int
	texts   []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	i := m.calls
	m.calls++
	m.texts = append(m.texts, text)
	var err error
	if i < len(m.errs) {
		err = m.errs[i]
	}
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	if i < len(m.results) {
		return m.results[i], nil
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 0}}, nil
}

func fastPolicy(attempts int) resilience.Policy {
	return resilience.Policy{MaxAttempts: attempts, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
}

func TestInstrumentedEmbedder_Success(t *testing.T) {
	inner := &mockEmbedder{results: []domain.EmbeddingResult{{
		Embedding:    []float32{0.1, 0.2, 0.3},
		PromptTokens: 100,
		TotalTokens:  100,
	}}}
	p := NewInstrumentedEmbedder(inner, "test", "test-model", zap.NewNop())

	result, err := p.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 {
		t.Fatalf("expected 3 dimensions, got %d", len(result.Embedding))
	}
	if result.TotalTokens != 100 {
		t.Fatalf("expected 100 total tokens, got %d", result.TotalTokens)
	}
}

func TestInstrumentedEmbedder_ErrorKeepsClass(t *testing.T) {
	inner := &mockEmbedder{errs: []error{fmt.Errorf("429: %w", domain.ErrRetryableService)}}
	p := NewInstrumentedEmbedder(inner, "test", "test-model", zap.NewNop())

	_, err := p.Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrRetryableService) {
		t.Fatalf("expected ErrRetryableService, got %v", err)
	}
}

func TestResilientEmbedder_RetriesRetryable(t *testing.T) {
	inner := &mockEmbedder{errs: []error{domain.ErrRetryableService, domain.ErrRetryableService}}
	r := NewResilientEmbedder(inner, fastPolicy(3), nil)

	result, err := r.Embed(context.Background(), "孔乙己")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if inner.calls != 3 {
		t.Fatalf("expected 3 outbound calls, got %d", inner.calls)
	}
	for _, text := range inner.texts {
		if text != "孔乙己" {
			t.Errorf("retry sent different text %q", text)
		}
	}
}

func TestResilientEmbedder_FatalNotRetried(t *testing.T) {
	inner := &mockEmbedder{errs: []error{domain.ErrFatalService}}
	r := NewResilientEmbedder(inner, fastPolicy(3), nil)

	_, err := r.Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrFatalService) {
		t.Fatalf("expected ErrFatalService, got %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected 1 call, got %d", inner.calls)
	}
}

func TestResilientEmbedder_InvalidInputNotRetried(t *testing.T) {
	inner := &mockEmbedder{errs: []error{domain.ErrInvalidInput}}
	r := NewResilientEmbedder(inner, fastPolicy(3), nil)

	if _, err := r.Embed(context.Background(), ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected 1 call, got %d", inner.calls)
	}
}

func TestResilientEmbedder_BreakerFailsFast(t *testing.T) {
	inner := &mockEmbedder{errs: []error{domain.ErrFatalService, domain.ErrFatalService}}
	breaker := resilience.NewBreaker(resilience.BreakerSettings{
		Name: "embedding", ConsecutiveFailures: 2, OpenTimeout: time.Hour,
	})
	r := NewResilientEmbedder(inner, fastPolicy(1), breaker)

	for range 2 {
		_, _ = r.Embed(context.Background(), "hello")
	}
	_, err := r.Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrRetryableService) {
		t.Fatalf("expected open breaker to report ErrRetryableService, got %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected the open breaker to skip the call, got %d calls", inner.calls)
	}
}

func TestResilientEmbedder_CancellationsKeepBreakerClosed(t *testing.T) {
	var hang atomic.Bool
	hang.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hang.Load() {
			<-r.Context().Done()
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[1,0]}],` +
			`"model":"m","usage":{"prompt_tokens":1,"total_tokens":1}}`))
	}))
	defer server.Close()

	breaker := resilience.NewBreaker(resilience.BreakerSettings{
		Name: "embedding", ConsecutiveFailures: 5, OpenTimeout: time.Hour,
	})
	base := openaiT.NewEmbedder(&openaiT.Config{APIKey: "k", BaseURL: server.URL, Model: "m", Timeout: time.Minute})
	r := NewResilientEmbedder(base, fastPolicy(1), breaker)

	for range 5 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		time.AfterFunc(20*time.Millisecond, cancel)
		if _, err := r.Embed(ctx, "hello"); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected a canceled call, got %v", err)
		}
		cancel()
	}
	if breaker.State() != "closed" {
		t.Fatalf("breaker state after client cancellations: %s", breaker.State())
	}

	hang.Store(false)
	if _, err := r.Embed(context.Background(), "hello"); err != nil {
		t.Fatalf("fresh call: %v", err)
	}
}

type checkingEmbedder struct {
	mockEmbedder
	healthErr error
}

func (c *checkingEmbedder) HealthCheck(context.Context) error { return c.healthErr }

func TestHealthCheck_DelegatesThroughChain(t *testing.T) {
	down := errors.New("provider down")
	inner := &checkingEmbedder{healthErr: down}
	chain := NewResilientEmbedder(NewInstrumentedEmbedder(inner, "test", "m", zap.NewNop()), fastPolicy(1), nil)

	if err := chain.HealthCheck(context.Background()); !errors.Is(err, down) {
		t.Fatalf("expected provider error, got %v", err)
	}

	plain := NewInstrumentedEmbedder(&mockEmbedder{}, "test", "m", zap.NewNop())
	if err := plain.HealthCheck(context.Background()); err != nil {
		t.Fatalf("embedder without health check should report healthy, got %v", err)
	}
}
