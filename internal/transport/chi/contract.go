package chi

import (
	"context"

	"github.com/kailas-cloud/kongrag/internal/domain"
	"github.com/kailas-cloud/kongrag/internal/usecase/health"
	"github.com/kailas-cloud/kongrag/internal/usecase/rag"
)

// Retriever is the question-answering use case consumed by the server.
type Retriever interface {
	Retrieve(ctx context.Context, question string) ([]domain.Neighbor, error)
	Ask(ctx context.Context, question string) (rag.Answer, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) health.Report
}
