package rag

import (
	"context"

	"github.com/kailas-cloud/kongrag/internal/domain"
)

// VectorStore is the read side of the chunk table.
type VectorStore interface {
	NearestNeighbors(ctx context.Context, table string, vector []float32, k int) ([]domain.Neighbor, error)
}

// Embedder vectorizes the question.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
