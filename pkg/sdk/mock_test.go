package kongrag

import (
	"context"
	"strings"

	"github.com/kailas-cloud/kongrag/internal/domain"
	"github.com/kailas-cloud/kongrag/internal/usecase/ingest"
	"github.com/kailas-cloud/kongrag/internal/usecase/rag"
)

// --- Embedder / ChatModel fakes ---

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

// keywordEmbedder counts a few keywords, so nearest neighbors are predictable.
func keywordEmbedder() *mockEmbedder {
	return &mockEmbedder{fn: func(_ context.Context, text string) (EmbeddingResult, error) {
		return EmbeddingResult{
			Embedding: []float32{
				float32(strings.Count(text, "酒")),
				float32(strings.Count(text, "书")),
				float32(strings.Count(text, "钱")),
				0.1,
			},
			PromptTokens: 1,
			TotalTokens:  1,
		}, nil
	}}
}

type mockChat struct {
	fn func(ctx context.Context, messages []Message) (string, error)
}

func (m *mockChat) Complete(ctx context.Context, messages []Message) (string, error) {
	return m.fn(ctx, messages)
}

// --- use case fakes ---

type mockIngestUC struct {
	runFn    func(ctx context.Context, source string) (ingest.Result, error)
	ingestFn func(ctx context.Context, doc domain.Document) (ingest.Result, error)
}

func (m *mockIngestUC) Run(ctx context.Context, source string) (ingest.Result, error) {
	return m.runFn(ctx, source)
}

func (m *mockIngestUC) Ingest(ctx context.Context, doc domain.Document) (ingest.Result, error) {
	return m.ingestFn(ctx, doc)
}

type mockRagUC struct {
	retrieveFn func(ctx context.Context, question string) ([]domain.Neighbor, error)
	askFn      func(ctx context.Context, question string) (rag.Answer, error)
}

func (m *mockRagUC) Retrieve(ctx context.Context, question string) ([]domain.Neighbor, error) {
	return m.retrieveFn(ctx, question)
}

func (m *mockRagUC) Ask(ctx context.Context, question string) (rag.Answer, error) {
	return m.askFn(ctx, question)
}
