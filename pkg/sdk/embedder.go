package kongrag

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/kongrag/internal/domain"
)

// Embedder converts text to a vector embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Message is one turn sent to a ChatModel. Role is "system", "user" or "assistant".
type Message struct {
	Role    string
	Content string
}

// ChatModel answers an ordered list of messages with text.
type ChatModel interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// embedderAdapter exposes a user Embedder as domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("custom embedder: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// chatAdapter exposes a user ChatModel as domain.ChatModel. Options are not forwarded.
type chatAdapter struct {
	inner ChatModel
}

func (a *chatAdapter) Complete(
	ctx context.Context, messages []domain.Message, _ domain.CompletionOptions,
) (domain.Completion, error) {
	msgs := make([]Message, len(messages))
	for i, m := range messages {
		msgs[i] = Message{Role: string(m.Role), Content: m.Content}
	}
	text, err := a.inner.Complete(ctx, msgs)
	if err != nil {
		return domain.Completion{}, fmt.Errorf("custom chat model: %w", err)
	}
	return domain.Completion{Text: text}, nil
}
