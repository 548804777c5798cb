// Package rag answers questions about a document from its nearest chunks.
package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/kongrag/internal/domain"
	"github.com/kailas-cloud/kongrag/internal/domain/prompt"
	"github.com/kailas-cloud/kongrag/internal/metrics"
)

// Defaults match the original demo.
const (
	DefaultTopK      = 4
	DefaultSeparator = "\n -----------  \n"
)

// Config holds retrieval settings.
type Config struct {
	Table     string
	TopK      int
	Separator string
	Options   domain.CompletionOptions
}

// Answer is the outcome of Ask.
type Answer struct {
	Text    string
	Context string
	Sources []domain.Neighbor
}

// Service retrieves context for a question and asks the chat model about it.
type Service struct {
	store  VectorStore
	embed  Embedder
	model  domain.ChatModel
	cfg    Config
	logger *zap.Logger
}

// New creates a RAG service. model may be nil for retrieval-only use.
func New(store VectorStore, embed Embedder, model domain.ChatModel, cfg Config, logger *zap.Logger) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Separator == "" {
		cfg.Separator = DefaultSeparator
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, embed: embed, model: model, cfg: cfg, logger: logger}
}

// Retrieve returns up to TopK records ranked by ascending distance to the question.
func (s *Service) Retrieve(ctx context.Context, question string) ([]domain.Neighbor, error) {
	emb, err := s.embed.Embed(ctx, question)
	if err != nil {
		metrics.RetrievalRequestsTotal.WithLabelValues(s.cfg.Table, "error").Inc()
		return nil, fmt.Errorf("embed question: %w", err)
	}

	neighbors, err := s.store.NearestNeighbors(ctx, s.cfg.Table, emb.Embedding, s.cfg.TopK)
	if err != nil {
		metrics.RetrievalRequestsTotal.WithLabelValues(s.cfg.Table, "error").Inc()
		return nil, fmt.Errorf("nearest neighbors: %w", err)
	}

	metrics.RetrievalRequestsTotal.WithLabelValues(s.cfg.Table, "success").Inc()
	metrics.RetrievalHits.WithLabelValues(s.cfg.Table).Observe(float64(len(neighbors)))
	s.logger.Debug("Retrieved context",
		zap.String("table", s.cfg.Table),
		zap.Int("hits", len(neighbors)),
	)
	return neighbors, nil
}

// RetrieveContext joins the retrieved contents in rank order. No records yields "".
func (s *Service) RetrieveContext(ctx context.Context, question string) (string, error) {
	neighbors, err := s.Retrieve(ctx, question)
	if err != nil {
		return "", err
	}
	return JoinContents(neighbors, s.cfg.Separator), nil
}

// Ask retrieves context, fills the RAG prompt and returns the model's answer.
func (s *Service) Ask(ctx context.Context, question string) (Answer, error) {
	if s.model == nil {
		return Answer{}, fmt.Errorf("ask: no chat model configured: %w", domain.ErrConfiguration)
	}

	neighbors, err := s.Retrieve(ctx, question)
	if err != nil {
		return Answer{}, err
	}
	contextText := JoinContents(neighbors, s.cfg.Separator)
	if contextText == "" {
		s.logger.Info("No context retrieved, asking without it", zap.String("table", s.cfg.Table))
	}

	messages, err := prompt.RAG.Format(map[string]string{
		prompt.VarContext:  contextText,
		prompt.VarQuestion: question,
	})
	if err != nil {
		return Answer{}, fmt.Errorf("format prompt: %w", err)
	}

	completion, err := s.model.Complete(ctx, messages, s.cfg.Options)
	if err != nil {
		return Answer{}, fmt.Errorf("complete: %w", err)
	}

	return Answer{Text: completion.Text, Context: contextText, Sources: neighbors}, nil
}

// JoinContents joins record contents in order with sep.
func JoinContents(neighbors []domain.Neighbor, sep string) string {
	parts := make([]string, len(neighbors))
	for i, n := range neighbors {
		parts[i] = n.Record.Content
	}
	return strings.Join(parts, sep)
}
