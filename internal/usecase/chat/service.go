// Package chat runs prompt templates against a chat model.
package chat

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/kongrag/internal/domain"
	"github.com/kailas-cloud/kongrag/internal/domain/prompt"
)

// Service formats a template and returns the model's text.
type Service struct {
	model  domain.ChatModel
	opts   domain.CompletionOptions
	logger *zap.Logger
}

// New creates a chat service. opts apply to every call.
func New(model domain.ChatModel, opts domain.CompletionOptions, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{model: model, opts: opts, logger: logger}
}

// Run formats tmpl with vars, sends the messages and returns only the answer text.
func (s *Service) Run(ctx context.Context, tmpl prompt.Template, vars map[string]string) (string, error) {
	messages, err := tmpl.Format(vars)
	if err != nil {
		return "", fmt.Errorf("format prompt: %w", err)
	}
	completion, err := s.Complete(ctx, messages)
	if err != nil {
		return "", err
	}
	return completion.Text, nil
}

// Complete sends messages as is.
func (s *Service) Complete(ctx context.Context, messages []domain.Message) (domain.Completion, error) {
	start := time.Now()
	completion, err := s.model.Complete(ctx, messages, s.opts)
	if err != nil {
		s.logger.Error("Chat completion failed",
			zap.Int("messages", len(messages)),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return domain.Completion{}, fmt.Errorf("complete: %w", err)
	}
	s.logger.Debug("Chat completion done",
		zap.Int("messages", len(messages)),
		zap.Duration("duration", time.Since(start)),
		zap.String("finish_reason", completion.FinishReason),
		zap.Int("prompt_tokens", completion.PromptTokens),
		zap.Int("completion_tokens", completion.CompletionTokens),
	)
	return completion, nil
}
