package openai

import (
	"context"
	"fmt"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kongrag/internal/domain"
	"github.com/kailas-cloud/kongrag/internal/metrics"
)

// ChatModel is a chat-completion provider using the OpenAI-compatible API.
type ChatModel struct {
	client      *openai.Client
	model       string
	temperature *float32
	provider    string
	timeout     time.Duration
	logger      *zap.Logger
}

// ChatConfig holds the chat provider settings.
type ChatConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float32 // default for calls that do not set one; nil = model default
	Provider    string
	Timeout     time.Duration
	Logger      *zap.Logger
}

// NewChatModel creates an OpenAI-compatible chat model.
func NewChatModel(cfg *ChatConfig) *ChatModel {
	provider := cfg.Provider
	if provider == "" {
		provider = DefaultProvider
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatModel{
		client:      newClient(cfg.APIKey, cfg.BaseURL),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		provider:    provider,
		timeout:     cfg.Timeout,
		logger:      logger,
	}
}

// Complete implements domain.ChatModel.
func (m *ChatModel) Complete(
	ctx context.Context, messages []domain.Message, opts domain.CompletionOptions,
) (domain.Completion, error) {
	if len(messages) == 0 {
		return domain.Completion{}, fmt.Errorf("chat: no messages: %w", domain.ErrInvalidInput)
	}

	req := openai.ChatCompletionRequest{
		Model:     m.model,
		Messages:  make([]openai.ChatCompletionMessage, 0, len(messages)),
		MaxTokens: opts.MaxTokens,
	}
	for _, msg := range messages {
		role, err := chatRole(msg.Role)
		if err != nil {
			return domain.Completion{}, err
		}
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}

	temperature := opts.Temperature
	if temperature == nil {
		temperature = m.temperature
	}
	if temperature != nil {
		req.Temperature = wireTemperature(*temperature)
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := m.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.ChatRequestsTotal.WithLabelValues(m.provider, m.model, "error").Inc()
		metrics.ChatErrorsTotal.WithLabelValues(m.provider, m.model, "api_error").Inc()
		err = parseAPIError("chat", err)
		m.logger.Debug("chat request failed", zap.Duration("duration", duration), zap.Error(err))
		return domain.Completion{}, err
	}
	if len(resp.Choices) == 0 {
		metrics.ChatRequestsTotal.WithLabelValues(m.provider, m.model, "error").Inc()
		metrics.ChatErrorsTotal.WithLabelValues(m.provider, m.model, "empty_response").Inc()
		return domain.Completion{}, fmt.Errorf("empty chat response: %w", domain.ErrFatalService)
	}

	metrics.ChatRequestsTotal.WithLabelValues(m.provider, m.model, "success").Inc()
	metrics.ChatRequestDuration.WithLabelValues(m.provider, m.model).Observe(duration.Seconds())
	metrics.ChatTokensTotal.WithLabelValues(m.provider, m.model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.ChatTokensTotal.WithLabelValues(m.provider, m.model, "completion").Add(float64(resp.Usage.CompletionTokens))

	choice := resp.Choices[0]
	return domain.Completion{
		Text:             choice.Message.Content,
		FinishReason:     string(choice.FinishReason),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels.
func (m *ChatModel) HealthCheck(ctx context.Context) error {
	return listModels(ctx, m.client)
}

func chatRole(r domain.Role) (string, error) {
	switch r {
	case domain.RoleSystem:
		return openai.ChatMessageRoleSystem, nil
	case domain.RoleUser:
		return openai.ChatMessageRoleUser, nil
	case domain.RoleAssistant:
		return openai.ChatMessageRoleAssistant, nil
	default:
		return "", fmt.Errorf("chat: unsupported role %q: %w", r, domain.ErrInvalidInput)
	}
}

// wireTemperature keeps an explicit zero on the wire: the request field is omitempty.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}
