package domain

import (
	"context"
	"fmt"
	"strings"
)

// Role tags a conversation message.
type Role string

const (
	// RoleSystem carries instructions for the model.
	RoleSystem Role = "system"
	// RoleUser carries the end-user turn.
	RoleUser Role = "user"
	// RoleAssistant carries a model turn.
	RoleAssistant Role = "assistant"
)

// ParseRole accepts "human" as an alias of "user".
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "system":
		return RoleSystem, nil
	case "user", "human":
		return RoleUser, nil
	case "assistant", "ai":
		return RoleAssistant, nil
	default:
		return "", fmt.Errorf("unknown role %q: %w", s, ErrInvalidInput)
	}
}

// Message is a role-tagged text unit sent to the chat model.
type Message struct {
	Role    Role
	Content string
}

// CompletionOptions tunes a single chat request.
// A nil Temperature leaves the model default in place.
type CompletionOptions struct {
	Temperature *float32
	MaxTokens   int
}

// Completion is the chat model output. Only Text is the answer; the rest is bookkeeping.
type Completion struct {
	Text             string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
}

// ChatModel sends an ordered message list to a chat-completion API.
type ChatModel interface {
	Complete(ctx context.Context, messages []Message, opts CompletionOptions) (Completion, error)
}

// Temperature is a helper for CompletionOptions.Temperature.
func Temperature(t float32) *float32 {
	return &t
}
