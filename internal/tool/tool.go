// Package tool provides deterministic functions that a chat model can call.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/kailas-cloud/kongrag/internal/domain"
)

// Tool is a named function with a JSON argument schema.
type Tool interface {
	Name() string
	Description() string
	Parameters() jsonschema.Definition
	// Call runs the tool. args is either a JSON object matching Parameters or,
	// for single-input tools, the raw input text.
	Call(ctx context.Context, args string) (string, error)
}

// Registry holds tools by name in registration order.
type Registry struct {
	tools []Tool
	index map[string]Tool
}

// NewRegistry returns a registry with tools. Duplicate names are a configuration error.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{index: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if _, dup := r.index[t.Name()]; dup {
			return nil, fmt.Errorf("duplicate tool %q: %w", t.Name(), domain.ErrConfiguration)
		}
		r.tools = append(r.tools, t)
		r.index[t.Name()] = t
	}
	return r, nil
}

// Default returns the calculator, exchange-rate and date-difference tools.
func Default(usdCNYRate float64) *Registry {
	r, _ := NewRegistry(Calculator{}, ExchangeRate{USDCNY: usdCNYRate}, DateDifference{})
	return r
}

// Names lists tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.tools))
	for i, t := range r.tools {
		names[i] = t.Name()
	}
	return names
}

// Describe renders one "name: description" line per tool.
func (r *Registry) Describe() string {
	lines := make([]string, len(r.tools))
	for i, t := range r.tools {
		lines[i] = t.Name() + ": " + t.Description()
	}
	return strings.Join(lines, "\n")
}

// Definitions returns the tools as chat-completion function definitions.
func (r *Registry) Definitions() []openai.Tool {
	out := make([]openai.Tool, len(r.tools))
	for i, t := range r.tools {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		}
	}
	return out
}

// Call runs the named tool.
func (r *Registry) Call(ctx context.Context, name, args string) (string, error) {
	t, ok := r.index[name]
	if !ok {
		known := r.Names()
		sort.Strings(known)
		return "", fmt.Errorf("tool %q (known: %s): %w", name, strings.Join(known, ", "), domain.ErrNotFound)
	}
	return t.Call(ctx, args)
}

// inputSchema is the schema of single-input tools.
func inputSchema(desc string) jsonschema.Definition {
	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"input": {Type: jsonschema.String, Description: desc},
		},
		Required: []string{"input"},
	}
}

// singleInput accepts {"input": "..."} or the raw text.
func singleInput(args string) string {
	args = strings.TrimSpace(args)
	if strings.HasPrefix(args, "{") {
		var v struct {
			Input string `json:"input"`
		}
		if json.Unmarshal([]byte(args), &v) == nil {
			return strings.TrimSpace(v.Input)
		}
	}
	return args
}
