package phone

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"
)

// Compile-time assertion that AnyLLMCompleter satisfies Completer.
var _ Completer = (*AnyLLMCompleter)(nil)

// AnyLLMCompleter implements Completer by wrapping github.com/mozilla-ai/any-llm-go,
// a unified multi-provider interface. It lets the phone agent run against any
// supported chat backend, including local inference via Ollama.
type AnyLLMCompleter struct {
	backend anyllmlib.Provider
	model   string
}

// NewAnyLLMCompleter constructs a Completer for the given provider name.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama", "deepseek",
// "mistral", "groq". model is the specific model to use (e.g., "gpt-4o").
//
// opts are any-llm-go configuration options (e.g., anyllmlib.WithAPIKey,
// anyllmlib.WithBaseURL). If no API key option is provided, the provider falls
// back to the relevant environment variable (OPENAI_API_KEY, ANTHROPIC_API_KEY, etc.).
func NewAnyLLMCompleter(providerName, model string, opts ...anyllmlib.Option) (*AnyLLMCompleter, error) {
	if providerName == "" {
		return nil, fmt.Errorf("phone: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("phone: model must not be empty")
	}

	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("phone: create %q backend: %w", providerName, err)
	}

	return &AnyLLMCompleter{backend: backend, model: model}, nil
}

// createBackend creates the underlying any-llm-go provider for the given provider name.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq", providerName)
	}
}

// Complete implements Completer.
func (c *AnyLLMCompleter) Complete(ctx context.Context, messages []Message) (string, error) {
	params := anyllmlib.CompletionParams{
		Model:    c.model,
		Messages: make([]anyllmlib.Message, 0, len(messages)),
	}
	for _, m := range messages {
		role := m.Role
		switch role {
		case "system":
			role = anyllmlib.RoleSystem
		case "assistant":
			role = anyllmlib.RoleAssistant
		default:
			role = anyllmlib.RoleUser
		}
		params.Messages = append(params.Messages, anyllmlib.Message{
			Role:    role,
			Content: m.Content,
		})
	}

	resp, err := c.backend.Completion(ctx, params)
	if err != nil {
		return "", fmt.Errorf("phone: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("phone: empty choices in response")
	}
	return resp.Choices[0].Message.ContentString(), nil
}
