package phone

import (
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Compile-time assertion that OpenAICompleter satisfies Completer.
var _ Completer = (*OpenAICompleter)(nil)

// OpenAICompleter implements Completer using the OpenAI SDK. Point it at any
// OpenAI-compatible completions endpoint (including the GLM phone-agent API)
// via WithBaseURL.
type OpenAICompleter struct {
	client oai.Client
	model  string
}

// openaiConfig holds optional configuration for the completer.
type openaiConfig struct {
	baseURL string
	timeout time.Duration
}

// OpenAIOption is a functional option for OpenAICompleter.
type OpenAIOption func(*openaiConfig)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) OpenAIOption {
	return func(c *openaiConfig) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) OpenAIOption {
	return func(c *openaiConfig) { c.timeout = d }
}

// NewOpenAICompleter constructs a Completer backed by the OpenAI SDK.
func NewOpenAICompleter(apiKey, model string, opts ...OpenAIOption) (*OpenAICompleter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("phone: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("phone: model must not be empty")
	}

	cfg := &openaiConfig{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &OpenAICompleter{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Complete implements Completer.
func (c *OpenAICompleter) Complete(ctx context.Context, messages []Message) (string, error) {
	params := oai.ChatCompletionNewParams{
		Model:    oai.ChatModel(c.model),
		Messages: make([]oai.ChatCompletionMessageParamUnion, 0, len(messages)),
	}
	for _, m := range messages {
		switch m.Role {
		case "system":
			params.Messages = append(params.Messages, oai.SystemMessage(m.Content))
		case "assistant":
			params.Messages = append(params.Messages, oai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, oai.UserMessage(m.Content))
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("phone: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("phone: empty choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
