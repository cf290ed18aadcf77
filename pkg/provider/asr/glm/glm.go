// Package glm provides an ASR client backed by the Zhipu GLM audio
// transcription API. The same wire format (multipart upload with a bearer
// credential and a model field) is spoken by most OpenAI-compatible
// transcription endpoints, so the base URL is overridable.
package glm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/hfyydd/Open-AutoGLM/pkg/audio"
	"github.com/hfyydd/Open-AutoGLM/pkg/provider/asr"
)

const (
	// defaultBaseURL is the GLM audio transcription endpoint.
	defaultBaseURL = "https://open.bigmodel.cn/api/paas/v4/audio/transcriptions"

	// defaultModel is the GLM speech recognition model.
	defaultModel = "glm-asr-2512"

	// defaultTimeout bounds one transcription round trip.
	defaultTimeout = 60 * time.Second

	// maxErrorBody caps how much of a failure response body is kept for the
	// error message.
	maxErrorBody = 2048

	providerName = "glm"
)

// Compile-time assertion that Client satisfies asr.Client.
var _ asr.Client = (*Client)(nil)

// Client implements asr.Client against the GLM transcription endpoint.
// It performs exactly one HTTP request per Transcribe call and never retries.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	language   string
	httpClient *http.Client
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithBaseURL overrides the default GLM transcription endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithModel overrides the default recognition model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithLanguage adds a language hint to each request. Empty (the default)
// lets the service auto-detect.
func WithLanguage(lang string) Option {
	return func(c *Client) { c.language = lang }
}

// WithHTTPClient replaces the underlying HTTP client. Useful in tests and for
// callers that need custom transport settings.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New constructs a GLM ASR client.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("glm: apiKey must not be empty")
	}
	c := &Client{
		apiKey:     apiKey,
		model:      defaultModel,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Transcribe implements asr.Client. The buffer is encoded as an in-memory WAV
// file and uploaded as multipart form data with the model name and the bearer
// credential. Non-2xx statuses map to classified errors; a 2xx response with
// an empty text field maps to [asr.KindEmptyResult].
func (c *Client) Transcribe(ctx context.Context, buf *audio.Buffer) (string, error) {
	wav, err := audio.EncodeWAV(buf)
	if err != nil {
		return "", &asr.Error{Kind: asr.KindEmptyResult, Provider: providerName, Err: err}
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "voice_input.wav")
	if err != nil {
		return "", &asr.Error{Kind: asr.KindNetwork, Provider: providerName, Err: err}
	}
	if _, err := part.Write(wav); err != nil {
		return "", &asr.Error{Kind: asr.KindNetwork, Provider: providerName, Err: err}
	}
	if err := writer.WriteField("model", c.model); err != nil {
		return "", &asr.Error{Kind: asr.KindNetwork, Provider: providerName, Err: err}
	}
	if c.language != "" {
		if err := writer.WriteField("language", c.language); err != nil {
			return "", &asr.Error{Kind: asr.KindNetwork, Provider: providerName, Err: err}
		}
	}
	if err := writer.Close(); err != nil {
		return "", &asr.Error{Kind: asr.KindNetwork, Provider: providerName, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, &body)
	if err != nil {
		return "", &asr.Error{Kind: asr.KindNetwork, Provider: providerName, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &asr.Error{Kind: asr.KindNetwork, Provider: providerName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		kind := asr.KindNetwork
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			kind = asr.KindAuthorization
		}
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &asr.Error{
			Kind:     kind,
			Provider: providerName,
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
		}
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &asr.Error{Kind: asr.KindNetwork, Provider: providerName, Err: fmt.Errorf("decode response: %w", err)}
	}

	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		return "", &asr.Error{Kind: asr.KindEmptyResult, Provider: providerName}
	}
	return text, nil
}
