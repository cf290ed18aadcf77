// Package openai provides an ASR client backed by the OpenAI audio
// transcription API.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hfyydd/Open-AutoGLM/pkg/audio"
	"github.com/hfyydd/Open-AutoGLM/pkg/provider/asr"
)

const providerName = "openai"

// Compile-time assertion that Client satisfies asr.Client.
var _ asr.Client = (*Client)(nil)

// Client implements asr.Client using the OpenAI API.
type Client struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the client.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Client.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Use this to point at
// any OpenAI-compatible transcription endpoint.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs an OpenAI ASR client. model may be empty, in which case
// whisper-1 is used.
func New(apiKey string, model string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		model = string(oai.AudioModelWhisper1)
	}

	cfg := &config{}
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

	return &Client{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Transcribe implements asr.Client.
func (c *Client) Transcribe(ctx context.Context, buf *audio.Buffer) (string, error) {
	wav, err := audio.EncodeWAV(buf)
	if err != nil {
		return "", &asr.Error{Kind: asr.KindEmptyResult, Provider: providerName, Err: err}
	}

	resp, err := c.client.Audio.Transcriptions.New(ctx, oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "voice_input.wav", "audio/wav"),
		Model: oai.AudioModel(c.model),
	})
	if err != nil {
		return "", &asr.Error{Kind: classify(err), Provider: providerName, Err: err}
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", &asr.Error{Kind: asr.KindEmptyResult, Provider: providerName}
	}
	return text, nil
}

// classify maps an SDK error to an asr failure kind.
func classify(err error) asr.Kind {
	var apierr *oai.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return asr.KindAuthorization
		}
	}
	return asr.KindNetwork
}
