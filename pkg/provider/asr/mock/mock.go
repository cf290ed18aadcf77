// Package mock provides a test double for the asr.Client interface.
//
// Use Client in unit tests to feed controlled transcription results without a
// live recognition backend and to verify call counts (the core promises one
// recognition call per finished recording, and none for empty recordings).
//
// Example:
//
//	c := &mock.Client{Text: "turn on the light"}
//	text, err := c.Transcribe(ctx, buf)
package mock

import (
	"context"
	"sync"

	"github.com/hfyydd/Open-AutoGLM/pkg/audio"
	"github.com/hfyydd/Open-AutoGLM/pkg/provider/asr"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Buffer is the audio buffer passed to Transcribe.
	Buffer *audio.Buffer
}

// Client is a mock implementation of asr.Client.
// Zero values cause Transcribe to return ("", nil)-adjacent defaults; set Err
// to inject a classified failure.
type Client struct {
	mu sync.Mutex

	// Text is returned by Transcribe when Err is nil.
	Text string

	// Err, if non-nil, is returned by Transcribe instead of Text.
	Err error

	// Block, if non-nil, is received from before Transcribe returns. Use it
	// to hold a transcription in flight while the test cancels the task.
	Block chan struct{}

	// Calls records every invocation of Transcribe in order.
	Calls []TranscribeCall
}

// Compile-time assertion that Client satisfies asr.Client.
var _ asr.Client = (*Client)(nil)

// Transcribe implements asr.Client.
func (c *Client) Transcribe(ctx context.Context, buf *audio.Buffer) (string, error) {
	c.mu.Lock()
	c.Calls = append(c.Calls, TranscribeCall{Ctx: ctx, Buffer: buf})
	text, err, block := c.Text, c.Err, c.Block
	c.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", &asr.Error{Kind: asr.KindNetwork, Provider: "mock", Err: ctx.Err()}
		}
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

// CallCount returns the number of Transcribe invocations so far.
func (c *Client) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Calls)
}
