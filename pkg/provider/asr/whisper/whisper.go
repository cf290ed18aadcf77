// Package whisper provides an offline ASR client backed by the whisper.cpp
// CGO bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.
//
// Because inference runs entirely in-process, this client makes a good
// fallback behind a remote transcription service: it keeps voice input
// working when the network or the credential is broken.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/hfyydd/Open-AutoGLM/pkg/audio"
	"github.com/hfyydd/Open-AutoGLM/pkg/provider/asr"
)

const (
	// modelSampleRate is the sample rate whisper models are trained on.
	modelSampleRate = 16000

	defaultLanguage = "en"

	providerName = "whisper"
)

// Compile-time assertion that Client satisfies asr.Client.
var _ asr.Client = (*Client)(nil)

// Client implements asr.Client using whisper.cpp Go bindings (CGO). The model
// is loaded once at construction and shared across calls; each Transcribe
// creates its own whisper context, so concurrent calls do not interfere.
type Client struct {
	model    whisperlib.Model
	language string

	closeOnce sync.Once
	closeErr  error
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithLanguage sets the BCP-47 language code for transcription (e.g., "en",
// "zh"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(c *Client) {
		if lang != "" {
			c.language = lang
		}
	}
}

// New creates a Client that loads the whisper.cpp model from the given file
// path. The caller must call Close when the client is no longer needed.
func New(modelPath string, opts ...Option) (*Client, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	c := &Client{model: model, language: defaultLanguage}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Close releases the whisper model. Safe to call multiple times.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.model != nil {
			c.closeErr = c.model.Close()
		}
	})
	return c.closeErr
}

// Transcribe implements asr.Client. The buffer is resampled to the model's
// 16 kHz rate when necessary, run through whisper.cpp inference, and the
// recognised segments are concatenated.
func (c *Client) Transcribe(ctx context.Context, buf *audio.Buffer) (string, error) {
	if buf.Empty() {
		return "", &asr.Error{Kind: asr.KindEmptyResult, Provider: providerName}
	}
	if err := ctx.Err(); err != nil {
		return "", &asr.Error{Kind: asr.KindNetwork, Provider: providerName, Err: err}
	}

	samples := toFloat32(buf.Samples)
	if buf.SampleRate != modelSampleRate {
		samples = resampleLinear(samples, buf.SampleRate, modelSampleRate)
	}

	// Each whisper context is NOT thread-safe, but the model can be shared.
	wctx, err := c.model.NewContext()
	if err != nil {
		return "", &asr.Error{Kind: asr.KindNetwork, Provider: providerName, Err: fmt.Errorf("create context: %w", err)}
	}
	if err := wctx.SetLanguage(c.language); err != nil {
		return "", &asr.Error{Kind: asr.KindNetwork, Provider: providerName, Err: fmt.Errorf("set language %q: %w", c.language, err)}
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", &asr.Error{Kind: asr.KindNetwork, Provider: providerName, Err: fmt.Errorf("process audio: %w", err)}
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", &asr.Error{Kind: asr.KindNetwork, Provider: providerName, Err: fmt.Errorf("read segment: %w", err)}
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	text := strings.TrimSpace(strings.Join(parts, " "))
	if text == "" {
		return "", &asr.Error{Kind: asr.KindEmptyResult, Provider: providerName}
	}
	return text, nil
}

// toFloat32 converts signed 16-bit samples to float32 normalised to [-1, 1].
func toFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// resampleLinear converts samples from srcRate to dstRate by linear
// interpolation. Adequate for speech recognition input; not intended for
// playback-quality conversion.
func resampleLinear(in []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || len(in) == 0 || srcRate <= 0 || dstRate <= 0 {
		return in
	}
	outLen := int(int64(len(in)) * int64(dstRate) / int64(srcRate))
	if outLen == 0 {
		return nil
	}
	out := make([]float32, outLen)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = in[idx]*(1-frac) + in[idx+1]*frac
	}
	return out
}
