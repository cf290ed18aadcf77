package resilience

import (
	"context"

	"github.com/hfyydd/Open-AutoGLM/pkg/audio"
	"github.com/hfyydd/Open-AutoGLM/pkg/provider/asr"
)

// ASRFallback implements [asr.Client] with automatic failover across multiple
// transcription backends. Each backend has its own circuit breaker, so a
// remote endpoint that keeps timing out is bypassed in favour of (for
// example) a local whisper model.
//
// An empty-result classification stops the failover: the recording contains
// no recognisable speech and asking another engine will not change that.
type ASRFallback struct {
	group *FallbackGroup[asr.Client]
}

// Compile-time interface assertion.
var _ asr.Client = (*ASRFallback)(nil)

// NewASRFallback creates an [ASRFallback] with primary as the preferred backend.
func NewASRFallback(primary asr.Client, primaryName string, cfg FallbackConfig) *ASRFallback {
	return &ASRFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional transcription backend. Fallbacks are
// tried in registration order after the primary.
func (f *ASRFallback) AddFallback(name string, client asr.Client) {
	f.group.AddFallback(name, client)
}

// Transcribe sends the buffer to the first healthy backend. Each backend is
// asked at most once per call.
func (f *ASRFallback) Transcribe(ctx context.Context, buf *audio.Buffer) (string, error) {
	return ExecuteWithResultStop(f.group, func(c asr.Client) (string, error) {
		return c.Transcribe(ctx, buf)
	}, func(err error) bool {
		kind, ok := asr.KindOf(err)
		return ok && kind == asr.KindEmptyResult
	})
}
