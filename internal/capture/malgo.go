package capture

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// DefaultSampleRate is the capture rate used when none is configured. It
// matches what the GLM transcription endpoint expects.
const DefaultSampleRate = 16000

// Compile-time assertion that MalgoBackend satisfies Backend.
var _ Backend = (*MalgoBackend)(nil)

// MalgoBackend captures microphone audio through the miniaudio bindings.
// It opens the default capture device as 16-bit mono PCM.
type MalgoBackend struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	sampleRate   int

	mu      sync.Mutex
	onChunk func(pcm []byte)
}

// MalgoOption is a functional option for MalgoBackend.
type MalgoOption func(*MalgoBackend)

// WithSampleRate overrides the default capture sample rate.
func WithSampleRate(rate int) MalgoOption {
	return func(b *MalgoBackend) {
		if rate > 0 {
			b.sampleRate = rate
		}
	}
}

// NewMalgoBackend initializes the miniaudio context and the default
// capture device. Close must be called to release both.
func NewMalgoBackend(opts ...MalgoOption) (*MalgoBackend, error) {
	b := &MalgoBackend{sampleRate: DefaultSampleRate}
	for _, o := range opts {
		o(b)
	}

	audioContext, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return nil, fmt.Errorf("capture: init audio context: %w", err)
	}
	b.audioContext = audioContext

	format := malgo.FormatS16
	channels := 1
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = uint32(b.sampleRate)
	config.Capture.Format = format
	config.Capture.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency
	config.PeriodSizeInFrames = 480
	config.Periods = 3

	device, err := malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if n == 0 || len(pInput) < n {
				return
			}
			b.mu.Lock()
			onChunk := b.onChunk
			b.mu.Unlock()
			if onChunk != nil {
				onChunk(pInput[:n])
			}
		},
	})
	if err != nil {
		_ = audioContext.Uninit()
		audioContext.Free()
		return nil, fmt.Errorf("capture: init capture device: %w", err)
	}
	b.device = device

	return b, nil
}

// SampleRate implements Backend.
func (b *MalgoBackend) SampleRate() int { return b.sampleRate }

// Start implements Backend.
func (b *MalgoBackend) Start(onChunk func(pcm []byte)) error {
	b.mu.Lock()
	b.onChunk = onChunk
	b.mu.Unlock()

	if b.device.IsStarted() {
		return nil
	}
	if err := b.device.Start(); err != nil {
		b.mu.Lock()
		b.onChunk = nil
		b.mu.Unlock()
		return fmt.Errorf("start capture device: %w", err)
	}
	return nil
}

// Stop implements Backend.
func (b *MalgoBackend) Stop() error {
	if b.device.IsStarted() {
		if err := b.device.Stop(); err != nil {
			return fmt.Errorf("stop capture device: %w", err)
		}
	}
	b.mu.Lock()
	b.onChunk = nil
	b.mu.Unlock()
	return nil
}

// Close implements Backend.
func (b *MalgoBackend) Close() error {
	if b.device != nil {
		b.device.Uninit()
		b.device = nil
	}
	if b.audioContext != nil {
		err := b.audioContext.Uninit()
		b.audioContext.Free()
		b.audioContext = nil
		if err != nil {
			return fmt.Errorf("capture: uninit audio context: %w", err)
		}
	}
	return nil
}
