package capture

import "sync"

// Compile-time assertion that FakeBackend satisfies Backend.
var _ Backend = (*FakeBackend)(nil)

// FakeBackend is an in-memory Backend for tests and audio-less development.
// Chunks queued before Start are delivered synchronously when the device
// starts; Feed delivers a chunk immediately while the device is running.
type FakeBackend struct {
	rate int

	// StartErr and StopErr, if non-nil, are returned by Start and Stop.
	StartErr error
	StopErr  error

	mu      sync.Mutex
	onChunk func(pcm []byte)
	started bool
	closed  bool
	queued  [][]byte
}

// NewFakeBackend constructs a FakeBackend reporting the given sample rate.
func NewFakeBackend(sampleRate int) *FakeBackend {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &FakeBackend{rate: sampleRate}
}

// Queue schedules a chunk for delivery on the next Start.
func (f *FakeBackend) Queue(pcm []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = append(f.queued, pcm)
}

// Feed delivers a chunk to the running capture callback. Chunks fed while
// the device is stopped are dropped, like a real device.
func (f *FakeBackend) Feed(pcm []byte) {
	f.mu.Lock()
	onChunk := f.onChunk
	started := f.started
	f.mu.Unlock()
	if started && onChunk != nil {
		onChunk(pcm)
	}
}

// Started reports whether the device is currently running.
func (f *FakeBackend) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

// Closed reports whether Close has been called.
func (f *FakeBackend) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// SampleRate implements Backend.
func (f *FakeBackend) SampleRate() int { return f.rate }

// Start implements Backend.
func (f *FakeBackend) Start(onChunk func(pcm []byte)) error {
	if f.StartErr != nil {
		return f.StartErr
	}
	f.mu.Lock()
	f.onChunk = onChunk
	f.started = true
	queued := f.queued
	f.queued = nil
	f.mu.Unlock()

	for _, c := range queued {
		onChunk(c)
	}
	return nil
}

// Stop implements Backend.
func (f *FakeBackend) Stop() error {
	f.mu.Lock()
	f.onChunk = nil
	f.started = false
	f.mu.Unlock()
	return f.StopErr
}

// Close implements Backend.
func (f *FakeBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onChunk = nil
	f.started = false
	f.closed = true
	return nil
}
