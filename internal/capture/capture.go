// Package capture records microphone audio into in-memory PCM buffers.
//
// A Recorder owns one capture Backend and allows at most one recording
// session at a time. Start begins streaming device chunks into the session
// buffer, Stop closes the session and returns the accumulated audio, and
// Abort closes it discarding everything. The device callback and the
// controlling goroutine touch the session concurrently, so all chunk
// appends go through the session mutex.
package capture

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hfyydd/Open-AutoGLM/pkg/audio"
)

// ErrEmptyRecording is returned by Stop when the session produced no audio
// chunks, typically because the device was stopped immediately after start.
var ErrEmptyRecording = errors.New("capture: recording contains no audio")

// ErrAlreadyRecording is returned by Start while a session is in progress.
var ErrAlreadyRecording = errors.New("capture: recording already in progress")

// ErrNotRecording is returned by Stop when no session is in progress.
var ErrNotRecording = errors.New("capture: no recording in progress")

// Backend is a source of raw capture audio. Implementations deliver
// PCM16 little-endian mono chunks to the callback passed to Start, from
// the moment Start returns until Stop returns.
//
// A Backend is used by at most one Recorder and is not restarted after
// Close.
type Backend interface {
	// SampleRate reports the sample rate of delivered chunks in Hz.
	SampleRate() int

	// Start begins chunk delivery. The callback may be invoked from a
	// device-owned goroutine or OS thread.
	Start(onChunk func(pcm []byte)) error

	// Stop ends chunk delivery. After Stop returns no further callbacks
	// are made. Stop of a stopped backend is a no-op.
	Stop() error

	// Close releases the device. The backend is unusable afterwards.
	Close() error
}

// Recorder turns a capture Backend into discrete recording sessions.
type Recorder struct {
	backend Backend

	mu     sync.Mutex
	active *session
}

// session accumulates chunks for one recording.
type session struct {
	mu     sync.Mutex
	chunks [][]byte
	closed bool
}

// append stores one device chunk. Chunks arriving after the session is
// closed are dropped, covering the race between device teardown and a
// callback already in flight.
func (s *session) append(pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	s.chunks = append(s.chunks, buf)
}

// close seals the session and returns the concatenated PCM data.
func (s *session) close() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true

	total := 0
	for _, c := range s.chunks {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range s.chunks {
		out = append(out, c...)
	}
	s.chunks = nil
	return out
}

// NewRecorder constructs a Recorder over the given backend.
func NewRecorder(backend Backend) (*Recorder, error) {
	if backend == nil {
		return nil, fmt.Errorf("capture: backend must not be nil")
	}
	return &Recorder{backend: backend}, nil
}

// Start opens a new recording session and starts the device.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return ErrAlreadyRecording
	}

	s := &session{}
	if err := r.backend.Start(s.append); err != nil {
		return fmt.Errorf("capture: start device: %w", err)
	}
	r.active = s
	return nil
}

// Stop ends the active session and returns the recorded audio. A session
// that captured no chunks yields ErrEmptyRecording; the device is released
// either way.
func (r *Recorder) Stop() (*audio.Buffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil {
		return nil, ErrNotRecording
	}
	s := r.active
	r.active = nil

	stopErr := r.backend.Stop()
	pcm := s.close()

	if stopErr != nil {
		return nil, fmt.Errorf("capture: stop device: %w", stopErr)
	}
	if len(pcm) == 0 {
		return nil, ErrEmptyRecording
	}
	return audio.FromPCM16LE(pcm, r.backend.SampleRate()), nil
}

// Abort ends the active session discarding any recorded audio. Aborting
// with no session in progress is a no-op, so it is safe to call during
// teardown regardless of state.
func (r *Recorder) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil {
		return
	}
	s := r.active
	r.active = nil

	// Stop errors are deliberately swallowed: the audio is being thrown
	// away and there is nothing useful for the caller to do with them.
	_ = r.backend.Stop()
	s.close()
}

// Recording reports whether a session is in progress.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Close aborts any active session and releases the device.
func (r *Recorder) Close() error {
	r.Abort()
	return r.backend.Close()
}
