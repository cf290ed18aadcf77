// Package audio defines the PCM buffer type handed from the capture layer to
// the transcription providers, plus in-memory WAV encoding so a finished
// recording can be posted to an HTTP transcription endpoint without touching
// the filesystem.
package audio

import (
	"encoding/binary"
	"time"
)

// BytesPerSample is the size of one mono PCM-16 sample on the wire.
const BytesPerSample = 2

// Buffer is a finished mono PCM-16 recording. It is immutable once produced;
// the capture layer builds it exactly once when a recording session is
// stopped and never retains a reference afterwards.
type Buffer struct {
	// SampleRate is the native sample rate of the device that produced the
	// recording, in Hz.
	SampleRate int

	// Samples holds the signed 16-bit mono frames in capture order.
	Samples []int16
}

// Empty reports whether the buffer contains no audio frames.
func (b *Buffer) Empty() bool {
	return b == nil || len(b.Samples) == 0
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// FromPCM16LE builds a Buffer from raw little-endian 16-bit PCM bytes as
// delivered by the capture device callback. A trailing odd byte is dropped.
func FromPCM16LE(data []byte, sampleRate int) *Buffer {
	samples := make([]int16, len(data)/BytesPerSample)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*BytesPerSample:]))
	}
	return &Buffer{SampleRate: sampleRate, Samples: samples}
}
