package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// wavHeaderSize is the size of a canonical 44-byte PCM WAV header.
const wavHeaderSize = 44

// ErrEmptyBuffer is returned by EncodeWAV when the buffer holds no samples.
var ErrEmptyBuffer = errors.New("audio: cannot encode empty buffer")

// wavHeader is the canonical RIFF/WAVE header for uncompressed PCM data.
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // file size - 8
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

// EncodeWAV serialises a mono PCM-16 buffer into an in-memory WAV file.
// Returns [ErrEmptyBuffer] if the buffer holds no samples and an error if the
// sample rate is not positive.
func EncodeWAV(b *Buffer) ([]byte, error) {
	if b.Empty() {
		return nil, ErrEmptyBuffer
	}
	if b.SampleRate <= 0 {
		return nil, fmt.Errorf("audio: sample rate must be positive, got %d", b.SampleRate)
	}

	const (
		channels      = uint16(1)
		bitsPerSample = uint16(16)
	)
	dataSize := uint32(len(b.Samples) * BytesPerSample)

	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(wavHeaderSize-8) + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   channels,
		SampleRate:    uint32(b.SampleRate),
		ByteRate:      uint32(b.SampleRate) * uint32(channels) * uint32(bitsPerSample) / 8,
		BlockAlign:    channels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+int(dataSize)))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("audio: write WAV header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, b.Samples); err != nil {
		return nil, fmt.Errorf("audio: write WAV data: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeWAV parses an in-memory WAV file produced by [EncodeWAV] back into a
// Buffer. Only canonical 44-byte-header mono PCM-16 files are supported.
func DecodeWAV(data []byte) (*Buffer, error) {
	if len(data) < wavHeaderSize {
		return nil, fmt.Errorf("audio: WAV data too short: %d bytes", len(data))
	}

	var header wavHeader
	r := bytes.NewReader(data)
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("audio: read WAV header: %w", err)
	}

	switch {
	case string(header.ChunkID[:]) != "RIFF":
		return nil, errors.New("audio: invalid WAV file: missing RIFF header")
	case string(header.Format[:]) != "WAVE":
		return nil, errors.New("audio: invalid WAV file: missing WAVE format")
	case header.AudioFormat != 1:
		return nil, fmt.Errorf("audio: unsupported WAV audio format %d", header.AudioFormat)
	case header.NumChannels != 1:
		return nil, fmt.Errorf("audio: unsupported channel count %d", header.NumChannels)
	case header.BitsPerSample != 16:
		return nil, fmt.Errorf("audio: unsupported bit depth %d", header.BitsPerSample)
	}

	n := int(header.Subchunk2Size) / BytesPerSample
	if avail := (len(data) - wavHeaderSize) / BytesPerSample; n > avail {
		n = avail
	}
	samples := make([]int16, n)
	if err := binary.Read(r, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("audio: read WAV data: %w", err)
	}
	return &Buffer{SampleRate: int(header.SampleRate), Samples: samples}, nil
}
