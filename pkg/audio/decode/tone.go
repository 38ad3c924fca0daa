// ABOUTME: Test tone generator
// ABOUTME: Generates a sine wave as 16-bit PCM
package decode

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
)

const (
	// DefaultToneFrequency is A4
	DefaultToneFrequency = 440.0
	toneAmplitude        = 0.5
)

// ToneSource generates a sine tone on every channel
type ToneSource struct {
	format    audio.Format
	frequency float64
	index     int64
	limit     int64
}

// NewTone creates a tone of frequency Hz. A zero duration in frames means endless.
func NewTone(frequency float64, sampleRate, channels int, frames int64) *ToneSource {
	return &ToneSource{
		frequency: frequency,
		limit:     frames,
		format: audio.Format{
			Codec:      audio.CodecPCM,
			SampleRate: sampleRate,
			Channels:   channels,
			BitDepth:   16,
		},
	}
}

func (s *ToneSource) Format() audio.Format { return s.format }

func (s *ToneSource) Read(frames int) (audio.Chunk, error) {
	if s.limit > 0 {
		frames = int(min(int64(frames), s.limit-s.index))
		if frames <= 0 {
			return audio.Chunk{}, io.EOF
		}
	}

	channels := s.format.Channels
	data := make([]byte, frames*s.format.FrameSize())
	for i := 0; i < frames; i++ {
		t := float64(s.index+int64(i)) / float64(s.format.SampleRate)
		v := int16(math.Sin(2*math.Pi*s.frequency*t) * 32767.0 * toneAmplitude)
		for ch := 0; ch < channels; ch++ {
			binary.LittleEndian.PutUint16(data[(i*channels+ch)*2:], uint16(v))
		}
	}
	s.index += int64(frames)

	return audio.NewChunk(audio.Pcm16, channels, s.format.SampleRate, data), nil
}

func (s *ToneSource) Close() error { return nil }
