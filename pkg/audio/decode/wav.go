// ABOUTME: WAV source
// ABOUTME: Decodes integer PCM wave files with go-audio
package decode

import (
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
)

const wavFormatPCM = 1

// WAVSource reads a wave file
type WAVSource struct {
	r       io.ReadSeeker
	dec     *wav.Decoder
	format  audio.Format
	srcBits int
	buf     *goaudio.IntBuffer
}

// NewWAV creates a source for 16, 24 or 32-bit integer wave data
func NewWAV(r io.ReadSeeker) (*WAVSource, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("not a wave file: %w", ErrUnsupported)
	}
	dec.ReadInfo()

	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("wave encoding %d: %w", dec.WavAudioFormat, ErrUnsupported)
	}
	bits := int(dec.BitDepth)
	if bits != 16 && bits != 24 && bits != 32 {
		return nil, fmt.Errorf("wave bit depth %d: %w", bits, ErrUnsupported)
	}
	f := dec.Format()
	if f == nil || f.NumChannels <= 0 || f.SampleRate <= 0 {
		return nil, fmt.Errorf("wave layout: %w", ErrUnsupported)
	}

	return &WAVSource{
		r:       r,
		dec:     dec,
		srcBits: bits,
		format: audio.Format{
			Codec:      audio.CodecPCM,
			SampleRate: f.SampleRate,
			Channels:   f.NumChannels,
			BitDepth:   pcmDepth(bits),
		},
	}, nil
}

func (s *WAVSource) Format() audio.Format { return s.format }

func (s *WAVSource) Read(frames int) (audio.Chunk, error) {
	n := frames * s.format.Channels
	if s.buf == nil || cap(s.buf.Data) < n {
		s.buf = &goaudio.IntBuffer{Data: make([]int, n), Format: s.dec.Format(), SourceBitDepth: s.srcBits}
	}
	s.buf.Data = s.buf.Data[:n]

	got, err := s.dec.PCMBuffer(s.buf)
	if got == 0 {
		if err == nil {
			err = io.EOF
		}
		return audio.Chunk{}, err
	}

	samples := make([]int32, got)
	for i, v := range s.buf.Data[:got] {
		samples[i] = int32(v)
	}
	data := packPCM(samples, s.srcBits, s.format.BitDepth)
	return audio.NewChunk(s.format.SampleFormat(), s.format.Channels, s.format.SampleRate, data), nil
}

func (s *WAVSource) Close() error {
	return fileCloser(s.r)
}
