// ABOUTME: FLAC source
// ABOUTME: Decodes FLAC frames to 16 or 24-bit PCM with mewkiz/flac
package decode

import (
	"fmt"
	"io"

	"github.com/mewkiz/flac"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
)

// FLACSource decodes a FLAC stream frame by frame
type FLACSource struct {
	stream   *flac.Stream
	format   audio.Format
	bitDepth int
	pending  []int32 // interleaved samples left over from the last frame
}

// NewFLAC creates a FLAC source
func NewFLAC(r io.Reader) (*FLACSource, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	bits := int(info.BitsPerSample)
	if info.NChannels == 0 || info.SampleRate == 0 || bits == 0 || bits > 32 {
		stream.Close()
		return nil, fmt.Errorf("flac layout: %w", ErrUnsupported)
	}

	return &FLACSource{
		stream:   stream,
		bitDepth: bits,
		format: audio.Format{
			Codec:      audio.CodecPCM,
			SampleRate: int(info.SampleRate),
			Channels:   int(info.NChannels),
			BitDepth:   pcmDepth(bits),
		},
	}, nil
}

func (s *FLACSource) Format() audio.Format { return s.format }

func (s *FLACSource) Read(frames int) (audio.Chunk, error) {
	channels := s.format.Channels
	want := frames * channels

	var err error
	for len(s.pending) < want {
		if err = s.parseFrame(); err != nil {
			break
		}
	}
	if len(s.pending) == 0 {
		if err == nil {
			err = io.EOF
		}
		return audio.Chunk{}, err
	}
	if err != nil && err != io.EOF {
		return audio.Chunk{}, err
	}

	n := min(want, len(s.pending))
	data := packPCM(s.pending[:n], s.bitDepth, s.format.BitDepth)
	s.pending = s.pending[n:]
	return audio.NewChunk(s.format.SampleFormat(), channels, s.format.SampleRate, data), nil
}

// parseFrame appends the next frame's samples in interleaved order
func (s *FLACSource) parseFrame() error {
	frame, err := s.stream.ParseNext()
	if err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return fmt.Errorf("flac decode error: %w", err)
	}

	channels := s.format.Channels
	if len(frame.Subframes) < channels {
		return fmt.Errorf("flac frame with %d subframes: %w", len(frame.Subframes), ErrUnsupported)
	}
	for i := 0; i < int(frame.BlockSize); i++ {
		for ch := 0; ch < channels; ch++ {
			s.pending = append(s.pending, frame.Subframes[ch].Samples[i])
		}
	}
	return nil
}

func (s *FLACSource) Close() error {
	return s.stream.Close()
}
