// ABOUTME: MP3 source
// ABOUTME: Decodes MP3 to 16-bit stereo PCM with go-mp3
package decode

import (
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
)

// MP3Source decodes an MP3 stream
type MP3Source struct {
	r       io.Reader
	decoder *mp3.Decoder
	format  audio.Format
	buf     []byte
}

// NewMP3 creates an MP3 source
func NewMP3(r io.Reader) (*MP3Source, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	return &MP3Source{
		r:       r,
		decoder: decoder,
		// go-mp3 always produces 16-bit stereo
		format: audio.Format{
			Codec:      audio.CodecPCM,
			SampleRate: decoder.SampleRate(),
			Channels:   2,
			BitDepth:   16,
		},
	}, nil
}

func (s *MP3Source) Format() audio.Format { return s.format }

func (s *MP3Source) Read(frames int) (audio.Chunk, error) {
	n := frames * s.format.FrameSize()
	if cap(s.buf) < n {
		s.buf = make([]byte, n)
	}
	s.buf = s.buf[:n]

	got, err := io.ReadFull(s.decoder, s.buf)
	if got == 0 {
		if err == nil || err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return audio.Chunk{}, err
	}
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		err = nil
	}
	if err != nil {
		return audio.Chunk{}, fmt.Errorf("mp3 decode error: %w", err)
	}

	data := make([]byte, got)
	copy(data, s.buf[:got])
	return audio.NewChunk(audio.Pcm16, 2, s.format.SampleRate, data), nil
}

func (s *MP3Source) Close() error {
	return fileCloser(s.r)
}
