// ABOUTME: Ogg Vorbis source
// ABOUTME: Decodes Vorbis to float samples with oggvorbis
package decode

import (
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
)

// VorbisSource decodes an Ogg Vorbis stream
type VorbisSource struct {
	r      io.Reader
	dec    *oggvorbis.Reader
	format audio.Format
	buf    []float32
}

// NewVorbis creates an Ogg Vorbis source
func NewVorbis(r io.Reader) (*VorbisSource, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create vorbis decoder: %w", err)
	}

	return &VorbisSource{
		r:   r,
		dec: dec,
		format: audio.Format{
			Codec:      audio.CodecPCM,
			SampleRate: dec.SampleRate(),
			Channels:   dec.Channels(),
			BitDepth:   32,
			Float:      true,
		},
	}, nil
}

func (s *VorbisSource) Format() audio.Format { return s.format }

func (s *VorbisSource) Read(frames int) (audio.Chunk, error) {
	n := frames * s.format.Channels
	if cap(s.buf) < n {
		s.buf = make([]float32, n)
	}
	s.buf = s.buf[:n]

	// Read returns values, always whole frames
	got := 0
	var err error
	for got < n && err == nil {
		var m int
		m, err = s.dec.Read(s.buf[got:])
		got += m
	}
	if got == 0 {
		if err == nil {
			err = io.EOF
		}
		return audio.Chunk{}, err
	}
	if err != nil && err != io.EOF {
		return audio.Chunk{}, fmt.Errorf("vorbis decode error: %w", err)
	}

	var c audio.Chunk
	c.SetFloats(s.buf[:got], s.format.Channels)
	c.SetRate(s.format.SampleRate)
	return c, nil
}

func (s *VorbisSource) Close() error {
	return fileCloser(s.r)
}
