// ABOUTME: Raw PCM source
// ABOUTME: Reads interleaved little-endian 16-bit and 24-bit PCM and packs integer samples
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
)

// PCMSource reads headerless PCM
type PCMSource struct {
	r      io.Reader
	format audio.Format
	buf    []byte
}

// NewPCM creates a raw PCM source
func NewPCM(r io.Reader, format audio.Format) (*PCMSource, error) {
	if format.Codec != audio.CodecPCM {
		return nil, fmt.Errorf("invalid codec for PCM source: %s", format.Codec)
	}

	if format.BitDepth != 16 && format.BitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}

	if format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid PCM layout %s: %w", format, ErrUnsupported)
	}

	return &PCMSource{r: r, format: format}, nil
}

func (s *PCMSource) Format() audio.Format { return s.format }

// Read reads whole frames; a trailing partial frame is dropped
func (s *PCMSource) Read(frames int) (audio.Chunk, error) {
	n := frames * s.format.FrameSize()
	if cap(s.buf) < n {
		s.buf = make([]byte, n)
	}
	s.buf = s.buf[:n]

	got, err := io.ReadFull(s.r, s.buf)
	if got == 0 {
		if err == nil || err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return audio.Chunk{}, err
	}
	if err == io.ErrUnexpectedEOF {
		err = nil
	}

	data := make([]byte, got)
	copy(data, s.buf[:got])
	return audio.NewChunk(s.format.SampleFormat(), s.format.Channels, s.format.SampleRate, data), err
}

func (s *PCMSource) Close() error {
	return fileCloser(s.r)
}

// packPCM converts samples of srcBits width into little-endian PCM of 16 or 24 bits
func packPCM(samples []int32, srcBits, dstBits int) []byte {
	bps := dstBits / 8
	out := make([]byte, len(samples)*bps)
	for i, s := range samples {
		// scale to 24-bit range first
		switch {
		case srcBits < 24:
			s <<= 24 - srcBits
		case srcBits > 24:
			s >>= srcBits - 24
		}
		if dstBits == 24 {
			b := audio.SampleTo24Bit(s)
			copy(out[i*3:], b[:])
			continue
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(audio.SampleToInt16(s)))
	}
	return out
}

// pcmDepth picks the packed width for a source bit depth
func pcmDepth(bits int) int {
	if bits > 16 {
		return 24
	}
	return 16
}
