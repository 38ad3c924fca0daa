// ABOUTME: DSP chunk of interleaved audio frames
// ABOUTME: Owns raw bytes in a SampleFormat and converts between formats
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Chunk is a run of interleaved frames in one SampleFormat.
// The zero value is an empty chunk.
type Chunk struct {
	format   SampleFormat
	channels int
	rate     int
	data     []byte
}

// NewChunk wraps data as a chunk. Trailing bytes that do not form a full frame are dropped.
func NewChunk(format SampleFormat, channels, rate int, data []byte) Chunk {
	c := Chunk{format: format, channels: channels, rate: rate, data: data}
	if fs := c.FrameSize(); fs > 0 {
		c.data = c.data[:len(c.data)/fs*fs]
	}
	return c
}

// NewSilence returns frames of digital silence
func NewSilence(format SampleFormat, channels, rate, frames int) Chunk {
	c := Chunk{format: format, channels: channels, rate: rate}
	c.data = make([]byte, frames*c.FrameSize())
	if format == Pcm8 {
		// unsigned 8-bit centers on 0x80
		for i := range c.data {
			c.data[i] = 0x80
		}
	}
	return c
}

func (c Chunk) Format() SampleFormat { return c.format }
func (c Chunk) Channels() int        { return c.channels }
func (c Chunk) Rate() int            { return c.rate }
func (c Chunk) Data() []byte         { return c.data }

// FrameSize returns bytes per interleaved frame
func (c Chunk) FrameSize() int {
	return c.format.BytesPerSample() * c.channels
}

// FrameCount returns the number of whole frames held
func (c Chunk) FrameCount() int {
	fs := c.FrameSize()
	if fs == 0 {
		return 0
	}
	return len(c.data) / fs
}

func (c Chunk) IsEmpty() bool {
	return c.FrameCount() == 0
}

// ShrinkHead drops the first frames of the chunk
func (c *Chunk) ShrinkHead(frames int) {
	n := frames * c.FrameSize()
	if n >= len(c.data) {
		c.data = c.data[:0]
		return
	}
	c.data = c.data[n:]
}

// Append adds the frames of other to the end of c. Both chunks must share format and layout.
func (c *Chunk) Append(other Chunk) error {
	if c.channels == 0 && len(c.data) == 0 {
		*c = other.clone()
		return nil
	}
	if other.format != c.format || other.channels != c.channels {
		return fmt.Errorf("append %s/%dch to %s/%dch: %w", other.format, other.channels, c.format, c.channels, ErrUnsupportedFormat)
	}
	c.data = append(c.data[:len(c.data):len(c.data)], other.data...)
	return nil
}

func (c Chunk) clone() Chunk {
	out := c
	out.data = append([]byte(nil), c.data...)
	return out
}

// Floats decodes the chunk into normalized interleaved float32 samples
func (c Chunk) Floats() []float32 {
	bps := c.format.BytesPerSample()
	if bps == 0 {
		return nil
	}
	out := make([]float32, len(c.data)/bps)
	for i := range out {
		out[i] = float32(decodeSample(c.format, c.data[i*bps:]))
	}
	return out
}

// SetFloats replaces the contents with interleaved float samples, making the chunk Float
func (c *Chunk) SetFloats(samples []float32, channels int) {
	data := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(s))
	}
	c.format = Float
	c.channels = channels
	c.data = data
}

// SetRate changes the sample rate the frames are played at
func (c *Chunk) SetRate(rate int) {
	c.rate = rate
}

// ToFormat converts the chunk to another sample format
func (c Chunk) ToFormat(format SampleFormat) (Chunk, error) {
	if format == c.format {
		return c, nil
	}
	src := c.format.BytesPerSample()
	dst := format.BytesPerSample()
	if src == 0 || dst == 0 {
		return Chunk{}, fmt.Errorf("convert %s to %s: %w", c.format, format, ErrUnsupportedFormat)
	}

	n := len(c.data) / src
	out := Chunk{format: format, channels: c.channels, rate: c.rate, data: make([]byte, n*dst)}
	for i := 0; i < n; i++ {
		encodeSample(format, out.data[i*dst:], decodeSample(c.format, c.data[i*src:]))
	}
	return out, nil
}

func decodeSample(f SampleFormat, b []byte) float64 {
	switch f {
	case Pcm8:
		return (float64(b[0]) - 128) / 128
	case Pcm16:
		return float64(SampleFromInt16(int16(binary.LittleEndian.Uint16(b)))) / 8388608
	case Pcm24:
		return float64(SampleFrom24Bit([3]byte{b[0], b[1], b[2]})) / 8388608
	case Pcm32:
		return float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648
	case Float:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case Double:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
	return 0
}

func encodeSample(f SampleFormat, b []byte, v float64) {
	switch f {
	case Pcm8:
		b[0] = byte(quantize(v, 128) + 128)
	case Pcm16:
		binary.LittleEndian.PutUint16(b, uint16(int16(quantize(v, 32768))))
	case Pcm24:
		s := SampleTo24Bit(int32(quantize(v, 8388608)))
		copy(b, s[:])
	case Pcm32:
		binary.LittleEndian.PutUint32(b, uint32(int32(quantize(v, 2147483648))))
	case Float:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
	case Double:
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	}
}

// quantize scales a normalized sample to an integer range of [-scale, scale-1]
func quantize(v, scale float64) int64 {
	s := math.Round(v * scale)
	if s > scale-1 {
		s = scale - 1
	}
	if s < -scale {
		s = -scale
	}
	return int64(s)
}
