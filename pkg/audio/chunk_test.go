// ABOUTME: Tests for DSP chunks
// ABOUTME: Covers frame accounting, head trimming, appends and format conversion
package audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pcm16(samples ...int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

func TestChunkFrames(t *testing.T) {
	c := NewChunk(Pcm16, 2, 48000, pcm16(1, 2, 3, 4, 5, 6))
	assert.Equal(t, 4, c.FrameSize())
	assert.Equal(t, 3, c.FrameCount())
	assert.False(t, c.IsEmpty())

	// partial trailing frame is dropped
	c = NewChunk(Pcm16, 2, 48000, append(pcm16(1, 2), 0xff))
	assert.Equal(t, 1, c.FrameCount())
	assert.Len(t, c.Data(), 4)
}

func TestChunkShrinkHead(t *testing.T) {
	c := NewChunk(Pcm16, 1, 48000, pcm16(10, 20, 30, 40))
	c.ShrinkHead(1)
	assert.Equal(t, pcm16(20, 30, 40), c.Data())

	c.ShrinkHead(10)
	assert.True(t, c.IsEmpty())
}

func TestChunkAppend(t *testing.T) {
	var c Chunk
	require.NoError(t, c.Append(NewSilence(Pcm16, 2, 48000, 2)))
	require.NoError(t, c.Append(NewChunk(Pcm16, 2, 48000, pcm16(7, 8))))
	assert.Equal(t, 3, c.FrameCount())
	assert.Equal(t, pcm16(0, 0, 0, 0, 7, 8), c.Data())

	err := c.Append(NewSilence(Float, 2, 48000, 1))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSilencePcm8(t *testing.T) {
	c := NewSilence(Pcm8, 2, 8000, 2)
	assert.Equal(t, []byte{0x80, 0x80, 0x80, 0x80}, c.Data())
	for _, f := range c.Floats() {
		assert.Equal(t, float32(0), f)
	}
}

func TestChunkToFormat(t *testing.T) {
	c := NewChunk(Pcm16, 1, 44100, pcm16(0, 16384, -16384, 32767, -32768))

	f, err := c.ToFormat(Float)
	require.NoError(t, err)
	assert.Equal(t, Float, f.Format())
	assert.Equal(t, 5, f.FrameCount())
	assert.InDeltaSlice(t, []float32{0, 0.5, -0.5, 32767.0 / 32768, -1}, f.Floats(), 1e-6)

	back, err := f.ToFormat(Pcm16)
	require.NoError(t, err)
	assert.Equal(t, c.Data(), back.Data())

	p24, err := c.ToFormat(Pcm24)
	require.NoError(t, err)
	assert.Equal(t, 15, len(p24.Data()))
	assert.Equal(t, SampleFromInt16(16384), SampleFrom24Bit([3]byte{p24.Data()[3], p24.Data()[4], p24.Data()[5]}))

	_, err = c.ToFormat(Unknown)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestChunkClipsOnQuantize(t *testing.T) {
	var c Chunk
	c.SetFloats([]float32{1.5, -1.5}, 1)

	out, err := c.ToFormat(Pcm16)
	require.NoError(t, err)
	assert.Equal(t, pcm16(32767, -32768), out.Data())
}
