// ABOUTME: Tests for the tone source and sample stream
// ABOUTME: Checks timestamps are contiguous and the end of a source is reported
package decode

import (
	"encoding/binary"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/clock"
)

func TestToneSource(t *testing.T) {
	src := NewTone(DefaultToneFrequency, 48000, 2, 100)
	assert.Equal(t, audio.Pcm16, src.Format().SampleFormat())

	chunk, err := src.Read(60)
	require.NoError(t, err)
	assert.Equal(t, 60, chunk.FrameCount())

	// first frame is sin(0); both channels carry the same value
	data := chunk.Data()
	assert.Equal(t, uint16(0), binary.LittleEndian.Uint16(data[0:]))
	assert.Equal(t, binary.LittleEndian.Uint16(data[4:]), binary.LittleEndian.Uint16(data[6:]))

	chunk, err = src.Read(60)
	require.NoError(t, err)
	assert.Equal(t, 40, chunk.FrameCount())

	_, err = src.Read(60)
	assert.Equal(t, io.EOF, err)
}

func TestEndlessTone(t *testing.T) {
	src := NewTone(1000, 8000, 1, 0)
	for i := 0; i < 5; i++ {
		chunk, err := src.Read(8000)
		require.NoError(t, err)
		assert.Equal(t, 8000, chunk.FrameCount())
	}
}

func TestStreamTimestamps(t *testing.T) {
	s := NewStream(NewTone(DefaultToneFrequency, 48000, 2, 2000), 10*time.Millisecond)

	first, err := s.Next()
	require.NoError(t, err)
	assert.True(t, first.Timestamped)
	assert.True(t, first.Discontinuity)
	assert.Equal(t, int64(0), first.Start)
	assert.Equal(t, clock.Milliseconds(10), first.Stop)
	assert.Len(t, first.Data, 480*4)

	var last audio.Sample = first
	frames := 480
	for {
		sample, err := s.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.False(t, sample.Discontinuity)
		assert.Equal(t, last.Stop, sample.Start)
		frames += len(sample.Data) / 4
		last = sample
	}
	assert.Equal(t, 2000, frames)
	assert.Equal(t, clock.FramesToTicks(2000, 48000), s.Position())
	assert.NoError(t, s.Close())
}
