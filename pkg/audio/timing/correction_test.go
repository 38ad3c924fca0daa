// ABOUTME: Tests for timing correction
// ABOUTME: Covers gap padding, overlap trimming, error tracking and segment rates
package timing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/clock"
)

var stereo16 = audio.Format{Codec: audio.CodecPCM, SampleRate: 48000, Channels: 2, BitDepth: 16}

// 480 frames is 10ms at 48kHz
func frames(n int) []byte {
	return make([]byte, n*4)
}

func ms(n int64) int64 { return clock.Milliseconds(n) }

func newCorrection(t *testing.T) *Correction {
	t.Helper()
	c := New()
	c.SetFormat(stereo16)
	return c
}

func TestContiguousSamples(t *testing.T) {
	c := newCorrection(t)

	chunk, err := c.ProcessSample(audio.Sample{Data: frames(480), Start: 0, Stop: ms(10), Timestamped: true})
	require.NoError(t, err)
	assert.Equal(t, 480, chunk.FrameCount())
	assert.Equal(t, audio.Pcm16, chunk.Format())
	assert.Equal(t, ms(10), c.LastSampleEnd())
	assert.Equal(t, int64(0), c.TimingsError())

	// a late sample without discontinuity keeps the error for the clock
	chunk, err = c.ProcessSample(audio.Sample{Data: frames(480), Start: ms(15), Timestamped: true})
	require.NoError(t, err)
	assert.Equal(t, 480, chunk.FrameCount())
	assert.Equal(t, ms(5), c.TimingsError())
	assert.Equal(t, ms(20), c.LastSampleEnd())

	// untimestamped samples leave the error alone
	_, err = c.ProcessSample(audio.Sample{Data: frames(480)})
	require.NoError(t, err)
	assert.Equal(t, ms(5), c.TimingsError())
	assert.Equal(t, ms(30), c.LastSampleEnd())
}

func TestDiscontinuityPadsGap(t *testing.T) {
	c := newCorrection(t)
	_, err := c.ProcessSample(audio.Sample{Data: frames(480), Timestamped: true})
	require.NoError(t, err)

	chunk, err := c.ProcessSample(audio.Sample{Data: frames(480), Start: ms(20), Timestamped: true, Discontinuity: true})
	require.NoError(t, err)
	assert.Equal(t, 960, chunk.FrameCount())
	assert.Equal(t, int64(0), c.TimingsError())
	assert.Equal(t, ms(30), c.LastSampleEnd())
}

func TestFreshSegmentPadsLeadingGap(t *testing.T) {
	c := newCorrection(t)
	chunk, err := c.ProcessSample(audio.Sample{Data: frames(480), Start: ms(5), Timestamped: true})
	require.NoError(t, err)
	assert.Equal(t, 720, chunk.FrameCount())
	assert.Equal(t, ms(15), c.LastSampleEnd())
}

func TestDiscontinuityTrimsOverlap(t *testing.T) {
	c := newCorrection(t)
	_, err := c.ProcessSample(audio.Sample{Data: frames(480), Timestamped: true})
	require.NoError(t, err)

	chunk, err := c.ProcessSample(audio.Sample{Data: frames(480), Start: ms(5), Timestamped: true, Discontinuity: true})
	require.NoError(t, err)
	assert.Equal(t, 240, chunk.FrameCount())
	assert.Equal(t, int64(0), c.TimingsError())
	assert.Equal(t, ms(15), c.LastSampleEnd())

	// an overlap longer than the sample drops it and keeps the remainder as error
	chunk, err = c.ProcessSample(audio.Sample{Data: frames(480), Start: 0, Timestamped: true, Discontinuity: true})
	require.NoError(t, err)
	assert.True(t, chunk.IsEmpty())
	assert.Equal(t, -ms(5), c.TimingsError())
	assert.Equal(t, ms(15), c.LastSampleEnd())
}

func TestNewSegmentRate(t *testing.T) {
	c := newCorrection(t)
	_, err := c.ProcessSample(audio.Sample{Data: frames(480), Timestamped: true})
	require.NoError(t, err)

	c.NewSegment(2.0)
	assert.Equal(t, int64(0), c.LastSampleEnd())
	assert.Equal(t, 2.0, c.Rate())

	_, err = c.ProcessSample(audio.Sample{Data: frames(480), Timestamped: true})
	require.NoError(t, err)
	assert.Equal(t, ms(5), c.LastSampleEnd())

	c.NewSegment(0)
	assert.Equal(t, 1.0, c.Rate())
}

func TestBitstreamIsNotRealigned(t *testing.T) {
	c := New()
	c.SetFormat(audio.Format{Codec: "ac3", SampleRate: 48000, Channels: 2, BitDepth: 16})

	chunk, err := c.ProcessSample(audio.Sample{Data: frames(480), Start: ms(5), Timestamped: true, Discontinuity: true})
	require.NoError(t, err)
	assert.Equal(t, 480, chunk.FrameCount())
	assert.Equal(t, audio.Pcm16, chunk.Format())
	assert.Equal(t, ms(5), c.TimingsError())
}

func TestProcessSampleErrors(t *testing.T) {
	c := New()
	_, err := c.ProcessSample(audio.Sample{Data: frames(1)})
	assert.ErrorIs(t, err, audio.ErrUnsupportedFormat)

	c.SetFormat(stereo16)
	_, err = c.ProcessSample(audio.Sample{Data: make([]byte, 6)})
	assert.ErrorIs(t, err, ErrPartialFrame)
}
