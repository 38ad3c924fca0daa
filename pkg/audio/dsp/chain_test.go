// ABOUTME: Tests for the processing chain and its stages
// ABOUTME: Covers activation rules, ordering and the numerics of each stage
package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/clock"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/settings"
)

func floatChunk(channels, rate int, samples ...float32) audio.Chunk {
	var c audio.Chunk
	c.SetFloats(samples, channels)
	c.SetRate(rate)
	return c
}

func stereoParams() Params {
	return Params{
		InChannels:   2,
		OutChannels:  2,
		InRate:       48000,
		OutRate:      48000,
		Rate:         1,
		Settings:     settings.NewStatic(),
		OutputFormat: audio.Float,
	}
}

func TestChainIdleIsPassthrough(t *testing.T) {
	ch := NewChain()
	ch.Initialize(stereoParams())
	assert.Empty(t, ch.ActiveNames())

	c := audio.NewSilence(audio.Pcm16, 2, 48000, 10)
	require.NoError(t, ch.Process(&c))
	assert.Equal(t, audio.Pcm16, c.Format())
	assert.Equal(t, 10, c.FrameCount())
}

func TestChainActiveNamesInOrder(t *testing.T) {
	s := settings.NewStatic()
	s.SetCrossfeed(settings.Crossfeed{Enabled: true, CutoffHz: 700, LevelDB: 4.5})

	ch := NewChain()
	ch.Volume.Set(50)
	ch.Balance.Set(-30)
	ch.Initialize(Params{
		InChannels:    1,
		OutChannels:   2,
		InRate:        44100,
		OutRate:       48000,
		Rate:          1.5,
		Exclusive:     true,
		ExternalClock: true,
		Settings:      s,
		OutputFormat:  audio.Pcm16,
	})

	assert.Equal(t, []string{"matrix", "rate", "tempo", "crossfeed", "volume", "balance", "limiter", "dither"}, ch.ActiveNames())
	assert.Len(t, ch.Processors(), 8)

	c := audio.NewSilence(audio.Pcm16, 1, 44100, 4410)
	require.NoError(t, ch.Process(&c))
	assert.Equal(t, audio.Pcm16, c.Format())
	assert.Equal(t, 2, c.Channels())
	assert.Equal(t, 48000, c.Rate())
}

func TestRateActivation(t *testing.T) {
	var r Rate
	r.Initialize(48000, 48000, 2, false)
	assert.False(t, r.Active())
	r.Initialize(48000, 48000, 2, true)
	assert.True(t, r.Active())
	r.Initialize(44100, 48000, 2, false)
	assert.True(t, r.Active())
}

func TestMatrixMonoToStereo(t *testing.T) {
	var m Matrix
	m.Initialize(1, 0, 2, 0)
	require.True(t, m.Active())

	c := floatChunk(1, 48000, 0.5, -0.25)
	require.NoError(t, m.Process(&c))
	assert.Equal(t, 2, c.Channels())
	assert.Equal(t, []float32{0.5, 0.5, -0.25, -0.25}, c.Floats())
}

func TestMatrixStereoToMono(t *testing.T) {
	var m Matrix
	m.Initialize(2, 0, 1, 0)
	c := floatChunk(2, 48000, 0.5, 0.25)
	require.NoError(t, m.Process(&c))
	assert.Equal(t, []float32{0.375}, c.Floats())
}

func TestMatrixSurroundDownmix(t *testing.T) {
	var m Matrix
	m.Initialize(6, audio.Mask5Point1, 2, audio.MaskStereo)

	// FL FR FC LFE BL BR
	c := floatChunk(6, 48000, 1, 0, 0, 1, 0, 0)
	require.NoError(t, m.Process(&c))
	out := c.Floats()
	require.Len(t, out, 2)
	assert.Greater(t, out[0], float32(0))
	assert.Equal(t, float32(0), out[1])
	assert.LessOrEqual(t, out[0], float32(1))

	// center lands equally on both sides
	c = floatChunk(6, 48000, 0, 0, 1, 0, 0, 0)
	require.NoError(t, m.Process(&c))
	out = c.Floats()
	assert.InDelta(t, out[0], out[1], 1e-6)
}

func TestMatrixSpeakerMapping(t *testing.T) {
	var m Matrix
	// FL FR FC LFE BL BR -> FL FR BL BR
	m.Initialize(6, audio.Mask5Point1, 4, audio.MaskQuad)
	c := floatChunk(6, 48000, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6)
	require.NoError(t, m.Process(&c))
	assert.InDeltaSlice(t, []float32{0.1, 0.2, 0.5, 0.6}, c.Floats(), 1e-6)
}

func TestRateAdjustSchedulesPeriods(t *testing.T) {
	var r Rate
	r.Initialize(48000, 48000, 2, true)

	r.Adjust(clock.Milliseconds(2))
	assert.Equal(t, clock.Milliseconds(2), r.Pending())

	c := audio.NewSilence(audio.Float, 2, 48000, 4800)
	require.NoError(t, r.Process(&c))
	assert.Equal(t, 96, r.delta)
	assert.Equal(t, int64(0), r.Pending())

	for i := 0; i < 9; i++ {
		c = audio.NewSilence(audio.Float, 2, 48000, 4800)
		require.NoError(t, r.Process(&c))
	}
	assert.Equal(t, 0, r.delta, "retune lasts one second of input")

	// large corrections are spread over several periods
	r.Adjust(clock.OneSecond)
	c = audio.NewSilence(audio.Float, 2, 48000, 4800)
	require.NoError(t, r.Process(&c))
	assert.Equal(t, 480, r.delta)
	assert.Equal(t, clock.OneSecond-clock.Milliseconds(10), r.Pending())
}

func TestRateResamples(t *testing.T) {
	var r Rate
	r.Initialize(24000, 48000, 1, false)

	total := 0
	for i := 0; i < 10; i++ {
		c := audio.NewSilence(audio.Float, 1, 24000, 2400)
		require.NoError(t, r.Process(&c))
		assert.Equal(t, 48000, c.Rate())
		total += c.FrameCount()
	}
	// filter latency holds back a few hundred frames
	assert.InDelta(t, 48000, total, 1000)
}

func TestTempoDoubleSpeed(t *testing.T) {
	var tp Tempo
	tp.Initialize(2, 1)
	require.True(t, tp.Active())

	total := 0
	for i := 0; i < 4; i++ {
		c := floatChunk(1, 48000, make([]float32, 100)...)
		require.NoError(t, tp.Process(&c))
		total += c.FrameCount()
	}
	assert.InDelta(t, 200, total, 1)
}

func TestTempoInterpolates(t *testing.T) {
	var tp Tempo
	tp.Initialize(0.5, 1)

	c := floatChunk(1, 48000, 0, 1)
	require.NoError(t, tp.Process(&c))
	assert.Equal(t, []float32{0, 0.5}, c.Floats())

	// the held frame continues the ramp into the next chunk
	c = floatChunk(1, 48000, 2)
	require.NoError(t, tp.Process(&c))
	assert.Equal(t, []float32{1, 1.5}, c.Floats())

	var tail audio.Chunk
	require.NoError(t, tp.Finish(&tail))
	assert.Equal(t, []float32{2}, tail.Floats())
}

func TestVolume(t *testing.T) {
	v := NewVolume()
	assert.False(t, v.Active())

	v.Set(150)
	vol, _ := v.Get()
	assert.Equal(t, 100, vol)

	v.Set(50)
	assert.True(t, v.Active())
	c := floatChunk(2, 48000, 1, -0.5)
	require.NoError(t, v.Process(&c))
	assert.Equal(t, []float32{0.5, -0.25}, c.Floats())

	v.Set(100)
	v.SetMuted(true)
	assert.True(t, v.Active())
	c = floatChunk(2, 48000, 1, -0.5)
	require.NoError(t, v.Process(&c))
	assert.Equal(t, []float32{0, 0}, c.Floats())
}

func TestBalance(t *testing.T) {
	var b Balance
	b.Initialize(2, audio.MaskStereo)
	assert.False(t, b.Active())

	b.Set(-150)
	assert.Equal(t, -100, b.Get())

	b.Set(50)
	assert.True(t, b.Active())
	c := floatChunk(2, 48000, 1, 1, -0.5, 0.5)
	require.NoError(t, b.Process(&c))
	assert.Equal(t, []float32{0.5, 1, -0.25, 0.5}, c.Floats())

	b.Set(-25)
	c = floatChunk(2, 48000, 1, 1)
	require.NoError(t, b.Process(&c))
	assert.Equal(t, []float32{1, 0.75}, c.Floats())
}

func TestBalanceLeavesCenterChannels(t *testing.T) {
	var b Balance
	b.Set(100)

	b.Initialize(1, audio.MaskMono)
	assert.False(t, b.Active())

	// FL FR FC LFE BL BR
	b.Initialize(6, audio.Mask5Point1)
	assert.True(t, b.Active())
	c := floatChunk(6, 48000, 1, 1, 1, 1, 1, 1)
	require.NoError(t, b.Process(&c))
	assert.Equal(t, []float32{0, 1, 1, 1, 0, 1}, c.Floats())
}

func TestLimiter(t *testing.T) {
	var l Limiter
	l.Initialize(false, 48000)
	assert.False(t, l.Active())

	l.Initialize(true, 48000)
	c := floatChunk(2, 48000, 2, -1, 0.5, 0.5)
	require.NoError(t, l.Process(&c))
	out := c.Floats()
	assert.InDelta(t, limiterThreshold, out[0], 1e-6)
	assert.InDelta(t, -limiterThreshold/2, out[1], 1e-6)
	// gain recovers gradually after the peak
	assert.Less(t, out[2], float32(0.5))
}

func TestCrossfeed(t *testing.T) {
	var x Crossfeed
	x.Initialize(settings.Crossfeed{Enabled: true, CutoffHz: 700, LevelDB: 4.5}, 48000, 2)
	require.True(t, x.Active())

	c := audio.NewSilence(audio.Float, 2, 48000, 0)
	samples := make([]float32, 2000)
	for i := 0; i < len(samples); i += 2 {
		samples[i] = 1
	}
	c.SetFloats(samples, 2)
	require.NoError(t, x.Process(&c))
	out := c.Floats()

	// left-only input bleeds into the right channel
	assert.Greater(t, out[len(out)-1], float32(0))
	assert.Less(t, out[len(out)-2], float32(1))

	x.Initialize(settings.Crossfeed{Enabled: true, CutoffHz: 700}, 48000, 6)
	assert.False(t, x.Active())
}

func TestDither(t *testing.T) {
	d := NewDither()
	d.Initialize(audio.Float)
	assert.False(t, d.Active())

	d.Initialize(audio.Pcm16)
	require.True(t, d.Active())
	c := floatChunk(2, 48000, 0.5, -0.5, 0, 0)
	require.NoError(t, d.Process(&c))
	assert.Equal(t, audio.Pcm16, c.Format())
	assert.Equal(t, 2, c.FrameCount())
	assert.InDeltaSlice(t, []float32{0.5, -0.5, 0, 0}, c.Floats(), 2.0/32768)
}
