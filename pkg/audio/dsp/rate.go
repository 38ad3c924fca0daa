// ABOUTME: Rate adjuster stage
// ABOUTME: Resamples to the device rate and absorbs clock drift with temporary retunes
package dsp

import (
	"github.com/oov/audio/resampler"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/clock"
)

const (
	resamplerQuality = 10
	// a retune never moves the output rate by more than 1%
	maxAdjustDivisor = 100
	flushFrames      = 64
)

// Rate converts from the input rate to the output rate. Adjust shortens or
// lengthens the output to absorb drift against an external clock.
type Rate struct {
	active   bool
	inRate   int
	outRate  int
	channels int

	r       *resampler.Resampler
	delta   int   // Hz removed from the output rate during the current period
	left    int   // input frames left in the current period
	pending int64 // ticks still to absorb

	planarIn  [][]float32
	planarOut [][]float32
}

func (r *Rate) Name() string { return "rate" }
func (r *Rate) Active() bool { return r.active }

// Initialize drops any adjustment in progress
func (r *Rate) Initialize(inRate, outRate, channels int, externalClock bool) {
	r.inRate, r.outRate, r.channels = inRate, outRate, channels
	r.active = inRate > 0 && outRate > 0 && channels > 0 && (inRate != outRate || externalClock)
	r.delta, r.left, r.pending = 0, 0, 0
	r.r = nil
	if r.active {
		r.r = resampler.New(channels, inRate, outRate, resamplerQuality)
	}
}

// Adjust schedules a correction of ticks: positive ticks shorten the output
func (r *Rate) Adjust(ticks int64) {
	r.pending += ticks
}

// Pending returns the correction not yet applied
func (r *Rate) Pending() int64 {
	return r.pending
}

// beginPeriod retunes the resampler for one second of input
func (r *Rate) beginPeriod() {
	limit := int64(r.outRate / maxAdjustDivisor)
	delta := clock.TicksToFrames(r.pending, r.outRate)
	delta = max(-limit, min(limit, delta))
	if delta == 0 {
		r.pending = 0
		return
	}

	r.delta = int(delta)
	r.left = r.inRate
	r.pending -= clock.FramesToTicks(delta, r.outRate)
	r.r = resampler.New(r.channels, r.inRate, r.outRate-r.delta, resamplerQuality)
}

func (r *Rate) endPeriod() {
	r.delta = 0
	r.left = 0
	r.r = resampler.New(r.channels, r.inRate, r.outRate, resamplerQuality)
}

func (r *Rate) Process(c *audio.Chunk) error {
	in := floats(c)
	if in == nil {
		return nil
	}

	if r.delta == 0 && r.pending != 0 {
		r.beginPeriod()
	}

	frames := len(in) / r.channels
	out := r.resample(in, frames)
	setFloats(c, out, r.channels, r.outRate)

	if r.delta != 0 {
		r.left -= frames
		if r.left <= 0 {
			r.endPeriod()
		}
	}
	return nil
}

// resample runs interleaved frames through the resampler one channel at a time
func (r *Rate) resample(in []float32, frames int) []float32 {
	outCap := frames*(r.outRate+r.outRate/maxAdjustDivisor)/r.inRate + 16
	if len(r.planarIn) != r.channels {
		r.planarIn = make([][]float32, r.channels)
		r.planarOut = make([][]float32, r.channels)
	}
	for ch := 0; ch < r.channels; ch++ {
		if cap(r.planarIn[ch]) < frames {
			r.planarIn[ch] = make([]float32, frames)
		}
		r.planarIn[ch] = r.planarIn[ch][:frames]
		if cap(r.planarOut[ch]) < outCap {
			r.planarOut[ch] = make([]float32, outCap)
		}
		r.planarOut[ch] = r.planarOut[ch][:outCap]
		for f := 0; f < frames; f++ {
			r.planarIn[ch][f] = in[f*r.channels+ch]
		}
	}

	written := outCap
	for ch := 0; ch < r.channels; ch++ {
		_, n := r.r.ProcessFloat32(ch, r.planarIn[ch], r.planarOut[ch])
		written = min(written, n)
	}

	out := make([]float32, written*r.channels)
	for ch := 0; ch < r.channels; ch++ {
		for f := 0; f < written; f++ {
			out[f*r.channels+ch] = r.planarOut[ch][f]
		}
	}
	return out
}

// Finish pushes silence through the filter to release its tail
func (r *Rate) Finish(c *audio.Chunk) error {
	if err := r.Process(c); err != nil {
		return err
	}

	tail := r.resample(make([]float32, flushFrames*r.channels), flushFrames)
	if len(tail) == 0 {
		return nil
	}
	if c.IsEmpty() {
		setFloats(c, tail, r.channels, r.outRate)
		return nil
	}
	var t audio.Chunk
	setFloats(&t, tail, r.channels, r.outRate)
	return c.Append(t)
}
