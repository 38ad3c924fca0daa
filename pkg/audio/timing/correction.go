// ABOUTME: Timing correction for incoming samples
// ABOUTME: Turns timestamped samples into a contiguous chunk stream and tracks the timeline error
package timing

import (
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/clock"
)

// MaxPadding bounds the silence inserted for one gap; the rest stays in the timings error
const MaxPadding = 10 * clock.OneSecond

// ErrPartialFrame is returned for sample data that is not a whole number of frames
var ErrPartialFrame = errors.New("sample data is not a whole number of frames")

// Correction tracks where emitted audio ends on the playback timeline.
// Times are playback ticks: stream time divided by the segment rate.
type Correction struct {
	format    audio.Format
	sf        audio.SampleFormat
	bitstream bool
	rate      float64

	fresh         bool
	lastSampleEnd int64
	timingsError  int64
	emittedFrames int64
}

// New returns a correction unit with no format
func New() *Correction {
	return &Correction{rate: 1, fresh: true}
}

// SetFormat switches the input format and starts a fresh timeline
func (c *Correction) SetFormat(f audio.Format) {
	c.format = f
	c.bitstream = !f.IsPCM()
	c.sf = f.SampleFormat()
	if c.bitstream {
		// IEC 61937 bursts travel as 16-bit frames
		c.sf = audio.Pcm16
	}
	c.NewSegment(c.rate)
}

// NewSegment resets the timeline; the next timestamped sample is placed relative to zero
func (c *Correction) NewSegment(rate float64) {
	if rate <= 0 {
		rate = 1
	}
	c.rate = rate
	c.fresh = true
	c.lastSampleEnd = 0
	c.timingsError = 0
	c.emittedFrames = 0
}

// TimingsError is the distance between sample timestamps and emitted audio
func (c *Correction) TimingsError() int64 {
	return c.timingsError
}

// LastSampleEnd is where the emitted audio ends on the playback timeline
func (c *Correction) LastSampleEnd() int64 {
	return c.lastSampleEnd
}

// Rate returns the segment rate
func (c *Correction) Rate() float64 {
	return c.rate
}

// ProcessSample converts a sample into a chunk aligned with the timeline
func (c *Correction) ProcessSample(s audio.Sample) (audio.Chunk, error) {
	frameSize := c.format.FrameSize()
	if frameSize == 0 || c.sf == audio.Unknown {
		return audio.Chunk{}, fmt.Errorf("timing correction for %s: %w", c.format, audio.ErrUnsupportedFormat)
	}
	if len(s.Data)%frameSize != 0 {
		return audio.Chunk{}, fmt.Errorf("%d bytes with %d-byte frames: %w", len(s.Data), frameSize, ErrPartialFrame)
	}

	chunk := audio.NewChunk(c.sf, c.format.Channels, c.format.SampleRate, s.Data)

	if s.Timestamped {
		realign := (c.fresh || s.Discontinuity) && !c.bitstream
		c.fresh = false
		offset := c.toPlayback(s.Start) - c.lastSampleEnd

		if realign {
			switch {
			case offset > 0:
				pad := min(offset, MaxPadding)
				frames := int(clock.TicksToFrames(int64(float64(pad)*c.rate), c.format.SampleRate))
				if frames > 0 {
					silence := audio.NewSilence(c.sf, c.format.Channels, c.format.SampleRate, frames)
					if err := silence.Append(chunk); err != nil {
						return audio.Chunk{}, err
					}
					chunk = silence
					offset -= c.frameTicks(int64(frames))
				}
			case offset < 0:
				frames := int(clock.TicksToFrames(int64(float64(-offset)*c.rate), c.format.SampleRate))
				frames = min(frames, chunk.FrameCount())
				chunk.ShrinkHead(frames)
				offset += c.frameTicks(int64(frames))
			}
			// sub-frame remainders cannot be corrected by padding or trimming
			if one := c.frameTicks(1); offset > -one && offset < one {
				offset = 0
			}
		}
		c.timingsError = offset
	}

	c.emittedFrames += int64(chunk.FrameCount())
	c.lastSampleEnd = c.frameTicks(c.emittedFrames)
	return chunk, nil
}

// frameTicks is the playback duration of frames at the segment rate
func (c *Correction) frameTicks(frames int64) int64 {
	return int64(float64(clock.FramesToTicks(frames, c.format.SampleRate)) / c.rate)
}

func (c *Correction) toPlayback(streamTime int64) int64 {
	return int64(float64(streamTime) / c.rate)
}
