// ABOUTME: Timestamped sample stream over a source
// ABOUTME: Cuts decoded audio into fixed-length samples on a contiguous timeline
package decode

import (
	"time"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/clock"
)

// DefaultSampleDuration is the length of one sample handed to the renderer
const DefaultSampleDuration = 20 * time.Millisecond

// Stream timestamps the output of a source from zero
type Stream struct {
	src         Source
	chunkFrames int
	frames      int64
	restart     bool
}

// NewStream creates a stream cutting src into samples of d
func NewStream(src Source, d time.Duration) *Stream {
	if d <= 0 {
		d = DefaultSampleDuration
	}
	frames := int(clock.TicksToFrames(clock.FromDuration(d), src.Format().SampleRate))
	return &Stream{src: src, chunkFrames: max(1, frames), restart: true}
}

// Format is the source format
func (s *Stream) Format() audio.Format { return s.src.Format() }

// Position is the stream time of the next sample
func (s *Stream) Position() int64 {
	return clock.FramesToTicks(s.frames, s.src.Format().SampleRate)
}

// Next returns the next sample, or the source's error (io.EOF at the end)
func (s *Stream) Next() (audio.Sample, error) {
	chunk, err := s.src.Read(s.chunkFrames)
	if chunk.IsEmpty() {
		if err == nil {
			// nothing decoded yet, try again on the next call
			return audio.Sample{}, nil
		}
		return audio.Sample{}, err
	}

	start := s.Position()
	s.frames += int64(chunk.FrameCount())
	sample := audio.Sample{
		Data:          chunk.Data(),
		Start:         start,
		Stop:          s.Position(),
		Timestamped:   true,
		Discontinuity: s.restart,
	}
	s.restart = false
	return sample, nil
}

// Close closes the source
func (s *Stream) Close() error {
	return s.src.Close()
}
