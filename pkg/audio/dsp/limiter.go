// ABOUTME: Peak limiter stage
// ABOUTME: Instant-attack limiter that keeps float output below full scale
package dsp

import (
	"math"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
)

const (
	limiterThreshold = 0.98
	limiterRelease   = 0.05 // seconds to recover most of the gain
)

// Limiter reduces gain the moment a frame would exceed the threshold
// and releases it exponentially.
type Limiter struct {
	active  bool
	gain    float32
	release float32
}

func (l *Limiter) Name() string { return "limiter" }
func (l *Limiter) Active() bool { return l.active }

func (l *Limiter) Initialize(enabled bool, rate int) {
	l.active = enabled && rate > 0
	l.gain = 1
	if l.active {
		l.release = float32(math.Exp(-1 / (limiterRelease * float64(rate))))
	}
}

func (l *Limiter) Process(c *audio.Chunk) error {
	s := floats(c)
	if s == nil {
		return nil
	}
	channels := c.Channels()
	for f := 0; f+channels <= len(s); f += channels {
		frame := s[f : f+channels]

		var peak float32
		for _, v := range frame {
			peak = max(peak, abs32(v))
		}

		if peak*l.gain > limiterThreshold {
			l.gain = limiterThreshold / peak
		} else {
			l.gain = 1 - (1-l.gain)*l.release
		}
		for i := range frame {
			frame[i] *= l.gain
		}
	}
	setFloats(c, s, channels, c.Rate())
	return nil
}

func (l *Limiter) Finish(c *audio.Chunk) error {
	return l.Process(c)
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
