// ABOUTME: Crossfeed stage
// ABOUTME: Blends a low-passed copy of each stereo channel into the other for headphone listening
package dsp

import (
	"math"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/settings"
)

// Crossfeed applies a one-pole low-pass crossfeed to stereo output
type Crossfeed struct {
	active bool
	alpha  float32 // low-pass coefficient
	gain   float32 // level of the crossfed signal
	norm   float32
	lpL    float32
	lpR    float32
}

func (x *Crossfeed) Name() string { return "crossfeed" }
func (x *Crossfeed) Active() bool { return x.active }

func (x *Crossfeed) Initialize(cf settings.Crossfeed, rate, channels int) {
	x.active = cf.Enabled && channels == 2 && rate > 0 && cf.CutoffHz > 0
	x.lpL, x.lpR = 0, 0
	if !x.active {
		return
	}
	x.alpha = float32(1 - math.Exp(-2*math.Pi*float64(cf.CutoffHz)/float64(rate)))
	x.gain = float32(math.Pow(10, -cf.LevelDB/20))
	x.norm = 1 / (1 + x.gain)
}

func (x *Crossfeed) Process(c *audio.Chunk) error {
	s := floats(c)
	if s == nil {
		return nil
	}
	for i := 0; i+1 < len(s); i += 2 {
		l, r := s[i], s[i+1]
		x.lpL += x.alpha * (l - x.lpL)
		x.lpR += x.alpha * (r - x.lpR)
		s[i] = (l + x.gain*x.lpR) * x.norm
		s[i+1] = (r + x.gain*x.lpL) * x.norm
	}
	setFloats(c, s, 2, c.Rate())
	return nil
}

func (x *Crossfeed) Finish(c *audio.Chunk) error {
	return x.Process(c)
}
