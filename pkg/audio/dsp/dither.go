// ABOUTME: Dither stage
// ABOUTME: Adds triangular dither and quantizes float samples to 16 bits
package dsp

import (
	"math/rand/v2"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
)

const lsb16 = 1.0 / 32768

// Dither converts to Pcm16 with TPDF noise of one LSB
type Dither struct {
	active bool
	rng    *rand.Rand
}

func NewDither() *Dither {
	return &Dither{rng: rand.New(rand.NewPCG(0x5eed, 0xd17e))}
}

func (d *Dither) Name() string { return "dither" }
func (d *Dither) Active() bool { return d.active }

func (d *Dither) Initialize(output audio.SampleFormat) {
	d.active = output == audio.Pcm16
}

func (d *Dither) Process(c *audio.Chunk) error {
	if c.IsEmpty() || c.Format() == audio.Pcm16 {
		return nil
	}
	s := c.Floats()
	for i := range s {
		s[i] += float32((d.rng.Float64() - d.rng.Float64()) * lsb16)
	}
	setFloats(c, s, c.Channels(), c.Rate())

	out, err := c.ToFormat(audio.Pcm16)
	if err != nil {
		return err
	}
	*c = out
	return nil
}

func (d *Dither) Finish(c *audio.Chunk) error {
	return d.Process(c)
}
