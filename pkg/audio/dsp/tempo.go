// ABOUTME: Tempo stage
// ABOUTME: Changes playback speed by linear interpolation, carrying the last frame across chunks
package dsp

import (
	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
)

// Tempo plays frames at a speed multiplier
type Tempo struct {
	active   bool
	rate     float64
	channels int
	position float64   // read position relative to prev
	prev     []float32 // last frame of the previous chunk, nil at segment start
}

func (t *Tempo) Name() string { return "tempo" }
func (t *Tempo) Active() bool { return t.active }

func (t *Tempo) Initialize(rate float64, channels int) {
	t.rate = rate
	t.channels = channels
	t.active = rate > 0 && rate != 1 && channels > 0
	t.position = 0
	t.prev = nil
}

func (t *Tempo) Process(c *audio.Chunk) error {
	in := floats(c)
	if in == nil {
		return nil
	}

	ext := in
	if t.prev != nil {
		ext = make([]float32, 0, len(t.prev)+len(in))
		ext = append(ext, t.prev...)
		ext = append(ext, in...)
	}
	frames := len(ext) / t.channels

	out := make([]float32, 0, int(float64(frames)/t.rate+1)*t.channels)
	for {
		idx := int(t.position)
		if idx+1 >= frames {
			break
		}
		frac := float32(t.position - float64(idx))
		a := ext[idx*t.channels : (idx+1)*t.channels]
		b := ext[(idx+1)*t.channels : (idx+2)*t.channels]
		for ch := 0; ch < t.channels; ch++ {
			out = append(out, a[ch]*(1-frac)+b[ch]*frac)
		}
		t.position += t.rate
	}

	// next chunk starts with the current last frame at index 0
	t.position -= float64(frames - 1)
	t.prev = append(t.prev[:0], ext[(frames-1)*t.channels:]...)

	setFloats(c, out, t.channels, c.Rate())
	return nil
}

// Finish emits the held frame if the read position reached it
func (t *Tempo) Finish(c *audio.Chunk) error {
	if err := t.Process(c); err != nil {
		return err
	}
	if t.prev == nil || t.position >= 1 {
		return nil
	}

	last := append([]float32(nil), t.prev...)
	t.prev = nil
	t.position = 0
	if c.IsEmpty() {
		setFloats(c, last, t.channels, c.Rate())
		return nil
	}
	var tail audio.Chunk
	setFloats(&tail, last, t.channels, c.Rate())
	return c.Append(tail)
}
