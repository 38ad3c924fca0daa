// ABOUTME: Channel matrix stage
// ABOUTME: Remaps channels between speaker layouts, with a stereo downmix for surround input
package dsp

import (
	"math"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
)

// Matrix maps input channels onto output channels.
// coeffs[out][in] is the gain of input channel in on output channel out.
type Matrix struct {
	active bool
	in     int
	out    int
	coeffs [][]float32
}

func (m *Matrix) Name() string { return "matrix" }
func (m *Matrix) Active() bool { return m.active }

// Initialize builds the coefficient table; masks of zero use the default layout
func (m *Matrix) Initialize(inChannels int, inMask uint32, outChannels int, outMask uint32) {
	if inMask == 0 {
		inMask = audio.DefaultChannelMask(inChannels)
	}
	if outMask == 0 {
		outMask = audio.DefaultChannelMask(outChannels)
	}

	m.in, m.out = inChannels, outChannels
	m.active = inChannels > 0 && outChannels > 0 && (inChannels != outChannels || inMask != outMask)
	if !m.active {
		m.coeffs = nil
		return
	}

	m.coeffs = make([][]float32, outChannels)
	for o := range m.coeffs {
		m.coeffs[o] = make([]float32, inChannels)
	}

	switch {
	case inChannels == 1:
		for o := range m.coeffs {
			m.coeffs[o][0] = 1
		}
	case outChannels == 1:
		for i := 0; i < inChannels; i++ {
			m.coeffs[0][i] = 1 / float32(inChannels)
		}
	case outChannels == 2 && outMask == audio.MaskStereo && inChannels > 2:
		m.downmixStereo(inMask)
	default:
		m.mapSpeakers(inMask, outMask)
	}
}

// downmixStereo folds surround speakers into left and right
func (m *Matrix) downmixStereo(inMask uint32) {
	const side = float32(math.Sqrt2 / 2)
	gains := []struct {
		speaker uint32
		l, r    float32
	}{
		{audio.SpeakerFrontLeft, 1, 0},
		{audio.SpeakerFrontRight, 0, 1},
		{audio.SpeakerFrontCenter, side, side},
		{audio.SpeakerBackLeft, side, 0},
		{audio.SpeakerBackRight, 0, side},
		{audio.SpeakerSideLeft, side, 0},
		{audio.SpeakerSideRight, 0, side},
		{audio.SpeakerFrontLeftOfCenter, 1, 0},
		{audio.SpeakerFrontRightOfCenter, 0, 1},
		{audio.SpeakerBackCenter, side, side},
	}

	var sumL, sumR float32
	for _, g := range gains {
		i := audio.SpeakerIndex(inMask, g.speaker)
		if i < 0 || i >= m.in {
			continue
		}
		m.coeffs[0][i] = g.l
		m.coeffs[1][i] = g.r
		sumL += g.l
		sumR += g.r
	}

	// keep a full-scale input from clipping
	norm := max(sumL, sumR)
	if norm <= 1 {
		return
	}
	for i := 0; i < m.in; i++ {
		m.coeffs[0][i] /= norm
		m.coeffs[1][i] /= norm
	}
}

// mapSpeakers copies each speaker present in both layouts
func (m *Matrix) mapSpeakers(inMask, outMask uint32) {
	for bit := uint32(1); bit != 0; bit <<= 1 {
		o := audio.SpeakerIndex(outMask, bit)
		i := audio.SpeakerIndex(inMask, bit)
		if o < 0 || i < 0 || o >= m.out || i >= m.in {
			continue
		}
		m.coeffs[o][i] = 1
	}
}

func (m *Matrix) Process(c *audio.Chunk) error {
	in := floats(c)
	if in == nil {
		return nil
	}

	frames := len(in) / m.in
	out := make([]float32, frames*m.out)
	for f := 0; f < frames; f++ {
		src := in[f*m.in : (f+1)*m.in]
		dst := out[f*m.out : (f+1)*m.out]
		for o, row := range m.coeffs {
			var v float32
			for i, g := range row {
				v += g * src[i]
			}
			dst[o] = v
		}
	}
	setFloats(c, out, m.out, c.Rate())
	return nil
}

func (m *Matrix) Finish(c *audio.Chunk) error {
	return m.Process(c)
}
