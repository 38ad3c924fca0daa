// ABOUTME: Balance stage
// ABOUTME: Attenuates the left or right speakers to shift the stereo image
package dsp

import (
	"math/bits"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
)

const (
	leftSpeakers = audio.SpeakerFrontLeft | audio.SpeakerBackLeft |
		audio.SpeakerFrontLeftOfCenter | audio.SpeakerSideLeft
	rightSpeakers = audio.SpeakerFrontRight | audio.SpeakerBackRight |
		audio.SpeakerFrontRightOfCenter | audio.SpeakerSideRight
)

// Balance runs from -100 (left only) to 100 (right only). Like volume it is
// kept across device changes.
type Balance struct {
	balance int
	// per output channel: -1 left, 1 right, 0 untouched
	sides []int
}

func (b *Balance) Name() string { return "balance" }

// Active is true for an off-center balance on a layout with left and right speakers
func (b *Balance) Active() bool {
	if b.balance == 0 {
		return false
	}
	for _, side := range b.sides {
		if side != 0 {
			return true
		}
	}
	return false
}

// Initialize maps the output channels to speaker sides
func (b *Balance) Initialize(channels int, mask uint32) {
	if bits.OnesCount32(mask) != channels {
		mask = audio.DefaultChannelMask(channels)
	}
	b.sides = b.sides[:0]
	for bit := uint32(1); bit != 0 && len(b.sides) < channels; bit <<= 1 {
		if mask&bit == 0 {
			continue
		}
		switch {
		case bit&leftSpeakers != 0:
			b.sides = append(b.sides, -1)
		case bit&rightSpeakers != 0:
			b.sides = append(b.sides, 1)
		default:
			b.sides = append(b.sides, 0)
		}
	}
	for len(b.sides) < channels {
		b.sides = append(b.sides, 0)
	}
}

// Set sets the balance, clamped to -100..100
func (b *Balance) Set(balance int) {
	b.balance = max(-100, min(100, balance))
}

func (b *Balance) Get() int {
	return b.balance
}

// gains returns the left and right multipliers
func (b *Balance) gains() (left, right float32) {
	left, right = 1, 1
	if b.balance > 0 {
		left = 1 - float32(b.balance)/100
	} else {
		right = 1 + float32(b.balance)/100
	}
	return left, right
}

func (b *Balance) Process(c *audio.Chunk) error {
	s := floats(c)
	if s == nil {
		return nil
	}
	channels := c.Channels()
	if channels != len(b.sides) {
		return nil
	}
	left, right := b.gains()
	for i := range s {
		switch b.sides[i%channels] {
		case -1:
			s[i] *= left
		case 1:
			s[i] *= right
		}
	}
	setFloats(c, s, channels, c.Rate())
	return nil
}

func (b *Balance) Finish(c *audio.Chunk) error {
	return b.Process(c)
}
