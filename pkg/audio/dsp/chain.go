// ABOUTME: Processing chain
// ABOUTME: Configures the stages in fixed order and runs the active ones
package dsp

import (
	"fmt"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/settings"
)

// Processor is one stage of the chain
type Processor interface {
	Name() string
	Active() bool
	Process(c *audio.Chunk) error
	// Finish processes c and appends whatever the stage still holds
	Finish(c *audio.Chunk) error
}

// Params configures the chain for one device and segment
type Params struct {
	InChannels  int
	InMask      uint32
	OutChannels int
	OutMask     uint32
	InRate      int
	OutRate     int

	// Rate is the playback speed of the segment
	Rate          float64
	Exclusive     bool
	ExternalClock bool
	Settings      settings.Settings
	OutputFormat  audio.SampleFormat
}

// Chain owns one instance of every stage
type Chain struct {
	Matrix    *Matrix
	Rate      *Rate
	Tempo     *Tempo
	Crossfeed *Crossfeed
	Volume    *Volume
	Balance   *Balance
	Limiter   *Limiter
	Dither    *Dither
}

// NewChain returns a chain with every stage inactive
func NewChain() *Chain {
	return &Chain{
		Matrix:    &Matrix{},
		Rate:      &Rate{},
		Tempo:     &Tempo{},
		Crossfeed: &Crossfeed{},
		Volume:    NewVolume(),
		Balance:   &Balance{},
		Limiter:   &Limiter{},
		Dither:    NewDither(),
	}
}

// Initialize configures every stage, in chain order
func (ch *Chain) Initialize(p Params) {
	ch.Matrix.Initialize(p.InChannels, p.InMask, p.OutChannels, p.OutMask)
	ch.Rate.Initialize(p.InRate, p.OutRate, p.OutChannels, p.ExternalClock)
	ch.Tempo.Initialize(p.Rate, p.OutChannels)

	cf := settings.Crossfeed{}
	sharedLimiter := false
	if p.Settings != nil {
		cf = p.Settings.Crossfeed()
		sharedLimiter = p.Settings.SharedModePeakLimiter()
	}
	ch.Crossfeed.Initialize(cf, p.OutRate, p.OutChannels)
	ch.Volume.Initialize()
	ch.Balance.Initialize(p.OutChannels, p.OutMask)
	ch.Limiter.Initialize(p.Exclusive || sharedLimiter, p.OutRate)
	ch.Dither.Initialize(p.OutputFormat)
}

// Processors returns the stages in chain order
func (ch *Chain) Processors() []Processor {
	return []Processor{ch.Matrix, ch.Rate, ch.Tempo, ch.Crossfeed, ch.Volume, ch.Balance, ch.Limiter, ch.Dither}
}

// Process runs c through every active stage
func (ch *Chain) Process(c *audio.Chunk) error {
	for _, p := range ch.Processors() {
		if !p.Active() {
			continue
		}
		if err := p.Process(c); err != nil {
			return fmt.Errorf("%s: %w", p.Name(), err)
		}
	}
	return nil
}

// Finish drains every active stage into c
func (ch *Chain) Finish(c *audio.Chunk) error {
	for _, p := range ch.Processors() {
		if !p.Active() {
			continue
		}
		if err := p.Finish(c); err != nil {
			return fmt.Errorf("%s: %w", p.Name(), err)
		}
	}
	return nil
}

// ActiveNames lists the active stages in chain order
func (ch *Chain) ActiveNames() []string {
	var names []string
	for _, p := range ch.Processors() {
		if p.Active() {
			names = append(names, p.Name())
		}
	}
	return names
}

// floats returns the samples of c, or nil for an empty chunk
func floats(c *audio.Chunk) []float32 {
	if c.IsEmpty() {
		return nil
	}
	return c.Floats()
}

// setFloats stores samples in c as Float at rate
func setFloats(c *audio.Chunk, samples []float32, channels, rate int) {
	c.SetFloats(samples, channels)
	c.SetRate(rate)
}
