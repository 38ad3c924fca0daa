// ABOUTME: Volume stage
// ABOUTME: Applies the user volume and mute as a linear multiplier
package dsp

import (
	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
)

// Volume scales samples by volume/100, or silences them when muted
type Volume struct {
	volume int
	muted  bool
}

// NewVolume returns a stage at full volume
func NewVolume() *Volume {
	return &Volume{volume: 100}
}

func (v *Volume) Name() string { return "volume" }

// Active is true whenever the multiplier is not unity
func (v *Volume) Active() bool {
	return getVolumeMultiplier(v.volume, v.muted) != 1
}

// Initialize keeps the user's volume across device changes
func (v *Volume) Initialize() {}

// Set sets the volume (0-100)
func (v *Volume) Set(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	v.volume = volume
}

// SetMuted sets mute state
func (v *Volume) SetMuted(muted bool) {
	v.muted = muted
}

// Get returns the volume and mute state
func (v *Volume) Get() (int, bool) {
	return v.volume, v.muted
}

func (v *Volume) Process(c *audio.Chunk) error {
	s := floats(c)
	if s == nil {
		return nil
	}
	m := float32(getVolumeMultiplier(v.volume, v.muted))
	for i := range s {
		s[i] *= m
	}
	setFloats(c, s, c.Channels(), c.Rate())
	return nil
}

func (v *Volume) Finish(c *audio.Chunk) error {
	return v.Process(c)
}

// getVolumeMultiplier calculates volume multiplier
func getVolumeMultiplier(volume int, muted bool) float64 {
	if muted {
		return 0.0
	}
	return float64(volume) / 100.0
}
