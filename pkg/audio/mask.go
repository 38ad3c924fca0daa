// ABOUTME: Speaker position masks
// ABOUTME: Default channel layouts and helpers for mask-aware channel mapping
package audio

import "math/bits"

// Speaker position bits, in interleaving order
const (
	SpeakerFrontLeft uint32 = 1 << iota
	SpeakerFrontRight
	SpeakerFrontCenter
	SpeakerLowFrequency
	SpeakerBackLeft
	SpeakerBackRight
	SpeakerFrontLeftOfCenter
	SpeakerFrontRightOfCenter
	SpeakerBackCenter
	SpeakerSideLeft
	SpeakerSideRight
)

const (
	MaskMono    = SpeakerFrontCenter
	MaskStereo  = SpeakerFrontLeft | SpeakerFrontRight
	MaskQuad    = MaskStereo | SpeakerBackLeft | SpeakerBackRight
	Mask5Point1 = MaskStereo | SpeakerFrontCenter | SpeakerLowFrequency | SpeakerBackLeft | SpeakerBackRight
	Mask7Point1 = MaskStereo | SpeakerFrontCenter | SpeakerLowFrequency | SpeakerBackLeft | SpeakerBackRight |
		SpeakerSideLeft | SpeakerSideRight
)

// DefaultChannelMask returns the conventional layout for a channel count
func DefaultChannelMask(channels int) uint32 {
	switch channels {
	case 1:
		return MaskMono
	case 2:
		return MaskStereo
	case 4:
		return MaskQuad
	case 6:
		return Mask5Point1
	case 8:
		return Mask7Point1
	}
	// Unknown layouts: first N positions
	if channels <= 0 || channels > 32 {
		return 0
	}
	return uint32(1)<<uint(channels) - 1
}

// SpeakerIndex returns the interleaved position of speaker within mask, or -1
func SpeakerIndex(mask, speaker uint32) int {
	if mask&speaker == 0 {
		return -1
	}
	return bits.OnesCount32(mask & (speaker - 1))
}
