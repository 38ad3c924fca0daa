// ABOUTME: Audio type definitions
// ABOUTME: Defines wave formats, DSP sample formats and timestamped media samples
package audio

import (
	"errors"
	"fmt"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23

	// CodecPCM marks linear PCM (integer or float) input.
	CodecPCM = "pcm"
)

// ErrUnsupportedFormat is returned when a sample format has no DSP representation.
var ErrUnsupportedFormat = errors.New("unsupported sample format")

// Format describes an audio stream format
type Format struct {
	Codec       string
	SampleRate  int
	Channels    int
	ChannelMask uint32 // speaker positions, 0 means default for Channels
	BitDepth    int
	Float       bool // IEEE float samples (BitDepth 32 or 64)
}

// SampleFormat is the in-memory representation used by the processing chain
type SampleFormat int

const (
	Unknown SampleFormat = iota
	Pcm8
	Pcm16
	Pcm24
	Pcm32
	Float
	Double
)

func (f SampleFormat) String() string {
	switch f {
	case Pcm8:
		return "pcm8"
	case Pcm16:
		return "pcm16"
	case Pcm24:
		return "pcm24"
	case Pcm32:
		return "pcm32"
	case Float:
		return "float"
	case Double:
		return "double"
	default:
		return "unknown"
	}
}

// BytesPerSample returns the size of one sample of one channel
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case Pcm8:
		return 1
	case Pcm16:
		return 2
	case Pcm24:
		return 3
	case Pcm32, Float:
		return 4
	case Double:
		return 8
	default:
		return 0
	}
}

// IsPCM reports whether the format carries linear samples the DSP chain understands
func (f Format) IsPCM() bool {
	return f.Codec == "" || f.Codec == CodecPCM
}

// SampleFormat maps the wave format to its DSP sample format
func (f Format) SampleFormat() SampleFormat {
	if !f.IsPCM() {
		return Unknown
	}
	if f.Float {
		switch f.BitDepth {
		case 32:
			return Float
		case 64:
			return Double
		}
		return Unknown
	}
	switch f.BitDepth {
	case 8:
		return Pcm8
	case 16:
		return Pcm16
	case 24:
		return Pcm24
	case 32:
		return Pcm32
	}
	return Unknown
}

// FrameSize returns bytes per frame (one sample for every channel)
func (f Format) FrameSize() int {
	return f.BitDepth / 8 * f.Channels
}

// Mask returns the channel mask, falling back to the default layout for the channel count
func (f Format) Mask() uint32 {
	if f.ChannelMask != 0 {
		return f.ChannelMask
	}
	return DefaultChannelMask(f.Channels)
}

func (f Format) String() string {
	codec := f.Codec
	if codec == "" {
		codec = CodecPCM
	}
	kind := "int"
	if f.Float {
		kind = "float"
	}
	return fmt.Sprintf("%s %dHz %dch %d-bit %s", codec, f.SampleRate, f.Channels, f.BitDepth, kind)
}

// FormatFor builds the wave format that stores samples as sf
func FormatFor(sf SampleFormat, sampleRate, channels int, mask uint32) Format {
	f := Format{
		Codec:       CodecPCM,
		SampleRate:  sampleRate,
		Channels:    channels,
		ChannelMask: mask,
		BitDepth:    sf.BytesPerSample() * 8,
	}
	f.Float = sf == Float || sf == Double
	return f
}

// Sample is a timestamped piece of media handed to the renderer by the streaming thread
type Sample struct {
	Data []byte

	// Start and Stop are stream times in 100ns ticks; only meaningful if Timestamped
	Start       int64
	Stop        int64
	Timestamped bool

	// Discontinuity marks the first sample after a seek or a stream restart
	Discontinuity bool
}

// SampleToInt16 converts int32 sample to int16 (for 16-bit playback)
func SampleToInt16(sample int32) int16 {
	// Right-shift to convert 24-bit (or 16-bit) to 16-bit range
	return int16(sample >> 8)
}

// SampleFromInt16 converts int16 sample to int32 (left-justified in 24-bit)
func SampleFromInt16(sample int16) int32 {
	// Left-shift to position 16-bit value in upper bits
	return int32(sample) << 8
}

// SampleTo24Bit converts int32 to 24-bit packed bytes (little-endian)
func SampleTo24Bit(sample int32) [3]byte {
	// Take lower 24 bits, pack little-endian
	return [3]byte{
		byte(sample),
		byte(sample >> 8),
		byte(sample >> 16),
	}
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	// Reconstruct 24-bit value and sign-extend to 32-bit
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF // Set upper 8 bits to 1 for negative values
	}
	return val
}
