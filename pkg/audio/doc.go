// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, Chunk and Sample types plus sample conversion helpers
// Package audio provides the audio types shared by the renderer and its processing chain.
//
//   - Format: wave format of a stream (codec, rate, channels, channel mask, bit depth)
//   - SampleFormat: in-memory sample layout used by the DSP chain
//   - Chunk: interleaved frames in one SampleFormat, convertible with ToFormat
//   - Sample: timestamped media handed to the renderer by the streaming thread
//
// Example:
//
//	format := audio.Format{
//	    Codec:      audio.CodecPCM,
//	    SampleRate: 48000,
//	    Channels:   2,
//	    BitDepth:   24,
//	}
//
//	chunk := audio.NewChunk(format.SampleFormat(), format.Channels, format.SampleRate, data)
//	floats, err := chunk.ToFormat(audio.Float)
package audio
