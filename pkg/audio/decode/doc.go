// ABOUTME: Media sources for the renderer
// ABOUTME: Decodes files and generates tones as timestamped samples
// Package decode turns encoded media into samples for the renderer.
//
// Supports: WAV, MP3, Ogg Vorbis, FLAC, raw PCM and a generated test tone.
//
// Every source implements Source and yields chunks in its native format.
// A Stream cuts a source into fixed-length timestamped samples.
//
// Example:
//
//	src, err := decode.Open("track.flac")
//	stream := decode.NewStream(src, 20*time.Millisecond)
//	sample, err := stream.Next()
package decode
