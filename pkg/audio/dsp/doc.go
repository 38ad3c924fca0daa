// ABOUTME: Processing chain package documentation
// ABOUTME: Describes the stages and their fixed order
// Package dsp holds the renderer's processing chain.
//
// Stages run in a fixed order: channel matrix, rate adjuster, tempo,
// crossfeed, volume, limiter and dither. Each stage decides from its
// configuration whether it is active; inactive stages are skipped.
//
// Stages take chunks in any PCM sample format and leave them as Float,
// except dither which produces Pcm16.
package dsp
