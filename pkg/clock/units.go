// ABOUTME: Reference time units
// ABOUTME: 100ns ticks and conversions to durations and frame counts
package clock

import "time"

// OneSecond is one second in reference ticks (100ns units)
const OneSecond int64 = 10_000_000

// FromDuration converts a duration to ticks
func FromDuration(d time.Duration) int64 {
	return int64(d / 100)
}

// ToDuration converts ticks to a duration
func ToDuration(ticks int64) time.Duration {
	return time.Duration(ticks) * 100
}

// Milliseconds returns ms milliseconds in ticks
func Milliseconds(ms int64) int64 {
	return ms * 10_000
}

// FramesToTicks returns the playing time of frames at rate
func FramesToTicks(frames int64, rate int) int64 {
	if rate <= 0 {
		return 0
	}
	return mulDiv(frames, OneSecond, int64(rate))
}

// TicksToFrames returns the number of whole frames covering ticks at rate
func TicksToFrames(ticks int64, rate int) int64 {
	return mulDiv(ticks, int64(rate), OneSecond)
}

// mulDiv computes a*b/c without overflowing for stream-length positions
func mulDiv(a, b, c int64) int64 {
	q, r := a/c, a%c
	return q*b + r*b/c
}
