// ABOUTME: Playback clock that can follow a hardware audio clock
// ABOUTME: Free-running on a monotonic source until slaved to a device position
package clock

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrNotSlaved is returned by audio-clock queries while the clock is free-running
var ErrNotSlaved = errors.New("clock is not slaved to audio")

// ReferenceClock is a timeline source in ticks
type ReferenceClock interface {
	Time() (int64, error)
}

// AudioClock is the hardware position counter of an open device
type AudioClock interface {
	// Frequency is the number of position units per second
	Frequency() (uint64, error)
	Position() (uint64, error)
}

// Clock is the renderer's own reference clock. It runs from a monotonic source
// and can be slaved to the position of a device's AudioClock.
type Clock struct {
	mu     sync.Mutex
	start  time.Time
	since  func(time.Time) time.Duration
	base   int64 // free-running time = base + elapsed
	logger *slog.Logger

	audio        AudioClock
	audioStart   int64
	audioOffset  int64
	lastSlaved   int64
	lastSlavedAt time.Duration
}

// New creates a free-running clock starting at zero
func New(logger *slog.Logger) *Clock {
	if logger == nil {
		logger = slog.Default()
	}
	return &Clock{
		start:  time.Now(),
		since:  time.Since,
		logger: logger.With("component", "clock"),
	}
}

func (c *Clock) elapsed() time.Duration {
	return c.since(c.start)
}

// Time returns the current time in ticks
func (c *Clock) Time() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.audio != nil {
		if t, err := c.audioTime(); err == nil {
			return t, nil
		}
		// the device stopped answering; run on from the last good reading
		return c.lastSlaved + FromDuration(c.elapsed()-c.lastSlavedAt), nil
	}
	return c.base + FromDuration(c.elapsed()), nil
}

// audioTime requires c.mu and a slaved clock
func (c *Clock) audioTime() (int64, error) {
	freq, err := c.audio.Frequency()
	if err != nil {
		return 0, err
	}
	if freq == 0 {
		return 0, errors.New("audio clock reports zero frequency")
	}
	pos, err := c.audio.Position()
	if err != nil {
		return 0, err
	}
	t := c.audioStart + mulDiv(int64(pos), OneSecond, int64(freq)) + c.audioOffset
	c.lastSlaved = t
	c.lastSlavedAt = c.elapsed()
	return t, nil
}

// SlaveClockToAudio makes the clock follow ac, reading start when its position is zero
func (c *Clock) SlaveClockToAudio(ac AudioClock, start int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.audio = ac
	c.audioStart = start
	c.audioOffset = 0
	c.lastSlaved = start
	c.lastSlavedAt = c.elapsed()
	c.logger.Debug("slaved to audio clock", "start", start)
}

// UnslaveClockFromAudio returns to free-running from the last slaved value
func (c *Clock) UnslaveClockFromAudio() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.audio == nil {
		return
	}
	now := c.lastSlaved + FromDuration(c.elapsed()-c.lastSlavedAt)
	if t, err := c.audioTime(); err == nil {
		now = t
	}
	c.base = now - FromDuration(c.elapsed())
	c.audio = nil
	c.audioOffset = 0
	c.logger.Debug("unslaved from audio clock", "time", now)
}

// OffsetSlavedClock shifts the slaved timeline by delta ticks
func (c *Clock) OffsetSlavedClock(delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audioOffset += delta
}

// SlavedClockOffset returns the accumulated slaved offset
func (c *Clock) SlavedClockOffset() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audioOffset
}

// AudioClockTime returns the time derived from the device position
func (c *Clock) AudioClockTime() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.audio == nil {
		return 0, ErrNotSlaved
	}
	return c.audioTime()
}

// AudioClockStartTime returns the time the device position was slaved at
func (c *Clock) AudioClockStartTime() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.audio == nil {
		return 0, ErrNotSlaved
	}
	return c.audioStart, nil
}

// IsSlaved reports whether the clock currently follows an audio clock
func (c *Clock) IsSlaved() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audio != nil
}
