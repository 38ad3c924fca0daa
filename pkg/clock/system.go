// ABOUTME: Free-running system reference clock
// ABOUTME: Used as an external clock independent of any audio device
package clock

import "time"

// System is a ReferenceClock driven by the monotonic system clock.
// Skew scales its rate in parts per million.
type System struct {
	start time.Time
	skew  float64
	since func(time.Time) time.Duration
}

// NewSystem returns a system clock that starts at zero
func NewSystem(skewPPM float64) *System {
	return &System{start: time.Now(), skew: skewPPM, since: time.Since}
}

func (s *System) Time() (int64, error) {
	t := FromDuration(s.since(s.start))
	if s.skew != 0 {
		t += int64(float64(t) * s.skew / 1e6)
	}
	return t, nil
}
