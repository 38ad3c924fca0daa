// ABOUTME: User output settings consumed by the renderer
// ABOUTME: Settings contract plus an in-memory implementation with a generation serial
package settings

import (
	"sync"
	"time"
)

// Crossfeed configures the headphone crossfeed stage
type Crossfeed struct {
	Enabled  bool
	CutoffHz int
	LevelDB  float64
}

// DefaultCrossfeed is a mild crossfeed preset
var DefaultCrossfeed = Crossfeed{CutoffHz: 700, LevelDB: 4.5}

// Settings is polled by the renderer and the device manager.
// Serial changes whenever any output-affecting value changes.
type Settings interface {
	Serial() uint32
	// OutputDevice returns the endpoint name (empty for the system default) and whether exclusive mode is requested
	OutputDevice() (name string, exclusive bool, err error)
	AllowBitstreaming() bool
	Crossfeed() Crossfeed
	SharedModePeakLimiter() bool
	BufferDuration() time.Duration
}

// DefaultBufferDuration is used when no buffer length is configured
const DefaultBufferDuration = 200 * time.Millisecond

// Static holds settings in memory. Every setter bumps the serial.
type Static struct {
	mu           sync.RWMutex
	serial       uint32
	device       string
	exclusive    bool
	bitstreaming bool
	crossfeed    Crossfeed
	limiter      bool
	buffer       time.Duration
}

// NewStatic returns default settings: default endpoint, shared mode, 200ms buffer
func NewStatic() *Static {
	return &Static{crossfeed: DefaultCrossfeed, buffer: DefaultBufferDuration}
}

func (s *Static) Serial() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serial
}

func (s *Static) OutputDevice() (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.device, s.exclusive, nil
}

func (s *Static) AllowBitstreaming() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bitstreaming
}

func (s *Static) Crossfeed() Crossfeed {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.crossfeed
}

func (s *Static) SharedModePeakLimiter() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limiter
}

func (s *Static) BufferDuration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buffer
}

func (s *Static) update(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
	s.serial++
}

// SetOutputDevice selects the endpoint by name and the share mode
func (s *Static) SetOutputDevice(name string, exclusive bool) {
	s.update(func() { s.device, s.exclusive = name, exclusive })
}

func (s *Static) SetAllowBitstreaming(allow bool) {
	s.update(func() { s.bitstreaming = allow })
}

func (s *Static) SetCrossfeed(cf Crossfeed) {
	s.update(func() { s.crossfeed = cf })
}

func (s *Static) SetSharedModePeakLimiter(enabled bool) {
	s.update(func() { s.limiter = enabled })
}

func (s *Static) SetBufferDuration(d time.Duration) {
	s.update(func() { s.buffer = d })
}

// Touch bumps the serial without changing anything
func (s *Static) Touch() {
	s.update(func() {})
}
