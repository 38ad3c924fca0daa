// ABOUTME: Audio renderer core
// ABOUTME: State machine, collaborators and control surface of the renderer
package renderer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Resonate-Protocol/resonate-renderer/internal/event"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio/dsp"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio/timing"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/clock"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/device"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/settings"
)

var (
	// ErrInvalidState is returned for control calls not allowed in the current state
	ErrInvalidState = errors.New("invalid renderer state")
	// ErrMissingCollaborator is returned by New when a required dependency is nil
	ErrMissingCollaborator = errors.New("missing renderer collaborator")
)

// State is the transport state of the renderer
type State int

const (
	Stopped State = iota
	Paused
	Running
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Paused:
		return "paused"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// DeviceManager opens and releases the renderer's device
type DeviceManager interface {
	CreateDevice(format audio.Format, s settings.Settings) (*device.Device, error)
	ReleaseDevice()
	BitstreamFormatSupported(format audio.Format, s settings.Settings) bool
}

// PlaybackClock is the renderer's own clock, slaved to the device while playing
type PlaybackClock interface {
	clock.ReferenceClock
	SlaveClockToAudio(ac clock.AudioClock, start int64)
	UnslaveClockFromAudio()
	OffsetSlavedClock(delta int64)
	SlavedClockOffset() int64
	AudioClockTime() (int64, error)
	AudioClockStartTime() (int64, error)
}

// TimingCorrection aligns incoming samples with the timeline
type TimingCorrection interface {
	SetFormat(f audio.Format)
	NewSegment(rate float64)
	ProcessSample(s audio.Sample) (audio.Chunk, error)
	TimingsError() int64
	LastSampleEnd() int64
}

// Config holds the renderer's collaborators
type Config struct {
	Settings settings.Settings
	Clock    PlaybackClock
	Manager  DeviceManager
	// BufferFilled is set whenever the device buffer is full or there is no device
	BufferFilled *event.Event

	// Timings defaults to timing.New()
	Timings TimingCorrection
	Logger  *slog.Logger
}

// Renderer feeds timestamped samples through the processing chain into a device.
//
// One goroutine streams (Enqueue, Finish); any other goroutine may drive the
// control surface. Enqueue and Finish must not be called concurrently with each other.
type Renderer struct {
	mu sync.Mutex

	settings     settings.Settings
	myClock      PlaybackClock
	graphClock   clock.ReferenceClock
	manager      DeviceManager
	timings      TimingCorrection
	chain        *dsp.Chain
	bufferFilled *event.Event
	flush        *event.Event
	logger       *slog.Logger

	state         State
	format        audio.Format
	hasFormat     bool
	device        *device.Device
	startTime     int64
	rate          float64
	externalClock bool

	startClockOffset     int64
	pushedFrames         int64
	correctedWithRateDsp int64

	// set after a failed device creation until one succeeds
	createFailing bool
}

// New creates a stopped renderer
func New(cfg Config) (*Renderer, error) {
	switch {
	case cfg.Settings == nil:
		return nil, fmt.Errorf("settings: %w", ErrMissingCollaborator)
	case cfg.Clock == nil:
		return nil, fmt.Errorf("clock: %w", ErrMissingCollaborator)
	case cfg.Manager == nil:
		return nil, fmt.Errorf("device manager: %w", ErrMissingCollaborator)
	case cfg.BufferFilled == nil:
		return nil, fmt.Errorf("buffer filled event: %w", ErrMissingCollaborator)
	}

	timings := cfg.Timings
	if timings == nil {
		timings = timing.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Renderer{
		settings:     cfg.Settings,
		myClock:      cfg.Clock,
		graphClock:   cfg.Clock,
		manager:      cfg.Manager,
		timings:      timings,
		chain:        dsp.NewChain(),
		bufferFilled: cfg.BufferFilled,
		flush:        event.New(),
		logger:       logger.With("component", "renderer"),
		rate:         1,
	}, nil
}

// SetClock selects the graph clock. Passing nil or the renderer's own clock
// drops any external clock. Engaging or changing an external clock releases
// the device so the chain is rebuilt with drift correction.
func (r *Renderer) SetClock(c clock.ReferenceClock) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wasExternal := r.externalClock
	previous := r.graphClock

	r.graphClock = r.myClock
	r.externalClock = false
	if c != nil && c != clock.ReferenceClock(r.myClock) {
		r.graphClock = c
		r.externalClock = true
	}

	if r.externalClock != wasExternal || (r.externalClock && previous != c) {
		r.logger.Info("graph clock changed", "external", r.externalClock)
		r.clearDevice()
	}
}

// OnExternalClock reports whether an external graph clock is in use
func (r *Renderer) OnExternalClock() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.externalClock
}

// CheckFormat reports whether the renderer can play format
func (r *Renderer) CheckFormat(f audio.Format) bool {
	if f.SampleFormat() != audio.Unknown {
		return true
	}
	if f.IsPCM() {
		return false
	}

	_, exclusive, err := r.settings.OutputDevice()
	if err != nil || !exclusive || !r.settings.AllowBitstreaming() {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.manager.BitstreamFormatSupported(f, r.settings)
}

// SetFormat sets the input format and releases the current device
func (r *Renderer) SetFormat(f audio.Format) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.format = f
	r.hasFormat = true
	r.createFailing = false
	r.timings.SetFormat(f)
	r.clearDevice()
	r.logger.Info("input format", "format", f.String())
}

// NewSegment starts a playback segment at rate. The rate is rounded to float32 precision.
func (r *Renderer) NewSegment(rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("segment rate %v: %w", rate, ErrInvalidState)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.startClockOffset = 0
	r.rate = float64(float32(rate))
	r.timings.NewSegment(r.rate)

	if r.device != nil {
		r.initializeProcessors()
	}
	return nil
}

// Play starts rendering with the device clock slaved to startTime
func (r *Renderer) Play(startTime int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Running {
		return fmt.Errorf("play while running: %w", ErrInvalidState)
	}
	r.state = Running
	r.startTime = startTime
	r.startDevice()
	return nil
}

// Pause stops the device, keeping queued audio. It is allowed from any state.
func (r *Renderer) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = Paused
	if r.device != nil {
		r.myClock.UnslaveClockFromAudio()
		if err := r.device.Client.Stop(); err != nil {
			r.logger.Warn("stopping device on pause", "err", err)
		}
	}
}

// Stop releases the device
func (r *Renderer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = Stopped
	r.clearDevice()
}

// Close stops the renderer if needed
func (r *Renderer) Close() {
	r.mu.Lock()
	stopped := r.state == Stopped
	r.mu.Unlock()
	if !stopped {
		r.Stop()
	}
}

// BeginFlush interrupts any blocked Enqueue or Finish
func (r *Renderer) BeginFlush() {
	r.flush.Set()
}

// EndFlush drops buffered audio and clears the flush signal
func (r *Renderer) EndFlush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Running {
		return fmt.Errorf("end flush while running: %w", ErrInvalidState)
	}

	if r.device != nil {
		if err := r.device.Client.Reset(); err != nil {
			r.logger.Warn("resetting device buffer", "err", err)
		}
		r.bufferFilled.Reset()
	}
	r.flush.Reset()
	r.pushedFrames = 0
	return nil
}

// InputFormat returns the input format, if one was set
func (r *Renderer) InputFormat() (audio.Format, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.format, r.hasFormat
}

// AudioDevice returns the current device with an added reference, or nil.
// The caller must Release it.
func (r *Renderer) AudioDevice() *device.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.device == nil {
		return nil
	}
	return r.device.Hold()
}

// ActiveProcessors names the active chain stages
func (r *Renderer) ActiveProcessors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeProcessors()
}

func (r *Renderer) activeProcessors() []string {
	if !r.hasFormat || r.device == nil || r.device.Bitstream {
		return nil
	}
	return r.chain.ActiveNames()
}

// SetVolume sets the volume (0-100)
func (r *Renderer) SetVolume(volume int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chain.Volume.Set(volume)
}

// SetMuted sets mute state
func (r *Renderer) SetMuted(muted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chain.Volume.SetMuted(muted)
}

// Volume returns the volume and mute state
func (r *Renderer) Volume() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chain.Volume.Get()
}

// SetBalance sets the balance, -100 (left) to 100 (right)
func (r *Renderer) SetBalance(balance int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chain.Balance.Set(balance)
}

func (r *Renderer) Balance() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chain.Balance.Get()
}
