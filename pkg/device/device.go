// ABOUTME: Reference-counted device handle
// ABOUTME: Bundles the negotiated format with client, render and clock views of a stream
package device

import (
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/clock"
)

var (
	// ErrDeviceInvalidated is returned by every stream call after the endpoint went away
	ErrDeviceInvalidated = errors.New("audio device invalidated")
	// ErrNoEndpoint is returned when the configured endpoint does not exist
	ErrNoEndpoint = errors.New("audio endpoint not found")
	// ErrUnsupportedFormat is returned when no usable format could be negotiated
	ErrUnsupportedFormat = errors.New("format not supported by endpoint")
	// ErrBufferTooLarge is returned when more frames are requested than the buffer has free
	ErrBufferTooLarge = errors.New("requested buffer exceeds free space")
)

// AudioClient controls the device buffer
type AudioClient interface {
	// BufferSize returns the buffer capacity in frames
	BufferSize() (int, error)
	// Padding returns the number of frames queued and not yet played
	Padding() (int, error)
	Start() error
	Stop() error
	// Reset drops queued frames and rewinds the position; the client must be stopped
	Reset() error
}

// RenderClient hands out writable buffer space
type RenderClient interface {
	Buffer(frames int) ([]byte, error)
	ReleaseBuffer(frames int) error
}

// Stream is an open endpoint
type Stream interface {
	AudioClient
	RenderClient
	clock.AudioClock
	Close() error
}

// Device is an opened endpoint shared between the renderer and the manager.
// The stream is closed when the last reference is released.
type Device struct {
	ID             uuid.UUID
	Format         audio.Format
	SampleFormat   audio.SampleFormat
	Bitstream      bool
	Exclusive      bool
	Default        bool
	FriendlyName   string
	EndpointID     string
	SettingsSerial uint32
	BufferFrames   int

	Client AudioClient
	Render RenderClient
	Clock  clock.AudioClock

	stream Stream
	refs   atomic.Int32
	logger *slog.Logger
}

// NewDevice wraps an open stream in a handle holding one reference
func NewDevice(stream Stream, logger *slog.Logger) *Device {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.New()
	d := &Device{
		ID:     id,
		Client: stream,
		Render: stream,
		Clock:  stream,
		stream: stream,
		logger: logger.With("device", id.String()),
	}
	d.refs.Store(1)
	return d
}

// Hold adds a reference
func (d *Device) Hold() *Device {
	d.refs.Add(1)
	return d
}

// Release drops a reference, closing the stream on the last one
func (d *Device) Release() {
	n := d.refs.Add(-1)
	if n > 0 {
		return
	}
	if n < 0 {
		d.logger.Error("device released too many times", "refs", n)
		return
	}
	if err := d.stream.Close(); err != nil {
		d.logger.Warn("closing stream", "err", err)
	}
	d.logger.Info("device closed", "name", d.FriendlyName)
}

// Refs returns the current reference count
func (d *Device) Refs() int32 {
	return d.refs.Load()
}
