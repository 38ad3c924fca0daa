// ABOUTME: Device manager
// ABOUTME: Resolves the configured endpoint, negotiates the output format and opens device handles
package device

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/settings"
)

// Manager creates devices on a backend. It keeps one reference to the most
// recently created device until ReleaseDevice.
type Manager struct {
	mu      sync.Mutex
	backend Backend
	device  *Device
	logger  *slog.Logger
}

// NewManager creates a manager for backend
func NewManager(backend Backend, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		backend: backend,
		logger:  logger.With("component", "device-manager", "backend", backend.Name()),
	}
}

// Backend returns the backend devices are opened on
func (m *Manager) Backend() Backend {
	return m.backend
}

// CreateDevice opens a device for the input format under the current settings.
// The returned device carries one reference for the caller.
func (m *Manager) CreateDevice(format audio.Format, s settings.Settings) (*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.releaseLocked()

	serial := s.Serial()
	name, exclusive, err := s.OutputDevice()
	if err != nil {
		return nil, errors.Wrap(err, "read output device setting")
	}

	ep, err := m.resolve(name)
	if err != nil {
		return nil, err
	}

	out, bitstream, err := m.negotiate(ep, format, exclusive, s)
	if err != nil {
		return nil, err
	}

	buffer := s.BufferDuration()
	if buffer <= 0 {
		buffer = settings.DefaultBufferDuration
	}
	frames := int(int64(out.SampleRate) * int64(buffer) / int64(time.Second))

	stream, err := m.backend.Open(ep, out, exclusive, frames)
	if err != nil {
		return nil, errors.Wrapf(err, "open %q", ep.Name)
	}

	d := NewDevice(stream, m.logger)
	d.Format = out
	d.SampleFormat = out.SampleFormat()
	d.Bitstream = bitstream
	d.Exclusive = exclusive
	d.Default = name == ""
	d.FriendlyName = ep.Name
	d.EndpointID = ep.ID
	d.SettingsSerial = serial
	d.BufferFrames = frames

	m.device = d.Hold()
	m.logger.Info("device created",
		"device", d.ID.String(),
		"name", ep.Name,
		"format", out.String(),
		"exclusive", exclusive,
		"bitstream", bitstream,
		"buffer_frames", frames)
	return d, nil
}

// ReleaseDevice drops the manager's reference to the current device
func (m *Manager) ReleaseDevice() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked()
}

func (m *Manager) releaseLocked() {
	if m.device == nil {
		return
	}
	d := m.device
	m.device = nil
	d.Release()
}

// BitstreamFormatSupported reports whether format could be sent to the configured endpoint untouched
func (m *Manager) BitstreamFormatSupported(format audio.Format, s settings.Settings) bool {
	if format.IsPCM() {
		return false
	}
	name, exclusive, err := s.OutputDevice()
	if err != nil || !exclusive || !s.AllowBitstreaming() {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ep, err := m.resolve(name)
	if err != nil {
		return false
	}
	return m.backend.Supports(ep, format, true)
}

// resolve finds an endpoint by name or id; an empty name selects the default endpoint
func (m *Manager) resolve(name string) (Endpoint, error) {
	endpoints, err := m.backend.Endpoints()
	if err != nil {
		return Endpoint{}, errors.Wrap(err, "enumerate endpoints")
	}
	if len(endpoints) == 0 {
		return Endpoint{}, errors.Wrap(ErrNoEndpoint, "backend has no endpoints")
	}

	if name == "" {
		for _, ep := range endpoints {
			if ep.Default {
				return ep, nil
			}
		}
		return endpoints[0], nil
	}

	for _, ep := range endpoints {
		if ep.Name == name || ep.ID == name {
			return ep, nil
		}
	}
	return Endpoint{}, errors.Wrapf(ErrNoEndpoint, "endpoint %q", name)
}

func (m *Manager) negotiate(ep Endpoint, format audio.Format, exclusive bool, s settings.Settings) (audio.Format, bool, error) {
	if !format.IsPCM() {
		if !exclusive || !s.AllowBitstreaming() || !m.backend.Supports(ep, format, true) {
			return audio.Format{}, false, errors.Wrapf(ErrUnsupportedFormat, "bitstream %s on %q", format.Codec, ep.Name)
		}
		return format, true, nil
	}

	if exclusive && m.backend.Supports(ep, format, true) {
		return format, false, nil
	}

	mix, err := m.backend.MixFormat(ep)
	if err != nil {
		return audio.Format{}, false, errors.Wrapf(err, "mix format of %q", ep.Name)
	}
	if mix.SampleFormat() == audio.Unknown {
		return audio.Format{}, false, errors.Wrapf(ErrUnsupportedFormat, "mix format %s", mix)
	}
	if exclusive {
		m.logger.Info("exclusive format not supported, using mix format", "format", format.String(), "mix", mix.String())
	}
	return mix, false, nil
}
