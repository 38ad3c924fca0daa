// ABOUTME: Malgo-based playback backend with endpoint enumeration
// ABOUTME: Uses miniaudio via malgo, pulling frames from the stream ring in the data callback
package device

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/pkg/errors"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
)

// MalgoBackend plays through the system audio API chosen by miniaudio
type MalgoBackend struct {
	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	ids    map[string]malgo.DeviceID
	mix    audio.Format
	logger *slog.Logger
}

// NewMalgoBackend initializes a miniaudio context
func NewMalgoBackend(logger *slog.Logger) (*MalgoBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "malgo")

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("miniaudio", "message", message)
	})
	if err != nil {
		return nil, errors.Wrap(err, "initialize malgo context")
	}

	return &MalgoBackend{
		ctx:    ctx,
		ids:    make(map[string]malgo.DeviceID),
		mix:    audio.FormatFor(audio.Float, 48000, 2, audio.MaskStereo),
		logger: logger,
	}, nil
}

func (b *MalgoBackend) Name() string { return "malgo" }

func (b *MalgoBackend) Endpoints() ([]Endpoint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx == nil {
		return nil, errors.New("malgo backend closed")
	}

	infos, err := b.ctx.Context.Devices(malgo.Playback)
	if err != nil {
		return nil, errors.Wrap(err, "enumerate playback devices")
	}

	endpoints := make([]Endpoint, 0, len(infos))
	for _, info := range infos {
		id := info.ID.String()
		b.ids[id] = info.ID
		endpoints = append(endpoints, Endpoint{
			ID:      id,
			Name:    info.Name(),
			Default: info.IsDefault != 0,
		})
	}
	return endpoints, nil
}

// MixFormat is 48kHz float in the channel count of the endpoint's default layout
func (b *MalgoBackend) MixFormat(Endpoint) (audio.Format, error) {
	return b.mix, nil
}

func (b *MalgoBackend) Supports(_ Endpoint, format audio.Format, exclusive bool) bool {
	if !format.IsPCM() {
		// miniaudio has no passthrough path
		return false
	}
	if !exclusive {
		return format == b.mix
	}
	_, err := malgoFormat(format.SampleFormat())
	return err == nil
}

func malgoFormat(sf audio.SampleFormat) (malgo.FormatType, error) {
	switch sf {
	case audio.Pcm8:
		return malgo.FormatU8, nil
	case audio.Pcm16:
		return malgo.FormatS16, nil
	case audio.Pcm24:
		return malgo.FormatS24, nil
	case audio.Pcm32:
		return malgo.FormatS32, nil
	case audio.Float:
		return malgo.FormatF32, nil
	}
	return malgo.FormatUnknown, errors.Wrapf(ErrUnsupportedFormat, "malgo cannot render %s", sf)
}

func (b *MalgoBackend) Open(ep Endpoint, format audio.Format, exclusive bool, bufferFrames int) (Stream, error) {
	mf, err := malgoFormat(format.SampleFormat())
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx == nil {
		return nil, errors.New("malgo backend closed")
	}

	s := &malgoStream{ringStream: newRingStream(format, bufferFrames), logger: b.logger.With("endpoint", ep.Name)}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = mf
	deviceConfig.Playback.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1
	if exclusive {
		deviceConfig.Playback.ShareMode = malgo.Exclusive
	}
	if id, ok := b.ids[ep.ID]; ok {
		deviceConfig.Playback.DeviceID = id.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, frameCount uint32) {
			s.consume(pOutputSample[:int(frameCount)*s.frameSize])
		},
		Stop: func() {
			// miniaudio stops the device on its own when the endpoint goes away
			if s.running() {
				s.logger.Warn("device stopped unexpectedly")
				s.invalidate()
			}
		},
	}

	dev, err := malgo.InitDevice(b.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, errors.Wrapf(err, "initialize playback device %q", ep.Name)
	}
	s.device = dev

	b.logger.Info("stream opened",
		"endpoint", ep.Name,
		"format", formatName(mf),
		"rate", format.SampleRate,
		"channels", format.Channels,
		"exclusive", exclusive)
	return s, nil
}

func (b *MalgoBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx == nil {
		return nil
	}
	if err := b.ctx.Uninit(); err != nil {
		b.logger.Warn("malgo context uninit", "err", err)
	}
	b.ctx.Free()
	b.ctx = nil
	return nil
}

type malgoStream struct {
	*ringStream
	mu     sync.Mutex
	device *malgo.Device
	logger *slog.Logger
}

func (s *malgoStream) Start() error {
	if err := s.ringStream.Start(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return ErrDeviceInvalidated
	}
	if s.device.IsStarted() {
		return nil
	}
	if err := s.device.Start(); err != nil {
		s.ringStream.invalidate()
		return errors.Wrap(err, "start device")
	}
	return nil
}

func (s *malgoStream) Stop() error {
	// mark stopped first so the stop callback does not treat this as device loss
	err := s.ringStream.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device != nil && s.device.IsStarted() {
		if serr := s.device.Stop(); serr != nil && err == nil {
			err = errors.Wrap(serr, "stop device")
		}
	}
	return err
}

func (s *malgoStream) Close() error {
	s.ringStream.invalidate()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device != nil {
		s.device.Uninit()
		s.device = nil
	}
	return nil
}

// formatName returns human-readable format name
func formatName(format malgo.FormatType) string {
	switch format {
	case malgo.FormatU8:
		return "U8"
	case malgo.FormatS16:
		return "S16"
	case malgo.FormatS24:
		return "S24"
	case malgo.FormatS32:
		return "S32"
	case malgo.FormatF32:
		return "F32"
	default:
		return fmt.Sprintf("Unknown(%d)", format)
	}
}
