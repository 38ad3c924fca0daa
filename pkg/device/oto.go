// ABOUTME: Oto-based playback backend
// ABOUTME: One shared 16-bit endpoint fed by a persistent player reading the stream ring
package device

import (
	"log/slog"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/pkg/errors"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
)

// oto allows only one context per process
var (
	otoOnce   sync.Once
	otoCtx    *oto.Context
	otoFormat audio.Format
	otoErr    error
)

// OtoBackend plays through oto's single shared output
type OtoBackend struct {
	mix    audio.Format
	logger *slog.Logger
}

// NewOtoBackend creates the process-wide oto context on first use.
// Later calls reuse it regardless of the requested rate.
func NewOtoBackend(sampleRate, channels int, logger *slog.Logger) (*OtoBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "oto")

	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatSignedInt16LE,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			otoErr = errors.Wrap(err, "create oto context")
			return
		}
		<-ready
		otoCtx = ctx
		otoFormat = audio.FormatFor(audio.Pcm16, sampleRate, channels, audio.DefaultChannelMask(channels))
		logger.Info("oto context ready", "rate", sampleRate, "channels", channels)
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if otoFormat.SampleRate != sampleRate || otoFormat.Channels != channels {
		logger.Warn("oto context already initialized with another format",
			"rate", otoFormat.SampleRate, "channels", otoFormat.Channels)
	}
	return &OtoBackend{mix: otoFormat, logger: logger}, nil
}

func (b *OtoBackend) Name() string { return "oto" }

func (b *OtoBackend) Endpoints() ([]Endpoint, error) {
	return []Endpoint{{ID: "oto", Name: "System Output", Default: true}}, nil
}

func (b *OtoBackend) MixFormat(Endpoint) (audio.Format, error) {
	return b.mix, nil
}

// Supports is shared mode only
func (b *OtoBackend) Supports(_ Endpoint, format audio.Format, exclusive bool) bool {
	return !exclusive && format == b.mix
}

func (b *OtoBackend) Open(_ Endpoint, format audio.Format, _ bool, bufferFrames int) (Stream, error) {
	if format != b.mix {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "oto renders %s, got %s", b.mix, format)
	}
	s := &otoStream{ringStream: newRingStream(format, bufferFrames)}
	s.player = otoCtx.NewPlayer(ringReader{s.ringStream})
	return s, nil
}

// Close leaves the process-wide context alive
func (b *OtoBackend) Close() error {
	return nil
}

// ringReader feeds the player; it never blocks and plays silence on underrun
type ringReader struct {
	r *ringStream
}

func (rr ringReader) Read(p []byte) (int, error) {
	n := len(p) / rr.r.frameSize * rr.r.frameSize
	if n == 0 {
		return 0, nil
	}
	rr.r.consume(p[:n])
	return n, nil
}

type otoStream struct {
	*ringStream
	mu     sync.Mutex
	player *oto.Player
}

func (s *otoStream) Start() error {
	if err := s.ringStream.Start(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player == nil {
		return ErrDeviceInvalidated
	}
	s.player.Play()
	return nil
}

func (s *otoStream) Stop() error {
	err := s.ringStream.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player != nil {
		s.player.Pause()
	}
	return err
}

func (s *otoStream) Close() error {
	s.ringStream.invalidate()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player == nil {
		return nil
	}
	err := s.player.Close()
	s.player = nil
	return errors.Wrap(err, "close oto player")
}
