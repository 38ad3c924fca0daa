// ABOUTME: Null playback backend
// ABOUTME: Drains streams in real time without producing sound
package device

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
)

const drainInterval = 5 * time.Millisecond

// NullBackend renders nowhere. Skew makes its streams drain faster (positive)
// or slower (negative) than real time, in parts per million.
type NullBackend struct {
	Devices       []Endpoint
	Mix           audio.Format
	SkewPPM       float64
	Bitstreaming  bool
	ExclusiveOnly []audio.SampleFormat // formats accepted in exclusive mode, empty for all

	mu      sync.Mutex
	streams []*drainStream
}

// NewNullBackend returns a backend with one default endpoint mixing 48kHz stereo float
func NewNullBackend() *NullBackend {
	return &NullBackend{
		Devices: []Endpoint{{ID: "null", Name: "Null Output", Default: true}},
		Mix:     audio.FormatFor(audio.Float, 48000, 2, audio.MaskStereo),
	}
}

func (b *NullBackend) Name() string { return "null" }

func (b *NullBackend) Endpoints() ([]Endpoint, error) {
	return append([]Endpoint(nil), b.Devices...), nil
}

func (b *NullBackend) MixFormat(Endpoint) (audio.Format, error) {
	return b.Mix, nil
}

func (b *NullBackend) Supports(_ Endpoint, format audio.Format, exclusive bool) bool {
	if !exclusive {
		return format == b.Mix
	}
	if !format.IsPCM() {
		return b.Bitstreaming
	}
	sf := format.SampleFormat()
	if sf == audio.Unknown {
		return false
	}
	if len(b.ExclusiveOnly) == 0 {
		return true
	}
	for _, f := range b.ExclusiveOnly {
		if f == sf {
			return true
		}
	}
	return false
}

func (b *NullBackend) Open(ep Endpoint, format audio.Format, exclusive bool, bufferFrames int) (Stream, error) {
	if format.FrameSize() == 0 || format.SampleRate <= 0 || bufferFrames <= 0 {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "open %s with %d frames", format, bufferFrames)
	}
	s := newDrainStream(format, bufferFrames, b.SkewPPM, nil)

	b.mu.Lock()
	b.streams = append(b.streams, s)
	b.mu.Unlock()
	return s, nil
}

// Invalidate simulates the loss of every open stream
func (b *NullBackend) Invalidate() {
	b.mu.Lock()
	streams := b.streams
	b.streams = nil
	b.mu.Unlock()

	for _, s := range streams {
		s.Close()
	}
}

func (b *NullBackend) Close() error {
	b.Invalidate()
	return nil
}

// drainStream consumes its ring at the stream rate while started
type drainStream struct {
	*ringStream
	skew float64
	sink func([]byte)

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	scratch []byte
}

func newDrainStream(format audio.Format, frames int, skewPPM float64, sink func([]byte)) *drainStream {
	return &drainStream{
		ringStream: newRingStream(format, frames),
		skew:       skewPPM,
		sink:       sink,
	}
}

func (s *drainStream) Start() error {
	if err := s.ringStream.Start(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return nil
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
	return nil
}

func (s *drainStream) Stop() error {
	err := s.ringStream.Stop()
	s.halt()
	return err
}

func (s *drainStream) Close() error {
	s.ringStream.invalidate()
	s.halt()
	return nil
}

func (s *drainStream) halt() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

func (s *drainStream) run(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	rate := float64(s.format.SampleRate) * (1 + s.skew/1e6)
	started := time.Now()
	var drained int64

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			due := int64(time.Since(started).Seconds() * rate)
			n := int(due - drained)
			if n <= 0 {
				continue
			}
			drained = due
			s.drain(n)
		}
	}
}

func (s *drainStream) drain(frames int) {
	size := frames * s.frameSize
	if cap(s.scratch) < size {
		s.scratch = make([]byte, size)
	}
	buf := s.scratch[:size]
	got := s.consume(buf)
	if s.sink != nil && got > 0 {
		s.sink(buf[:got*s.frameSize])
	}
}
