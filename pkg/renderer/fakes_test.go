// ABOUTME: Test doubles for the renderer
// ABOUTME: In-memory device stream, manager, clocks and timing correction
package renderer

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/clock"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/device"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/settings"
)

var errFakeDevice = errors.New("fake device failure")

type fakeStream struct {
	mu        sync.Mutex
	capacity  int
	frameSize int
	padding   int
	position  uint64
	freq      uint64
	written   int
	pending   []byte
	data      []byte
	started   bool
	resets    int
	closed    bool

	failWrite error
	failClock error
}

func newFakeStream(capacity, frameSize int) *fakeStream {
	return &fakeStream{capacity: capacity, frameSize: frameSize, freq: 48000}
}

func (s *fakeStream) BufferSize() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity, nil
}

func (s *fakeStream) Padding() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.padding, nil
}

func (s *fakeStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return nil
}

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	return nil
}

func (s *fakeStream) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.padding = 0
	s.position = 0
	s.resets++
	return nil
}

func (s *fakeStream) Buffer(frames int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite != nil {
		return nil, s.failWrite
	}
	s.pending = make([]byte, frames*s.frameSize)
	return s.pending, nil
}

func (s *fakeStream) ReleaseBuffer(frames int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append(s.data, s.pending[:frames*s.frameSize]...)
	s.pending = nil
	s.padding += frames
	s.written += frames
	return nil
}

func (s *fakeStream) Frequency() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.freq, s.failClock
}

func (s *fakeStream) Position() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position, s.failClock
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// play consumes n queued frames
func (s *fakeStream) play(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n = min(n, s.padding)
	s.padding -= n
	s.position += uint64(n)
}

func (s *fakeStream) setPosition(pos uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = pos
}

func (s *fakeStream) snapshot() (padding, written int, started bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.padding, s.written, s.started
}

type fakeManager struct {
	mu sync.Mutex

	capacity     int
	prefill      int
	sampleFormat audio.SampleFormat
	outFormat    *audio.Format
	name         string
	bitstream    bool
	bitstreamOK  bool
	createErr    error

	creates  int
	releases int
	streams  []*fakeStream
	held     *device.Device
}

func newFakeManager() *fakeManager {
	return &fakeManager{capacity: 1000, sampleFormat: audio.Pcm16, name: "Speakers"}
}

func (m *fakeManager) CreateDevice(format audio.Format, s settings.Settings) (*device.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.creates++
	if m.createErr != nil {
		return nil, m.createErr
	}

	out := audio.FormatFor(m.sampleFormat, format.SampleRate, format.Channels, format.ChannelMask)
	if m.outFormat != nil {
		out = *m.outFormat
	}
	stream := newFakeStream(m.capacity, max(1, out.FrameSize()))
	stream.padding = m.prefill
	m.streams = append(m.streams, stream)

	name, exclusive, _ := s.OutputDevice()
	d := device.NewDevice(stream, nil)
	d.Format = out
	d.SampleFormat = m.sampleFormat
	d.Bitstream = m.bitstream
	d.Exclusive = exclusive
	d.Default = name == ""
	d.FriendlyName = m.name
	if name != "" {
		d.FriendlyName = name
	}
	d.SettingsSerial = s.Serial()
	d.BufferFrames = m.capacity

	m.held = d.Hold()
	return d, nil
}

func (m *fakeManager) ReleaseDevice() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases++
	if m.held != nil {
		m.held.Release()
		m.held = nil
	}
}

func (m *fakeManager) BitstreamFormatSupported(audio.Format, settings.Settings) bool {
	return m.bitstreamOK
}

func (m *fakeManager) stream(i int) *fakeStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i >= len(m.streams) {
		return nil
	}
	return m.streams[i]
}

func (m *fakeManager) counts() (creates, releases int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates, m.releases
}

type fakeClock struct {
	mu sync.Mutex

	now        int64
	slaved     bool
	slaveStart int64
	offset     int64
	nudges     []int64
	unslaves   int

	audioStart int64
	audioTime  int64
	audioErr   error
}

func (c *fakeClock) Time() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now, nil
}

func (c *fakeClock) SlaveClockToAudio(_ clock.AudioClock, start int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slaved = true
	c.slaveStart = start
	c.offset = 0
}

func (c *fakeClock) UnslaveClockFromAudio() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slaved = false
	c.unslaves++
}

func (c *fakeClock) OffsetSlavedClock(delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset += delta
	c.nudges = append(c.nudges, delta)
}

func (c *fakeClock) SlavedClockOffset() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset
}

func (c *fakeClock) AudioClockTime() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audioTime, c.audioErr
}

func (c *fakeClock) AudioClockStartTime() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audioStart, c.audioErr
}

func (c *fakeClock) isSlaved() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slaved
}

type fakeGraphClock struct {
	mu  sync.Mutex
	now int64
}

func (g *fakeGraphClock) Time() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.now, nil
}

// fakeTimings passes sample data through untouched
type fakeTimings struct {
	mu sync.Mutex

	format        audio.Format
	rate          float64
	segments      int
	timingsError  int64
	lastSampleEnd int64
	failNext      error
}

func (t *fakeTimings) SetFormat(f audio.Format) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.format = f
	t.lastSampleEnd = 0
}

func (t *fakeTimings) NewSegment(rate float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rate = rate
	t.segments++
	t.lastSampleEnd = 0
}

func (t *fakeTimings) ProcessSample(s audio.Sample) (audio.Chunk, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.failNext; err != nil {
		t.failNext = nil
		return audio.Chunk{}, err
	}
	c := audio.NewChunk(t.format.SampleFormat(), t.format.Channels, t.format.SampleRate, s.Data)
	t.lastSampleEnd += clock.FramesToTicks(int64(c.FrameCount()), t.format.SampleRate)
	return c, nil
}

func (t *fakeTimings) TimingsError() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timingsError
}

func (t *fakeTimings) LastSampleEnd() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSampleEnd
}

func (t *fakeTimings) setError(v int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timingsError = v
}

// logRecorder keeps every record logged by the renderer
type logRecorder struct {
	mu      sync.Mutex
	records []slog.Record
}

func (l *logRecorder) logger() *slog.Logger {
	return slog.New(recordingHandler{rec: l})
}

func (l *logRecorder) count(level slog.Level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, r := range l.records {
		if r.Level == level && r.Message == msg {
			n++
		}
	}
	return n
}

type recordingHandler struct {
	rec *logRecorder
}

func (h recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	h.rec.records = append(h.rec.records, r.Clone())
	return nil
}

func (h recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h recordingHandler) WithGroup(string) slog.Handler      { return h }
