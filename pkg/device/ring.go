// ABOUTME: Frame ring buffer shared by all backends
// ABOUTME: Implements the AudioClient, RenderClient and AudioClock contracts over queued bytes
package device

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
)

// ringStream queues rendered frames until a backend consumes them.
// Position counts consumed frames since the last reset.
type ringStream struct {
	mu        sync.Mutex
	format    audio.Format
	frameSize int
	capacity  int // frames
	buf       []byte
	readPos   int // frames
	count     int // frames
	position  uint64
	started   bool
	closed    bool
	pending   []byte
	silence   byte
}

func newRingStream(format audio.Format, capacity int) *ringStream {
	fs := format.FrameSize()
	r := &ringStream{
		format:    format,
		frameSize: fs,
		capacity:  capacity,
		buf:       make([]byte, capacity*fs),
	}
	if format.SampleFormat() == audio.Pcm8 {
		r.silence = 0x80
	}
	return r
}

func (r *ringStream) BufferSize() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, ErrDeviceInvalidated
	}
	return r.capacity, nil
}

func (r *ringStream) Padding() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, ErrDeviceInvalidated
	}
	return r.count, nil
}

func (r *ringStream) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrDeviceInvalidated
	}
	r.started = true
	return nil
}

func (r *ringStream) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrDeviceInvalidated
	}
	r.started = false
	return nil
}

func (r *ringStream) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrDeviceInvalidated
	}
	if r.started {
		return errors.New("reset while running")
	}
	r.readPos = 0
	r.count = 0
	r.position = 0
	return nil
}

// Buffer returns space for frames; the bytes are queued by ReleaseBuffer
func (r *ringStream) Buffer(frames int) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrDeviceInvalidated
	}
	if frames < 0 || frames > r.capacity-r.count {
		return nil, errors.Wrapf(ErrBufferTooLarge, "%d frames, %d free", frames, r.capacity-r.count)
	}
	n := frames * r.frameSize
	if cap(r.pending) < n {
		r.pending = make([]byte, n)
	}
	r.pending = r.pending[:n]
	return r.pending, nil
}

func (r *ringStream) ReleaseBuffer(frames int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrDeviceInvalidated
	}
	if frames*r.frameSize > len(r.pending) {
		return errors.Errorf("release of %d frames exceeds the %d requested", frames, len(r.pending)/r.frameSize)
	}

	src := r.pending[:frames*r.frameSize]
	writePos := (r.readPos + r.count) % r.capacity
	for len(src) > 0 {
		n := copy(r.buf[writePos*r.frameSize:], src)
		src = src[n:]
		writePos = 0
	}
	r.count += frames
	r.pending = r.pending[:0]
	return nil
}

func (r *ringStream) Frequency() (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, ErrDeviceInvalidated
	}
	return uint64(r.format.SampleRate), nil
}

func (r *ringStream) Position() (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, ErrDeviceInvalidated
	}
	return r.position, nil
}

// consume moves up to len(dst)/frameSize queued frames into dst and fills the rest
// with silence. It returns the number of real frames delivered.
func (r *ringStream) consume(dst []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := len(dst) / r.frameSize
	frames := 0
	if r.started && !r.closed {
		frames = min(want, r.count)
	}

	out := dst
	for i := 0; i < frames; {
		n := min(frames-i, r.capacity-r.readPos)
		copy(out, r.buf[r.readPos*r.frameSize:(r.readPos+n)*r.frameSize])
		out = out[n*r.frameSize:]
		r.readPos = (r.readPos + n) % r.capacity
		i += n
	}
	for i := frames * r.frameSize; i < len(dst); i++ {
		dst[i] = r.silence
	}

	r.count -= frames
	r.position += uint64(frames)
	return frames
}

func (r *ringStream) running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started && !r.closed
}

// invalidate makes every later call fail as if the endpoint disappeared
func (r *ringStream) invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.started = false
}

func (r *ringStream) Close() error {
	r.invalidate()
	return nil
}
