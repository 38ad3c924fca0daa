// ABOUTME: Delivery of processed chunks into the device buffer
// ABOUTME: Push waits for buffer space and falls back to pacing without a device
package renderer

import (
	"time"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/clock"
)

const (
	pushRetryInterval = 50 * time.Millisecond
	// without a device, chunks this close to their due time are dropped
	abortLookahead = 20 * clock.OneSecond / 1000
)

// push writes chunk into the device, waiting for space. It returns false when
// a flush interrupted it.
func (r *Renderer) push(chunk audio.Chunk) bool {
	if chunk.IsEmpty() {
		return true
	}

	for first := true; ; first = false {
		if !first && r.flush.Wait(pushRetryInterval) {
			return false
		}
		if r.pushStep(&chunk) {
			return true
		}
	}
}

// pushStep makes one attempt and reports whether the chunk is fully handled
func (r *Renderer) pushStep(chunk *audio.Chunk) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Stopped {
		return true
	}

	if r.device != nil {
		err := r.writeDevice(chunk)
		if err == nil {
			return chunk.IsEmpty()
		}
		// continue below as if the device had never been there
		r.logger.Warn("writing to device, releasing it", "err", err)
		r.clearDevice()
	}

	// No device: report the buffer as full so upstream keeps pacing, and
	// give up on the chunk once its due time has come.
	r.bufferFilled.Set()
	if r.state != Running {
		return false
	}
	now, err := r.graphClock.Time()
	if err != nil {
		return false
	}
	if now+abortLookahead > r.startTime+r.timings.LastSampleEnd() {
		r.logger.Debug("no device, dropping due chunk", "frames", chunk.FrameCount())
		return true
	}
	return false
}

// writeDevice copies as much of chunk as fits and shrinks it accordingly. Requires r.mu.
func (r *Renderer) writeDevice(chunk *audio.Chunk) error {
	d := r.device

	capacity, err := d.Client.BufferSize()
	if err != nil {
		return err
	}
	padding, err := d.Client.Padding()
	if err != nil {
		return err
	}

	n := min(capacity-padding, chunk.FrameCount())
	if n <= 0 {
		return nil
	}

	buf, err := d.Render.Buffer(n)
	if err != nil {
		return err
	}
	copy(buf, chunk.Data()[:n*chunk.FrameSize()])
	if err := d.Render.ReleaseBuffer(n); err != nil {
		return err
	}

	if padding+n == capacity {
		r.bufferFilled.Set()
	} else {
		r.bufferFilled.Reset()
	}
	r.pushedFrames += int64(n)
	chunk.ShrinkHead(n)
	return nil
}
