// ABOUTME: Sample ingestion and end of stream
// ABOUTME: Enqueue runs samples through timing correction, clock reconciliation and the chain
package renderer

import (
	"errors"
	"time"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/clock"
)

const (
	// coarse nudge when the timings error moves this far from the slaved offset
	clockNudgeThreshold = 1000
	// fine rate correction when the external clock drifts this far
	rateCorrectionThreshold = 2 * clock.OneSecond / 1000

	drainStallTimeout = 100 * time.Millisecond
)

var errZeroFrequency = errors.New("device clock reports zero frequency")

// Enqueue delivers a sample toward the device. It returns false only when a
// flush interrupted it.
func (r *Renderer) Enqueue(s audio.Sample) bool {
	chunk, ok := r.ingest(s)
	if !ok {
		return true
	}
	return r.push(chunk)
}

func (r *Renderer) ingest(s audio.Sample) (audio.Chunk, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.hasFormat || r.state == Stopped {
		r.logger.Debug("dropping sample", "state", r.state, "has_format", r.hasFormat)
		return audio.Chunk{}, false
	}

	r.checkDeviceSettings()
	if r.device == nil {
		r.createDevice()
	}

	chunk, err := r.timings.ProcessSample(s)
	if err != nil {
		r.processingFailed(err)
		return audio.Chunk{}, false
	}

	if r.device != nil && r.state == Running {
		r.reconcile()
	}

	if r.device != nil && !r.device.Bitstream {
		if chunk, err = r.process(chunk, false); err != nil {
			r.processingFailed(err)
			return audio.Chunk{}, false
		}
	}
	return chunk, true
}

// process runs the chain (or drains it) and converts to the device format. Requires r.mu.
func (r *Renderer) process(chunk audio.Chunk, finish bool) (audio.Chunk, error) {
	var err error
	if finish {
		err = r.chain.Finish(&chunk)
	} else {
		err = r.chain.Process(&chunk)
	}
	if err != nil {
		return audio.Chunk{}, err
	}
	if chunk.IsEmpty() {
		return audio.Chunk{}, nil
	}
	return chunk.ToFormat(r.device.SampleFormat)
}

// processingFailed drops the in-flight chunk and the device. Requires r.mu.
func (r *Renderer) processingFailed(err error) {
	r.logger.Warn("processing failed, dropping chunk and device", "err", err)
	r.clearDevice()
}

// reconcile keeps the slaved clock and the external clock aligned. Requires r.mu.
func (r *Renderer) reconcile() {
	offset := r.timings.TimingsError() - r.myClock.SlavedClockOffset()
	if abs64(offset) > clockNudgeThreshold {
		r.myClock.OffsetSlavedClock(offset)
		r.logger.Debug("slaved clock nudged", "offset", offset)
	}

	if !r.externalClock || r.device.Bitstream {
		return
	}

	myStart, err := r.myClock.AudioClockStartTime()
	if err != nil {
		return
	}
	myTime, err := r.myClock.AudioClockTime()
	if err != nil {
		return
	}
	graphTime, err := r.graphClock.Time()
	if err != nil || myTime <= myStart {
		return
	}

	drift := graphTime - myTime - r.correctedWithRateDsp
	if abs64(drift) > rateCorrectionThreshold {
		r.chain.Rate.Adjust(drift)
		r.correctedWithRateDsp += drift
		r.logger.Debug("rate corrected", "drift", drift, "total", r.correctedWithRateDsp)
	}
}

// Finish drains the chain into the device and optionally waits until
// everything pushed has played. It returns false when a flush interrupted it.
func (r *Renderer) Finish(block bool) bool {
	chunk, hasDevice := r.finishChain()
	if !hasDevice {
		block = false
	}
	if !r.push(chunk) {
		return false
	}
	return !block || r.drain()
}

func (r *Renderer) finishChain() (audio.Chunk, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.device == nil {
		return audio.Chunk{}, false
	}
	if r.device.Bitstream {
		return audio.Chunk{}, true
	}

	chunk, err := r.process(audio.Chunk{}, true)
	if err != nil {
		r.logger.Warn("finishing processors", "err", err)
		return audio.Chunk{}, true
	}
	return chunk, true
}

// drain waits until the device position reaches everything pushed
func (r *Renderer) drain() bool {
	r.myClock.UnslaveClockFromAudio()

	var (
		previous int64 = -1
		stalled  time.Duration
	)
	for {
		wait, done := r.drainStep(&previous, &stalled)
		if done {
			return true
		}
		if r.flush.Wait(wait) {
			return false
		}
		stalled += wait
	}
}

func (r *Renderer) drainStep(previous *int64, stalled *time.Duration) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.device
	if d == nil {
		return 0, true
	}

	freq, err := d.Clock.Frequency()
	if err == nil && freq == 0 {
		err = errZeroFrequency
	}
	var pos uint64
	if err == nil {
		pos, err = d.Clock.Position()
	}
	if err != nil {
		r.logger.Warn("device lost while draining", "err", err)
		r.clearDevice()
		return 0, true
	}

	actual := mulDiv(int64(pos), clock.OneSecond, int64(freq))
	target := clock.FramesToTicks(r.pushedFrames, d.Format.SampleRate)
	if actual >= target {
		return 0, true
	}

	if actual != *previous {
		*previous = actual
		*stalled = 0
	} else if r.state == Running && *stalled >= drainStallTimeout {
		r.logger.Info("device position stalled, giving up drain", "position", actual, "target", target)
		return 0, true
	}

	return max(time.Millisecond, clock.ToDuration(target-actual)), false
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func mulDiv(a, b, c int64) int64 {
	q, rem := a/c, a%c
	return q*b + rem*b/c
}
