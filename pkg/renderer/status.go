// ABOUTME: Renderer status snapshot
// ABOUTME: Collected for the UI and the simulator
package renderer

import (
	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
)

// Status is a point-in-time view of the renderer
type Status struct {
	State         State
	InputFormat   audio.Format
	HasFormat     bool
	Rate          float64
	ExternalClock bool

	DeviceName   string
	DeviceFormat audio.Format
	Exclusive    bool
	Bitstream    bool
	HasDevice    bool

	PushedFrames   int64
	BufferFrames   int
	PaddingFrames  int
	RateCorrection int64
	TimingsError   int64

	Processors []string
	Volume     int
	Muted      bool
	Balance    int
}

// Status returns a snapshot of the renderer
func (r *Renderer) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Status{
		State:          r.state,
		InputFormat:    r.format,
		HasFormat:      r.hasFormat,
		Rate:           r.rate,
		ExternalClock:  r.externalClock,
		PushedFrames:   r.pushedFrames,
		RateCorrection: r.correctedWithRateDsp,
		TimingsError:   r.timings.TimingsError(),
		Processors:     r.activeProcessors(),
	}
	st.Volume, st.Muted = r.chain.Volume.Get()
	st.Balance = r.chain.Balance.Get()

	if d := r.device; d != nil {
		st.HasDevice = true
		st.DeviceName = d.FriendlyName
		st.DeviceFormat = d.Format
		st.Exclusive = d.Exclusive
		st.Bitstream = d.Bitstream
		if n, err := d.Client.BufferSize(); err == nil {
			st.BufferFrames = n
		}
		if n, err := d.Client.Padding(); err == nil {
			st.PaddingFrames = n
		}
	}
	return st
}
