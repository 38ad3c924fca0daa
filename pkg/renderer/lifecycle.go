// ABOUTME: Device lifecycle of the renderer
// ABOUTME: Creating, starting, validating and releasing the device handle
package renderer

import (
	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio/dsp"
)

// Methods in this file require r.mu.

// checkDeviceSettings releases the device if the output settings no longer match it
func (r *Renderer) checkDeviceSettings() {
	if r.device == nil {
		return
	}
	serial := r.settings.Serial()
	if r.device.SettingsSerial == serial {
		return
	}

	name, exclusive, err := r.settings.OutputDevice()
	if err != nil {
		r.logger.Warn("reading output device setting", "err", err)
		return
	}

	d := r.device
	if d.Exclusive != exclusive ||
		(name != "" && name != d.FriendlyName) ||
		(name == "" && !d.Default) {
		r.logger.Info("output settings changed, releasing device",
			"device", d.FriendlyName,
			"requested", name,
			"exclusive", exclusive)
		r.clearDevice()
		return
	}
	d.SettingsSerial = serial
}

func (r *Renderer) createDevice() {
	d, err := r.manager.CreateDevice(r.format, r.settings)
	if err != nil {
		if r.createFailing {
			r.logger.Debug("creating device", "err", err)
		} else {
			r.logger.Warn("creating device", "err", err)
			r.createFailing = true
		}
		return
	}
	if d == nil {
		return
	}
	r.createFailing = false

	r.device = d
	r.initializeProcessors()
	r.startClockOffset = r.timings.LastSampleEnd()

	r.logger.Info("device ready",
		"device", d.FriendlyName,
		"format", d.Format.String(),
		"exclusive", d.Exclusive,
		"bitstream", d.Bitstream,
		"start_offset", r.startClockOffset)

	if r.state == Running {
		r.startDevice()
	}
}

func (r *Renderer) startDevice() {
	if r.device == nil {
		return
	}
	r.myClock.SlaveClockToAudio(r.device.Clock, r.startTime+r.startClockOffset)
	r.startClockOffset = 0
	if err := r.device.Client.Start(); err != nil {
		r.logger.Warn("starting device, releasing it", "err", err)
		r.clearDevice()
	}
}

// clearDevice is idempotent
func (r *Renderer) clearDevice() {
	if r.device != nil {
		d := r.device
		r.myClock.UnslaveClockFromAudio()
		if err := d.Client.Stop(); err != nil {
			r.logger.Debug("stopping released device", "err", err)
		}
		r.bufferFilled.Reset()
		r.device = nil
		d.Release()
		r.logger.Info("device released", "device", d.FriendlyName, "pushed_frames", r.pushedFrames)
	}
	r.manager.ReleaseDevice()
	r.pushedFrames = 0
}

func (r *Renderer) initializeProcessors() {
	r.correctedWithRateDsp = 0

	d := r.device
	if d.Bitstream {
		return
	}

	r.chain.Initialize(dsp.Params{
		InChannels:    r.format.Channels,
		InMask:        r.format.Mask(),
		OutChannels:   d.Format.Channels,
		OutMask:       d.Format.Mask(),
		InRate:        r.format.SampleRate,
		OutRate:       d.Format.SampleRate,
		Rate:          r.rate,
		Exclusive:     d.Exclusive,
		ExternalClock: r.externalClock,
		Settings:      r.settings,
		OutputFormat:  d.SampleFormat,
	})
	r.logger.Debug("processors initialized", "active", r.chain.ActiveNames())
}
