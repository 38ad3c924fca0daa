// ABOUTME: Audio device package documentation
// ABOUTME: Describes device handles, the manager and playback backends
// Package device opens playback endpoints for the renderer.
//
// A Backend enumerates endpoints and opens Streams on them. Every Stream exposes
// the same three views the renderer drives: an AudioClient (buffer size, fill
// level, start/stop/reset), a RenderClient (get/release buffer space) and a
// clock.AudioClock (position/frequency). The Manager turns an input format and
// the current settings into a reference-counted Device handle.
//
// Available backends:
//   - MalgoBackend: miniaudio via malgo, with endpoint enumeration and exclusive mode
//   - OtoBackend: oto, a single shared endpoint
//   - NullBackend: drains in real time without producing sound
//   - WAVBackend: drains in real time into a .wav file
//
// Example:
//
//	mgr := device.NewManager(device.NewNullBackend(), logger)
//	dev, err := mgr.CreateDevice(format, settings)
//	if err != nil {
//	    return err
//	}
//	defer mgr.ReleaseDevice()
//	defer dev.Release()
package device
