// ABOUTME: Playback backend selection
// ABOUTME: Maps a backend name from config or flags to a device backend
package app

import (
	"fmt"
	"log/slog"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/device"
)

// Backend names
const (
	BackendMalgo = "malgo"
	BackendOto   = "oto"
	BackendNull  = "null"
	BackendWAV   = "wav"
)

// Backends lists the accepted backend names
var Backends = []string{BackendMalgo, BackendOto, BackendNull, BackendWAV}

// NewBackend opens the named backend. wavPath is only used by the wav backend.
func NewBackend(name, wavPath string, logger *slog.Logger) (device.Backend, error) {
	switch name {
	case BackendMalgo:
		return device.NewMalgoBackend(logger)
	case BackendOto:
		return device.NewOtoBackend(48000, 2, logger)
	case BackendNull:
		return device.NewNullBackend(), nil
	case BackendWAV:
		return device.NewWAVBackend(wavPath, logger), nil
	}
	return nil, fmt.Errorf("unknown backend %q (available: %v)", name, Backends)
}
