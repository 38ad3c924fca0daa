// ABOUTME: Playback backend contract
// ABOUTME: Endpoint enumeration, format negotiation and stream opening
package device

import (
	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
)

// Endpoint identifies a playback device of a backend
type Endpoint struct {
	ID      string
	Name    string
	Default bool
}

// Backend opens streams on playback endpoints
type Backend interface {
	Name() string
	Endpoints() ([]Endpoint, error)
	// MixFormat is the format the endpoint renders in shared mode
	MixFormat(ep Endpoint) (audio.Format, error)
	// Supports reports whether the endpoint accepts format directly
	Supports(ep Endpoint, format audio.Format, exclusive bool) bool
	Open(ep Endpoint, format audio.Format, exclusive bool, bufferFrames int) (Stream, error)
	Close() error
}
