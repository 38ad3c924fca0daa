// ABOUTME: Config-file backed settings
// ABOUTME: Reads output settings from viper and bumps the serial when the file changes
package settings

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Viper keys
const (
	KeyOutputDevice     = "output.device"
	KeyOutputExclusive  = "output.exclusive"
	KeyBitstreaming     = "output.bitstreaming"
	KeyBufferMS         = "output.buffer_ms"
	KeyCrossfeedEnabled = "crossfeed.enabled"
	KeyCrossfeedCutoff  = "crossfeed.cutoff_hz"
	KeyCrossfeedLevel   = "crossfeed.level_db"
	KeyLimiterShared    = "limiter.shared_mode"
)

// Viper exposes a viper instance as Settings. Values are copied into a
// snapshot; the viper instance is only read on construction and on the
// watcher goroutine after a reload.
type Viper struct {
	v      *viper.Viper
	serial atomic.Uint32
	logger *slog.Logger

	mu   sync.RWMutex
	snap snapshot
}

type snapshot struct {
	device       string
	exclusive    bool
	bitstreaming bool
	crossfeed    Crossfeed
	limiter      bool
	buffer       time.Duration
}

// NewViper wraps v; defaults are expected to be set by the caller
func NewViper(v *viper.Viper, logger *slog.Logger) *Viper {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Viper{v: v, logger: logger.With("component", "settings")}
	s.snap = s.read()
	return s
}

// Watch reloads the config file on change and bumps the serial.
// Nothing else may read v once Watch has been called.
func (s *Viper) Watch() {
	s.v.OnConfigChange(func(e fsnotify.Event) {
		s.logger.Info("config file changed", "file", e.Name, "op", e.Op.String())
		s.Changed()
	})
	s.v.WatchConfig()
}

// Changed re-reads v and bumps the serial so the renderer re-validates its device
func (s *Viper) Changed() {
	snap := s.read()
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	s.serial.Add(1)
}

func (s *Viper) read() snapshot {
	cf := Crossfeed{
		Enabled:  s.v.GetBool(KeyCrossfeedEnabled),
		CutoffHz: s.v.GetInt(KeyCrossfeedCutoff),
		LevelDB:  s.v.GetFloat64(KeyCrossfeedLevel),
	}
	if cf.CutoffHz <= 0 {
		cf.CutoffHz = DefaultCrossfeed.CutoffHz
	}
	buffer := time.Duration(s.v.GetInt(KeyBufferMS)) * time.Millisecond
	if buffer <= 0 {
		buffer = DefaultBufferDuration
	}
	return snapshot{
		device:       s.v.GetString(KeyOutputDevice),
		exclusive:    s.v.GetBool(KeyOutputExclusive),
		bitstreaming: s.v.GetBool(KeyBitstreaming),
		crossfeed:    cf,
		limiter:      s.v.GetBool(KeyLimiterShared),
		buffer:       buffer,
	}
}

func (s *Viper) current() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Viper) Serial() uint32 {
	return s.serial.Load()
}

func (s *Viper) OutputDevice() (string, bool, error) {
	snap := s.current()
	return snap.device, snap.exclusive, nil
}

func (s *Viper) AllowBitstreaming() bool {
	return s.current().bitstreaming
}

func (s *Viper) Crossfeed() Crossfeed {
	return s.current().crossfeed
}

func (s *Viper) SharedModePeakLimiter() bool {
	return s.current().limiter
}

func (s *Viper) BufferDuration() time.Duration {
	return s.current().buffer
}
