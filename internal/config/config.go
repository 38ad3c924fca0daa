// ABOUTME: Configuration defaults and loading
// ABOUTME: Sets viper defaults and reads the optional config file
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/Resonate-Protocol/resonate-renderer/pkg/settings"
)

// Viper keys outside the renderer settings
const (
	KeyLogLevel = "loglevel"
	KeyLogFile  = "logfile"
	KeyBackend  = "backend"
	KeyVolume   = "playback.volume"
	KeyRate     = "playback.rate"
	KeyBalance  = "playback.balance"
	KeyWAVPath  = "wav.path"
)

// SetViperDefaults installs every default on v
func SetViperDefaults(v *viper.Viper) {
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyBackend, "malgo")

	v.SetDefault(settings.KeyOutputDevice, "")
	v.SetDefault(settings.KeyOutputExclusive, false)
	v.SetDefault(settings.KeyBitstreaming, false)
	v.SetDefault(settings.KeyBufferMS, settings.DefaultBufferDuration.Milliseconds())
	v.SetDefault(settings.KeyCrossfeedEnabled, false)
	v.SetDefault(settings.KeyCrossfeedCutoff, settings.DefaultCrossfeed.CutoffHz)
	v.SetDefault(settings.KeyCrossfeedLevel, settings.DefaultCrossfeed.LevelDB)
	v.SetDefault(settings.KeyLimiterShared, false)

	v.SetDefault(KeyVolume, 100)
	v.SetDefault(KeyRate, 1.0)
	v.SetDefault(KeyBalance, 0)
	v.SetDefault(KeyWAVPath, "out.wav")
}

// Load sets the defaults and reads path if given. A missing file is not an error.
func Load(v *viper.Viper, path string) error {
	SetViperDefaults(v)
	if path == "" {
		return nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			slog.Info("no config file found", "configFilePath", path)
			return nil
		}
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	slog.Debug("config loaded", "configFilePath", v.ConfigFileUsed())
	return nil
}
