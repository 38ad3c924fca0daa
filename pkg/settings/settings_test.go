// ABOUTME: Tests for settings implementations
// ABOUTME: Covers serial bumps and viper key mapping
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticSerialBumps(t *testing.T) {
	s := NewStatic()
	assert.Equal(t, uint32(0), s.Serial())

	s.SetOutputDevice("Speakers", true)
	assert.Equal(t, uint32(1), s.Serial())
	name, exclusive, err := s.OutputDevice()
	require.NoError(t, err)
	assert.Equal(t, "Speakers", name)
	assert.True(t, exclusive)

	s.Touch()
	s.SetAllowBitstreaming(true)
	s.SetSharedModePeakLimiter(true)
	s.SetBufferDuration(time.Second)
	s.SetCrossfeed(Crossfeed{Enabled: true, CutoffHz: 650, LevelDB: 9.5})
	assert.Equal(t, uint32(6), s.Serial())
	assert.True(t, s.AllowBitstreaming())
	assert.True(t, s.SharedModePeakLimiter())
	assert.Equal(t, time.Second, s.BufferDuration())
	assert.Equal(t, 650, s.Crossfeed().CutoffHz)
}

func TestViperSettings(t *testing.T) {
	v := viper.New()
	v.Set(KeyOutputDevice, "USB DAC")
	v.Set(KeyOutputExclusive, true)
	v.Set(KeyBitstreaming, true)
	v.Set(KeyBufferMS, 50)
	v.Set(KeyCrossfeedEnabled, true)
	v.Set(KeyCrossfeedLevel, 6.0)

	s := NewViper(v, nil)
	name, exclusive, err := s.OutputDevice()
	require.NoError(t, err)
	assert.Equal(t, "USB DAC", name)
	assert.True(t, exclusive)
	assert.True(t, s.AllowBitstreaming())
	assert.Equal(t, 50*time.Millisecond, s.BufferDuration())

	cf := s.Crossfeed()
	assert.True(t, cf.Enabled)
	assert.Equal(t, DefaultCrossfeed.CutoffHz, cf.CutoffHz)
	assert.Equal(t, 6.0, cf.LevelDB)

	assert.Equal(t, uint32(0), s.Serial())
	s.Changed()
	assert.Equal(t, uint32(1), s.Serial())
}

func TestViperBufferDefault(t *testing.T) {
	s := NewViper(viper.New(), nil)
	assert.Equal(t, DefaultBufferDuration, s.BufferDuration())
	assert.False(t, s.SharedModePeakLimiter())
}

func writeOutputConfig(t *testing.T, path, device string) {
	t.Helper()
	body := fmt.Sprintf("output:\n  device: %q\n  buffer_ms: 120\n", device)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestViperReadsDuringReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "renderer.yaml")
	writeOutputConfig(t, path, "Speakers")

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	s := NewViper(v, nil)
	name, _, err := s.OutputDevice()
	require.NoError(t, err)
	assert.Equal(t, "Speakers", name)
	assert.Equal(t, 120*time.Millisecond, s.BufferDuration())

	s.Watch()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			_, _, _ = s.OutputDevice()
			_ = s.Crossfeed()
			_ = s.BufferDuration()
			_ = s.AllowBitstreaming()
		}
	}()

	for i := range 10 {
		writeOutputConfig(t, path, fmt.Sprintf("DAC %d", i))
		time.Sleep(20 * time.Millisecond)
	}
	writeOutputConfig(t, path, "Headphones")

	assert.Eventually(t, func() bool {
		name, _, _ := s.OutputDevice()
		return name == "Headphones"
	}, 5*time.Second, 10*time.Millisecond)
	assert.NotZero(t, s.Serial())

	close(stop)
	wg.Wait()
}
