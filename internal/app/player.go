// ABOUTME: Main player application orchestration
// ABOUTME: Streams a source through the renderer and coordinates controls and the UI
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/Resonate-Protocol/resonate-renderer/internal/event"
	"github.com/Resonate-Protocol/resonate-renderer/internal/ui"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio/decode"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/clock"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/device"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/renderer"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/settings"
)

const (
	// playback starts this far after the first sample is queued
	preroll        = 100 * time.Millisecond
	statusInterval = 250 * time.Millisecond
	logEvery       = 4 // status ticks between log lines without a TUI
)

// Config holds player configuration
type Config struct {
	// Path is the media file; empty plays a tone
	Path          string
	ToneFrequency float64
	// ToneDuration of zero plays until stopped
	ToneDuration time.Duration

	Backend string
	WAVPath string

	Volume  int
	Balance int
	Rate    float64

	// ExternalClock drives the renderer from a free-running system clock
	// skewed by ClockSkewPPM instead of the device clock
	ExternalClock bool
	ClockSkewPPM  float64

	UseTUI bool
}

// Player represents the main player application
type Player struct {
	config   Config
	settings settings.Settings
	backend  device.Backend
	clock    *clock.Clock
	renderer *renderer.Renderer
	controls *ui.Controls
	tuiProg  *tea.Program
	logger   *slog.Logger

	mu          sync.Mutex
	playerState string
	startTime   int64
	pausedAt    int64

	cancel context.CancelFunc
}

// New creates a new player with its backend and renderer
func New(config Config, s settings.Settings, logger *slog.Logger) (*Player, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Rate <= 0 {
		config.Rate = 1
	}
	if config.ToneFrequency <= 0 {
		config.ToneFrequency = decode.DefaultToneFrequency
	}

	backend, err := NewBackend(config.Backend, config.WAVPath, logger)
	if err != nil {
		return nil, err
	}

	clk := clock.New(logger)
	r, err := renderer.New(renderer.Config{
		Settings:     s,
		Clock:        clk,
		Manager:      device.NewManager(backend, logger),
		BufferFilled: event.New(),
		Logger:       logger,
	})
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("creating renderer: %w", err)
	}
	if config.ExternalClock {
		r.SetClock(clock.NewSystem(config.ClockSkewPPM))
	}
	r.SetVolume(config.Volume)
	r.SetBalance(config.Balance)

	return &Player{
		config:      config,
		settings:    s,
		backend:     backend,
		clock:       clk,
		renderer:    r,
		controls:    ui.NewControls(),
		logger:      logger.With("component", "player"),
		playerState: "idle",
	}, nil
}

// Renderer exposes the renderer for status queries
func (p *Player) Renderer() *renderer.Renderer {
	return p.renderer
}

// State returns idle, playing, paused or finished
func (p *Player) State() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playerState
}

func (p *Player) setState(s string) {
	p.mu.Lock()
	p.playerState = s
	p.mu.Unlock()
}

// Run plays the configured source until it ends, ctx is cancelled or the user quits
func (p *Player) Run(ctx context.Context) error {
	src, name, err := p.openSource()
	if err != nil {
		return err
	}
	stream := decode.NewStream(src, decode.DefaultSampleDuration)
	defer stream.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	if p.config.UseTUI {
		p.tuiProg = ui.Run(p.controls)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return p.stream(ctx, stream)
	})
	g.Go(func() error { return p.handleControls(ctx) })
	g.Go(func() error { return p.reportStatus(ctx, name) })
	g.Go(func() error {
		<-ctx.Done()
		// unblock Enqueue/Finish and the UI
		p.renderer.BeginFlush()
		if p.tuiProg != nil {
			p.tuiProg.Quit()
		}
		return nil
	})
	if p.tuiProg != nil {
		g.Go(func() error {
			defer cancel()
			if _, err := p.tuiProg.Run(); err != nil {
				return fmt.Errorf("TUI: %w", err)
			}
			return nil
		})
	}

	err = g.Wait()
	p.renderer.Close()
	if cerr := p.backend.Close(); cerr != nil {
		p.logger.Warn("closing backend", "err", cerr)
	}
	return err
}

// Stop stops the player
func (p *Player) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (p *Player) openSource() (decode.Source, string, error) {
	if p.config.Path == "" {
		frames := int64(0)
		if p.config.ToneDuration > 0 {
			frames = clock.TicksToFrames(clock.FromDuration(p.config.ToneDuration), 48000)
		}
		return decode.NewTone(p.config.ToneFrequency, 48000, 2, frames),
			fmt.Sprintf("tone %.0fHz", p.config.ToneFrequency), nil
	}

	src, err := decode.Open(p.config.Path)
	if err != nil {
		return nil, "", err
	}
	return src, filepath.Base(p.config.Path), nil
}

// stream is the renderer's streaming goroutine
func (p *Player) stream(ctx context.Context, stream *decode.Stream) error {
	format := stream.Format()
	if !p.renderer.CheckFormat(format) {
		return fmt.Errorf("cannot render %s", format)
	}
	p.renderer.SetFormat(format)
	if err := p.renderer.NewSegment(p.config.Rate); err != nil {
		return err
	}

	now, err := p.clock.Time()
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.startTime = now + clock.FromDuration(preroll)
	p.mu.Unlock()
	if err := p.renderer.Play(p.startTime); err != nil {
		return err
	}
	p.setState("playing")
	p.logger.Info("playback started", "format", format.String(), "rate", p.config.Rate)

	for ctx.Err() == nil {
		sample, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("decoding: %w", err)
		}
		if len(sample.Data) == 0 {
			continue
		}
		if !p.renderer.Enqueue(sample) {
			p.logger.Debug("enqueue interrupted")
			return nil
		}
	}
	if ctx.Err() != nil {
		return nil
	}

	if p.renderer.Finish(true) {
		p.setState("finished")
		p.logger.Info("playback finished")
	}
	return nil
}

// handleControls applies user commands to the renderer
func (p *Player) handleControls(ctx context.Context) error {
	for {
		select {
		case change := <-p.controls.Changes:
			p.renderer.SetVolume(change.Volume)
			p.renderer.SetMuted(change.Muted)
			p.renderer.SetBalance(change.Balance)

		case <-p.controls.Pause:
			if err := p.togglePause(); err != nil {
				p.logger.Warn("toggling pause", "err", err)
			}

		case <-p.controls.Quit:
			p.Stop()

		case <-ctx.Done():
			return nil
		}
	}
}

// togglePause pauses, or resumes with the start time moved by the time spent paused
func (p *Player) togglePause() error {
	now, err := p.clock.Time()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.playerState {
	case "playing":
		p.renderer.Pause()
		p.pausedAt = now
		p.playerState = "paused"
	case "paused":
		p.startTime += now - p.pausedAt
		if err := p.renderer.Play(p.startTime); err != nil {
			return err
		}
		p.playerState = "playing"
	}
	return nil
}

// reportStatus feeds the TUI, or the log without one
func (p *Player) reportStatus(ctx context.Context, source string) error {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for tick := 1; ; tick++ {
		select {
		case <-ticker.C:
			st := p.renderer.Status()
			msg := ui.StatusMsg{Source: source, Elapsed: p.elapsed(), Status: st}
			if p.tuiProg != nil {
				p.tuiProg.Send(msg)
				continue
			}
			if tick%logEvery == 0 {
				p.logger.Info("status",
					"state", st.State,
					"elapsed", msg.Elapsed.Truncate(time.Millisecond),
					"device", st.DeviceName,
					"pushed", st.PushedFrames,
					"padding", st.PaddingFrames,
					"rate_correction", clock.ToDuration(st.RateCorrection),
					"processors", st.Processors)
			}

		case <-ctx.Done():
			return nil
		}
	}
}

func (p *Player) elapsed() time.Duration {
	now, err := p.clock.Time()
	if err != nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playerState == "paused" {
		now = p.pausedAt
	}
	return max(0, clock.ToDuration(now-p.startTime))
}
