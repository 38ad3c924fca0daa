// ABOUTME: Bubbletea model for the renderer TUI
// ABOUTME: Defines display state, key handling and status rendering
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Resonate-Protocol/resonate-renderer/internal/version"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/audio"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/clock"
	"github.com/Resonate-Protocol/resonate-renderer/pkg/renderer"
)

const balanceStep = 10

// Model represents the TUI state
type Model struct {
	// Source
	source  string
	elapsed time.Duration

	// Renderer
	status renderer.Status

	// Playback controls, mirrored locally so keys respond immediately
	volume  int
	muted   bool
	balance int
	paused  bool

	// Debug
	showDebug bool

	// Dimensions
	width  int
	height int

	controls *Controls
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderStreamInfo()
	s += m.renderDevice()
	s += m.renderControls()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders transport state and position
func (m Model) renderHeader() string {
	title := "─ " + version.String() + " "
	return fmt.Sprintf(`┌%s┐
│ State:  %-45s │
│ Time:   %-45s │
├──────────────────────────────────────────────────────┤
`, padRule(title, 54), stateText(m.status.State, m.paused), formatElapsed(m.elapsed))
}

// renderStreamInfo renders the source and its format
func (m Model) renderStreamInfo() string {
	if m.source == "" || !m.status.HasFormat {
		return "│ No stream                                            │\n"
	}

	f := m.status.InputFormat
	s := fmt.Sprintf("│ Source: %-45s │\n", truncate(m.source, 45))
	s += fmt.Sprintf("│ Format: %-45s │\n", formatName(f))
	if m.status.Rate != 1 {
		s += fmt.Sprintf("│ Rate:   %-45s │\n", fmt.Sprintf("%.2fx", m.status.Rate))
	}
	return s
}

// renderDevice renders the output device and buffer fill
func (m Model) renderDevice() string {
	s := "│                                                      │\n"
	if !m.status.HasDevice {
		return s + "│ Device: (none)                                       │\n"
	}

	mode := "shared"
	if m.status.Exclusive {
		mode = "exclusive"
	}
	if m.status.Bitstream {
		mode += ", bitstream"
	}
	s += fmt.Sprintf("│ Device: %-45s │\n", truncate(fmt.Sprintf("%s (%s)", m.status.DeviceName, mode), 45))
	s += fmt.Sprintf("│ Output: %-45s │\n", formatName(m.status.DeviceFormat))

	fill := 0
	if m.status.BufferFrames > 0 {
		fill = m.status.PaddingFrames * 100 / m.status.BufferFrames
	}
	s += fmt.Sprintf("│ Buffer: [%s] %3d%%%-29s │\n", renderBar(fill, 100, 10), fill, "")

	chain := "(none)"
	if len(m.status.Processors) > 0 {
		chain = strings.Join(m.status.Processors, " → ")
	}
	s += fmt.Sprintf("│ Chain:  %-45s │\n", truncate(chain, 45))
	return s
}

// renderControls renders volume status
func (m Model) renderControls() string {
	muteIcon := ""
	if m.muted {
		muteIcon = " 🔇"
	}

	volumeBar := renderBar(m.volume, 100, 10)

	return fmt.Sprintf("│                                                      │\n"+
		"│ Volume: [%s] %d%%%s%-17s │\n"+
		"│ Balance: %-44s │\n",
		volumeBar, m.volume, muteIcon, "", balanceText(m.balance))
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `├──────────────────────────────────────────────────────┤
│ space:Pause ↑↓:Vol ←→:Balance m:Mute d:Debug q:Quit  │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders clocking details
func (m Model) renderDebug() string {
	return fmt.Sprintf(`│ DEBUG:                                               │
│   External clock: %-34t │
│   Rate correction: %-33s │
│   Timings error:   %-33s │
│   Pushed frames:   %-33d │
`, m.status.ExternalClock,
		ticksText(m.status.RateCorrection),
		ticksText(m.status.TimingsError),
		m.status.PushedFrames)
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.controls.quit()
		return m, tea.Quit
	case " ":
		m.paused = !m.paused
		m.controls.togglePause()
	case "up":
		if m.volume < 100 {
			m.volume += 5
			if m.volume > 100 {
				m.volume = 100
			}
			m.controls.sendChange(m.volume, m.muted, m.balance)
		}
	case "down":
		if m.volume > 0 {
			m.volume -= 5
			if m.volume < 0 {
				m.volume = 0
			}
			m.controls.sendChange(m.volume, m.muted, m.balance)
		}
	case "left":
		if m.balance > -100 {
			m.balance = max(-100, m.balance-balanceStep)
			m.controls.sendChange(m.volume, m.muted, m.balance)
		}
	case "right":
		if m.balance < 100 {
			m.balance = min(100, m.balance+balanceStep)
			m.controls.sendChange(m.volume, m.muted, m.balance)
		}
	case "m":
		m.muted = !m.muted
		m.controls.sendChange(m.volume, m.muted, m.balance)
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Source != "" {
		m.source = msg.Source
	}
	m.elapsed = msg.Elapsed
	m.status = msg.Status
	m.volume = msg.Status.Volume
	m.muted = msg.Status.Muted
	m.balance = msg.Status.Balance
	m.paused = msg.Status.State == renderer.Paused
}

// StatusMsg updates TUI state
type StatusMsg struct {
	Source  string
	Elapsed time.Duration
	Status  renderer.Status
}

// Utility functions
func balanceText(balance int) string {
	switch {
	case balance < 0:
		return fmt.Sprintf("L%d", -balance)
	case balance > 0:
		return fmt.Sprintf("R%d", balance)
	}
	return "center"
}

func renderBar(value, max, width int) string {
	filled := (value * width) / max
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func padRule(title string, width int) string {
	n := width - len([]rune(title))
	if n <= 0 {
		return title
	}
	return title + strings.Repeat("─", n)
}

func channelName(channels int) string {
	switch channels {
	case 1:
		return "Mono"
	case 2:
		return "Stereo"
	case 6:
		return "5.1"
	case 8:
		return "7.1"
	}
	return fmt.Sprintf("%dch", channels)
}

func formatName(f audio.Format) string {
	if !f.IsPCM() {
		return fmt.Sprintf("%s %dHz %s (bitstream)", f.Codec, f.SampleRate, channelName(f.Channels))
	}
	kind := "bit"
	if f.Float {
		kind = "bit float"
	}
	return fmt.Sprintf("%dHz %s %d-%s", f.SampleRate, channelName(f.Channels), f.BitDepth, kind)
}

func stateText(s renderer.State, paused bool) string {
	if paused && s != renderer.Stopped {
		return "Paused"
	}
	switch s {
	case renderer.Running:
		return "Playing"
	case renderer.Paused:
		return "Paused"
	}
	return "Stopped"
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Truncate(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func ticksText(ticks int64) string {
	return fmt.Sprintf("%+.2fms", float64(ticks)/float64(clock.Milliseconds(1)))
}
