// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the control channels to the player
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// VolumeChangeMsg carries a new volume, mute state and balance
type VolumeChangeMsg struct {
	Volume  int
	Muted   bool
	Balance int
}

// PauseMsg toggles pause
type PauseMsg struct{}

// QuitMsg asks the player to stop
type QuitMsg struct{}

// Controls holds channels for control communication
type Controls struct {
	Changes chan VolumeChangeMsg
	Pause   chan PauseMsg
	Quit    chan QuitMsg
}

// NewControls creates a new control handler
func NewControls() *Controls {
	return &Controls{
		Changes: make(chan VolumeChangeMsg, 10),
		Pause:   make(chan PauseMsg, 10),
		Quit:    make(chan QuitMsg, 1),
	}
}

// Sends never block the UI; a nil Controls drops everything.

func (c *Controls) sendChange(volume int, muted bool, balance int) {
	if c == nil {
		return
	}
	select {
	case c.Changes <- VolumeChangeMsg{Volume: volume, Muted: muted, Balance: balance}:
	default:
	}
}

func (c *Controls) togglePause() {
	if c == nil {
		return
	}
	select {
	case c.Pause <- PauseMsg{}:
	default:
	}
}

func (c *Controls) quit() {
	if c == nil {
		return
	}
	select {
	case c.Quit <- QuitMsg{}:
	default:
	}
}

// NewModel creates a new TUI model
func NewModel(controls *Controls) Model {
	return Model{
		volume:   100,
		controls: controls,
	}
}

// Run creates the TUI program; the caller runs it
func Run(controls *Controls) *tea.Program {
	return tea.NewProgram(NewModel(controls), tea.WithAltScreen())
}
