// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program for the session UI
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// RecordToggleMsg reports the user toggling the microphone
type RecordToggleMsg struct {
	Recording bool
}

// VolumeChangeMsg reports a volume or mute change
type VolumeChangeMsg struct {
	Volume int
	Muted  bool
}

// QuitMsg reports the user quitting
type QuitMsg struct{}

// Controls carries user intents out of the TUI
type Controls struct {
	Record chan RecordToggleMsg
	Volume chan VolumeChangeMsg
	Quit   chan QuitMsg
}

// NewControls creates the control channels
func NewControls() *Controls {
	return &Controls{
		Record: make(chan RecordToggleMsg, 10),
		Volume: make(chan VolumeChangeMsg, 10),
		Quit:   make(chan QuitMsg, 1),
	}
}

// NewModel creates a new TUI model
func NewModel(controls *Controls) Model {
	return Model{
		volume:   100,
		state:    "idle",
		controls: controls,
	}
}

// Run starts the TUI
func Run(controls *Controls) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(controls), tea.WithAltScreen())
	return p, nil
}
