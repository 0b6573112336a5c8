// ABOUTME: Bubbletea model for the voice session TUI
// ABOUTME: Shows transcript, recording state, and playback stats
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

const transcriptLines = 8

// Model represents the TUI state
type Model struct {
	// Connection
	connected  bool
	serverName string

	// Session
	recording bool
	state     string // idle, listening, speaking

	// Transcript: finished lines plus the line being streamed
	transcript []string
	partial    string

	// Playback
	volume int
	muted  bool

	// Stats
	received int64
	played   int64
	dropped  int64
	pending  int

	// Alerts
	lastError       string
	paymentRequired bool

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
	case TextMsg:
		m.partial += string(msg)
	case TurnCompleteMsg:
		if m.partial != "" {
			m.transcript = append(m.transcript, m.partial)
			m.partial = ""
		}
		m.state = "idle"
	case ErrorMsg:
		m.lastError = string(msg)
	case PaymentRequiredMsg:
		m.paymentRequired = true
		m.recording = false
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
	s += m.renderTranscript()
	s += m.renderControls()
	s += m.renderStats()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders connection and session status
func (m Model) renderHeader() string {
	connStatus := "Disconnected"
	if m.connected {
		connStatus = fmt.Sprintf("Connected to %s", m.serverName)
	}

	sessionIcon := "·"
	sessionText := m.state
	if m.recording {
		sessionIcon = "●"
		sessionText = "recording"
	}

	return fmt.Sprintf(`┌─ VoiceBridge ────────────────────────────────────────┐
│ Status:  %-44s │
│ Session: %s %-42s │
├──────────────────────────────────────────────────────┤
`, connStatus, sessionIcon, sessionText)
}

// renderTranscript renders the last few transcript lines
func (m Model) renderTranscript() string {
	lines := append([]string{}, m.transcript...)
	if m.partial != "" {
		lines = append(lines, m.partial+"▌")
	}
	if len(lines) > transcriptLines {
		lines = lines[len(lines)-transcriptLines:]
	}

	s := "│ Transcript:                                          │\n"
	if len(lines) == 0 {
		s += "│   (nothing yet)                                      │\n"
	}
	for _, line := range lines {
		s += fmt.Sprintf("│   %-50s │\n", truncate(strings.TrimSpace(line), 50))
	}
	return s
}

// renderControls renders volume and alerts
func (m Model) renderControls() string {
	muteIcon := ""
	if m.muted {
		muteIcon = " (muted)"
	}

	s := fmt.Sprintf("│                                                      │\n"+
		"│ Volume: [%s] %d%%%s%-20s │\n",
		renderBar(m.volume, 100, 10), m.volume, muteIcon, "")

	if m.paymentRequired {
		s += "│ ⚠ Out of credits. Top up to keep talking.            │\n"
	}
	if m.lastError != "" {
		s += fmt.Sprintf("│ ⚠ %-50s │\n", truncate(m.lastError, 50))
	}
	return s
}

// renderStats renders playback statistics
func (m Model) renderStats() string {
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Audio:  RX: %d  Played: %d  Dropped: %d  Queue: %d%-2s │
│                                                      │
`, m.received, m.played, m.dropped, m.pending, "")
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ r:Record  ↑/↓:Volume  m:Mute  d:Debug  q:Quit       │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Transcript lines: %-32d │
│   Queue depth: %-37d │
`, len(m.transcript), m.pending)
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.controls != nil {
			select {
			case m.controls.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case "r":
		m.recording = !m.recording
		if m.recording {
			m.state = "listening"
			m.paymentRequired = false
		} else {
			m.state = "idle"
		}
		if m.controls != nil {
			select {
			case m.controls.Record <- RecordToggleMsg{Recording: m.recording}:
			default:
			}
		}
	case "up":
		m.volume += 5
		if m.volume > 100 {
			m.volume = 100
		}
		m.notifyVolume()
	case "down":
		m.volume -= 5
		if m.volume < 0 {
			m.volume = 0
		}
		m.notifyVolume()
	case "m":
		m.muted = !m.muted
		m.notifyVolume()
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func (m Model) notifyVolume() {
	if m.controls == nil {
		return
	}
	select {
	case m.controls.Volume <- VolumeChangeMsg{Volume: m.volume, Muted: m.muted}:
	default:
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Connected != nil {
		m.connected = *msg.Connected
	}
	if msg.ServerName != "" {
		m.serverName = msg.ServerName
	}
	if msg.Recording != nil {
		m.recording = *msg.Recording
	}
	if msg.State != "" {
		m.state = msg.State
	}
	if msg.Volume != 0 {
		m.volume = msg.Volume
	}
	m.received = msg.Received
	m.played = msg.Played
	m.dropped = msg.Dropped
	m.pending = msg.Pending
}

// StatusMsg updates TUI state
type StatusMsg struct {
	Connected  *bool
	ServerName string
	Recording  *bool
	State      string
	Volume     int
	Received   int64
	Played     int64
	Dropped    int64
	Pending    int
}

// TextMsg appends a text delta to the streaming transcript line
type TextMsg string

// TurnCompleteMsg finalizes the current transcript line
type TurnCompleteMsg struct{}

// ErrorMsg surfaces a session error
type ErrorMsg string

// PaymentRequiredMsg flags an exhausted credit balance
type PaymentRequiredMsg struct{}

// Utility functions
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
