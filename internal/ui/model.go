// ABOUTME: Bubbletea model for the recording monitor TUI
// ABOUTME: Defines application state and update logic
package ui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// StreamStats is one stream's live counters as shown in the monitor.
type StreamStats struct {
	Frames       uint64
	MeasuredRate float64
	Dropped      uint64
	Mismatch     bool
}

// Model represents the TUI state
type Model struct {
	// Recording
	recording bool
	outputDir string
	elapsed   time.Duration

	// Format
	sampleRate float64
	channels   int

	// Streams
	system StreamStats
	mic    StreamStats

	// Dimensions
	width  int
	height int
}

// NewModel creates a new monitor model
func NewModel(outputDir string) Model {
	return Model{outputDir: outputDir}
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
	case StoppedMsg:
		m.recording = false
		return m, tea.Quit
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
	s += m.renderFormat()
	s += m.renderStream("System", m.system)
	s += m.renderStream("Mic", m.mic)
	s += m.renderHelp()

	return s
}

// renderHeader renders recording status and elapsed time
func (m Model) renderHeader() string {
	status := "Waiting..."
	if m.recording {
		status = fmt.Sprintf("● Recording  %s", formatElapsed(m.elapsed))
	}

	return fmt.Sprintf(`┌─ tapdeck ────────────────────────────────────────────┐
│ %-52s │
│ Output: %-44s │
├──────────────────────────────────────────────────────┤
`, status, truncate(m.outputDir, 44))
}

// renderFormat renders the shared capture format
func (m Model) renderFormat() string {
	if m.sampleRate <= 0 {
		return "│ Format: (resolving)                                  │\n"
	}
	return fmt.Sprintf("│ Format: %.0fHz %s 16-bit%-25s │\n",
		m.sampleRate, channelName(m.channels), "")
}

// renderStream renders one stream's counters
func (m Model) renderStream(label string, st StreamStats) string {
	health := " "
	if st.Mismatch {
		health = "⚠"
	}

	return fmt.Sprintf("│ %-7s %s %10d frames  %8.0fHz  dropped: %-4d │\n",
		label+":", health, st.Frames, st.MeasuredRate, st.Dropped)
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `├──────────────────────────────────────────────────────┤
│ q:Stop and save                                      │
└──────────────────────────────────────────────────────┘
`
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	m.recording = msg.Recording
	m.elapsed = msg.Elapsed
	if msg.SampleRate > 0 {
		m.sampleRate = msg.SampleRate
		m.channels = msg.Channels
	}
	m.system = msg.System
	m.mic = msg.Mic
}

// StatusMsg updates TUI state
type StatusMsg struct {
	Recording  bool
	Elapsed    time.Duration
	SampleRate float64
	Channels   int
	System     StreamStats
	Mic        StreamStats
}

// StoppedMsg ends the monitor once the recording has finished on its own.
type StoppedMsg struct{}

// Utility functions
func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func channelName(channels int) string {
	if channels == 1 {
		return "Mono"
	}
	return "Stereo"
}
