// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program for the recording monitor
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the monitor. The caller feeds it StatusMsg updates via
// Program.Send and a StoppedMsg when the recording ends on its own; the
// program returns when the user quits or a StoppedMsg arrives.
func Run(outputDir string) *tea.Program {
	return tea.NewProgram(NewModel(outputDir), tea.WithAltScreen())
}
