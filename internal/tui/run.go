package tui

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the chat TUI and blocks until it exits. Every tab is saved
// on the way out.
func Run(opts Options) error {
	if !IsTTYAvailable() {
		return fmt.Errorf("TUI mode requires a terminal")
	}

	model := NewModel(opts)
	defer model.app.shutdown()

	// No mouse capture to allow native text selection
	program := tea.NewProgram(model, tea.WithAltScreen())

	log.Info("starting chat TUI with %s", model.app.client.GetModel())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// IsTTYAvailable checks if the terminal supports TUI mode.
// NO_COLOR disables colors but does not prevent the TUI from launching.
func IsTTYAvailable() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fileInfo.Mode()&os.ModeCharDevice != 0
}

// IsNoColor returns true if the NO_COLOR environment variable is set,
// indicating that color output should be suppressed.
func IsNoColor() bool {
	return os.Getenv("NO_COLOR") != ""
}
