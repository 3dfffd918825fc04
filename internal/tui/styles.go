package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Nord palette
var (
	colorBg        = lipgloss.Color("#2e3440") // nord0
	colorBgElevate = lipgloss.Color("#3b4252") // nord1
	colorBorder    = lipgloss.Color("#434c5e") // nord2
	colorMuted     = lipgloss.Color("#4c566a") // nord3
	colorText      = lipgloss.Color("#d8dee9") // nord4
	colorTextBold  = lipgloss.Color("#eceff4") // nord6
	colorAccent2   = lipgloss.Color("#8fbcbb") // nord7
	colorAccent    = lipgloss.Color("#88c0d0") // nord8
	colorDim       = lipgloss.Color("#616e88")
	colorError     = lipgloss.Color("#bf616a") // nord11
	colorWarning   = lipgloss.Color("#ebcb8b") // nord13
	colorSuccess   = lipgloss.Color("#a3be8c") // nord14
)

// Styles
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorBgElevate).
			Padding(0, 1)

	headerTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorAccent)

	headerTabStyle = lipgloss.NewStyle().
			Foreground(colorAccent2)

	headerModelStyle = lipgloss.NewStyle().
				Foreground(colorDim)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorBgElevate).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorBg)

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(colorText)

	statsHintStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true)

	inputPromptStyle = lipgloss.NewStyle().
				Foreground(colorSuccess).
				Bold(true)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(colorAccent)

	thinkingStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	markerStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)
)

// Icons
const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "⚠"
	iconUser    = ">"
	iconArrowUp = "↑"
	iconArrowDn = "↓"
)

// Spinner frames (braille pattern)
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// GetSpinnerFrame returns the current spinner frame
func GetSpinnerFrame(frame int) string {
	return spinnerFrames[frame%len(spinnerFrames)]
}

// truncate truncates a string to maxLen runes, adding "..." if truncated
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
