package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abdul-hamid-achik/claudette/internal/chat"
	"github.com/abdul-hamid-achik/claudette/internal/llm"
)

// chatEventMsg carries one event from a streaming response
type chatEventMsg struct {
	events <-chan chat.Event
	event  chat.Event
	closed bool
}

// filesChangedMsg reports context files modified on disk
type filesChangedMsg struct {
	paths []string
}

// rateLimitMsg reports a rate limit or retry wait
type rateLimitMsg struct {
	info  llm.WaitInfo
	until time.Time
}

// modelsMsg carries the result of listing models
type modelsMsg struct {
	models []string
	err    error
}

// TickMsg is sent for spinner animation
type TickMsg struct{}

// QuitMsg signals the TUI to quit
type QuitMsg struct{}

// waitForEvent reads the next event of a response
func waitForEvent(events <-chan chat.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		return chatEventMsg{events: events, event: ev, closed: !ok}
	}
}

// waitForNotify relays messages posted from background goroutines
func waitForNotify(notify <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-notify
	}
}

// tickCmd returns a command that sends a tick after a delay
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}
