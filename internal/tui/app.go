package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/abdul-hamid-achik/claudette/internal/chat"
)

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Header: 1 line, Footer: 2 lines (status bar + input line)
		viewportHeight := m.height - 3
		if viewportHeight < 1 {
			viewportHeight = 1
		}

		if !m.ready {
			m.viewport = viewport.New(m.width, viewportHeight)
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = viewportHeight
		}
		m.textInput.Width = m.width - 4
		m.refreshViewport(true)
		return m, nil

	case chatEventMsg:
		return m.handleChatEvent(msg)

	case filesChangedMsg:
		m.handleFilesChanged(msg.paths)
		return m, waitForNotify(m.app.notify)

	case rateLimitMsg:
		if _, ok := m.app.streams[m.current().ID()]; ok {
			m.state = StateRateLimited
			m.rateLimit = &msg
		}
		spin := m.startSpinner()
		return m, tea.Batch(waitForNotify(m.app.notify), spin)

	case modelsMsg:
		m.showModels(msg)
		return m, nil

	case TickMsg:
		if !m.spinnerActive {
			return m, nil
		}
		if !m.anyStreaming() {
			m.spinnerActive = false
			return m, nil
		}
		m.spinnerFrame++
		return m, tickCmd()

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	m.textInput, cmd = m.textInput.Update(msg)
	cmds = append(cmds, cmd)

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleKeyPress handles keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.flash = ""

	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "f1":
		m.showHelp = !m.showHelp
		return m, nil

	case "esc":
		switch {
		case m.showHelp:
			m.showHelp = false
		case m.panel != nil:
			m.panel = nil
		case m.completer.IsActive():
			m.completer.Dismiss()
		default:
			m.stopCurrent()
		}
		return m, nil

	case "ctrl+n":
		return m.runCommand("/new")

	case "ctrl+y":
		return m.runCommand("/copy")

	case "ctrl+left", "ctrl+right":
		m.cycleTab(msg.String() == "ctrl+right")
		return m, nil

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.completer.IsActive() {
		switch msg.Type {
		case tea.KeyUp:
			m.completer.MoveUp()
			return m, nil
		case tea.KeyDown:
			m.completer.MoveDown()
			return m, nil
		case tea.KeyTab, tea.KeyEnter:
			accepted := m.completer.Accept()
			if accepted == "" {
				break
			}
			if strings.HasSuffix(accepted, " ") || msg.Type == tea.KeyTab {
				m.textInput.SetValue(accepted)
				m.textInput.CursorEnd()
				return m, nil
			}
			m.textInput.Reset()
			return m.submit(accepted)
		}
	}

	switch msg.Type {
	case tea.KeyEnter:
		input := strings.TrimSpace(m.textInput.Value())
		if input == "" {
			return m, nil
		}
		m.textInput.Reset()
		m.completer.Dismiss()
		return m.submit(input)

	case tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	m.completer.Update(m.textInput.Value())
	return m, cmd
}

// submit runs a slash command or asks a question in the current tab
func (m Model) submit(input string) (tea.Model, tea.Cmd) {
	m.panel = nil
	if strings.HasPrefix(input, "/") {
		return m.runCommand(input)
	}
	return m.ask(input)
}

// ask streams an answer to question into the current tab
func (m Model) ask(question string) (tea.Model, tea.Cmd) {
	v := m.current()
	if v.Streaming() {
		m.setFlash("Still answering, press ESC to stop", true)
		return m, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	events := m.app.asker.Ask(ctx, v, m.app.selection, question)
	if events == nil {
		cancel()
		m.refreshViewport(true)
		return m, nil
	}

	m.app.selection = ""
	m.app.streams[v.ID()] = cancel
	m.state = StateStreaming
	m.refreshViewport(true)
	spin := m.startSpinner()
	return m, tea.Batch(waitForEvent(events), spin)
}

// stopCurrent cancels the response streaming into the current tab
func (m *Model) stopCurrent() {
	if cancel, ok := m.app.streams[m.current().ID()]; ok {
		log.Info("response cancelled in %s", m.current().ID())
		cancel()
	}
}

// handleChatEvent applies one streaming event
func (m Model) handleChatEvent(msg chatEventMsg) (tea.Model, tea.Cmd) {
	if msg.closed {
		return m, nil
	}
	ev := msg.event
	isCurrent := ev.ViewID == m.current().ID()

	switch ev.Type {
	case chat.EventText:
		if isCurrent {
			m.state = StateStreaming
			m.rateLimit = nil
		}
	case chat.EventStatus:
		m.app.status = ev.Text
	case chat.EventError:
		log.Warn("response error in %s: %v", ev.ViewID, ev.Err)
	case chat.EventDone:
		if cancel, ok := m.app.streams[ev.ViewID]; ok {
			cancel()
			delete(m.app.streams, ev.ViewID)
		}
		for _, v := range m.app.registry.Views() {
			if v.ID() == ev.ViewID {
				m.app.save(v)
			}
		}
		if v, ok := m.app.closing[ev.ViewID]; ok {
			m.app.save(v)
			delete(m.app.closing, ev.ViewID)
		}
		m.syncState()
		if isCurrent {
			m.refreshViewport(false)
		}
		return m, nil
	}

	if isCurrent {
		m.refreshViewport(false)
	}
	return m, waitForEvent(msg.events)
}

// handleFilesChanged rereads attached files after they change on disk
func (m *Model) handleFilesChanged(paths []string) {
	log.Debug("context files changed: %v", paths)
	res := m.app.files.Refresh(m.app.sets()...)
	if res.Updated == 0 && res.Removed == 0 {
		return
	}
	m.current().StatusMessage(res.Message(), chat.DefaultStatusPrefix)
	m.app.syncWatcher()
	m.refreshViewport(false)
}

// cycleTab activates the next or previous tab
func (m *Model) cycleTab(forward bool) {
	views := m.app.registry.Views()
	if len(views) < 2 {
		return
	}
	i := m.app.registry.Index(m.current().ID()) - 1
	if forward {
		i = (i + 1) % len(views)
	} else {
		i = (i - 1 + len(views)) % len(views)
	}
	m.switchTo(views[i])
}

// switchTo activates v and shows it
func (m *Model) switchTo(v *chat.View) {
	m.app.registry.Activate(v.ID())
	m.panel = nil
	m.syncState()
	m.refreshViewport(true)
}

// refreshViewport rerenders the current transcript. The view follows new
// output when follow is set or it was already at the bottom.
func (m *Model) refreshViewport(follow bool) {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript(m.current()))
	if follow || atBottom {
		m.viewport.GotoBottom()
	}
}

// startSpinner starts the spinner animation if not already running
func (m *Model) startSpinner() tea.Cmd {
	if m.spinnerActive {
		return nil
	}
	m.spinnerActive = true
	return tickCmd()
}

// anyStreaming reports whether some tab is still answering
func (m Model) anyStreaming() bool {
	return len(m.app.streams) > 0
}
