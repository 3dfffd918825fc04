package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/abdul-hamid-achik/claudette/internal/chat"
	"github.com/abdul-hamid-achik/claudette/internal/codeblock"
	"github.com/abdul-hamid-achik/claudette/internal/config"
)

// View renders the entire TUI
func (m Model) View() string {
	if !m.ready {
		return "\n  Initializing...\n"
	}
	if m.quitting {
		return "Goodbye!\n"
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderBody())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

// renderBody renders the transcript, or the help overlay or a panel in its
// place, with the autocomplete dropdown over its last lines
func (m Model) renderBody() string {
	var body string
	switch {
	case m.showHelp:
		body = renderHelpOverlay(m.width, m.viewport.Height)
	case m.panel != nil:
		body = m.renderPanel(*m.panel)
	default:
		body = m.viewport.View()
	}

	dropdown := m.completer.Render(m.width)
	if dropdown == "" {
		return body
	}
	lines := strings.Split(body, "\n")
	keep := len(lines) - lipgloss.Height(dropdown)
	if keep < 0 {
		keep = 0
	}
	return strings.Join(append(lines[:keep], dropdown), "\n")
}

// renderHeader renders the header bar
func (m Model) renderHeader() string {
	v := m.current()
	title := headerTitleStyle.Render(v.Name())

	tabs := ""
	if n := len(m.app.registry.Views()); n > 1 {
		tabs = headerTabStyle.Render(fmt.Sprintf(" [%d/%d]", m.app.registry.Index(v.ID()), n))
	}
	model := headerModelStyle.Render("Model: " + m.app.client.GetModel())

	leftPart := title + tabs
	availWidth := m.width - lipgloss.Width(leftPart) - lipgloss.Width(model) - 4
	if availWidth < 0 {
		availWidth = 0
	}
	return headerStyle.Width(m.width).Render(leftPart + strings.Repeat(" ", availWidth) + model)
}

// renderFooter renders the status bar and the input line
func (m Model) renderFooter() string {
	prompt := inputPromptStyle.Render(iconUser + " ")
	return m.renderStatusBar() + "\n" + footerStyle.Width(m.width).Render(prompt+m.textInput.View())
}

// renderStatusBar renders activity, usage and hints
func (m Model) renderStatusBar() string {
	var parts []string
	v := m.current()

	switch {
	case m.flash != "" && m.flashErr:
		parts = append(parts, errorStyle.Render(iconError+" "+m.flash))
	case m.flash != "":
		parts = append(parts, successStyle.Render(iconSuccess+" ")+statsValueStyle.Render(m.flash))
	case m.state == StateRateLimited && m.rateLimit != nil:
		parts = append(parts, warningStyle.Render(rateLimitText(m.rateLimit, time.Now())))
	case m.state == StateStreaming:
		frame := GetSpinnerFrame(m.spinnerFrame)
		parts = append(parts, spinnerStyle.Render(frame+" ")+thinkingStyle.Render("Responding..."))
	case m.app.status != "":
		parts = append(parts, statsValueStyle.Render(m.app.status))
	}

	if stats := v.Stats(); stats.InputTokens > 0 || stats.OutputTokens > 0 {
		tokens := fmt.Sprintf("%s%s %s%s",
			statsValueStyle.Render(iconArrowUp),
			statsLabelStyle.Render(formatTokenCount(int64(stats.InputTokens))),
			statsValueStyle.Render(iconArrowDn),
			statsLabelStyle.Render(formatTokenCount(int64(stats.OutputTokens))))
		if stats.Cost > 0 {
			tokens += statsLabelStyle.Render(fmt.Sprintf(" $%.4f", stats.Cost))
		}
		parts = append(parts, tokens)
	}

	if n := v.Files().Len(); n > 0 {
		parts = append(parts, statsLabelStyle.Render(fmt.Sprintf("%d files ~%s tokens", n, formatTokenCount(int64(v.Files().Tokens())))))
	}
	if m.app.selection != "" {
		parts = append(parts, warningStyle.Render(fmt.Sprintf("selection: %d lines", strings.Count(m.app.selection, "\n")+1)))
	}

	if m.state != StateIdle {
		parts = append(parts, statsHintStyle.Render("ESC to stop"))
	} else {
		parts = append(parts, statsHintStyle.Render("/help"))
	}

	return statusBarStyle.Width(m.width).Padding(0, 1).Render(strings.Join(parts, "   "))
}

// rateLimitText describes a rate limit wait, e.g.
// "API returned 429: 12s (2/5)"
func rateLimitText(rl *rateLimitMsg, now time.Time) string {
	reason := rl.info.Reason
	if reason == "" {
		reason = "Rate limited"
	}
	text := fmt.Sprintf("%s: %s", reason, formatDuration(rl.until.Sub(now)))
	if rl.info.Attempt > 0 {
		text += fmt.Sprintf(" (%d/%d)", rl.info.Attempt, rl.info.MaxAttempts)
	}
	return text
}

// renderTranscript renders a tab's markdown transcript
func (m Model) renderTranscript(v *chat.View) string {
	text := v.Transcript()
	if strings.TrimSpace(text) == "" {
		return m.welcome()
	}
	if m.app.cfg.Chat.ShowMarkers {
		text = v.Annotated(copyLabel)
	}
	return m.app.markdown.Render(text, m.wrapWidth())
}

// copyLabel puts a marker on its own line below a code block's closing
// fence, so the fence still closes the block
func copyLabel(mk codeblock.Marker) string {
	return fmt.Sprintf("\n`[copy %d]`", mk.Number)
}

// wrapWidth is the configured word wrap or the terminal width
func (m Model) wrapWidth() int {
	if w := m.app.cfg.Chat.WordWrap; w > 0 {
		return w
	}
	if m.width > 4 {
		return m.width - 2
	}
	return 80
}

// welcome is shown in an empty tab
func (m Model) welcome() string {
	var b strings.Builder
	b.WriteString("\n  " + headerTitleStyle.Render(m.current().Name()) + "\n\n")
	b.WriteString(statsLabelStyle.Render("  Type a question and press Enter. /add attaches files, /help lists commands.") + "\n")
	if msg, ok := m.app.cfg.SystemMessage(); ok {
		b.WriteString(statsLabelStyle.Render("  System: "+config.SystemMessageLabel(msg)) + "\n")
	}
	return b.String()
}

// renderPanel renders a titled list in the body area
func (m Model) renderPanel(p panel) string {
	lines := append([]string{overlayTitleStyle.Render(p.title), ""}, p.lines...)
	lines = append(lines, "", overlayHintStyle.Render("ESC to close"))

	width := m.width - 4
	if width < 20 {
		width = 20
	}
	box := overlayBoxStyle.Width(width).Render(strings.Join(lines, "\n"))
	return lipgloss.Place(m.width, m.viewport.Height, lipgloss.Left, lipgloss.Top, box)
}

// listLine renders one numbered panel entry, marking the selected one
func listLine(n int, text string, selected bool) string {
	mark := "  "
	if selected {
		mark = successStyle.Render("* ")
	}
	return mark + markerStyle.Render(fmt.Sprintf("[%d]", n)) + " " + text
}

// tabsPanel lists open chat tabs
func (m Model) tabsPanel() *panel {
	current := m.current().ID()
	var lines []string
	for i, v := range m.app.registry.Views() {
		text := fmt.Sprintf("%s  %s  %d messages", v.Name(), truncateID(v.ID()), len(v.History()))
		if n := v.Files().Len(); n > 0 {
			text += fmt.Sprintf(", %d files", n)
		}
		if v.Streaming() {
			text += thinkingStyle.Render("  answering")
		}
		lines = append(lines, listLine(i+1, text, v.ID() == current))
	}
	lines = append(lines, "", "Switch with /tab <n>")
	return &panel{title: "Chat tabs", lines: lines}
}

// truncateID shortens a tab id for display
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// blocksPanel lists the code blocks of the current tab with a preview
func (m Model) blocksPanel() *panel {
	markers := m.current().Markers()
	if len(markers) == 0 {
		return &panel{title: "Code blocks", lines: []string{"No code blocks yet"}}
	}
	var lines []string
	for _, mk := range markers {
		lang := mk.Block.Language
		if lang == "" {
			lang = "text"
		}
		n := strings.Count(mk.Block.Content, "\n") + 1
		lines = append(lines, listLine(mk.Number, fmt.Sprintf("%s, %d lines", lang, n), false))

		first, _, _ := strings.Cut(mk.Block.Content, "\n")
		width := m.width - 12
		if width < 20 {
			width = 60
		}
		preview := m.app.highlighter.Highlight(truncate(first, width), mk.Block.Language)
		lines = append(lines, "      "+preview)
	}
	lines = append(lines, "", "Copy with /copy <n>")
	return &panel{title: "Code blocks", lines: lines}
}

// contextPanel lists the files attached to the current tab
func (m Model) contextPanel() *panel {
	set := m.current().Files()
	files := set.List()
	if len(files) == 0 {
		return &panel{title: "Context files", lines: []string{"No files attached, use /add <path>"}}
	}
	lines := make([]string, 0, len(files)+2)
	for i, f := range files {
		lines = append(lines, listLine(i+1, fmt.Sprintf("%s  %s tokens", f.RelPath, formatTokenCount(int64(f.Tokens))), false))
	}
	lines = append(lines, "", fmt.Sprintf("Total ~%s tokens. /remove <path> detaches, /context clear drops all", formatTokenCount(int64(set.Tokens()))))
	return &panel{title: "Context files", lines: lines}
}

// systemPanel lists the configured system messages
func (m Model) systemPanel() *panel {
	cfg := m.app.cfg
	if len(cfg.SystemMessages) == 0 {
		return &panel{title: "System messages", lines: []string{"No system messages configured"}}
	}
	lines := make([]string, 0, len(cfg.SystemMessages)+2)
	for i, msg := range cfg.SystemMessages {
		lines = append(lines, listLine(i+1, config.SystemMessageLabel(msg), i == cfg.DefaultSystemMessageIndex))
	}
	lines = append(lines, "", "Pick one with /system <n>")
	return &panel{title: "System messages", lines: lines}
}

// formatDuration formats a duration as a human-readable string
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	if minutes >= 60 {
		hours := minutes / 60
		minutes = minutes % 60
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm%ds", minutes, seconds)
}

// formatTokenCount formats a token count with K suffix for thousands
func formatTokenCount(count int64) string {
	if count < 1000 {
		return fmt.Sprintf("%d", count)
	}
	return fmt.Sprintf("%.1fk", float64(count)/1000)
}
