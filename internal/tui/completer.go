package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// CommandDef defines a slash command for autocomplete
type CommandDef struct {
	Name        string // e.g., "/help"
	Description string // e.g., "Show available commands"
	HasArgs     bool   // Whether the command accepts arguments
	ArgHint     string // e.g., "<goal>" or "<tier>"
}

// BuiltinCommands is the list of all built-in slash commands
var BuiltinCommands = []CommandDef{
	{Name: "/help", Description: "Show commands and shortcuts"},
	{Name: "/new", Description: "Open a new chat tab"},
	{Name: "/tab", Description: "Switch to a chat tab", HasArgs: true, ArgHint: "<n>"},
	{Name: "/tabs", Description: "List open chat tabs"},
	{Name: "/close", Description: "Close the current chat tab"},
	{Name: "/clear", Description: "Clear chat history, keep the transcript"},
	{Name: "/reset", Description: "Clear transcript and history"},
	{Name: "/select", Description: "Send file lines with the next question", HasArgs: true, ArgHint: "<file[:from-to]>"},
	{Name: "/copy", Description: "Copy a code block to the clipboard", HasArgs: true, ArgHint: "[n]"},
	{Name: "/blocks", Description: "List code blocks in this chat"},
	{Name: "/add", Description: "Attach files or directories as context", HasArgs: true, ArgHint: "<path...>"},
	{Name: "/remove", Description: "Detach a context file", HasArgs: true, ArgHint: "<path>"},
	{Name: "/context", Description: "Show context files, or clear them", HasArgs: true, ArgHint: "[clear]"},
	{Name: "/refresh", Description: "Reload context files from disk"},
	{Name: "/export", Description: "Export chat history to JSON", HasArgs: true, ArgHint: "[file]"},
	{Name: "/import", Description: "Import chat history into a new tab", HasArgs: true, ArgHint: "[file]"},
	{Name: "/model", Description: "List models, or switch model", HasArgs: true, ArgHint: "[n|name]"},
	{Name: "/system", Description: "List system messages, or pick one", HasArgs: true, ArgHint: "[n]"},
	{Name: "/quit", Description: "Exit"},
}

// Completer provides slash command autocomplete functionality
type Completer struct {
	allCommands  []CommandDef
	filtered     []CommandDef
	selected     int
	active       bool
	maxVisible   int // Maximum visible items in dropdown
	scrollOffset int
}

// NewCompleter creates a new Completer with builtin commands
func NewCompleter() *Completer {
	return &Completer{
		allCommands: BuiltinCommands,
		maxVisible:  8,
	}
}

// Update updates the completer state based on the current input text
func (c *Completer) Update(input string) {
	// Only activate when input starts with "/" and has no space (not typing args)
	if !strings.HasPrefix(input, "/") || strings.Contains(input, " ") {
		c.active = false
		c.filtered = nil
		c.selected = 0
		c.scrollOffset = 0
		return
	}

	// Filter commands by prefix (case-insensitive)
	prefix := strings.ToLower(input)
	var filtered []CommandDef
	for _, cmd := range c.allCommands {
		if strings.HasPrefix(strings.ToLower(cmd.Name), prefix) {
			filtered = append(filtered, cmd)
		}
	}

	c.filtered = filtered
	c.active = len(filtered) > 0

	// Reset selection if it's out of bounds
	if c.selected >= len(c.filtered) {
		c.selected = 0
		c.scrollOffset = 0
	}
}

// IsActive returns whether the completer dropdown should be shown
func (c *Completer) IsActive() bool {
	return c.active
}

// MoveUp moves the selection up
func (c *Completer) MoveUp() {
	if !c.active || len(c.filtered) == 0 {
		return
	}
	c.selected--
	if c.selected < 0 {
		c.selected = len(c.filtered) - 1
		// Scroll to show the last item
		if len(c.filtered) > c.maxVisible {
			c.scrollOffset = len(c.filtered) - c.maxVisible
		}
	}
	// Adjust scroll to keep selection visible
	if c.selected < c.scrollOffset {
		c.scrollOffset = c.selected
	}
}

// MoveDown moves the selection down
func (c *Completer) MoveDown() {
	if !c.active || len(c.filtered) == 0 {
		return
	}
	c.selected++
	if c.selected >= len(c.filtered) {
		c.selected = 0
		c.scrollOffset = 0
	}
	// Adjust scroll to keep selection visible
	if c.selected >= c.scrollOffset+c.maxVisible {
		c.scrollOffset = c.selected - c.maxVisible + 1
	}
}

// Accept returns the selected command name and dismisses the dropdown.
// Returns empty string if nothing is selected.
func (c *Completer) Accept() string {
	if !c.active || len(c.filtered) == 0 {
		return ""
	}
	cmd := c.filtered[c.selected]
	c.Dismiss()
	if cmd.HasArgs {
		return cmd.Name + " "
	}
	return cmd.Name
}

// Dismiss hides the dropdown
func (c *Completer) Dismiss() {
	c.active = false
	c.filtered = nil
	c.selected = 0
	c.scrollOffset = 0
}

// VisibleCount returns how many items are visible in the dropdown
func (c *Completer) VisibleCount() int {
	if len(c.filtered) < c.maxVisible {
		return len(c.filtered)
	}
	return c.maxVisible
}

// Render renders the dropdown popup. Returns empty string if not active.
func (c *Completer) Render(width int) string {
	if !c.active || len(c.filtered) == 0 {
		return ""
	}

	var lines []string
	visible := c.VisibleCount()
	for i := c.scrollOffset; i < c.scrollOffset+visible && i < len(c.filtered); i++ {
		cmd := c.filtered[i]

		// Build the line: name + arg hint + description
		name := cmd.Name
		if cmd.HasArgs && cmd.ArgHint != "" {
			name += " " + cmd.ArgHint
		}

		// Pad name to fixed width for alignment
		nameWidth := 22
		if len(name) < nameWidth {
			name += strings.Repeat(" ", nameWidth-len(name))
		}

		line := name + " " + cmd.Description

		// Truncate if too long
		maxLineWidth := width - 4
		if maxLineWidth < 20 {
			maxLineWidth = 20
		}
		if len(line) > maxLineWidth {
			line = line[:maxLineWidth-3] + "..."
		}

		if i == c.selected {
			lines = append(lines, completerSelectedStyle.Render(line))
		} else {
			lines = append(lines, completerItemStyle.Render(line))
		}
	}

	// Add scroll indicators
	if c.scrollOffset > 0 {
		lines = append([]string{completerScrollStyle.Render("  ▲ more")}, lines...)
	}
	if c.scrollOffset+visible < len(c.filtered) {
		lines = append(lines, completerScrollStyle.Render("  ▼ more"))
	}

	content := strings.Join(lines, "\n")
	return completerBoxStyle.Width(width).Render(content)
}

// Completer styles
var (
	completerBoxStyle = lipgloss.NewStyle().
				Background(colorBgElevate).
				Foreground(colorText).
				Padding(0, 1)

	completerItemStyle = lipgloss.NewStyle().
				Foreground(colorText)

	completerSelectedStyle = lipgloss.NewStyle().
				Foreground(colorTextBold).
				Background(colorBorder).
				Bold(true)

	completerScrollStyle = lipgloss.NewStyle().
				Foreground(colorDim)
)
