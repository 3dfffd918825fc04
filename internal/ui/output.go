package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abdul-hamid-achik/claudette/internal/ui/highlight"
)

// ANSI color codes
const (
	Reset     = "\033[0m"
	Bold      = "\033[1m"
	Dim       = "\033[2m"
	Italic    = "\033[3m"
	Underline = "\033[4m"

	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Cyan   = "\033[36m"
)

// ANSI cursor control codes
const (
	CursorStart = "\r"      // Move cursor to start of line
	ClearLine   = "\033[2K" // Clear entire line
)

// OutputHandler writes command output, colored when stdout is a terminal
type OutputHandler struct {
	out         io.Writer
	err         io.Writer
	useColors   bool
	highlighter *highlight.Highlighter
}

// NewOutputHandler creates an output handler for stdout and stderr
func NewOutputHandler() *OutputHandler {
	useColors := true
	if fileInfo, err := os.Stdout.Stat(); err != nil || (fileInfo.Mode()&os.ModeCharDevice) == 0 {
		useColors = false
	}
	if os.Getenv("NO_COLOR") != "" {
		useColors = false
	}
	return NewOutputHandlerTo(os.Stdout, os.Stderr, useColors)
}

// NewOutputHandlerTo creates an output handler over explicit writers
func NewOutputHandlerTo(out, errOut io.Writer, useColors bool) *OutputHandler {
	return &OutputHandler{
		out:         out,
		err:         errOut,
		useColors:   useColors,
		highlighter: highlight.New(useColors),
	}
}

// color applies color if colors are enabled
func (o *OutputHandler) color(color, text string) string {
	if !o.useColors {
		return text
	}
	return color + text + Reset
}

// IsTTY returns true if the output is a terminal (not piped/redirected)
func (o *OutputHandler) IsTTY() bool {
	return o.useColors
}

// UseColors returns true if colors are enabled
func (o *OutputHandler) UseColors() bool {
	return o.useColors
}

// Stderr returns the diagnostic writer
func (o *OutputHandler) Stderr() io.Writer { return o.err }

// TextLn outputs regular text with newline
func (o *OutputHandler) TextLn(text string) {
	fmt.Fprintln(o.out, text)
}

// StreamText outputs streaming text without newline
func (o *OutputHandler) StreamText(text string) {
	fmt.Fprint(o.out, text)
}

// StreamThinking outputs streaming thinking text to stderr, dimmed
func (o *OutputHandler) StreamThinking(text string) {
	fmt.Fprint(o.err, o.color(Dim+Italic, text))
}

// StreamDone ends a streamed response
func (o *OutputHandler) StreamDone() {
	fmt.Fprintln(o.out)
}

// Markdown prints a transcript with its code blocks highlighted
func (o *OutputHandler) Markdown(text string) {
	fmt.Fprintln(o.out, o.highlighter.HighlightMarkdownCodeBlocks(text))
}

// Code prints one highlighted code block
func (o *OutputHandler) Code(code, language string) {
	fmt.Fprintln(o.out, o.highlighter.Highlight(code, language))
}

// Error outputs an error message
func (o *OutputHandler) Error(err error) {
	fmt.Fprintln(o.err, o.color(Red+Bold, "Error: ")+err.Error())
}

// ErrorStr outputs an error string
func (o *OutputHandler) ErrorStr(msg string) {
	fmt.Fprintln(o.err, o.color(Red+Bold, "Error: ")+msg)
}

// Warning outputs a warning message
func (o *OutputHandler) Warning(msg string) {
	fmt.Fprintln(o.err, o.color(Yellow+Bold, "Warning: ")+msg)
}

// Success outputs a success message
func (o *OutputHandler) Success(msg string) {
	fmt.Fprintln(o.err, o.color(Green+Bold, "✓ ")+msg)
}

// Info outputs an info message
func (o *OutputHandler) Info(msg string) {
	fmt.Fprintln(o.err, o.color(Blue, "ℹ ")+msg)
}

// Status outputs a dimmed status line, e.g. token usage
func (o *OutputHandler) Status(msg string) {
	fmt.Fprintln(o.err, o.color(Dim, msg))
}

// Header outputs a header
func (o *OutputHandler) Header(text string) {
	fmt.Fprintln(o.out)
	fmt.Fprintln(o.out, o.color(Bold+Underline, text))
	fmt.Fprintln(o.out)
}

// Separator outputs a horizontal line
func (o *OutputHandler) Separator() {
	fmt.Fprintln(o.out, o.color(Dim, strings.Repeat("─", 40)))
}

// ModelInfo outputs the current model info
func (o *OutputHandler) ModelInfo(model string) {
	fmt.Fprintln(o.err, o.color(Dim, "Using model: ")+o.color(Cyan, model))
}

// ListItem outputs one numbered entry, marking the selected one
func (o *OutputHandler) ListItem(n int, text string, selected bool) {
	mark := "  "
	if selected {
		mark = o.color(Green+Bold, "* ")
	}
	fmt.Fprintf(o.out, "%s%s %s\n", mark, o.color(Cyan, fmt.Sprintf("[%d]", n)), text)
}
