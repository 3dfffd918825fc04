package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abdul-hamid-achik/claudette/internal/chat"
	"github.com/abdul-hamid-achik/claudette/internal/config"
	chaterrors "github.com/abdul-hamid-achik/claudette/internal/errors"
	"github.com/abdul-hamid-achik/claudette/internal/history"
)

// listModelsTimeout bounds /model listing
const listModelsTimeout = 30 * time.Second

// runCommand executes a slash command
func (m Model) runCommand(input string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return m, nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	v := m.current()
	log.Debug("command %s %v", name, args)

	switch name {
	case "/help":
		m.showHelp = true

	case "/quit", "/exit":
		m.quitting = true
		return m, tea.Quit

	case "/new":
		m.switchTo(m.app.registry.New())

	case "/tab":
		n, err := parseIndex(args)
		views := m.app.registry.Views()
		if err != nil || n > len(views) {
			m.setFlash(fmt.Sprintf("No tab %s, %d open", strings.Join(args, " "), len(views)), true)
			break
		}
		m.switchTo(views[n-1])

	case "/tabs":
		m.panel = m.tabsPanel()

	case "/close":
		if v.Streaming() {
			// saved when the cancelled response completes
			m.stopCurrent()
			m.app.closing[v.ID()] = v
		} else {
			m.app.save(v)
		}
		m.app.registry.Close(v.ID())
		m.switchTo(m.current())
		m.app.syncWatcher()

	case "/clear":
		if v.Streaming() {
			m.setFlash("Still answering, press ESC to stop", true)
			break
		}
		v.ClearHistory()
		m.refreshViewport(true)

	case "/reset":
		if v.Streaming() {
			m.setFlash("Still answering, press ESC to stop", true)
			break
		}
		v.Clear()
		m.app.status = ""
		m.refreshViewport(true)

	case "/select":
		if len(args) == 0 {
			m.app.selection = ""
			m.setFlash("Selection cleared", false)
			break
		}
		sel, desc, err := readSelection(strings.Join(args, " "))
		if err != nil {
			m.setFlash(chaterrors.Describe(err), true)
			break
		}
		m.app.selection = sel
		m.setFlash("Selected "+desc+" for the next question", false)

	case "/copy":
		m.copyBlock(args)

	case "/blocks":
		m.panel = m.blocksPanel()

	case "/add":
		if len(args) == 0 {
			m.setFlash("Usage: /add <path...>", true)
			break
		}
		paths := make([]string, len(args))
		for i, a := range args {
			paths[i] = expandHome(a)
		}
		sum := m.app.files.AddPaths(v.Files(), paths)
		v.StatusMessage(sum.Message(), chat.DefaultStatusPrefix)
		m.app.syncWatcher()
		m.refreshViewport(true)

	case "/remove":
		if len(args) == 0 {
			m.setFlash("Usage: /remove <path>", true)
			break
		}
		path := strings.Join(args, " ")
		if !removeFile(v, expandHome(path)) {
			m.setFlash("Not a context file: "+path, true)
			break
		}
		m.app.syncWatcher()
		m.setFlash("Removed "+path+" from context", false)

	case "/context":
		if len(args) > 0 && args[0] == "clear" {
			n := v.Files().Clear()
			m.app.syncWatcher()
			v.StatusMessage(fmt.Sprintf("Cleared %d context files", n), chat.DefaultStatusPrefix)
			m.refreshViewport(true)
			break
		}
		m.panel = m.contextPanel()

	case "/refresh":
		res := m.app.files.Refresh(m.app.sets()...)
		m.app.syncWatcher()
		v.StatusMessage(res.Message(), chat.DefaultStatusPrefix)
		m.refreshViewport(true)

	case "/export":
		path := history.ResolvePath(strings.Join(args, " "))
		if err := history.Export(path, v.History()); err != nil {
			m.setFlash(chaterrors.Describe(err), true)
			break
		}
		m.setFlash("Chat history exported to "+path, false)

	case "/import":
		path := history.ResolvePath(strings.Join(args, " "))
		messages, err := history.Import(path)
		if err != nil {
			m.setFlash(chaterrors.Describe(err), true)
			break
		}
		nv := m.app.registry.New()
		history.Render(nv, messages, m.app.client.Name())
		m.app.save(nv)
		m.switchTo(nv)
		m.setFlash(fmt.Sprintf("Imported %d messages from %s", len(messages), path), false)

	case "/model":
		if len(args) == 0 {
			m.setFlash("Fetching models...", false)
			return m, m.listModels()
		}
		m.selectModel(args[0])

	case "/system":
		if len(args) == 0 {
			m.panel = m.systemPanel()
			break
		}
		m.selectSystemMessage(args)

	default:
		m.setFlash("Unknown command "+name+", try /help", true)
	}

	return m, nil
}

// parseIndex reads a 1-based index from the first argument
func parseIndex(args []string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("missing number")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("number must be positive")
	}
	return n, nil
}

// expandHome expands a leading ~/
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// removeFile detaches path given relative to its context root or the
// working directory
func removeFile(v *chat.View, path string) bool {
	if v.Files().Remove(path) {
		return true
	}
	abs, err := filepath.Abs(path)
	return err == nil && v.Files().Remove(abs)
}

// copyBlock copies code block n, or the last one, to the clipboard
func (m *Model) copyBlock(args []string) {
	markers := m.current().Markers()
	if len(markers) == 0 {
		m.setFlash("No code blocks to copy", true)
		return
	}

	n := len(markers)
	if len(args) > 0 {
		var err error
		if n, err = parseIndex(args); err != nil || n > len(markers) {
			m.setFlash(fmt.Sprintf("No code block %s, %d available", args[0], len(markers)), true)
			return
		}
	}

	marker, _ := m.current().Marker(n)
	if err := copyToClipboard(marker.Block.Content); err != nil {
		log.Warn("copy failed: %v", err)
		m.setFlash(chaterrors.Describe(err), true)
		return
	}
	m.setFlash(fmt.Sprintf("Copied code block %d", n), false)
}

// readSelection reads "file" or "file:from-to" (1-based, inclusive) and
// describes what was read
func readSelection(spec string) (string, string, error) {
	path, from, to := spec, 0, 0
	if i := strings.LastIndex(spec, ":"); i > 0 {
		if a, b, ok := strings.Cut(spec[i+1:], "-"); ok {
			start, err1 := strconv.Atoi(a)
			end, err2 := strconv.Atoi(b)
			if err1 == nil && err2 == nil {
				path, from, to = spec[:i], start, end
			}
		}
	}
	path = expandHome(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", chaterrors.FileReadFailed(path, err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")

	if from == 0 {
		return strings.Join(lines, "\n"), fmt.Sprintf("%d lines of %s", len(lines), filepath.Base(path)), nil
	}
	if from < 1 || to < from || from > len(lines) {
		return "", "", fmt.Errorf("line range %d-%d outside %s (%d lines)", from, to, filepath.Base(path), len(lines))
	}
	if to > len(lines) {
		to = len(lines)
	}
	return strings.Join(lines[from-1:to], "\n"), fmt.Sprintf("lines %d-%d of %s", from, to, filepath.Base(path)), nil
}

// listModels fetches the provider's models in the background
func (m Model) listModels() tea.Cmd {
	client := m.app.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), listModelsTimeout)
		defer cancel()
		models, err := client.ListModels(ctx)
		return modelsMsg{models: models, err: err}
	}
}

// showModels lists fetched models in a panel
func (m *Model) showModels(msg modelsMsg) {
	m.flash = ""
	if msg.err != nil {
		log.Error("list models: %v", msg.err)
		m.setFlash(chaterrors.Describe(msg.err), true)
		return
	}
	m.app.models = msg.models

	current := m.app.client.GetModel()
	lines := make([]string, len(msg.models))
	for i, name := range msg.models {
		lines[i] = listLine(i+1, name, name == current)
	}
	lines = append(lines, "", "Pick one with /model <n>")
	m.panel = &panel{title: "Models", lines: lines}
}

// selectModel switches model by list number or name and persists it
func (m *Model) selectModel(arg string) {
	name := arg
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(m.app.models) {
			m.setFlash("No model "+arg+", list them with /model", true)
			return
		}
		name = m.app.models[n-1]
	}

	m.app.client.SetModel(name)
	m.app.cfg.SetModel(name)
	if err := m.app.cfg.Save(); err != nil {
		log.Warn("failed to save model choice: %v", err)
		m.setFlash("Using "+name+" (not saved: "+chaterrors.Describe(err)+")", true)
		return
	}
	m.panel = nil
	m.setFlash("Model set to "+name, false)
}

// selectSystemMessage picks system message n and persists the choice
func (m *Model) selectSystemMessage(args []string) {
	n, err := parseIndex(args)
	if err == nil {
		err = m.app.cfg.SetSystemMessageIndex(n - 1)
	}
	if err != nil {
		m.setFlash(fmt.Sprintf("No system message %s, %d configured", strings.Join(args, " "), len(m.app.cfg.SystemMessages)), true)
		return
	}
	if err := m.app.cfg.Save(); err != nil {
		log.Warn("failed to save system message choice: %v", err)
	}
	msg, _ := m.app.cfg.SystemMessage()
	m.setFlash("System message: "+config.SystemMessageLabel(msg), false)
}
