package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/abdul-hamid-achik/claudette/internal/chat"
	"github.com/abdul-hamid-achik/claudette/internal/config"
	"github.com/abdul-hamid-achik/claudette/internal/contextfiles"
	"github.com/abdul-hamid-achik/claudette/internal/llm"
	"github.com/abdul-hamid-achik/claudette/internal/logger"
	"github.com/abdul-hamid-achik/claudette/internal/session"
	"github.com/abdul-hamid-achik/claudette/internal/ui/highlight"
)

var log = logger.WithPrefix("tui")

// AppState represents what the current tab is doing
type AppState int

const (
	StateIdle        AppState = iota // Waiting for user input
	StateStreaming                   // Streaming LLM response
	StateRateLimited                 // Waiting for rate limit to clear
)

// Options configures the chat TUI
type Options struct {
	Config *config.Config
	// Client is built with llm.NewClient when nil.
	Client llm.LLMClient
	// Sessions saves every tab after each response; nil disables saving.
	Sessions *session.Manager
	// Resume is restored as the first tab.
	Resume *session.Session
	// Name titles chat tabs, e.g. "Claude Chat".
	Name string
}

// app holds state shared by every copy of Model
type app struct {
	cfg         *config.Config
	client      llm.LLMClient
	registry    *chat.Registry
	asker       *chat.Asker
	files       *contextfiles.Manager
	watcher     *contextfiles.Watcher
	sessions    *session.Manager
	highlighter *highlight.Highlighter
	markdown    *markdownRenderer

	notify chan tea.Msg
	done   chan struct{}

	streams   map[string]context.CancelFunc // by view id
	closing   map[string]*chat.View         // closed tabs saved once their stream ends
	selection string
	models    []string
	status    string // last usage line
}

// panel is a titled list shown in place of the transcript
type panel struct {
	title string
	lines []string
}

// Model is the main Bubble Tea model for the TUI
type Model struct {
	// Dimensions
	width  int
	height int
	ready  bool

	state    AppState
	quitting bool

	// Components
	viewport  viewport.Model
	textInput textinput.Model
	completer *Completer

	// Spinner state
	spinnerActive bool
	spinnerFrame  int

	rateLimit *rateLimitMsg
	showHelp  bool
	panel     *panel

	// One-line feedback in the status bar, cleared on the next key
	flash    string
	flashErr bool

	app *app
}

// NewModel creates a new TUI model
func NewModel(opts Options) Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	a := &app{
		cfg:         cfg,
		files:       contextfiles.NewManager(cfg.Context.MaxFileSize),
		sessions:    opts.Sessions,
		highlighter: highlight.New(!IsNoColor()),
		markdown:    &markdownRenderer{},
		notify:      make(chan tea.Msg, 16),
		done:        make(chan struct{}),
		streams:     make(map[string]context.CancelFunc),
		closing:     make(map[string]*chat.View),
	}

	a.client = opts.Client
	if a.client == nil {
		a.client = llm.NewClient(cfg, a.waitCallback)
	}
	a.asker = chat.NewAsker(a.client, cfg)

	name := opts.Name
	if name == "" {
		name = a.client.Name() + " Chat"
	}
	a.registry = chat.NewRegistry(name)
	if opts.Resume != nil {
		a.registry.Add(session.Restore(opts.Resume))
		log.Info("resumed session %s", opts.Resume.ID)
	} else {
		a.registry.New()
	}

	if cfg.Context.Watch {
		w, err := contextfiles.NewWatcher(cfg.Context.Debounce, func(paths []string) {
			a.post(filesChangedMsg{paths: paths})
		})
		if err != nil {
			log.Warn("context file watching disabled: %v", err)
		} else {
			a.watcher = w
			a.syncWatcher()
		}
	}

	ti := textinput.New()
	ti.Placeholder = "Ask " + a.client.Name() + "... (/help for commands)"
	ti.Prompt = "" // We render our own prompt in the footer
	ti.Focus()
	ti.CharLimit = 0
	ti.Width = 50

	return Model{
		state:     StateIdle,
		textInput: ti,
		completer: NewCompleter(),
		app:       a,
	}
}

// Init starts the cursor blink and the background message relay
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForNotify(m.app.notify))
}

// post delivers msg to the program from a background goroutine
func (a *app) post(msg tea.Msg) {
	select {
	case a.notify <- msg:
	case <-a.done:
	}
}

// waitCallback shows rate limit waits in the status bar while sleeping
func (a *app) waitCallback(ctx context.Context, info llm.WaitInfo) error {
	go a.post(rateLimitMsg{info: info, until: time.Now().Add(info.Duration)})

	timer := time.NewTimer(info.Duration)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sets returns the context file sets of every open tab
func (a *app) sets() []*contextfiles.Set {
	views := a.registry.Views()
	sets := make([]*contextfiles.Set, len(views))
	for i, v := range views {
		sets[i] = v.Files()
	}
	return sets
}

// syncWatcher watches exactly the files attached to open tabs
func (a *app) syncWatcher() {
	if a.watcher == nil {
		return
	}
	var paths []string
	for _, set := range a.sets() {
		paths = append(paths, set.AbsPaths()...)
	}
	a.watcher.Sync(paths)
}

// save persists v when session saving is on
func (a *app) save(v *chat.View) {
	if a.sessions == nil {
		return
	}
	if err := a.sessions.Save(v, string(a.cfg.Provider), a.client.GetModel()); err != nil {
		log.Warn("failed to save session %s: %v", v.ID(), err)
	}
}

// shutdown cancels running responses, saves every tab and stops the watcher
func (a *app) shutdown() {
	for id, cancel := range a.streams {
		cancel()
		delete(a.streams, id)
	}
	for _, v := range a.registry.Views() {
		a.save(v)
	}
	for id, v := range a.closing {
		a.save(v)
		delete(a.closing, id)
	}
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			log.Debug("watcher close: %v", err)
		}
	}
	select {
	case <-a.done:
	default:
		close(a.done)
	}
}

// current returns the active chat tab
func (m Model) current() *chat.View {
	return m.app.registry.Current()
}

// syncState derives the state from the active tab
func (m *Model) syncState() {
	if _, ok := m.app.streams[m.current().ID()]; ok {
		if m.state == StateIdle {
			m.state = StateStreaming
		}
		return
	}
	m.state = StateIdle
	m.rateLimit = nil
}

// setFlash shows msg in the status bar until the next key press
func (m *Model) setFlash(msg string, isErr bool) {
	m.flash = msg
	m.flashErr = isErr
}
