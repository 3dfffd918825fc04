// Package cli provides the cobra command tree shared by the claudette and
// gemini-assistant binaries.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/claudette/internal/config"
	"github.com/abdul-hamid-achik/claudette/internal/debug"
	chaterrors "github.com/abdul-hamid-achik/claudette/internal/errors"
	"github.com/abdul-hamid-achik/claudette/internal/llm"
	"github.com/abdul-hamid-achik/claudette/internal/logger"
	"github.com/abdul-hamid-achik/claudette/internal/session"
	"github.com/abdul-hamid-achik/claudette/internal/tui"
	"github.com/abdul-hamid-achik/claudette/internal/ui"
)

var log = logger.WithPrefix("cli")

// LogDir is where per-run log files are written, relative to the working
// directory
const LogDir = ".claudette/logs"

// App holds one binary's identity and the state its commands share
type App struct {
	Provider config.Provider
	Binary   string // e.g. "claudette"
	Title    string // default tab name, e.g. "Claude Chat"
	Version  string

	// global flags
	token     string
	logLevel  string
	noLogFile bool
	trace     bool

	cfg *config.Config

	// replaceable in tests
	stdin       io.Reader
	stdinIsPipe func() bool
	stdout      io.Writer
	stderr      io.Writer
	loadConfig  func(config.Provider) (*config.Config, error)
	newClient   func(*config.Config, llm.WaitCallback) llm.LLMClient
	newSessions func() (*session.Manager, error)
}

// New creates the command state for a binary
func New(provider config.Provider, binary, title, version string) *App {
	return &App{
		Provider:    provider,
		Binary:      binary,
		Title:       title,
		Version:     version,
		stdin:       os.Stdin,
		stdinIsPipe: stdinIsPipe,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		loadConfig:  config.Load,
		newClient:   llm.NewClient,
		newSessions: session.NewManager,
	}
}

// Command builds the root command with every subcommand attached
func (a *App) Command() *cobra.Command {
	var (
		resume    bool
		sessionID string
	)

	root := &cobra.Command{
		Use:   a.Binary,
		Short: a.Title + " in your terminal",
		Long: fmt.Sprintf(`%s is a streaming chat client for %s.

Run it without arguments for the interactive chat, or use 'ask' for a
one-shot answer on stdout.`, a.Binary, a.Title),
		Version:           a.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(resume, sessionID)
		},
	}
	root.SetVersionTemplate(fmt.Sprintf("%s version %s\n", a.Binary, a.Version))
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVar(&a.token, "token", "", "API key, overrides the environment")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug|info|warn|error)")
	root.PersistentFlags().BoolVar(&a.noLogFile, "no-log-file", false, "Do not write a log file under "+LogDir)
	root.PersistentFlags().BoolVar(&a.trace, "debug", false, "Write a JSONL request trace (also "+debug.EnvDebug+"=1)")

	root.Flags().BoolVarP(&resume, "continue", "c", false, "Resume the last saved chat")
	root.Flags().StringVarP(&sessionID, "session", "s", "", "Resume a saved chat by id or id prefix")

	root.AddCommand(
		a.askCommand(),
		a.modelsCommand(),
		a.systemCommand(),
		a.historyCommand(),
		a.sessionsCommand(),
	)
	return root
}

// setup loads configuration and starts logging before any command runs
func (a *App) setup(cmd *cobra.Command, args []string) error {
	if a.cfg == nil {
		cfg, err := a.loadConfig(a.Provider)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	if a.token != "" {
		a.cfg.SetAPIKey(a.token)
	}

	level := a.cfg.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}
	logger.SetLevelFromString(level)
	if !a.noLogFile {
		logger.EnableFileLog(LogDir)
	}
	if a.trace || debug.Requested() {
		if err := debug.Init(); err != nil {
			log.Warn("request trace disabled: %v", err)
		}
	}
	log.Debug("%s %s started, command %q", a.Binary, a.Version, cmd.CommandPath())
	return nil
}

// runTUI opens the chat, optionally resuming a saved session
func (a *App) runTUI(resume bool, sessionID string) error {
	sessions, err := a.newSessions()
	if err != nil {
		log.Warn("sessions disabled: %v", err)
		sessions = nil
	}

	opts := tui.Options{Config: a.cfg, Sessions: sessions, Name: a.Title}
	if sessions != nil && (resume || sessionID != "") {
		var s *session.Session
		if sessionID != "" {
			s, err = sessions.Find(sessionID)
		} else {
			s, err = sessions.GetCurrent()
		}
		if err != nil {
			return err
		}
		if s == nil {
			a.output().Info("No saved chat to continue, starting a new one")
		}
		opts.Resume = s
	}

	// log lines would tear the alternate screen; the log file keeps them
	logger.SetOutput(io.Discard)
	defer logger.SetOutput(a.stderr)
	return tui.Run(opts)
}

// output writes command results to the app's streams
func (a *App) output() *ui.OutputHandler {
	if a.stdout == os.Stdout && a.stderr == os.Stderr {
		return ui.NewOutputHandler()
	}
	return ui.NewOutputHandlerTo(a.stdout, a.stderr, false)
}

// stdinIsPipe reports whether stdin is redirected from a file or pipe
func stdinIsPipe() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice == 0
}

// Execute runs a binary's command tree and returns its exit code
func Execute(provider config.Provider, binary, title, version string) int {
	defer logger.CloseLogFile()
	defer debug.Close()

	app := New(provider, binary, title, version)
	if err := app.Command().Execute(); err != nil {
		app.output().ErrorStr(chaterrors.Describe(err))
		return 1
	}
	return 0
}
