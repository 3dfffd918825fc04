package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/claudette/internal/chat"
	"github.com/abdul-hamid-achik/claudette/internal/contextfiles"
	chaterrors "github.com/abdul-hamid-achik/claudette/internal/errors"
	"github.com/abdul-hamid-achik/claudette/internal/ui"
)

// askOptions are the flags of the ask command
type askOptions struct {
	files    []string
	model    string
	system   int
	thinking bool
	save     bool
}

func (a *App) askCommand() *cobra.Command {
	var opts askOptions
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question and stream the answer to stdout",
		Long: `Ask one question and stream the answer to stdout.

Input piped on stdin is sent as the selected code the question is about.`,
		Example: `  cat main.go | ` + a.Binary + ` ask "why does this panic?"
  ` + a.Binary + ` ask --context internal/ "where is the config loaded?"`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.ask(cmd.Context(), strings.Join(args, " "), opts)
		},
	}
	cmd.Flags().StringArrayVarP(&opts.files, "context", "f", nil, "Attach a file or directory as context (repeatable)")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Model to use for this question")
	cmd.Flags().IntVar(&opts.system, "system", 0, "System message number to use for this question")
	cmd.Flags().BoolVar(&opts.thinking, "thinking", false, "Show extended thinking on stderr")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Save the exchange as a chat that --continue resumes")
	return cmd
}

// ask streams one answer to stdout
func (a *App) ask(ctx context.Context, question string, opts askOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := a.output()

	var selection string
	if a.stdinIsPipe() {
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		selection = strings.TrimRight(string(data), "\n")
	}
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("no question given, try: %s ask \"explain this\"", a.Binary)
	}
	if opts.system > 0 {
		if err := a.cfg.SetSystemMessageIndex(opts.system - 1); err != nil {
			return fmt.Errorf("no system message %d, %d configured", opts.system, len(a.cfg.SystemMessages))
		}
	}

	spinner := ui.NewSpinner(out)
	client := a.newClient(a.cfg, spinner.WaitCallback())
	if a.cfg.APIKey() == "" {
		return chaterrors.MissingAPIKey(client.Name(), a.cfg.APIKeyEnv())
	}
	if opts.model != "" {
		client.SetModel(opts.model)
	}
	out.ModelInfo(client.GetModel())

	v := chat.NewView(a.Title)
	if len(opts.files) > 0 {
		sum := contextfiles.NewManager(a.cfg.Context.MaxFileSize).AddPaths(v.Files(), opts.files)
		out.Info(sum.Message())
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events := chat.NewAsker(client, a.cfg).Ask(ctx, v, selection, question)
	if events == nil {
		return nil
	}

	var (
		first  error
		status string
	)
	for ev := range events {
		switch ev.Type {
		case chat.EventText:
			out.StreamText(ev.Text)
		case chat.EventThinking:
			if opts.thinking {
				out.StreamThinking(ev.Text)
			}
		case chat.EventStatus:
			status = ev.Text
		case chat.EventError:
			if first == nil {
				first = ev.Err
			}
		case chat.EventDone:
			out.StreamDone()
		}
	}
	if status != "" {
		out.Status(status)
	}

	if opts.save {
		a.saveAsk(v, client.GetModel())
	}

	if errors.Is(first, context.Canceled) {
		out.Warning("Response cancelled")
		return nil
	}
	return first
}

// saveAsk stores a one-shot exchange as a resumable chat
func (a *App) saveAsk(v *chat.View, model string) {
	sessions, err := a.newSessions()
	if err == nil {
		err = sessions.Save(v, string(a.Provider), model)
	}
	if err != nil {
		a.output().Warning("could not save chat: " + chaterrors.Describe(err))
		return
	}
	a.output().Info("Saved as " + v.ID() + ", resume with " + a.Binary + " --continue")
}
