package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/claudette/internal/chat"
	"github.com/abdul-hamid-achik/claudette/internal/history"
)

func (a *App) historyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Export or import chat history files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "export <session> [file]",
		Short: "Write a saved chat's messages to a JSON history file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := ""
			if len(args) == 2 {
				file = args[1]
			}
			return a.exportHistory(args[0], file)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Load a JSON history file as a new saved chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.importHistory(args[0])
		},
	})
	return cmd
}

// historyPath keeps paths given on the command line relative to the working
// directory; without one the last used directory is chosen
func historyPath(file string) string {
	if file == "" {
		return history.ResolvePath("")
	}
	if abs, err := filepath.Abs(file); err == nil {
		return abs
	}
	return file
}

// exportHistory writes the messages of a saved session to file
func (a *App) exportHistory(id, file string) error {
	sessions, err := a.newSessions()
	if err != nil {
		return err
	}
	s, err := sessions.Find(id)
	if err != nil {
		return err
	}

	path := historyPath(file)
	if err := history.Export(path, s.Messages); err != nil {
		return err
	}
	a.output().Success(fmt.Sprintf("Exported %d messages to %s", len(s.Messages), path))
	return nil
}

// importHistory saves the messages of a history file as a new session
func (a *App) importHistory(file string) error {
	path := historyPath(file)
	messages, err := history.Import(path)
	if err != nil {
		return err
	}

	sessions, err := a.newSessions()
	if err != nil {
		return err
	}
	v := chat.NewView(a.Title)
	history.Render(v, messages, a.assistant())
	if err := sessions.Save(v, string(a.Provider), a.cfg.Model()); err != nil {
		return err
	}

	a.output().Success(fmt.Sprintf("Imported %d messages from %s", len(messages), path))
	a.output().Info(fmt.Sprintf("Resume with %s --session %s", a.Binary, v.ID()))
	return nil
}

// assistant is the name transcripts give the provider's answers
func (a *App) assistant() string {
	return a.newClient(a.cfg, nil).Name()
}
