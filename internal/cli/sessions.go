package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/claudette/internal/session"
)

func (a *App) sessionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "List, show or delete saved chats",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listSessions()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved chats, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listSessions()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved chat's transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.showSession(args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved chat",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.deleteSession(args[0])
		},
	})
	return cmd
}

func (a *App) listSessions() error {
	sessions, err := a.newSessions()
	if err != nil {
		return err
	}
	infos, err := sessions.List()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		a.output().Info("No saved chats")
		return nil
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUPDATED\tMODEL\tMESSAGES\tFIRST QUESTION")
	for _, s := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			shortID(s.ID), session.FormatRelativeTime(s.UpdatedAt), s.Model, s.MsgCount, s.Preview)
	}
	return w.Flush()
}

func (a *App) showSession(id string) error {
	sessions, err := a.newSessions()
	if err != nil {
		return err
	}
	s, err := sessions.Find(id)
	if err != nil {
		return err
	}

	out := a.output()
	out.Header(fmt.Sprintf("%s  %s  %s", s.Name, shortID(s.ID), s.Model))
	out.Markdown(session.Restore(s).Transcript())
	if s.Stats.InputTokens > 0 || s.Stats.OutputTokens > 0 {
		out.Status(fmt.Sprintf("%d input / %d output tokens, $%.4f",
			s.Stats.InputTokens, s.Stats.OutputTokens, s.Stats.Cost))
	}
	return nil
}

func (a *App) deleteSession(id string) error {
	sessions, err := a.newSessions()
	if err != nil {
		return err
	}
	s, err := sessions.Find(id)
	if err != nil {
		return err
	}
	if err := sessions.Delete(s.ID); err != nil {
		return err
	}
	a.output().Success("Deleted " + s.ID)
	return nil
}

// shortID is enough of a session id for Find to match it
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
