package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/claudette/internal/config"
)

const listModelsTimeout = 30 * time.Second

func (a *App) modelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models [n|name]",
		Short: "List available models, or pick the default one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return a.models(ctx, args)
		},
	}
}

// models lists the provider's models, marking the configured one. With an
// argument, the model with that list number or name becomes the default.
func (a *App) models(ctx context.Context, args []string) error {
	out := a.output()
	if a.cfg.APIKey() == "" && len(args) == 0 {
		out.Warning(fmt.Sprintf("%s is not set, listing may fail", a.cfg.APIKeyEnv()))
	}

	ctx, cancel := context.WithTimeout(ctx, listModelsTimeout)
	defer cancel()

	client := a.newClient(a.cfg, nil)
	names, err := client.ListModels(ctx)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		name := args[0]
		if n, err := strconv.Atoi(name); err == nil {
			if n < 1 || n > len(names) {
				return fmt.Errorf("no model %d, %d available", n, len(names))
			}
			name = names[n-1]
		}
		a.cfg.SetModel(name)
		if err := a.cfg.Save(); err != nil {
			return err
		}
		out.Success("Model set to " + name)
		return nil
	}

	current := client.GetModel()
	for i, name := range names {
		out.ListItem(i+1, name, name == current)
	}
	return nil
}

func (a *App) systemCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "system [n]",
		Short: "List configured system messages, or pick the default one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.system(args)
		},
	}
}

// system lists system messages or selects one by number
func (a *App) system(args []string) error {
	out := a.output()
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || a.cfg.SetSystemMessageIndex(n-1) != nil {
			return fmt.Errorf("no system message %s, %d configured", args[0], len(a.cfg.SystemMessages))
		}
		if err := a.cfg.Save(); err != nil {
			return err
		}
		msg, _ := a.cfg.SystemMessage()
		out.Success("System message: " + config.SystemMessageLabel(msg))
		return nil
	}

	if len(a.cfg.SystemMessages) == 0 {
		out.Info("No system messages configured in " + a.cfg.ConfigPath())
		return nil
	}
	for i, msg := range a.cfg.SystemMessages {
		out.ListItem(i+1, config.SystemMessageLabel(msg), i == a.cfg.DefaultSystemMessageIndex)
	}
	return nil
}
