package commands

import (
	"context"
	"fmt"

	"github.com/robalyx/relay/internal/setup"
	"github.com/urfave/cli/v3"
)

// AccountCommands returns all account-related commands.
func AccountCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:   "me",
			Usage:  "Show the account behind the configured token",
			Action: withApp(handleMe),
		},
	}
}

// handleMe handles the 'me' command.
func handleMe(ctx context.Context, _ *cli.Command, app *setup.App) error {
	user, err := app.Discord.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch account: %w", err)
	}

	return printJSON(user)
}
