package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/robalyx/relay/cmd/relay/commands"
	"github.com/urfave/cli/v3"
)

// DefaultLogDir specifies where relay log files are stored.
const DefaultLogDir = "logs/relay_logs"

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "relay",
		Usage: "Rate limit aware Discord REST client",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  commands.LogDirFlag,
				Usage: "Directory for session logs",
				Value: DefaultLogDir,
			},
		},
		Commands: slices.Concat(
			commands.AccountCommands(),
			commands.MessageCommands(),
			commands.RequestCommands(),
		),
	}

	return app.Run(ctx, os.Args)
}
