package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/relay/internal/discord/client"
	"github.com/robalyx/relay/internal/setup"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// MessageCommands returns all message-related commands.
func MessageCommands() []*cli.Command {
	channelFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:     "channel",
			Usage:    "Channel ID",
			Aliases:  []string{"c"},
			Required: true,
		}
	}

	return []*cli.Command{
		{
			Name:  "send",
			Usage: "Send a message to a channel",
			Description: `Send a message, optionally several times in a row. Repeated sends share
one rate limit bucket so they are spaced out by Discord's limits.

Examples:
  relay send -c 1234 -m "hello"
  relay send -c 1234 -m "ping" --repeat 10`,
			Flags: []cli.Flag{
				channelFlag(),
				&cli.StringFlag{
					Name:     "message",
					Usage:    "Message content",
					Aliases:  []string{"m"},
					Required: true,
				},
				&cli.IntFlag{
					Name:  "repeat",
					Usage: "Number of times to send the message",
					Value: 1,
				},
				&cli.StringFlag{
					Name:  "reply",
					Usage: "ID of a message to reply to",
				},
				&cli.BoolFlag{
					Name:  "tts",
					Usage: "Send as text-to-speech",
				},
			},
			Action: withApp(handleSend),
		},
		{
			Name:  "upload",
			Usage: "Send files to a channel",
			Description: `Examples:
  relay upload -c 1234 -f report.txt
  relay upload -c 1234 -f a.png -f b.png -m "screenshots"`,
			Flags: []cli.Flag{
				channelFlag(),
				&cli.StringSliceFlag{
					Name:     "file",
					Usage:    "Path of a file to attach",
					Aliases:  []string{"f"},
					Required: true,
				},
				&cli.StringFlag{
					Name:    "message",
					Usage:   "Message content",
					Aliases: []string{"m"},
				},
			},
			Action: withApp(handleUpload),
		},
		{
			Name:   "channel",
			Usage:  "Show a channel",
			Flags:  []cli.Flag{channelFlag()},
			Action: withApp(handleChannel),
		},
		{
			Name:   "typing",
			Usage:  "Show the typing indicator in a channel",
			Flags:  []cli.Flag{channelFlag()},
			Action: withApp(handleTyping),
		},
		{
			Name:  "history",
			Usage: "Fetch recent messages from a channel",
			Flags: []cli.Flag{
				channelFlag(),
				&cli.IntFlag{
					Name:  "limit",
					Usage: "Number of messages to fetch (1-100)",
					Value: 50,
				},
				&cli.StringFlag{
					Name:  "before",
					Usage: "Only fetch messages before this message ID",
				},
			},
			Action: withApp(handleHistory),
		},
		{
			Name:  "broadcast",
			Usage: "Send the same message to several channels concurrently",
			Description: `Examples:
  relay broadcast -c 1234 -c 5678 -m "hello"
  relay broadcast -c 1234,5678 -m "hello"`,
			Flags: []cli.Flag{
				&cli.StringSliceFlag{
					Name:     "channel",
					Usage:    "Channel IDs",
					Aliases:  []string{"c"},
					Required: true,
				},
				&cli.StringFlag{
					Name:     "message",
					Usage:    "Message content",
					Aliases:  []string{"m"},
					Required: true,
				},
			},
			Action: withApp(handleBroadcast),
		},
		{
			Name:  "dm",
			Usage: "Open a direct message with a user and send a message",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "user",
					Usage:    "Recipient user ID",
					Aliases:  []string{"u"},
					Required: true,
				},
				&cli.StringFlag{
					Name:     "message",
					Usage:    "Message content",
					Aliases:  []string{"m"},
					Required: true,
				},
			},
			Action: withApp(handleDM),
		},
	}
}

// handleSend handles the 'send' command.
func handleSend(ctx context.Context, c *cli.Command, app *setup.App) error {
	channelID, err := parseID(c, "channel")
	if err != nil {
		return err
	}

	opts := &client.MessageOptions{TTS: c.Bool("tts")}
	if c.String("reply") != "" {
		replyID, err := parseID(c, "reply")
		if err != nil {
			return err
		}
		opts.Reply = &client.MessageReference{MessageID: replyID, ChannelID: channelID}
	}

	repeat := max(c.Int("repeat"), 1)
	messages := make([]*client.Message, 0, repeat)

	for i := range repeat {
		// Each send gets a fresh nonce
		sendOpts := *opts
		message, err := app.Discord.SendMessage(ctx, channelID, c.String("message"), &sendOpts)
		if err != nil {
			return fmt.Errorf("failed to send message %d of %d: %w", i+1, repeat, err)
		}
		messages = append(messages, message)
	}

	app.Logger.Info("Sent messages",
		zap.Uint64("channel_id", uint64(channelID)),
		zap.Int("count", len(messages)))

	return printJSON(messages)
}

// handleUpload handles the 'upload' command.
func handleUpload(ctx context.Context, c *cli.Command, app *setup.App) error {
	channelID, err := parseID(c, "channel")
	if err != nil {
		return err
	}

	paths := c.StringSlice("file")
	files := make([]client.File, 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open attachment: %w", err)
		}
		defer f.Close()

		files = append(files, client.File{Name: filepath.Base(path), Reader: f})
	}

	message, err := app.Discord.SendFiles(ctx, channelID, c.String("message"), files, nil)
	if err != nil {
		return fmt.Errorf("failed to upload files: %w", err)
	}

	app.Logger.Info("Uploaded files",
		zap.Uint64("channel_id", uint64(channelID)),
		zap.Int("count", len(files)))

	return printJSON(message)
}

// handleChannel handles the 'channel' command.
func handleChannel(ctx context.Context, c *cli.Command, app *setup.App) error {
	channelID, err := parseID(c, "channel")
	if err != nil {
		return err
	}

	channel, err := app.Discord.GetChannel(ctx, channelID)
	if err != nil {
		return fmt.Errorf("failed to fetch channel: %w", err)
	}

	return printJSON(channel)
}

// handleTyping handles the 'typing' command.
func handleTyping(ctx context.Context, c *cli.Command, app *setup.App) error {
	channelID, err := parseID(c, "channel")
	if err != nil {
		return err
	}

	if err := app.Discord.TriggerTyping(ctx, channelID); err != nil {
		return fmt.Errorf("failed to trigger typing: %w", err)
	}

	return printJSON(map[string]any{"channel_id": channelID, "typing": true})
}

// handleHistory handles the 'history' command.
func handleHistory(ctx context.Context, c *cli.Command, app *setup.App) error {
	channelID, err := parseID(c, "channel")
	if err != nil {
		return err
	}

	query := client.MessageQuery{Limit: int(min(max(c.Int("limit"), 1), 100))}
	if c.String("before") != "" {
		if query.Before, err = parseID(c, "before"); err != nil {
			return err
		}
	}

	messages, err := app.Discord.GetMessages(ctx, channelID, query)
	if err != nil {
		return fmt.Errorf("failed to fetch messages: %w", err)
	}

	return printJSON(messages)
}

type broadcastOutput struct {
	ChannelID snowflake.ID    `json:"channel_id"`
	Message   *client.Message `json:"message,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// handleBroadcast handles the 'broadcast' command.
func handleBroadcast(ctx context.Context, c *cli.Command, app *setup.App) error {
	channelIDs, err := parseIDs(c, "channel")
	if err != nil {
		return err
	}

	results := app.Discord.Broadcast(ctx, channelIDs, c.String("message"))

	output := make([]broadcastOutput, len(results))
	failed := 0
	for i, result := range results {
		output[i] = broadcastOutput{ChannelID: result.ChannelID, Message: result.Message}
		if result.Err != nil {
			output[i].Error = result.Err.Error()
			failed++
		}
	}

	app.Logger.Info("Broadcast finished",
		zap.Int("channels", len(results)),
		zap.Int("failed", failed))

	return printJSON(output)
}

// handleDM handles the 'dm' command.
func handleDM(ctx context.Context, c *cli.Command, app *setup.App) error {
	userID, err := parseID(c, "user")
	if err != nil {
		return err
	}

	channel, err := app.Discord.StartPrivateMessage(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to open direct message: %w", err)
	}

	message, err := app.Discord.SendMessage(ctx, channel.ID, c.String("message"), nil)
	if err != nil {
		return fmt.Errorf("failed to send direct message: %w", err)
	}

	return printJSON(message)
}
