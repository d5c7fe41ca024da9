package commands

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/robalyx/relay/internal/discord/client"
	"github.com/robalyx/relay/internal/discord/rate"
	"github.com/robalyx/relay/internal/setup"
	"github.com/urfave/cli/v3"
)

// RequestCommands returns the raw request command.
func RequestCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "request",
			Usage:     "Send a raw rate limited request",
			ArgsUsage: "METHOD PATH",
			Description: `Send any request through the dispatcher. PATH is a route template whose
{name} placeholders are filled from --param values. channel_id and guild_id
decide the rate limit bucket.

Examples:
  relay request GET /users/@me
  relay request GET /channels/{channel_id}/messages -p channel_id=1234 -q limit=5
  relay request POST /channels/{channel_id}/messages -p channel_id=1234 --body '{"content":"hi"}'`,
			Flags: []cli.Flag{
				&cli.StringSliceFlag{
					Name:    "param",
					Usage:   "Path parameter as key=value",
					Aliases: []string{"p"},
				},
				&cli.StringSliceFlag{
					Name:    "query",
					Usage:   "Query parameter as key=value",
					Aliases: []string{"q"},
				},
				&cli.StringFlag{
					Name:  "body",
					Usage: "JSON request body",
				},
				&cli.StringFlag{
					Name:  "reason",
					Usage: "Audit log reason",
				},
			},
			Action: withApp(handleRequest),
		},
	}
}

type requestOutput struct {
	Status int `json:"status"`
	Body   any `json:"body"`
}

// handleRequest handles the 'request' command.
func handleRequest(ctx context.Context, c *cli.Command, app *setup.App) error {
	if c.Args().Len() != 2 {
		return ErrRequestArgs
	}

	params, err := parseParams(c.StringSlice("param"))
	if err != nil {
		return err
	}

	queryParams, err := parseParams(c.StringSlice("query"))
	if err != nil {
		return err
	}

	call := &client.Call{Reason: c.String("reason")}
	if len(queryParams) > 0 {
		call.Query = url.Values{}
		for key, value := range queryParams {
			call.Query.Set(key, value)
		}
	}

	if body := c.String("body"); body != "" {
		var payload any
		if err := sonic.UnmarshalString(body, &payload); err != nil {
			return fmt.Errorf("invalid --body: %w", err)
		}
		call.Body = payload
	}

	method := strings.ToUpper(c.Args().Get(0))
	route := rate.NewRoute(method, c.Args().Get(1), params)

	resp, err := app.Discord.Execute(ctx, route, call)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	output := requestOutput{Status: resp.Status}
	switch {
	case len(resp.Body) == 0:
	case resp.IsJSON():
		if err := resp.JSON(&output.Body); err != nil {
			return err
		}
	default:
		output.Body = resp.Text()
	}

	return printJSON(output)
}
