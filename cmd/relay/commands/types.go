package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/relay/internal/setup"
	"github.com/urfave/cli/v3"
)

var (
	ErrRequestArgs  = errors.New("METHOD and PATH arguments required")
	ErrInvalidParam = errors.New("param must be in key=value form")
)

// LogDirFlag is the root flag selecting where session logs are written.
const LogDirFlag = "log-dir"

// Output is where command results are printed.
var Output io.Writer = os.Stdout

// withApp initializes the application for one command and cleans it up afterwards.
func withApp(fn func(ctx context.Context, c *cli.Command, app *setup.App) error) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		app, err := setup.InitializeApp(ctx, c.String(LogDirFlag))
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer app.Cleanup()

		return fn(ctx, c, app)
	}
}

// printJSON writes v as indented JSON.
func printJSON(v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	_, err = fmt.Fprintln(Output, string(data))
	return err
}

// parseID parses a snowflake flag value.
func parseID(c *cli.Command, name string) (snowflake.ID, error) {
	id, err := snowflake.Parse(c.String(name))
	if err != nil {
		return 0, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return id, nil
}

// parseIDs parses a repeated snowflake flag.
func parseIDs(c *cli.Command, name string) ([]snowflake.ID, error) {
	values := c.StringSlice(name)
	ids := make([]snowflake.ID, 0, len(values))

	for _, value := range values {
		for part := range strings.SplitSeq(value, ",") {
			id, err := snowflake.Parse(strings.TrimSpace(part))
			if err != nil {
				return nil, fmt.Errorf("invalid --%s %q: %w", name, part, err)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// parseParams turns key=value pairs into a map.
func parseParams(values []string) (map[string]string, error) {
	params := make(map[string]string, len(values))
	for _, value := range values {
		key, val, ok := strings.Cut(value, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidParam, value)
		}
		params[key] = val
	}
	return params, nil
}
