package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/subx/internal/formatter"
	"github.com/desertthunder/subx/internal/models"
	"github.com/desertthunder/subx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Export lists a channel's public subscriptions and writes them in the requested format.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	channelID, err := models.ParseChannelID(cmd.String("channel"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	format := cmd.String("format")
	if _, err := formatter.Render(format, "", nil); err != nil {
		return err
	}

	engine, err := r.transferEngine(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("exporting subscriptions", "channel", channelID, "format", format)
	set, err := engine.Export(ctx, channelID, nil)
	if err != nil {
		return err
	}

	data, err := formatter.Render(format, "Subscriptions of "+channelID, set)
	if err != nil {
		return err
	}

	output := cmd.String("output")
	if output == "" {
		return r.writePlain("%s", data)
	}

	if err := formatter.WriteFile(output, data); err != nil {
		return err
	}
	r.logger.Info("export written", "path", output, "count", len(set))
	return r.writePlain("✓ Exported %d subscriptions to %s\n", len(set), output)
}
