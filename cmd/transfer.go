package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/desertthunder/subx/internal/formatter"
	"github.com/desertthunder/subx/internal/models"
	"github.com/desertthunder/subx/internal/shared"
	"github.com/desertthunder/subx/internal/tasks"
	"github.com/desertthunder/subx/internal/ui"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

const sourcePrompt = "Source channel ID"

// TransferRun runs the full pipeline for a source channel.
func (r *Runner) TransferRun(ctx context.Context, cmd *cli.Command) error {
	source, err := r.resolveSource(ctx, cmd)
	if err != nil {
		return err
	}
	engine, err := r.transferEngine(ctx)
	if err != nil {
		return err
	}

	dryRun := cmd.Bool("dry-run")
	r.logger.Info("starting transfer", "source", source, "dry_run", dryRun)
	r.writePlain("Starting subscription transfer...\n")
	r.writePlain("Source: %s\n\n", source)

	progress, stop := r.progressPrinter()
	result, err := engine.Run(ctx, tasks.RunOpts{
		SourceChannelID: source,
		SnapshotPath:    cmd.String("snapshot"),
		DryRun:          dryRun,
	}, progress)
	stop()

	if err != nil {
		return err
	}
	return r.finish(ctx, result)
}

// TransferImport runs the destination half against a snapshot file.
func (r *Runner) TransferImport(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.transferEngine(ctx)
	if err != nil {
		return err
	}

	path := cmd.String("snapshot")
	if path == "" {
		path = r.config.Transfer.SnapshotPath
	}

	dryRun := cmd.Bool("dry-run")
	r.logger.Info("importing snapshot", "path", path, "dry_run", dryRun)
	r.writePlain("Importing subscriptions from %s...\n\n", path)

	progress, stop := r.progressPrinter()
	result, err := engine.Import(ctx, tasks.ImportOpts{SnapshotPath: path, DryRun: dryRun}, progress)
	stop()

	if err != nil {
		return err
	}
	return r.finish(ctx, result)
}

// TransferDiff lists the channels a transfer would subscribe to, without writing anything.
func (r *Runner) TransferDiff(ctx context.Context, cmd *cli.Command) error {
	source, err := r.resolveSource(ctx, cmd)
	if err != nil {
		return err
	}
	engine, err := r.transferEngine(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("transfer diff requested", "source", source)
	result, err := engine.Run(ctx, tasks.RunOpts{SourceChannelID: source, SnapshotPath: "-", DryRun: true}, nil)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(models.Snapshot{Subscriptions: result.Candidates}, true)
	}

	r.writePlainHeader("Comparison Results")
	r.writePlain("Source: %s (%d channels)\n", source, len(result.Source))
	r.writePlain("Destination: %d channels\n", len(result.Dest))
	r.writePlain("Missing from destination: %d channels\n\n", len(result.Candidates))
	r.writeCandidates(result.Candidates)
	return nil
}

// finish prints the summary and reports an interrupted run as an error.
func (r *Runner) finish(ctx context.Context, result *tasks.RunResult) error {
	r.writeSummary(result)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transfer interrupted after %d of %d channels: %w", result.Succeeded, len(result.Candidates), err)
	}
	return nil
}

// resolveSource reads --source, prompting when it is empty.
func (r *Runner) resolveSource(ctx context.Context, cmd *cli.Command) (string, error) {
	raw := cmd.String("source")
	if strings.TrimSpace(raw) == "" {
		return r.promptSource(ctx)
	}

	id, err := models.ParseChannelID(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return id, nil
}

// promptSource uses the text input on a terminal and a plain line read otherwise.
func (r *Runner) promptSource(ctx context.Context) (string, error) {
	if f, ok := r.input.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return ui.Prompt(ctx, r.input, r.output, sourcePrompt)
	}
	return ui.ReadLine(r.input, r.output, sourcePrompt)
}

// progressPrinter drains progress updates to the output. stop closes the channel and waits for
// the last line to be written.
func (r *Runner) progressPrinter() (progress chan tasks.ProgressUpdate, stop func()) {
	progress = make(chan tasks.ProgressUpdate, 100)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for update := range progress {
			r.printProgress(update)
		}
	}()

	return progress, func() {
		close(progress)
		<-done
	}
}

func (r *Runner) printProgress(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.FetchSource, tasks.FetchDest:
		r.writePlain("📥 %s\n", update.Message)
	case tasks.WriteSnapshot, tasks.ReadSnapshot:
		r.writePlain("💾 %s\n", update.Message)
	case tasks.Compare:
		r.writePlain("\n🔍 %s\n\n", update.Message)
	case tasks.Subscribe:
		outcome, ok := update.Data.(tasks.Outcome)
		if ok && !outcome.OK() {
			r.writePlain("   %s %s\n", update.Message, ui.Failure(outcome.Reason()))
			return
		}
		r.writePlain("   %s\n", update.Message)
	}
}

func (r *Runner) writeSummary(result *tasks.RunResult) {
	title := "Transfer Complete!"
	if result.DryRun {
		title = "Dry Run"
	}

	r.writePlain("\n")
	r.writePlainHeader(title)
	r.writePlain("Source: %s (%d channels)\n", result.SourceChannelID, len(result.Source))
	r.writePlain("Destination: %d channels already subscribed\n", len(result.Dest))
	if result.SnapshotPath != "" {
		r.writePlain("Snapshot: %s\n", result.SnapshotPath)
	}
	r.writePlain("Run: %s\n", result.RunID)

	if result.DryRun {
		r.writePlain("Would subscribe to %d channels:\n", len(result.Candidates))
		r.writeCandidates(result.Candidates)
		return
	}

	if len(result.Candidates) == 0 {
		r.writePlain("%s\n", ui.Success("✓ Nothing to do, every source channel is already subscribed"))
		return
	}

	r.writePlain("Subscribed: %d/%d\n", result.Succeeded, len(result.Candidates))
	if failures := result.Failures(); len(failures) > 0 {
		r.writePlain("\n%s\n", ui.Warning(fmt.Sprintf("Failed to subscribe to %d channels:", len(failures))))
		for _, o := range failures {
			r.writePlain("  - %s (%s): %s\n", o.Title(), o.Channel.ID, o.Reason())
		}
	}
}

func (r *Runner) writeCandidates(candidates models.SubscriptionSet) {
	for i, sub := range candidates {
		title := sub.Channel.Title
		if title == "" {
			title = sub.ChannelID()
		}
		r.writePlain("  %d. %s (%s)\n", i+1, title, formatter.ChannelURL(sub.ChannelID()))
	}
}
