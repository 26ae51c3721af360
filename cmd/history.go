package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/subx/internal/models"
	"github.com/desertthunder/subx/internal/repositories"
	"github.com/desertthunder/subx/internal/shared"
	"github.com/desertthunder/subx/internal/ui"
	"github.com/urfave/cli/v3"
)

// HistoryList prints the most recent runs.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.historyRepository(ctx)
	if err != nil {
		return err
	}

	runs, err := repo.List(ctx, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(runs, true)
	}
	if len(runs) == 0 {
		return r.writePlain("No transfer runs recorded\n")
	}

	for _, run := range runs {
		r.writePlain("#%-4d %s  %-9s %s  subscribed %d/%d%s\n",
			run.Sequence,
			run.StartedAt.Local().Format(time.DateTime),
			run.Status,
			run.SourceChannelID,
			run.Succeeded,
			run.CandidateCount,
			dryRunLabel(run),
		)
	}
	return nil
}

// HistoryShow prints one run and its outcomes.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.historyRepository(ctx)
	if err != nil {
		return err
	}

	run, err := repo.Find(ctx, cmd.String("id"))
	if err != nil {
		return err
	}
	outcomes, err := repo.Outcomes(ctx, run.ID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(struct {
			Run      *models.TransferRun   `json:"run"`
			Outcomes []*models.RunOutcome `json:"outcomes"`
		}{run, outcomes}, true)
	}

	r.writePlainHeader(fmt.Sprintf("Run #%d%s", run.Sequence, dryRunLabel(run)))
	r.writePlain("ID: %s\n", run.ID)
	r.writePlain("Status: %s\n", run.Status)
	r.writePlain("Source: %s (%d channels)\n", run.SourceChannelID, run.SourceCount)
	r.writePlain("Destination: %d channels\n", run.DestCount)
	r.writePlain("Subscribed: %d/%d (%d failed)\n", run.Succeeded, run.CandidateCount, run.Failed)
	r.writePlain("Started: %s\n", run.StartedAt.Local().Format(time.RFC1123))
	if run.FinishedAt != nil {
		r.writePlain("Finished: %s\n", run.FinishedAt.Local().Format(time.RFC1123))
	}
	if run.Error != "" {
		r.writePlain("Error: %s\n", ui.Failure(run.Error))
	}

	if len(outcomes) > 0 {
		r.writePlain("\n")
	}
	for _, o := range outcomes {
		if o.Succeeded {
			title := o.ConfirmedTitle
			if title == "" {
				title = o.Title
			}
			r.writePlain("  %3d. %s %s (%s)\n", o.Position, ui.Success("✓"), title, o.ChannelID)
			continue
		}
		r.writePlain("  %3d. %s %s (%s): %s\n", o.Position, ui.Failure("✗"), o.Title, o.ChannelID, o.Reason)
	}
	return nil
}

func (r *Runner) historyRepository(ctx context.Context) (*repositories.RunRepository, error) {
	repo, err := r.runRepository(ctx)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, fmt.Errorf("%w: run history is disabled (database.enabled = false)", shared.ErrConfiguration)
	}
	return repo, nil
}

func dryRunLabel(run *models.TransferRun) string {
	if run.DryRun {
		return " (dry run)"
	}
	return ""
}
