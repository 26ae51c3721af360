package repositories

import (
	"context"

	"github.com/desertthunder/subx/internal/models"
)

// RunHistoryAdapter implements tasks.RunRecorder using RunRepository.
type RunHistoryAdapter struct {
	repo *RunRepository
}

// NewRunHistoryAdapter creates a new RunHistoryAdapter with the given repository
func NewRunHistoryAdapter(repo *RunRepository) *RunHistoryAdapter {
	return &RunHistoryAdapter{repo: repo}
}

func (a *RunHistoryAdapter) StartRun(ctx context.Context, run *models.TransferRun) error {
	return a.repo.Create(ctx, run)
}

func (a *RunHistoryAdapter) RecordOutcome(ctx context.Context, outcome *models.RunOutcome) error {
	return a.repo.AddOutcome(ctx, outcome)
}

func (a *RunHistoryAdapter) FinishRun(ctx context.Context, run *models.TransferRun) error {
	return a.repo.Finish(ctx, run)
}
