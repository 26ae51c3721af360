package models

import (
	"fmt"
	"time"
)

// RunStatus enumerates the lifecycle of a [TransferRun].
type RunStatus string

const (
	RunStarted   RunStatus = "started"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// TransferRun records one invocation of the transfer pipeline.
type TransferRun struct {
	ID              string
	Sequence        int
	SourceChannelID string
	SourceCount     int
	DestCount       int
	CandidateCount  int
	Succeeded       int
	Failed          int
	DryRun          bool
	Status          RunStatus
	Error           string
	StartedAt       time.Time
	FinishedAt      *time.Time
}

// NewTransferRun creates a started run for sourceChannelID.
func NewTransferRun(sourceChannelID string, dryRun bool) *TransferRun {
	return &TransferRun{
		SourceChannelID: sourceChannelID,
		DryRun:          dryRun,
		Status:          RunStarted,
		StartedAt:       time.Now().UTC(),
	}
}

// Validate checks required fields before persistence.
func (r *TransferRun) Validate() error {
	if r.SourceChannelID == "" {
		return fmt.Errorf("source channel id is required")
	}
	switch r.Status {
	case RunStarted, RunCompleted, RunFailed:
	default:
		return fmt.Errorf("invalid run status %q", r.Status)
	}
	return nil
}

// RunOutcome records the result of one subscribe request within a run.
type RunOutcome struct {
	RunID          string
	Position       int
	ChannelID      string
	Title          string
	ConfirmedTitle string
	Succeeded      bool
	Reason         string
	CreatedAt      time.Time
}
