package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/subx/internal/models"
	"github.com/desertthunder/subx/internal/shared"
)

const runColumns = `id, sequence, source_channel_id, source_count, dest_count, candidate_count,
	succeeded, failed, dry_run, status, error, started_at, finished_at`

// RunRepository persists [models.TransferRun] and [models.RunOutcome] records.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a run with a generated ID and sequence
func (r *RunRepository) Create(ctx context.Context, run *models.TransferRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "transfer_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	query := `
		INSERT INTO transfer_runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		id,
		sequence,
		run.SourceChannelID,
		run.SourceCount,
		run.DestCount,
		run.CandidateCount,
		run.Succeeded,
		run.Failed,
		run.DryRun,
		string(run.Status),
		run.Error,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	run.ID = id
	run.Sequence = sequence
	return nil
}

// Finish stores the final counters, status and error of a run
func (r *RunRepository) Finish(ctx context.Context, run *models.TransferRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	finishedAt := run.FinishedAt
	if finishedAt == nil {
		now := time.Now().UTC()
		finishedAt = &now
	}

	query := `
		UPDATE transfer_runs
		SET source_count = ?, dest_count = ?, candidate_count = ?, succeeded = ?, failed = ?,
			status = ?, error = ?, finished_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		run.SourceCount,
		run.DestCount,
		run.CandidateCount,
		run.Succeeded,
		run.Failed,
		string(run.Status),
		run.Error,
		*finishedAt,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, run.ID)
	}

	run.FinishedAt = finishedAt
	return nil
}

// AddOutcome appends the result of one subscribe request to a run
func (r *RunRepository) AddOutcome(ctx context.Context, outcome *models.RunOutcome) error {
	if outcome.RunID == "" || outcome.ChannelID == "" {
		return fmt.Errorf("validation failed: run id and channel id are required")
	}
	if outcome.CreatedAt.IsZero() {
		outcome.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO transfer_outcomes (run_id, position, channel_id, title, confirmed_title, succeeded, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		outcome.RunID,
		outcome.Position,
		outcome.ChannelID,
		outcome.Title,
		outcome.ConfirmedTitle,
		outcome.Succeeded,
		outcome.Reason,
		outcome.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outcome: %w", err)
	}
	return nil
}

// Get retrieves a run by ID
func (r *RunRepository) Get(ctx context.Context, id string) (*models.TransferRun, error) {
	query := `SELECT ` + runColumns + ` FROM transfer_runs WHERE id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetBySequence retrieves a run by its sequence number
func (r *RunRepository) GetBySequence(ctx context.Context, sequence int) (*models.TransferRun, error) {
	query := `SELECT ` + runColumns + ` FROM transfer_runs WHERE sequence = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, sequence))
}

// Find resolves ref as a sequence number when numeric, as an ID otherwise
func (r *RunRepository) Find(ctx context.Context, ref string) (*models.TransferRun, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		return r.GetBySequence(ctx, n)
	}
	return r.Get(ctx, ref)
}

// List returns the most recent runs first. A non-positive limit returns every run.
func (r *RunRepository) List(ctx context.Context, limit int) ([]*models.TransferRun, error) {
	query := `SELECT ` + runColumns + ` FROM transfer_runs ORDER BY sequence DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []*models.TransferRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// Outcomes returns the outcomes of a run in position order
func (r *RunRepository) Outcomes(ctx context.Context, runID string) ([]*models.RunOutcome, error) {
	query := `
		SELECT run_id, position, channel_id, title, confirmed_title, succeeded, reason, created_at
		FROM transfer_outcomes
		WHERE run_id = ?
		ORDER BY position ASC
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []*models.RunOutcome{}
	for rows.Next() {
		var o models.RunOutcome
		if err := rows.Scan(&o.RunID, &o.Position, &o.ChannelID, &o.Title, &o.ConfirmedTitle, &o.Succeeded, &o.Reason, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		outcomes = append(outcomes, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return outcomes, nil
}

// Delete removes a run and, through the foreign key, its outcomes
func (r *RunRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM transfer_runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	return nil
}

func (r *RunRepository) scanOne(row *sql.Row) (*models.TransferRun, error) {
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrRunNotFound
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRun scans a row from either [sql.Row] or [sql.Rows] into a [models.TransferRun]
func scanRun(s scanner) (*models.TransferRun, error) {
	var (
		run        models.TransferRun
		status     string
		finishedAt sql.NullTime
	)

	err := s.Scan(
		&run.ID,
		&run.Sequence,
		&run.SourceChannelID,
		&run.SourceCount,
		&run.DestCount,
		&run.CandidateCount,
		&run.Succeeded,
		&run.Failed,
		&run.DryRun,
		&status,
		&run.Error,
		&run.StartedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Status = models.RunStatus(status)
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return &run, nil
}
