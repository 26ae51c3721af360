package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/subx/internal/models"
	"github.com/desertthunder/subx/internal/shared"
	"github.com/desertthunder/subx/internal/tasks"
)

var _ tasks.RunRecorder = (*RunHistoryAdapter)(nil)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(ctx, db, "transfer_runs")
		if err != nil {
			t.Fatalf("NextSequence failed: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(ctx, db, "missing"); err == nil {
		t.Error("expected error for unknown table")
	}
}

func TestRunRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewTransferRun("UCsource", false)

		if err := repo.Create(ctx, run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
		if run.ID == "" || run.Sequence != 1 {
			t.Errorf("expected id and sequence to be set, got %q #%d", run.ID, run.Sequence)
		}
	})

	t.Run("Create validates", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		if err := repo.Create(ctx, models.NewTransferRun("", false)); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("Get and Finish", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewTransferRun("UCsource", true)
		if err := repo.Create(ctx, run); err != nil {
			t.Fatal(err)
		}

		run.SourceCount, run.DestCount, run.CandidateCount = 10, 4, 6
		run.Succeeded, run.Failed = 5, 1
		run.Status = models.RunFailed
		run.Error = "fetch error"
		if err := repo.Finish(ctx, run); err != nil {
			t.Fatalf("failed to finish run: %v", err)
		}
		if run.FinishedAt == nil {
			t.Error("expected finish time to be set")
		}

		got, err := repo.Get(ctx, run.ID)
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.SourceChannelID != "UCsource" || !got.DryRun || got.Status != models.RunFailed || got.Error != "fetch error" {
			t.Errorf("unexpected run %+v", got)
		}
		if got.SourceCount != 10 || got.DestCount != 4 || got.CandidateCount != 6 || got.Succeeded != 5 || got.Failed != 1 {
			t.Errorf("unexpected counters %+v", got)
		}
		if got.FinishedAt == nil || got.StartedAt.IsZero() {
			t.Errorf("expected timestamps, got %+v", got)
		}
		if got.StartedAt.Sub(run.StartedAt).Abs() > time.Second {
			t.Errorf("start time drifted: %v vs %v", got.StartedAt, run.StartedAt)
		}
	})

	t.Run("Get missing", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		if _, err := repo.Get(ctx, "nope"); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
		if err := repo.Finish(ctx, &models.TransferRun{ID: "nope", SourceChannelID: "UC", Status: models.RunCompleted}); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("Find by sequence or id", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		first := models.NewTransferRun("UCfirst", false)
		second := models.NewTransferRun("UCsecond", false)
		for _, run := range []*models.TransferRun{first, second} {
			if err := repo.Create(ctx, run); err != nil {
				t.Fatal(err)
			}
		}

		got, err := repo.Find(ctx, "2")
		if err != nil || got.ID != second.ID {
			t.Errorf("expected second run by sequence, got %+v %v", got, err)
		}
		got, err = repo.Find(ctx, first.ID)
		if err != nil || got.Sequence != 1 {
			t.Errorf("expected first run by id, got %+v %v", got, err)
		}
		if _, err := repo.Find(ctx, "99"); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("List newest first", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		for _, src := range []string{"UC1", "UC2", "UC3"} {
			if err := repo.Create(ctx, models.NewTransferRun(src, false)); err != nil {
				t.Fatal(err)
			}
		}

		runs, err := repo.List(ctx, 0)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 3 || runs[0].SourceChannelID != "UC3" || runs[2].SourceChannelID != "UC1" {
			t.Errorf("unexpected order %v", runs)
		}

		limited, err := repo.List(ctx, 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(limited) != 2 {
			t.Errorf("expected 2 runs, got %d", len(limited))
		}
	})

	t.Run("Outcomes", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewTransferRun("UCsource", false)
		if err := repo.Create(ctx, run); err != nil {
			t.Fatal(err)
		}

		records := []*models.RunOutcome{
			{RunID: run.ID, Position: 2, ChannelID: "UCb", Title: "B", Reason: "subscriptionForbidden"},
			{RunID: run.ID, Position: 1, ChannelID: "UCa", Title: "A", ConfirmedTitle: "A!", Succeeded: true},
		}
		for _, o := range records {
			if err := repo.AddOutcome(ctx, o); err != nil {
				t.Fatalf("failed to add outcome: %v", err)
			}
		}

		got, err := repo.Outcomes(ctx, run.ID)
		if err != nil {
			t.Fatalf("failed to list outcomes: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 outcomes, got %d", len(got))
		}
		if got[0].ChannelID != "UCa" || !got[0].Succeeded || got[0].ConfirmedTitle != "A!" {
			t.Errorf("unexpected first outcome %+v", got[0])
		}
		if got[1].Succeeded || got[1].Reason != "subscriptionForbidden" || got[1].CreatedAt.IsZero() {
			t.Errorf("unexpected second outcome %+v", got[1])
		}

		if err := repo.AddOutcome(ctx, &models.RunOutcome{RunID: run.ID, Position: 1, ChannelID: "UCdup"}); err == nil {
			t.Error("expected duplicate position to fail")
		}
		if err := repo.AddOutcome(ctx, &models.RunOutcome{RunID: "missing-run", Position: 1, ChannelID: "UCx"}); err == nil {
			t.Error("expected foreign key violation")
		}
	})

	t.Run("Delete cascades", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewTransferRun("UCsource", false)
		if err := repo.Create(ctx, run); err != nil {
			t.Fatal(err)
		}
		if err := repo.AddOutcome(ctx, &models.RunOutcome{RunID: run.ID, Position: 1, ChannelID: "UCa", Title: "A"}); err != nil {
			t.Fatal(err)
		}

		if err := repo.Delete(ctx, run.ID); err != nil {
			t.Fatalf("failed to delete run: %v", err)
		}
		outcomes, err := repo.Outcomes(ctx, run.ID)
		if err != nil || len(outcomes) != 0 {
			t.Errorf("expected outcomes to be removed, got %v %v", outcomes, err)
		}
		if err := repo.Delete(ctx, run.ID); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("closed database", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewRunRepository(db)
		db.Close()

		if err := repo.Create(ctx, models.NewTransferRun("UC", false)); err == nil {
			t.Error("expected error on closed database")
		}
		if _, err := repo.List(ctx, 0); err == nil {
			t.Error("expected error on closed database")
		}
	})
}

func TestRunHistoryAdapter(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(setupTestDB(t))
	adapter := NewRunHistoryAdapter(repo)

	run := models.NewTransferRun("UCsource", false)
	if err := adapter.StartRun(ctx, run); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if err := adapter.RecordOutcome(ctx, &models.RunOutcome{RunID: run.ID, Position: 1, ChannelID: "UCa", Title: "A", Succeeded: true}); err != nil {
		t.Fatalf("RecordOutcome failed: %v", err)
	}
	run.Status = models.RunCompleted
	run.Succeeded = 1
	if err := adapter.FinishRun(ctx, run); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	got, err := repo.Get(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.RunCompleted || got.Succeeded != 1 {
		t.Errorf("unexpected stored run %+v", got)
	}
}
