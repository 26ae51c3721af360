package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/desertthunder/subx/internal/auth"
	"github.com/desertthunder/subx/internal/formatter"
	"github.com/desertthunder/subx/internal/models"
	"github.com/desertthunder/subx/internal/shared"
	th "github.com/desertthunder/subx/internal/testing"
)

type memoryRecorder struct {
	mu       sync.Mutex
	runs     map[string]*models.TransferRun
	outcomes []*models.RunOutcome
	finished []*models.TransferRun
	fail     bool
}

func newMemoryRecorder() *memoryRecorder {
	return &memoryRecorder{runs: map[string]*models.TransferRun{}}
}

func (m *memoryRecorder) StartRun(ctx context.Context, run *models.TransferRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("database is locked")
	}
	run.ID = fmt.Sprintf("run-%d", len(m.runs)+1)
	run.Sequence = len(m.runs) + 1
	m.runs[run.ID] = run
	return nil
}

func (m *memoryRecorder) RecordOutcome(ctx context.Context, outcome *models.RunOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("database is locked")
	}
	m.outcomes = append(m.outcomes, outcome)
	return nil
}

func (m *memoryRecorder) FinishRun(ctx context.Context, run *models.TransferRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("database is locked")
	}
	copied := *run
	m.finished = append(m.finished, &copied)
	return nil
}

type engineFixture struct {
	source   *th.FakeService
	dest     *th.FakeService
	broker   *th.FakeBroker
	recorder *memoryRecorder
	engine   *Engine
	snapshot string
}

func newEngineFixture(t *testing.T, opts ...func(*EngineOpts)) *engineFixture {
	t.Helper()
	f := &engineFixture{
		source:   th.NewFakeService(),
		dest:     th.NewFakeService(),
		broker:   &th.FakeBroker{},
		recorder: newMemoryRecorder(),
		snapshot: filepath.Join(t.TempDir(), "subscriptions.json"),
	}

	all := th.MakeSubscriptions("src", 5)
	f.source.Lists[models.Query{ChannelID: "UCsource"}.String()] = all
	f.dest.Lists[models.Query{Mine: true}.String()] = models.SubscriptionSet{all[3], all[0], th.Subscription("UCother", "Other")}

	eo := EngineOpts{
		Broker:       f.broker,
		Clients:      th.ServiceFactory(f.source, f.dest),
		Recorder:     f.recorder,
		SnapshotPath: f.snapshot,
	}
	for _, o := range opts {
		o(&eo)
	}
	f.engine = NewEngine(eo)
	return f
}

func TestEngineRun(t *testing.T) {
	t.Run("full transfer", func(t *testing.T) {
		f := newEngineFixture(t)
		progress := make(chan ProgressUpdate, 100)

		result, err := f.engine.Run(context.Background(), RunOpts{SourceChannelID: "UCsource"}, progress)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		close(progress)

		if len(result.Source) != 5 || len(result.Dest) != 3 {
			t.Errorf("unexpected list sizes: source %d, dest %d", len(result.Source), len(result.Dest))
		}
		if got := channelIDs(result.Candidates); !slices.Equal(got, []string{"UCsrc1", "UCsrc2", "UCsrc4"}) {
			t.Errorf("unexpected candidates %v", got)
		}
		if result.Succeeded != 3 || result.Failed != 0 || len(result.Failures()) != 0 {
			t.Errorf("expected 3 successes, got %d/%d", result.Succeeded, result.Failed)
		}

		if modes := f.broker.Modes(); !slices.Equal(modes, []auth.Mode{auth.Anonymous, auth.Authenticated}) {
			t.Errorf("expected anonymous then authenticated credentials, got %v", modes)
		}
		if len(f.source.Subscribed()) != 0 {
			t.Error("the anonymous client must never write")
		}

		snapshot, err := formatter.ReadSnapshot(f.snapshot)
		if err != nil {
			t.Fatalf("expected snapshot, got %v", err)
		}
		if !slices.Equal(channelIDs(snapshot), channelIDs(result.Source)) {
			t.Errorf("snapshot differs from source list")
		}
		if result.SnapshotPath != f.snapshot {
			t.Errorf("expected snapshot path in result, got %q", result.SnapshotPath)
		}

		if result.RunID != "run-1" {
			t.Errorf("expected recorder run id, got %q", result.RunID)
		}
		if len(f.recorder.outcomes) != 3 || f.recorder.outcomes[0].Position != 1 || f.recorder.outcomes[2].ChannelID != "UCsrc4" {
			t.Errorf("unexpected recorded outcomes %+v", f.recorder.outcomes)
		}
		finished := f.recorder.finished[0]
		if finished.Status != models.RunCompleted || finished.SourceCount != 5 || finished.DestCount != 3 ||
			finished.CandidateCount != 3 || finished.Succeeded != 3 || finished.FinishedAt == nil {
			t.Errorf("unexpected finished run %+v", finished)
		}

		seen := map[Phase]bool{}
		for u := range progress {
			seen[u.Phase] = true
		}
		for _, p := range []Phase{FetchSource, WriteSnapshot, FetchDest, Compare, Subscribe, Done} {
			if !seen[p] {
				t.Errorf("missing progress for phase %s", p)
			}
		}
	})

	t.Run("partial failure", func(t *testing.T) {
		f := newEngineFixture(t)
		f.dest.SubscribeErrs["UCsrc2"] = errors.New("subscriptionForbidden")

		result, err := f.engine.Run(context.Background(), RunOpts{SourceChannelID: "UCsource"}, nil)
		if err != nil {
			t.Fatalf("per-item failures must not fail the run: %v", err)
		}
		if result.Succeeded != 2 || result.Failed != 1 {
			t.Errorf("expected 2/1, got %d/%d", result.Succeeded, result.Failed)
		}
		failures := result.Failures()
		if len(failures) != 1 || failures[0].Channel.ID != "UCsrc2" {
			t.Errorf("unexpected failures %+v", failures)
		}
		if f.recorder.outcomes[1].Succeeded || f.recorder.outcomes[1].Reason != "subscriptionForbidden" {
			t.Errorf("unexpected recorded failure %+v", f.recorder.outcomes[1])
		}
	})

	t.Run("second run is idempotent", func(t *testing.T) {
		f := newEngineFixture(t)
		if _, err := f.engine.Run(context.Background(), RunOpts{SourceChannelID: "UCsource"}, nil); err != nil {
			t.Fatal(err)
		}

		result, err := f.engine.Run(context.Background(), RunOpts{SourceChannelID: "UCsource"}, nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(result.Candidates) != 0 || len(result.Outcomes) != 0 {
			t.Errorf("expected nothing to do, got %d candidates", len(result.Candidates))
		}
		if len(f.dest.Subscribed()) != 3 {
			t.Errorf("expected 3 writes in total, got %d", len(f.dest.Subscribed()))
		}
	})

	t.Run("dry run", func(t *testing.T) {
		f := newEngineFixture(t)

		result, err := f.engine.Run(context.Background(), RunOpts{SourceChannelID: "UCsource", DryRun: true, SnapshotPath: "-"}, nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(result.Candidates) != 3 || len(result.Outcomes) != 0 || len(f.dest.Subscribed()) != 0 {
			t.Errorf("dry run must not write: %+v", result)
		}
		if result.SnapshotPath != "" {
			t.Errorf("snapshot must be skipped, got %q", result.SnapshotPath)
		}
		if !f.recorder.finished[0].DryRun || f.recorder.finished[0].Status != models.RunCompleted {
			t.Errorf("unexpected finished run %+v", f.recorder.finished[0])
		}
	})

	t.Run("source fetch failure", func(t *testing.T) {
		f := newEngineFixture(t)
		f.source.ListFailures[models.Query{ChannelID: "UCsource"}.String()] = th.ListFailure{Page: 0, Err: errors.New("channelNotFound")}

		_, err := f.engine.Run(context.Background(), RunOpts{SourceChannelID: "UCsource"}, nil)
		if !errors.Is(err, shared.ErrFetch) {
			t.Errorf("expected fetch error, got %v", err)
		}
		if modes := f.broker.Modes(); !slices.Equal(modes, []auth.Mode{auth.Anonymous}) {
			t.Errorf("expected to stop before authenticating, got %v", modes)
		}
		if f.recorder.finished[0].Status != models.RunFailed || f.recorder.finished[0].Error == "" {
			t.Errorf("expected failed run record, got %+v", f.recorder.finished[0])
		}
	})

	t.Run("authentication failure", func(t *testing.T) {
		f := newEngineFixture(t)
		f.broker.Errs = map[auth.Mode]error{auth.Authenticated: shared.ErrConsentDeclined}

		_, err := f.engine.Run(context.Background(), RunOpts{SourceChannelID: "UCsource"}, nil)
		if !errors.Is(err, shared.ErrAuthentication) {
			t.Errorf("expected authentication error, got %v", err)
		}
		if len(f.dest.Subscribed()) != 0 {
			t.Error("expected no writes")
		}
	})

	t.Run("missing api key", func(t *testing.T) {
		f := newEngineFixture(t)
		f.broker.Errs = map[auth.Mode]error{auth.Anonymous: shared.ErrMissingCredentials}

		_, err := f.engine.Run(context.Background(), RunOpts{SourceChannelID: "UCsource"}, nil)
		if !errors.Is(err, shared.ErrConfiguration) {
			t.Errorf("expected configuration error, got %v", err)
		}
	})

	t.Run("missing client secret fails before listing", func(t *testing.T) {
		dir := t.TempDir()
		keyFile := filepath.Join(dir, "API_TOKEN.txt")
		th.MustWriteFile(t, keyFile, "secret-key\n")
		broker := auth.NewBroker(auth.BrokerOpts{
			APIKeyFile:       keyFile,
			ClientSecretFile: filepath.Join(dir, "missing.json"),
			Scopes:           []string{"https://www.googleapis.com/auth/youtube"},
			Store:            auth.NewFileTokenStore(filepath.Join(dir, "token.json")),
		})
		f := newEngineFixture(t, func(o *EngineOpts) { o.Broker = broker })

		_, err := f.engine.Run(context.Background(), RunOpts{SourceChannelID: "UCsource"}, nil)
		if !errors.Is(err, shared.ErrConfiguration) {
			t.Errorf("expected configuration error, got %v", err)
		}
		if n := len(f.source.ListCalls()); n != 0 {
			t.Errorf("expected no list calls, got %d", n)
		}
		if len(f.dest.ListCalls()) != 0 {
			t.Error("expected no destination list calls")
		}
		if _, statErr := os.Stat(f.snapshot); !os.IsNotExist(statErr) {
			t.Errorf("expected no snapshot, got %v", statErr)
		}
	})

	t.Run("compare update counts channels already followed", func(t *testing.T) {
		f := newEngineFixture(t)
		progress := make(chan ProgressUpdate, 100)

		if _, err := f.engine.Run(context.Background(), RunOpts{SourceChannelID: "UCsource", DryRun: true}, progress); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		close(progress)

		var compare *ProgressUpdate
		for update := range progress {
			if update.Phase == Compare {
				compare = &update
			}
		}
		if compare == nil {
			t.Fatal("expected a compare update")
		}
		want := "3 of 5 source channels are missing from the destination (2 already subscribed, destination follows 3)"
		if compare.Message != want {
			t.Errorf("expected %q, got %q", want, compare.Message)
		}
	})

	t.Run("missing source", func(t *testing.T) {
		f := newEngineFixture(t)
		if _, err := f.engine.Run(context.Background(), RunOpts{}, nil); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected missing argument, got %v", err)
		}
	})

	t.Run("recorder failures are not fatal", func(t *testing.T) {
		f := newEngineFixture(t)
		f.recorder.fail = true

		result, err := f.engine.Run(context.Background(), RunOpts{SourceChannelID: "UCsource"}, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.RunID == "" || result.Succeeded != 3 {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("without recorder", func(t *testing.T) {
		f := newEngineFixture(t, func(o *EngineOpts) { o.Recorder = nil })

		result, err := f.engine.Run(context.Background(), RunOpts{SourceChannelID: "UCsource"}, nil)
		if err != nil {
			t.Fatal(err)
		}
		if result.RunID == "" {
			t.Error("expected a generated run id")
		}
	})

	t.Run("unread progress channel never blocks", func(t *testing.T) {
		f := newEngineFixture(t)
		if _, err := f.engine.Run(context.Background(), RunOpts{SourceChannelID: "UCsource"}, make(chan ProgressUpdate)); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("uninitialized engine", func(t *testing.T) {
		_, err := NewEngine(EngineOpts{}).Run(context.Background(), RunOpts{SourceChannelID: "UCsource"}, nil)
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected service unavailable, got %v", err)
		}
	})
}

func TestEngineImport(t *testing.T) {
	t.Run("from snapshot", func(t *testing.T) {
		f := newEngineFixture(t)
		if err := formatter.WriteSnapshot(f.snapshot, th.MakeSubscriptions("src", 5)); err != nil {
			t.Fatal(err)
		}

		result, err := f.engine.Import(context.Background(), ImportOpts{SnapshotPath: f.snapshot}, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Succeeded != 3 {
			t.Errorf("expected 3 subscriptions, got %d", result.Succeeded)
		}
		if modes := f.broker.Modes(); !slices.Equal(modes, []auth.Mode{auth.Authenticated}) {
			t.Errorf("import must only authenticate, got %v", modes)
		}
		if len(f.source.ListCalls()) != 0 {
			t.Error("import must not list the source channel")
		}
	})

	t.Run("missing client secret fails before listing", func(t *testing.T) {
		dir := t.TempDir()
		broker := auth.NewBroker(auth.BrokerOpts{
			APIKeyFile:       filepath.Join(dir, "absent.txt"),
			ClientSecretFile: filepath.Join(dir, "missing.json"),
			Scopes:           []string{"https://www.googleapis.com/auth/youtube"},
		})
		f := newEngineFixture(t, func(o *EngineOpts) { o.Broker = broker })
		if err := formatter.WriteSnapshot(f.snapshot, th.MakeSubscriptions("src", 5)); err != nil {
			t.Fatal(err)
		}

		_, err := f.engine.Import(context.Background(), ImportOpts{SnapshotPath: f.snapshot}, nil)
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected missing credentials, got %v", err)
		}
		if len(f.dest.ListCalls()) != 0 {
			t.Error("expected no destination list calls")
		}
	})

	t.Run("missing snapshot", func(t *testing.T) {
		f := newEngineFixture(t)
		_, err := f.engine.Import(context.Background(), ImportOpts{SnapshotPath: filepath.Join(t.TempDir(), "absent.json")}, nil)
		if !errors.Is(err, shared.ErrConfiguration) {
			t.Errorf("expected configuration error, got %v", err)
		}
	})
}

func TestEngineExport(t *testing.T) {
	f := newEngineFixture(t)

	set, err := f.engine.Export(context.Background(), "UCsource", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(set) != 5 {
		t.Errorf("expected 5 channels, got %d", len(set))
	}

	if _, err := f.engine.Export(context.Background(), " ", nil); !errors.Is(err, shared.ErrMissingArgument) {
		t.Errorf("expected missing argument, got %v", err)
	}
}
