package tasks

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/subx/internal/auth"
	"github.com/desertthunder/subx/internal/formatter"
	"github.com/desertthunder/subx/internal/models"
	"github.com/desertthunder/subx/internal/services"
	"github.com/desertthunder/subx/internal/shared"
)

// Broker supplies credentials; implemented by [auth.Broker].
type Broker interface {
	Obtain(ctx context.Context, mode auth.Mode) (*auth.Credential, error)
}

// CredentialChecker is implemented by brokers that can validate their local credential files
// up front, such as [auth.Broker].
type CredentialChecker interface {
	Check(modes ...auth.Mode) error
}

// RunRecorder persists run history. Implementations must accept outcomes in position order.
type RunRecorder interface {
	StartRun(ctx context.Context, run *models.TransferRun) error
	RecordOutcome(ctx context.Context, outcome *models.RunOutcome) error
	FinishRun(ctx context.Context, run *models.TransferRun) error
}

// EngineOpts configures an [Engine]. Recorder and Logger are optional.
type EngineOpts struct {
	Broker          Broker
	Clients         services.Factory
	Recorder        RunRecorder
	Logger          *log.Logger
	WritesPerSecond float64
	SnapshotPath    string
}

// Engine runs the transfer pipeline.
type Engine struct {
	broker          Broker
	clients         services.Factory
	recorder        RunRecorder
	logger          *log.Logger
	writesPerSecond float64
	snapshotPath    string
}

func NewEngine(opts EngineOpts) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Engine{
		broker:          opts.Broker,
		clients:         opts.Clients,
		recorder:        opts.Recorder,
		logger:          shared.WithLogger(logger, "component", "engine"),
		writesPerSecond: opts.WritesPerSecond,
		snapshotPath:    opts.SnapshotPath,
	}
}

// RunOpts selects the source of a full transfer.
type RunOpts struct {
	SourceChannelID string
	SnapshotPath    string // overrides the engine default; "-" disables the snapshot
	DryRun          bool   // stop after the diff
}

// ImportOpts selects the snapshot a transfer starts from.
type ImportOpts struct {
	SnapshotPath string
	DryRun       bool
}

// RunResult contains all data from a transfer.
type RunResult struct {
	RunID           string
	SourceChannelID string
	SnapshotPath    string
	DryRun          bool
	Source          models.SubscriptionSet
	Dest            models.SubscriptionSet
	Candidates      models.SubscriptionSet
	Outcomes        []Outcome
	Succeeded       int
	Failed          int
}

// Failures returns the failed outcomes in order.
func (r *RunResult) Failures() []Outcome {
	failures := []Outcome{}
	for _, o := range r.Outcomes {
		if !o.OK() {
			failures = append(failures, o)
		}
	}
	return failures
}

func (e *Engine) ready() error {
	if e.broker == nil {
		return fmt.Errorf("%w: credential broker not initialized", shared.ErrServiceUnavailable)
	}
	if e.clients == nil {
		return fmt.Errorf("%w: api client factory not initialized", shared.ErrServiceUnavailable)
	}
	return nil
}

// client obtains a credential of mode and builds an API client from it.
func (e *Engine) client(ctx context.Context, mode auth.Mode) (services.SubscriptionService, error) {
	cred, err := e.broker.Obtain(ctx, mode)
	if err != nil {
		return nil, err
	}
	return e.clients(ctx, cred)
}

// checkCredentials fails on missing or invalid local credential files before any network call.
func (e *Engine) checkCredentials(modes ...auth.Mode) error {
	checker, ok := e.broker.(CredentialChecker)
	if !ok {
		return nil
	}
	if err := checker.Check(modes...); err != nil {
		e.logger.Debug("credential files are not usable", "error", err)
		return err
	}
	return nil
}

// list fetches the complete list for query, reporting each page under phase.
func (e *Engine) list(ctx context.Context, svc services.SubscriptionLister, query models.Query, phase Phase, progress chan<- ProgressUpdate) (models.SubscriptionSet, error) {
	set, err := collect(Pages(ctx, svc, query), func(page, items int) {
		e.logger.Debug("fetched page", "query", query, "page", page, "items", items)
		sendProgress(progress, fetchPageUpdate(phase, query, page, items))
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("retrieved channels from subscription list", "query", query, "count", len(set))
	sendProgress(progress, fetchedUpdate(phase, query, len(set)))
	return set, nil
}

// Export lists a channel's public subscriptions with an anonymous credential.
func (e *Engine) Export(ctx context.Context, channelID string, progress chan<- ProgressUpdate) (models.SubscriptionSet, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(channelID) == "" {
		return nil, fmt.Errorf("%w: source channel id", shared.ErrMissingArgument)
	}

	svc, err := e.client(ctx, auth.Anonymous)
	if err != nil {
		return nil, err
	}
	return e.list(ctx, svc, models.Query{ChannelID: channelID}, FetchSource, progress)
}

// Destination lists the authenticated account's subscriptions and returns the client used.
func (e *Engine) Destination(ctx context.Context, progress chan<- ProgressUpdate) (services.SubscriptionService, models.SubscriptionSet, error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}

	svc, err := e.client(ctx, auth.Authenticated)
	if err != nil {
		return nil, nil, err
	}

	dest, err := e.list(ctx, svc, models.Query{Mine: true}, FetchDest, progress)
	if err != nil {
		return nil, nil, err
	}
	return svc, dest, nil
}

// Transfer subscribes sub to every channel of source missing from dest and returns one outcome per
// candidate, in source order.
func (e *Engine) Transfer(ctx context.Context, sub services.Subscriber, source, dest models.SubscriptionSet, progress chan<- ProgressUpdate) []Outcome {
	candidates := Diff(source, dest)
	sendProgress(progress, compareUpdate(len(source), len(dest), len(candidates)))
	return e.subscribeAll(ctx, sub, candidates, progress, nil)
}

func (e *Engine) subscribeAll(ctx context.Context, sub services.Subscriber, candidates models.SubscriptionSet, progress chan<- ProgressUpdate, onOutcome func(int, Outcome)) []Outcome {
	s := &subscriber{svc: sub, limiter: newLimiter(e.writesPerSecond), logger: e.logger}
	total := len(candidates)

	outcomes := s.run(ctx, candidates, func(i int, o Outcome) {
		sendProgress(progress, subscribeUpdate(i+1, total, o))
		if onOutcome != nil {
			onOutcome(i, o)
		}
	})

	succeeded, failed := Summarize(outcomes)
	sendProgress(progress, doneUpdate(succeeded, failed))
	return outcomes
}

// Run performs the full pipeline for a source channel.
func (e *Engine) Run(ctx context.Context, opts RunOpts, progress chan<- ProgressUpdate) (*RunResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(opts.SourceChannelID) == "" {
		return nil, fmt.Errorf("%w: source channel id", shared.ErrMissingArgument)
	}
	if err := e.checkCredentials(auth.Anonymous, auth.Authenticated); err != nil {
		return nil, err
	}

	result := &RunResult{SourceChannelID: opts.SourceChannelID, DryRun: opts.DryRun}
	run := e.startRun(ctx, opts.SourceChannelID, opts.DryRun)
	result.RunID = run.ID

	sendProgress(progress, ProgressUpdate{Phase: FetchSource, Message: fmt.Sprintf("Fetching subscriptions of %s...", opts.SourceChannelID)})
	source, err := e.Export(ctx, opts.SourceChannelID, progress)
	if err != nil {
		e.finishRun(ctx, run, err)
		return nil, err
	}
	result.Source = source
	run.SourceCount = len(source)

	snapshotPath := opts.SnapshotPath
	if snapshotPath == "" {
		snapshotPath = e.snapshotPath
	}
	if snapshotPath != "" && snapshotPath != "-" {
		if err := formatter.WriteSnapshot(snapshotPath, source); err != nil {
			err = fmt.Errorf("%w: %w", shared.ErrConfiguration, err)
			e.finishRun(ctx, run, err)
			return nil, err
		}
		result.SnapshotPath = snapshotPath
		e.logger.Info("wrote snapshot", "path", snapshotPath, "count", len(source))
		sendProgress(progress, snapshotUpdate(WriteSnapshot, snapshotPath, len(source)))
	}

	return e.complete(ctx, run, result, progress)
}

// Import runs the destination half of the pipeline against a snapshot file.
func (e *Engine) Import(ctx context.Context, opts ImportOpts, progress chan<- ProgressUpdate) (*RunResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	path := opts.SnapshotPath
	if path == "" {
		path = e.snapshotPath
	}
	if path == "" {
		return nil, fmt.Errorf("%w: snapshot path", shared.ErrMissingArgument)
	}
	if err := e.checkCredentials(auth.Authenticated); err != nil {
		return nil, err
	}

	source, err := formatter.ReadSnapshot(path)
	if err != nil {
		return nil, err
	}
	sendProgress(progress, snapshotUpdate(ReadSnapshot, path, len(source)))

	result := &RunResult{SourceChannelID: "snapshot:" + path, SnapshotPath: path, DryRun: opts.DryRun, Source: source}
	run := e.startRun(ctx, result.SourceChannelID, opts.DryRun)
	run.SourceCount = len(source)
	result.RunID = run.ID

	return e.complete(ctx, run, result, progress)
}

// complete lists the destination, diffs against result.Source and subscribes.
func (e *Engine) complete(ctx context.Context, run *models.TransferRun, result *RunResult, progress chan<- ProgressUpdate) (*RunResult, error) {
	sendProgress(progress, ProgressUpdate{Phase: FetchDest, Message: "Fetching destination subscriptions..."})
	svc, dest, err := e.Destination(ctx, progress)
	if err != nil {
		e.finishRun(ctx, run, err)
		return nil, err
	}
	result.Dest = dest
	run.DestCount = len(dest)

	result.Candidates = Diff(result.Source, dest)
	run.CandidateCount = len(result.Candidates)
	e.logger.Info("compared subscription lists", "source", len(result.Source), "dest", len(dest), "candidates", len(result.Candidates))
	sendProgress(progress, compareUpdate(len(result.Source), len(dest), len(result.Candidates)))

	if result.DryRun {
		e.finishRun(ctx, run, nil)
		return result, nil
	}

	result.Outcomes = e.subscribeAll(ctx, svc, result.Candidates, progress, func(i int, o Outcome) {
		e.recordOutcome(ctx, run, i, o)
	})
	result.Succeeded, result.Failed = Summarize(result.Outcomes)
	run.Succeeded, run.Failed = result.Succeeded, result.Failed

	e.finishRun(ctx, run, ctx.Err())
	return result, nil
}

// startRun records a new run. Without a recorder the run still gets an id for reporting.
func (e *Engine) startRun(ctx context.Context, source string, dryRun bool) *models.TransferRun {
	run := models.NewTransferRun(source, dryRun)
	if e.recorder == nil {
		run.ID = shared.GenerateID()
		return run
	}
	if err := e.recorder.StartRun(context.WithoutCancel(ctx), run); err != nil {
		e.logger.Warn("failed to record run", "error", err)
		run.ID = shared.GenerateID()
	}
	return run
}

func (e *Engine) recordOutcome(ctx context.Context, run *models.TransferRun, i int, o Outcome) {
	if e.recorder == nil {
		return
	}
	record := &models.RunOutcome{
		RunID:          run.ID,
		Position:       i + 1,
		ChannelID:      o.Channel.ID,
		Title:          o.Channel.Title,
		ConfirmedTitle: o.ConfirmedTitle,
		Succeeded:      o.OK(),
		Reason:         o.Reason(),
	}
	if err := e.recorder.RecordOutcome(context.WithoutCancel(ctx), record); err != nil {
		e.logger.Warn("failed to record outcome", "channel", o.Channel.ID, "error", err)
	}
}

func (e *Engine) finishRun(ctx context.Context, run *models.TransferRun, err error) {
	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.Status = models.RunCompleted
	if err != nil {
		run.Status = models.RunFailed
		run.Error = err.Error()
	}
	if e.recorder == nil {
		return
	}
	if rerr := e.recorder.FinishRun(context.WithoutCancel(ctx), run); rerr != nil {
		e.logger.Warn("failed to finish run record", "run", run.ID, "error", rerr)
	}
}
