// Package tasks implements the subscription transfer pipeline with real-time progress reporting.
//
// # Pipeline
//
//  1. [Pages] / [ListSubscriptions] : paginated retrieval of a subscription list
//     - Each page request repeats the query and substitutes only the page token
//     - Any page failure aborts the listing with [shared.ErrFetch]; partial results are discarded
//
//  2. [Diff] : channels of the source missing from the destination, in source order
//
//  3. [Engine.Transfer] : one subscribe request per candidate, strictly sequential
//     - Failures become [shared.SubscribeError] outcomes and never stop the batch
//     - Optional pacing via golang.org/x/time/rate
//
// # Engine
//
// [Engine.Run] composes the stages: anonymous listing of the source channel, snapshot file,
// authenticated listing of the destination account, diff and transfer. [Engine.Import] starts from
// a snapshot instead of the source channel. [Engine.Export] only lists the source.
//
// # Progress Reporting
//
// All operations accept a progress channel. [ProgressUpdate] values are sent with select and default
// so a slow or absent reader never blocks the pipeline.
//
// # Run History
//
// The optional [RunRecorder] (repositories.RunHistoryAdapter) persists each run and its outcomes.
// Recorder errors are logged and otherwise ignored.
package tasks
