// Package repositories implements SQLite persistence for the transfer run history.
//
// Key Implementations:
//   - [RunRepository] : transfer runs and their per-channel outcomes
//   - [RunHistoryAdapter] : adapts [RunRepository] to the engine's run recorder interface
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
