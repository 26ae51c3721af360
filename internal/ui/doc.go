// Package ui implements the interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks through one subscription transfer:
//  1. [SourceView] : Enter the source channel id or URL
//  2. [PreviewView] : Browse the channels missing from the destination (a dry run)
//  3. [ConfirmView] : Confirm the subscribe requests
//  4. [TransferView] : Monitor progress updates, ctrl+c stops after the current request
//  5. [ResultView] : Display per-channel outcomes
//
// Progress updates flow through a channel from the transfer engine; each [tea.Cmd] reads one update,
// so the engine's non-blocking sends never stall on the UI.
//
// [Prompt] is a single text input used by `subx transfer run` when no source is given.
// [ReadLine] is its fallback when stdin is not a terminal.
package ui
