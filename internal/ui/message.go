package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/subx/internal/tasks"
)

type progressUpdateMsg tasks.ProgressUpdate

// runCompleteMsg carries the engine result of a preview (dry run) or a transfer.
type runCompleteMsg struct {
	result *tasks.RunResult
	err    error
	dryRun bool
}

// waitForProgress reads a single update from ch. A closed channel yields no message.
func waitForProgress(ch <-chan tasks.ProgressUpdate) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-ch
		if !ok {
			return nil
		}
		return progressUpdateMsg(update)
	}
}
